/*
 * Copyright (c) 2024. Shuojiang Liu.
 * Licensed under the MIT License (the "License");
 * you may not use this file except in compliance with the License.
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package ledgerkv

import (
	"bytes"

	"github.com/markhollemans/ledgerkv/index"
)

// Iterator is a façade over an index snapshot: it walks key order exactly
// as the index iterator does, but materializes values by reading through
// to the owning DB. It filters keys by prefix only; a key whose record
// reads as a tombstone is not skipped, and Value reports ErrKeyNotFound
// for it.
type Iterator struct {
	indexIter index.Iterator
	db        *DB
	options   IteratorOptions
}

// NewIterator takes a point-in-time snapshot of the index and returns an
// Iterator positioned at its first matching key.
func (db *DB) NewIterator(opts IteratorOptions) *Iterator {
	indexIter := db.index.Iterator(opts.Reverse)
	it := &Iterator{
		db:        db,
		indexIter: indexIter,
		options:   opts,
	}
	it.skipToNext()
	return it
}

// Rewind returns to the iterator's first matching key.
func (it *Iterator) Rewind() {
	it.indexIter.Rewind()
	it.skipToNext()
}

// Seek advances to the first matching key >= (or, reversed, <=) key.
func (it *Iterator) Seek(key []byte) {
	it.indexIter.Seek(key)
	it.skipToNext()
}

// Next advances to the next matching key.
func (it *Iterator) Next() {
	it.indexIter.Next()
	it.skipToNext()
}

// Valid reports whether the iterator is still positioned on an item.
func (it *Iterator) Valid() bool {
	return it.indexIter.Valid()
}

// Key returns the current item's key.
func (it *Iterator) Key() []byte {
	return it.indexIter.Key()
}

// Value reads the current item's value from its owning segment. A stale
// tombstone at this position reads as ErrKeyNotFound.
func (it *Iterator) Value() ([]byte, error) {
	pos := it.indexIter.Value()

	it.db.mu.RLock()
	defer it.db.mu.RUnlock()

	return it.db.getValueByPosition(pos)
}

// Close releases the iterator's snapshot.
func (it *Iterator) Close() {
	it.indexIter.Close()
}

func (it *Iterator) skipToNext() {
	prefixLen := len(it.options.Prefix)
	if prefixLen == 0 {
		return
	}

	for ; it.indexIter.Valid(); it.indexIter.Next() {
		key := it.indexIter.Key()
		if prefixLen <= len(key) && bytes.Equal(it.options.Prefix, key[:prefixLen]) {
			break
		}
	}
}
