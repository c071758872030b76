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

package index

import (
	"bytes"

	"github.com/google/btree"
	"github.com/markhollemans/ledgerkv/data"
)

// Indexer is the in-memory, ordered key index abstraction. Any structure
// that can maintain a total order over keys and answer Put/Get/Delete and
// a snapshot Iterator can back an engine.
type Indexer interface {
	// Put records pos as the location for key, returning the position it
	// replaces (nil if key was absent).
	Put(key []byte, pos *data.LogRecordPos) *data.LogRecordPos

	// Get returns the recorded position for key, or nil if absent.
	Get(key []byte) *data.LogRecordPos

	// Delete removes key's entry, reporting whether it was present.
	Delete(key []byte) (*data.LogRecordPos, bool)

	// Size is the number of keys currently indexed.
	Size() int

	// Iterator takes a point-in-time snapshot of the index, ordered by
	// key (descending when reverse is true). Later mutations to the
	// index do not affect an iterator already created.
	Iterator(reverse bool) Iterator

	// Close releases any resources held by the index.
	Close() error
}

// IndexType selects an Indexer implementation.
type IndexType = int8

const (
	// BTree indexes keys in an in-memory B-tree (google/btree).
	BTree IndexType = iota + 1

	// ART indexes keys in an adaptive radix tree.
	ART
)

// NewIndexer builds the requested Indexer implementation.
func NewIndexer(tp IndexType) Indexer {
	switch tp {
	case BTree:
		return NewBTree()
	case ART:
		return NewART()
	default:
		panic("ledgerkv: unsupported index type, use BTree or ART")
	}
}

// Item is a single BTree entry: a key and its log record position.
type Item struct {
	key []byte
	pos *data.LogRecordPos
}

// Less orders items by key, ascending.
func (i *Item) Less(rhs btree.Item) bool {
	return bytes.Compare(i.key, rhs.(*Item).key) == -1
}

// Iterator walks a point-in-time snapshot of an Indexer, in key order.
type Iterator interface {
	// Rewind returns to the first item of the iterator.
	Rewind()

	// Seek advances to the first key >= (or, reversed, <=) the key given.
	Seek(key []byte)

	// Next advances to the next key.
	Next()

	// Valid reports whether the iterator is still positioned on an item.
	Valid() bool

	// Key returns the current item's key.
	Key() []byte

	// Value returns the current item's log record position.
	Value() *data.LogRecordPos

	// Close releases the iterator's resources.
	Close()
}
