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
	"os"

	"go.uber.org/zap"
)

// Options configures an Engine instance.
type Options struct {
	// DirectoryPath is the engine's data directory; created if absent.
	DirectoryPath string

	// MaxFileSize is the soft cap on a single segment, in bytes. A new
	// record may cross this boundary only by forcing a segment roll
	// before the append.
	MaxFileSize int64

	// SyncWrites, when true, fsyncs the active segment after every
	// successful append.
	SyncWrites bool

	// IndexType selects the in-memory index implementation.
	IndexType IndexerType

	// MMapAtOpen, when true, uses the mmap IO backend to accelerate the
	// replay scan during Open; every segment is switched back to the
	// standard file IO backend once replay completes.
	MMapAtOpen bool

	// Logger receives structured diagnostics for open/recovery/segment
	// roll events. A no-op logger is used when nil.
	Logger *zap.SugaredLogger
}

// IteratorOptions configures DB.NewIterator.
type IteratorOptions struct {
	// Prefix restricts iteration to keys with this prefix; nil/empty matches all.
	Prefix []byte

	// Reverse traverses keys in descending order when true.
	Reverse bool
}

// IndexerType selects the concrete ordered-index implementation.
type IndexerType = int8

const (
	// BTree is the default ordered-map index, backed by google/btree.
	BTree IndexerType = iota + 1

	// ART is the Adaptive Radix Tree index, backed by go-adaptive-radix-tree.
	ART
)

var DefaultOptions = Options{
	DirectoryPath: os.TempDir(),
	MaxFileSize:   1 * 1024 * 1024 * 1024, // 1GiB, per spec default
	SyncWrites:    false,
	IndexType:     BTree,
	MMapAtOpen:    true,
}

var DefaultIteratorOptions = IteratorOptions{
	Prefix:  nil,
	Reverse: false,
}

// checkOptions validates user-supplied Options, as required before Open
// does any directory or file system work.
func checkOptions(options Options) error {
	if options.DirectoryPath == "" {
		return ErrInvalidOptions
	}

	if options.MaxFileSize <= 0 {
		return ErrInvalidOptions
	}

	return nil
}
