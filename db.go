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
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gofrs/flock"
	"github.com/markhollemans/ledgerkv/data"
	"github.com/markhollemans/ledgerkv/fileio"
	"github.com/markhollemans/ledgerkv/index"
	"github.com/markhollemans/ledgerkv/utils"
	"go.uber.org/zap"
)

const fileLockName = "flock"

// DB is a single-writer, log-structured key-value store: an append-only
// sequence of segment files plus an in-memory ordered index over the
// location of every live key's most recent write.
type DB struct {
	options Options

	// mu guards activeFile and olderFiles against concurrent writers;
	// readers take the read lock. The index has its own lock and is
	// updated after mu is released.
	mu *sync.RWMutex

	// fileIDs are the fids discovered at Open, sorted ascending. Used only
	// during recovery; never consulted again afterwards.
	fileIDs []uint32

	activeFile *data.DataFile
	olderFiles map[uint32]*data.DataFile

	index index.Indexer

	// fids tracks every resident segment id, for Stat/introspection only.
	fids mapset.Set[uint32]

	// fileLock is an advisory, directory-exclusivity lock: it keeps a
	// second process from opening the same directory and violating the
	// single-writer assumption the rest of the store relies on.
	fileLock *flock.Flock

	log *zap.SugaredLogger
}

// Stat reports point-in-time engine statistics.
type Stat struct {
	// KeyCount is the number of live keys in the index.
	KeyCount uint
	// SegmentCount is the number of resident segment files.
	SegmentCount uint
	// DiskSize is the combined size in bytes of the data directory.
	DiskSize int64
}

// Open opens (creating if absent) the store at options.DirectoryPath,
// replaying every resident segment to rebuild the in-memory index.
func Open(options Options) (*DB, error) {
	if err := checkOptions(options); err != nil {
		return nil, err
	}

	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	if _, err := os.Stat(options.DirectoryPath); os.IsNotExist(err) {
		logger.Infow("creating data directory", "path", options.DirectoryPath)
		if err := os.MkdirAll(options.DirectoryPath, os.ModePerm); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	fileLock := flock.New(filepath.Join(options.DirectoryPath, fileLockName))
	held, err := fileLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire directory lock: %w", err)
	}
	if !held {
		return nil, ErrDatabaseInUse
	}

	db := &DB{
		options:    options,
		mu:         new(sync.RWMutex),
		olderFiles: make(map[uint32]*data.DataFile),
		index:      index.NewIndexer(index.IndexType(options.IndexType)),
		fids:       mapset.NewSet[uint32](),
		fileLock:   fileLock,
		log:        logger,
	}

	if err := db.loadDataFiles(); err != nil {
		_ = fileLock.Unlock()
		return nil, err
	}

	if err := db.loadIndexFromDataFiles(); err != nil {
		_ = fileLock.Unlock()
		return nil, err
	}

	if db.options.MMapAtOpen {
		if err := db.resetIOType(); err != nil {
			_ = fileLock.Unlock()
			return nil, err
		}
	}

	logger.Infow("database opened", "path", options.DirectoryPath, "segments", len(db.fileIDs))

	return db, nil
}

// Close flushes and releases the active segment, older segments, the
// index, and the directory lock.
func (db *DB) Close() error {
	defer func() {
		if err := db.fileLock.Unlock(); err != nil {
			db.log.Errorw("failed to release directory lock", "error", err)
		}
	}()

	if err := db.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}

	if db.activeFile == nil {
		return nil
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.activeFile.Fsync(); err != nil {
		return err
	}

	if err := db.activeFile.Close(); err != nil {
		return fmt.Errorf("close active segment: %w", err)
	}

	for _, file := range db.olderFiles {
		if err := file.Close(); err != nil {
			return fmt.Errorf("close segment %d: %w", file.Fid(), err)
		}
	}

	return nil
}

// Sync fsyncs the active segment.
func (db *DB) Sync() error {
	if db.activeFile == nil {
		return nil
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	return db.activeFile.Fsync()
}

// Stat reports the current key count, resident segment count and disk footprint.
func (db *DB) Stat() (*Stat, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	dirSize, err := utils.DirectorySize(db.options.DirectoryPath)
	if err != nil {
		return nil, fmt.Errorf("stat data directory: %w", err)
	}

	return &Stat{
		KeyCount:     uint(db.index.Size()),
		SegmentCount: uint(db.fids.Cardinality()),
		DiskSize:     dirSize,
	}, nil
}

// Fids returns the set of resident segment ids, for introspection/tooling.
func (db *DB) Fids() []uint32 {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.fids.ToSlice()
}

// Put writes key/value, which must have a non-empty key.
func (db *DB) Put(key []byte, value []byte) error {
	if len(key) == 0 {
		return ErrKeyIsEmpty
	}

	record := &data.LogRecord{Key: key, Value: value, Type: data.RecordNormal}

	pos, err := db.appendLogRecordWithLock(record)
	if err != nil {
		return err
	}

	db.index.Put(key, pos)

	return nil
}

// Delete removes key. Deleting a key that does not exist is a no-op.
func (db *DB) Delete(key []byte) error {
	if len(key) == 0 {
		return ErrKeyIsEmpty
	}

	if pos := db.index.Get(key); pos == nil {
		return nil
	}

	record := &data.LogRecord{Key: key, Type: data.RecordDeleted}

	if _, err := db.appendLogRecordWithLock(record); err != nil {
		return err
	}

	db.index.Delete(key)

	return nil
}

// Get returns the current value for key, or ErrKeyNotFound if absent.
func (db *DB) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if len(key) == 0 {
		return nil, ErrKeyIsEmpty
	}

	pos := db.index.Get(key)
	if pos == nil {
		return nil, ErrKeyNotFound
	}

	return db.getValueByPosition(pos)
}

// ListKeys returns every live key, in index order.
func (db *DB) ListKeys() [][]byte {
	db.mu.RLock()
	defer db.mu.RUnlock()

	iterator := db.index.Iterator(false)
	defer iterator.Close()

	keys := make([][]byte, 0, db.index.Size())
	for iterator.Rewind(); iterator.Valid(); iterator.Next() {
		keys = append(keys, iterator.Key())
	}

	return keys
}

// Fold visits every live key/value pair in index order, stopping early if
// fn returns false.
func (db *DB) Fold(fn func(key []byte, value []byte) bool) error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	iterator := db.index.Iterator(false)
	defer iterator.Close()

	for iterator.Rewind(); iterator.Valid(); iterator.Next() {
		value, err := db.getValueByPosition(iterator.Value())
		if err != nil {
			return err
		}

		if !fn(iterator.Key(), value) {
			break
		}
	}

	return nil
}

// getValueByPosition resolves pos to its segment and reads the value there.
// A Delete-typed record at pos reads as not-found: belt-and-braces against
// a stale index entry racing a concurrent tombstone write.
func (db *DB) getValueByPosition(pos *data.LogRecordPos) ([]byte, error) {
	var file *data.DataFile
	if db.activeFile != nil && db.activeFile.Fid() == pos.Fid {
		file = db.activeFile
	} else {
		file = db.olderFiles[pos.Fid]
	}

	if file == nil {
		return nil, ErrInconsistentIndex
	}

	record, _, err := file.ReadRecord(pos.Offset)
	if err != nil {
		return nil, err
	}

	if record.Type == data.RecordDeleted {
		return nil, ErrKeyNotFound
	}

	return record.Value, nil
}

func (db *DB) appendLogRecordWithLock(record *data.LogRecord) (*data.LogRecordPos, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.appendLogRecord(record)
}

// appendLogRecord rolls the active segment if the new record would cross
// MaxFileSize, appends, optionally fsyncs, and returns the write location.
// Lock must already be held by the caller.
func (db *DB) appendLogRecord(record *data.LogRecord) (*data.LogRecordPos, error) {
	if db.activeFile == nil {
		if err := db.setActiveDataFile(); err != nil {
			return nil, err
		}
	}

	_, size := data.EncodeLogRecord(record)

	if db.activeFile.CurrentSize()+size > db.options.MaxFileSize {
		if err := db.activeFile.Fsync(); err != nil {
			return nil, err
		}

		db.olderFiles[db.activeFile.Fid()] = db.activeFile

		if err := db.setActiveDataFile(); err != nil {
			return nil, err
		}

		db.log.Infow("rolled segment", "new_fid", db.activeFile.Fid())
	}

	writeOffset := db.activeFile.CurrentSize()

	if _, err := db.activeFile.AppendRecord(record); err != nil {
		return nil, err
	}

	if db.options.SyncWrites {
		if err := db.activeFile.Fsync(); err != nil {
			return nil, err
		}
	}

	return &data.LogRecordPos{Fid: db.activeFile.Fid(), Offset: writeOffset}, nil
}

// setActiveDataFile opens the next segment (fid = current active fid + 1,
// or 0 for the very first one). Lock must already be held by the caller.
func (db *DB) setActiveDataFile() error {
	var nextFid uint32
	if db.activeFile != nil {
		nextFid = db.activeFile.Fid() + 1
	}

	file, err := data.OpenDataFile(db.options.DirectoryPath, nextFid, fileio.StandardFileIO)
	if err != nil {
		return err
	}

	db.activeFile = file
	db.fids.Add(nextFid)

	return nil
}

// loadDataFiles enumerates every ".data" segment under the directory,
// rejecting a filename stem that doesn't parse as a fid with
// ErrDataDirectoryCorrupted, and opens each in ascending fid order. The
// highest fid becomes the active segment.
func (db *DB) loadDataFiles() error {
	entries, err := os.ReadDir(db.options.DirectoryPath)
	if err != nil {
		return fmt.Errorf("read data directory: %w", err)
	}

	var fileIDs []uint32

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), data.DataFileNameSuffix) {
			continue
		}

		stem := strings.TrimSuffix(entry.Name(), data.DataFileNameSuffix)
		fid, err := strconv.ParseUint(stem, 10, 32)
		if err != nil {
			return fmt.Errorf("%s: %w", entry.Name(), ErrDataDirectoryCorrupted)
		}

		fileIDs = append(fileIDs, uint32(fid))
	}

	sort.Slice(fileIDs, func(i, j int) bool { return fileIDs[i] < fileIDs[j] })
	db.fileIDs = fileIDs

	ioType := fileio.StandardFileIO
	if db.options.MMapAtOpen {
		ioType = fileio.MemoryMap
	}

	for i, fid := range fileIDs {
		file, err := data.OpenDataFile(db.options.DirectoryPath, fid, ioType)
		if err != nil {
			return fmt.Errorf("open segment %d: %w", fid, err)
		}
		db.fids.Add(fid)

		if i == len(fileIDs)-1 {
			db.activeFile = file
		} else {
			db.olderFiles[fid] = file
		}

		db.log.Debugw("discovered segment", "fid", fid)
	}

	if db.activeFile == nil {
		if err := db.setActiveDataFile(); err != nil {
			return err
		}
	}

	return nil
}

// loadIndexFromDataFiles replays every resident segment in ascending fid
// order, mirroring each live or tombstone record into the in-memory index.
func (db *DB) loadIndexFromDataFiles() error {
	if len(db.fileIDs) == 0 {
		return nil
	}

	for i, fid := range db.fileIDs {
		var file *data.DataFile
		if db.activeFile.Fid() == fid {
			file = db.activeFile
		} else {
			file = db.olderFiles[fid]
		}

		db.log.Debugw("replaying segment", "fid", fid)

		var offset int64
		for {
			record, size, err := file.ReadRecord(offset)
			if err != nil {
				if err == data.ErrEofInSegment {
					break
				}
				return err
			}

			pos := &data.LogRecordPos{Fid: fid, Offset: offset}

			if record.Type == data.RecordDeleted {
				db.index.Delete(record.Key)
			} else {
				db.index.Put(record.Key, pos)
			}

			offset += size
		}

		if i == len(db.fileIDs)-1 {
			db.activeFile.SetCurrentSize(offset)
		}
	}

	return nil
}

// resetIOType demotes every segment from mmap back to standard file IO
// once the recovery scan completes; the writer path always needs FileIO.
func (db *DB) resetIOType() error {
	if db.activeFile != nil {
		if err := db.activeFile.SetIOManager(db.options.DirectoryPath, fileio.StandardFileIO); err != nil {
			return fmt.Errorf("reset IO backend for active segment: %w", err)
		}
	}

	for fid, file := range db.olderFiles {
		if err := file.SetIOManager(db.options.DirectoryPath, fileio.StandardFileIO); err != nil {
			return fmt.Errorf("reset IO backend for segment %d: %w", fid, err)
		}
	}

	return nil
}
