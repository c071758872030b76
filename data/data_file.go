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

package data

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/markhollemans/ledgerkv/fileio"
)

// ErrEofInSegment signals that the sentinel zero-length record (or the
// true end of file) was reached while replaying a segment. It is internal
// to recovery and never surfaces past the replay loop.
var ErrEofInSegment = errors.New("eof in segment")

// ErrCorruptRecord signals a record whose CRC does not verify, whose type
// byte is unknown, or whose payload runs past the end of the segment.
var ErrCorruptRecord = errors.New("log record failed crc verification or has an unknown type")

// DataFileNameSuffix is the suffix every segment file carries on disk.
// FidWidth is the fixed, zero-padded width of the decimal fid in a segment's
// filename; part of the on-disk format.
const (
	DataFileNameSuffix = ".data"
	FidWidth           = 10
)

// DataFile is one append-only segment: a file id, the IO backend beneath
// it, and a cached size equal to the next write offset.
type DataFile struct {
	FileID uint32
	size   int64
	io     fileio.IOManager
}

func newDataFile(fileName string, fileID uint32, ioType fileio.FileIOType) (*DataFile, error) {
	ioManager, err := fileio.NewIOManager(fileName, ioType)
	if err != nil {
		return nil, fmt.Errorf("open segment %d: %w", fileID, err)
	}

	size, err := ioManager.Size()
	if err != nil {
		return nil, fmt.Errorf("stat segment %d: %w", fileID, err)
	}

	return &DataFile{FileID: fileID, size: size, io: ioManager}, nil
}

// SegmentFileName returns the fixed-width, zero-padded filename for fid,
// e.g. "0000000001.data".
func SegmentFileName(directoryPath string, fid uint32) string {
	return filepath.Join(directoryPath, fmt.Sprintf("%0*d", FidWidth, fid)+DataFileNameSuffix)
}

// OpenDataFile opens (creating if absent) the segment file for fid under
// directoryPath using the given IO backend.
func OpenDataFile(directoryPath string, fid uint32, ioType fileio.FileIOType) (*DataFile, error) {
	return newDataFile(SegmentFileName(directoryPath, fid), fid, ioType)
}

// Fid returns the segment's file id.
func (df *DataFile) Fid() uint32 {
	return df.FileID
}

// CurrentSize is the cached size of the segment, equal to the next write offset.
func (df *DataFile) CurrentSize() int64 {
	return df.size
}

// SetCurrentSize overrides the cached size, used once after a replay scan
// determines the true end of live data in a segment.
func (df *DataFile) SetCurrentSize(size int64) {
	df.size = size
}

// AppendRecord encodes record, appends it to the segment, and returns the
// number of bytes written.
func (df *DataFile) AppendRecord(record *LogRecord) (int64, error) {
	encoded, size := EncodeLogRecord(record)

	n, err := df.io.Write(encoded)
	if err != nil {
		return 0, fmt.Errorf("append segment %d: %w", df.FileID, err)
	}
	df.size += int64(n)

	return size, nil
}

// ReadRecord decodes the record beginning at offset. It returns
// ErrEofInSegment when the sentinel zero-length record (or true file end)
// is reached, and ErrCorruptRecord on CRC mismatch, an unrecognized type
// byte, or a record cut short by the end of the segment.
func (df *DataFile) ReadRecord(offset int64) (*LogRecord, int64, error) {
	fileSize, err := df.io.Size()
	if err != nil {
		return nil, 0, fmt.Errorf("stat segment %d: %w", df.FileID, err)
	}
	if offset >= fileSize {
		return nil, 0, ErrEofInSegment
	}

	headerBytes := int64(MaxHeaderSize)
	if offset+headerBytes > fileSize {
		headerBytes = fileSize - offset
	}

	headerBuf, err := df.readN(headerBytes, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("read segment %d at %d: %w", df.FileID, offset, err)
	}

	header, headerLen := decodeLogRecordHeader(headerBuf)
	if header == nil {
		return nil, 0, ErrEofInSegment
	}
	if header.keySize == 0 && header.valueSize == 0 {
		// Sentinel: the store never writes an empty-key record, so this
		// marks logical end of live data within the segment.
		return nil, 0, ErrEofInSegment
	}
	if header.recordType != RecordNormal && header.recordType != RecordDeleted {
		return nil, 0, fmt.Errorf("segment %d at %d: %w", df.FileID, offset, ErrCorruptRecord)
	}

	keySize, valSize := int64(header.keySize), int64(header.valueSize)

	kvBuf, err := df.readN(keySize+valSize+FixedCRCSize, offset+headerLen)
	if err != nil {
		return nil, 0, fmt.Errorf("read segment %d at %d: %w", df.FileID, offset, err)
	}
	if int64(len(kvBuf)) < keySize+valSize+FixedCRCSize {
		return nil, 0, fmt.Errorf("segment %d at %d: %w", df.FileID, offset, ErrCorruptRecord)
	}

	key := kvBuf[:keySize]
	value := kvBuf[keySize : keySize+valSize]
	storedCRC := binary.LittleEndian.Uint32(kvBuf[keySize+valSize:])

	record := &LogRecord{Key: key, Value: value, Type: header.recordType}

	expectedCRC := crcOf(headerBuf[:headerLen], key, value)
	if expectedCRC != storedCRC {
		return nil, 0, fmt.Errorf("segment %d at %d: %w", df.FileID, offset, ErrCorruptRecord)
	}

	recordLen := headerLen + keySize + valSize + FixedCRCSize
	return record, recordLen, nil
}

// Fsync delegates to the IO backend.
func (df *DataFile) Fsync() error {
	if err := df.io.Sync(); err != nil {
		return fmt.Errorf("sync segment %d: %w", df.FileID, err)
	}
	return nil
}

// Close closes the underlying IO backend.
func (df *DataFile) Close() error {
	return df.io.Close()
}

// SetIOManager swaps the segment's IO backend, e.g. demoting from mmap
// back to standard file IO once a recovery scan completes.
func (df *DataFile) SetIOManager(directoryPath string, ioType fileio.FileIOType) error {
	if err := df.io.Close(); err != nil {
		return err
	}

	ioManager, err := fileio.NewIOManager(SegmentFileName(directoryPath, df.FileID), ioType)
	if err != nil {
		return err
	}

	df.io = ioManager
	return nil
}

func (df *DataFile) readN(n, offset int64) ([]byte, error) {
	buf := make([]byte, n)
	read, err := df.io.Read(buf, offset)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return buf[:read], nil
}
