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
	"hash/crc32"
)

// RecordType tags a LogRecord as a live write or a tombstone.
type RecordType = byte

const (
	// RecordDeleted marks a tombstone; by convention its Value is empty.
	RecordDeleted RecordType = 0x00

	// RecordNormal marks a live write; Value may be any length, including empty.
	RecordNormal RecordType = 0x01
)

const (
	// FixedHeaderSize is the type byte at the front of every record.
	FixedHeaderSize = 1

	// FixedCRCSize is the trailing CRC32 field.
	FixedCRCSize = 4

	// MaxHeaderSize bounds the type byte plus the two length varints, for
	// u32-sized keys and values.
	MaxHeaderSize = FixedHeaderSize + 2*binary.MaxVarintLen32
)

// LogRecord is a single mutation as framed on disk: a type tag, a key and a
// value. It is called a log record because the data file is an append-only
// log of these.
type LogRecord struct {
	Key   []byte
	Value []byte
	Type  RecordType
}

// LogRecordPos locates the first byte of a complete, on-disk LogRecord.
type LogRecordPos struct {
	// Fid is the segment file id the record lives in.
	Fid uint32
	// Offset is the byte offset of the record's first byte within that segment.
	Offset int64
}

// logRecordHeader is the decoded fixed+variable-length header that precedes
// every record's key/value payload.
type logRecordHeader struct {
	recordType RecordType
	keySize    uint32
	valueSize  uint32
}

// EncodeLogRecord frames record as:
//
//	[ type: 1 byte ][ key_len: uvarint ][ val_len: uvarint ][ key ][ value ][ crc32: 4 bytes LE ]
//
// The CRC covers every preceding byte of the record. It returns the encoded
// buffer and its length.
func EncodeLogRecord(record *LogRecord) ([]byte, int64) {
	header := make([]byte, MaxHeaderSize)
	header[0] = record.Type

	index := FixedHeaderSize
	index += binary.PutUvarint(header[index:], uint64(len(record.Key)))
	index += binary.PutUvarint(header[index:], uint64(len(record.Value)))

	size := index + len(record.Key) + len(record.Value) + FixedCRCSize
	buf := make([]byte, size)

	copy(buf[:index], header[:index])
	copy(buf[index:], record.Key)
	copy(buf[index+len(record.Key):], record.Value)

	crc := crc32.ChecksumIEEE(buf[:size-FixedCRCSize])
	binary.LittleEndian.PutUint32(buf[size-FixedCRCSize:], crc)

	return buf, int64(size)
}

// decodeLogRecordHeader parses the leading type byte and the two
// length-delimited varints from buffer, returning the header and its
// encoded length (FixedHeaderSize + varint_len(keySize) + varint_len(valueSize)).
// buffer must hold at least MaxHeaderSize bytes, or run to the true end of
// the segment near EOF.
func decodeLogRecordHeader(buffer []byte) (*logRecordHeader, int64) {
	if len(buffer) < FixedHeaderSize {
		return nil, 0
	}

	header := &logRecordHeader{recordType: buffer[0]}
	index := FixedHeaderSize

	keySize, n := binary.Uvarint(buffer[index:])
	if n <= 0 {
		return nil, 0
	}
	header.keySize = uint32(keySize)
	index += n

	valueSize, n := binary.Uvarint(buffer[index:])
	if n <= 0 {
		return nil, 0
	}
	header.valueSize = uint32(valueSize)
	index += n

	return header, int64(index)
}

// crcOf recomputes the CRC32 over the already-encoded header prefix plus
// key and value, for comparison against the trailing stored CRC.
func crcOf(headerPrefix []byte, key, value []byte) uint32 {
	crc := crc32.ChecksumIEEE(headerPrefix)
	crc = crc32.Update(crc, crc32.IEEETable, key)
	crc = crc32.Update(crc, crc32.IEEETable, value)
	return crc
}
