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

package fileio

import "os"

// FileIO is the standard file-descriptor-backed IO backend: the only
// backend that supports Write, and therefore the one the writer path
// always uses for the active segment.
type FileIO struct {
	fd *os.File
}

// NewFileIOManager opens (creating if absent) fileName for append-mode
// read/write.
func NewFileIOManager(fileName string) (*FileIO, error) {
	fd, err := os.OpenFile(
		fileName,
		// O_CREATE: create if absent; O_RDWR: read-write; O_APPEND: writes land at EOF
		os.O_CREATE|os.O_RDWR|os.O_APPEND,
		DataFilePermission,
	)
	if err != nil {
		return nil, err
	}

	return &FileIO{fd: fd}, nil
}

// Read is a positional read, safe for concurrent callers.
func (f *FileIO) Read(b []byte, offset int64) (int, error) {
	return f.fd.ReadAt(b, offset)
}

// Write appends b to the file.
func (f *FileIO) Write(b []byte) (int, error) {
	return f.fd.Write(b)
}

// Sync forces buffered writes to stable storage.
func (f *FileIO) Sync() error {
	return f.fd.Sync()
}

// Close releases the underlying file descriptor.
func (f *FileIO) Close() error {
	return f.fd.Close()
}

// Size reflects the last successful Write.
func (f *FileIO) Size() (int64, error) {
	info, err := f.fd.Stat()
	if err != nil {
		return 0, err
	}

	return info.Size(), nil
}
