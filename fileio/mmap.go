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

import (
	"os"

	"golang.org/x/exp/mmap"
)

// MMap is a read-only, memory-mapped IO backend. It accelerates the
// directory scan at Open time; Write and Sync are unsupported because a
// read-only mapping cannot grow, so the writer path always runs on FileIO
// instead.
type MMap struct {
	readerAt *mmap.ReaderAt
}

// NewMMapIOManager maps fileName (creating it if absent) for read-only access.
func NewMMapIOManager(fileName string) (*MMap, error) {
	if _, err := os.OpenFile(fileName, os.O_CREATE, DataFilePermission); err != nil {
		return nil, err
	}

	readerAt, err := mmap.Open(fileName)
	if err != nil {
		return nil, err
	}

	return &MMap{readerAt: readerAt}, nil
}

// Read is a positional read, safe for concurrent callers.
func (m *MMap) Read(b []byte, offset int64) (int, error) {
	return m.readerAt.ReadAt(b, offset)
}

// Write always panics: the mmap backend never serves the writer path.
func (m *MMap) Write([]byte) (int, error) {
	panic("ledgerkv: mmap IO backend is read-only")
}

// Sync always panics: the mmap backend never serves the writer path.
func (m *MMap) Sync() error {
	panic("ledgerkv: mmap IO backend is read-only")
}

// Close unmaps the file.
func (m *MMap) Close() error {
	return m.readerAt.Close()
}

// Size is the mapped file's length at the time it was opened.
func (m *MMap) Size() (int64, error) {
	return int64(m.readerAt.Len()), nil
}
