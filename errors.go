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
	"errors"

	"github.com/markhollemans/ledgerkv/data"
)

var (
	// ErrKeyIsEmpty is returned by Put, Get and Delete for a zero-length key.
	ErrKeyIsEmpty = errors.New("the key is empty")

	// ErrKeyNotFound is returned when a key has no live entry in the index.
	ErrKeyNotFound = errors.New("key is not found in the database")

	// ErrInvalidOptions is returned by Open when the supplied Options fail validation.
	ErrInvalidOptions = errors.New("invalid options")

	// ErrDataDirectoryCorrupted is returned when a ".data" filename stem is not a valid fid.
	ErrDataDirectoryCorrupted = errors.New("database directory might be corrupted")

	// ErrCorruptRecord is returned when a record's CRC fails to verify or its type byte is unknown.
	ErrCorruptRecord = data.ErrCorruptRecord

	// ErrInconsistentIndex is returned when the index points at a fid with no resident segment.
	// Under normal operation this should never happen; it indicates index/disk inconsistency.
	ErrInconsistentIndex = errors.New("index references a data file that is not resident")

	// ErrDatabaseInUse is returned by Open when another process already holds the directory lock.
	ErrDatabaseInUse = errors.New("database directory is being used by another process")
)
