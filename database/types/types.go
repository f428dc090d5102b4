// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package types

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math/big"
	"strconv"
)

// BigInt stores an arbitrary precision integer as a decimal string so that
// values such as balances and random words survive every SQL backend intact
//
//nolint:recvcheck
type BigInt struct {
	*big.Int
}

func NewBigInt(v *big.Int) BigInt {
	if v == nil {
		return BigInt{Int: new(big.Int)}
	}
	return BigInt{Int: new(big.Int).Set(v)}
}

// Copy returns an independent *big.Int, never nil
func (b BigInt) Copy() *big.Int {
	if b.Int == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(b.Int)
}

func (b BigInt) Value() (driver.Value, error) {
	if b.Int == nil {
		return "0", nil
	}
	return b.String(), nil
}

func (b *BigInt) Scan(val any) error {
	if n, ok := val.(int64); ok {
		b.Int = big.NewInt(n)
		return nil
	}
	text, err := decimalText(val)
	if err != nil {
		return err
	}
	v, ok := new(big.Int).SetString(text, 10)
	if !ok {
		return fmt.Errorf("invalid decimal integer %q", text)
	}
	b.Int = v
	return nil
}

// decimalText accepts the textual column representations used by the SQL
// drivers
func decimalText(val any) (string, error) {
	switch v := val.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("cannot scan %T into a decimal column", val)
	}
}

// GormDataType keeps the column a string type across dialects
func (BigInt) GormDataType() string {
	return "string"
}

//nolint:recvcheck
type Uint64 uint64

func (u Uint64) Value() (driver.Value, error) {
	return strconv.FormatUint(uint64(u), 10), nil
}

func (u *Uint64) Scan(val any) error {
	if n, ok := val.(int64); ok {
		if n < 0 {
			return fmt.Errorf("negative value %d for unsigned column", n)
		}
		*u = Uint64(n)
		return nil
	}
	text, err := decimalText(val)
	if err != nil {
		return err
	}
	v, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return err
	}
	*u = Uint64(v)
	return nil
}

var (
	// ErrBlobKeyNotFound is returned by blob reads of a missing key
	ErrBlobKeyNotFound = errors.New("blob key not found")
	// ErrTxnWrongType is returned when a store receives another store's transaction
	ErrTxnWrongType = errors.New("invalid transaction type")
	ErrNilTxn       = errors.New("nil transaction")
	// ErrNoStoreAvailable is returned by a commit with neither store configured
	ErrNoStoreAvailable = errors.New("no store available")
	// ErrBlobStoreUnavailable is returned before the blob store is started
	ErrBlobStoreUnavailable = errors.New("blob store unavailable")
	// ErrRecordNotFound is returned by metadata lookups that match nothing
	ErrRecordNotFound = errors.New("record not found")
)

// BlobItem represents a value returned by an iterator
type BlobItem interface {
	Key() []byte
	ValueCopy(dst []byte) ([]byte, error)
}

// BlobIterator provides key iteration over the blob store.
//
// Items returned by Item() must only be accessed while the transaction used
// to create the iterator is still active.
type BlobIterator interface {
	Rewind()
	Seek(prefix []byte)
	Valid() bool
	ValidForPrefix(prefix []byte) bool
	Next()
	Item() BlobItem
	Close()
	Err() error
}

// BlobIteratorOptions configures blob iterator creation
type BlobIteratorOptions struct {
	Prefix  []byte
	Reverse bool
}

// Txn is a simple transaction handle for commit/rollback only.
// The database layer coordinates metadata and blob transactions separately.
type Txn interface {
	Commit() error
	Rollback() error
}
