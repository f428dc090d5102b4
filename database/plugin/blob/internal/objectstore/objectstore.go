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

// Package objectstore holds the pieces shared by the object storage blob
// plugins: key encoding and an iterator over a listed set of keys.
package objectstore

import (
	"bytes"
	"encoding/hex"
	"errors"
	"slices"
	"strings"

	"github.com/blinklabs-io/raffled/database/types"
)

// EncodeKey maps a binary blob key to an object name. Lowercase hex keeps
// the byte ordering of the original keys
func EncodeKey(prefix string, key []byte) string {
	return prefix + hex.EncodeToString(key)
}

// DecodeKey reverses EncodeKey
func DecodeKey(prefix string, name string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(name, prefix))
}

// Getter reads a single key within a transaction
type Getter func(txn types.Txn, key []byte) ([]byte, error)

// Iterator walks a sorted snapshot of keys, fetching values on demand
type Iterator struct {
	get     Getter
	txn     types.Txn
	err     error
	keys    [][]byte
	idx     int
	reverse bool
}

// NewIterator sorts keys according to the iteration direction
func NewIterator(
	get Getter,
	txn types.Txn,
	keys [][]byte,
	reverse bool,
	err error,
) *Iterator {
	slices.SortFunc(keys, bytes.Compare)
	if reverse {
		slices.Reverse(keys)
	}
	return &Iterator{
		get:     get,
		txn:     txn,
		keys:    keys,
		reverse: reverse,
		err:     err,
	}
}

// NewErrorIterator returns an iterator that is never valid
func NewErrorIterator(err error) *Iterator {
	return &Iterator{err: err}
}

func (it *Iterator) Rewind() {
	it.idx = 0
}

func (it *Iterator) Seek(prefix []byte) {
	it.idx = len(it.keys)
	for i, key := range it.keys {
		cmp := bytes.Compare(key, prefix)
		if (it.reverse && cmp <= 0) || (!it.reverse && cmp >= 0) {
			it.idx = i
			return
		}
	}
}

func (it *Iterator) Valid() bool {
	return it.err == nil && it.idx < len(it.keys)
}

func (it *Iterator) ValidForPrefix(prefix []byte) bool {
	return it.Valid() && bytes.HasPrefix(it.keys[it.idx], prefix)
}

func (it *Iterator) Next() {
	if it.idx < len(it.keys) {
		it.idx++
	}
}

func (it *Iterator) Item() types.BlobItem {
	if !it.Valid() {
		return nil
	}
	return &item{it: it, key: it.keys[it.idx]}
}

// Err surfaces any listing error
func (it *Iterator) Err() error {
	return it.err
}

func (it *Iterator) Close() {}

type item struct {
	it  *Iterator
	key []byte
}

func (i *item) Key() []byte {
	return slices.Clone(i.key)
}

func (i *item) ValueCopy(dst []byte) ([]byte, error) {
	data, err := i.it.get(i.it.txn, i.key)
	if err != nil {
		return nil, err
	}
	if dst != nil {
		return append(dst[:0], data...), nil
	}
	return data, nil
}

// Txn satisfies types.Txn for stores without transactions. Writes reach the
// bucket immediately, so the database layer commits the blob side first
type Txn struct {
	owner     any
	finished  bool
	readWrite bool
}

// NewTxn returns a transaction bound to the store owner
func NewTxn(owner any, readWrite bool) *Txn {
	return &Txn{owner: owner, readWrite: readWrite}
}

func (t *Txn) Commit() error {
	t.finished = true
	return nil
}

func (t *Txn) Rollback() error {
	t.finished = true
	return nil
}

// CheckTxn verifies that txn was created by owner and is still usable
func CheckTxn(txn types.Txn, owner any, write bool) error {
	if txn == nil {
		return types.ErrNilTxn
	}
	t, ok := txn.(*Txn)
	if !ok || t.owner != owner {
		return types.ErrTxnWrongType
	}
	if t.finished {
		return errors.New("transaction already finished")
	}
	if write && !t.readWrite {
		return errors.New("transaction is read-only")
	}
	return nil
}
