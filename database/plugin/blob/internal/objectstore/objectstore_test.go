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

package objectstore_test

import (
	"testing"

	"github.com/blinklabs-io/raffled/database/plugin/blob/internal/objectstore"
	"github.com/blinklabs-io/raffled/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyEncoding(t *testing.T) {
	key := types.DrawReceiptKey(200)
	name := objectstore.EncodeKey("raffle/", key)
	assert.Equal(t, "raffle/726400000000000000c8", name)
	decoded, err := objectstore.DecodeKey("raffle/", name)
	require.NoError(t, err)
	assert.Equal(t, key, decoded)
	// Encoded names sort like the raw keys
	assert.Less(
		t,
		objectstore.EncodeKey("", types.DrawReceiptKey(9)),
		objectstore.EncodeKey("", types.DrawReceiptKey(200)),
	)
}

func TestIterator(t *testing.T) {
	values := map[string][]byte{
		string(types.DrawReceiptKey(1)): []byte("one"),
		string(types.DrawReceiptKey(2)): []byte("two"),
		types.RaffleStateKey:            []byte("state"),
	}
	get := func(_ types.Txn, key []byte) ([]byte, error) {
		v, ok := values[string(key)]
		if !ok {
			return nil, types.ErrBlobKeyNotFound
		}
		return v, nil
	}
	keys := func() [][]byte {
		return [][]byte{
			[]byte(types.RaffleStateKey),
			types.DrawReceiptKey(2),
			types.DrawReceiptKey(1),
		}
	}
	prefix := []byte(types.DrawReceiptKeyPrefix)

	it := objectstore.NewIterator(get, nil, keys(), false, nil)
	var got []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		val, err := it.Item().ValueCopy(nil)
		require.NoError(t, err)
		got = append(got, string(val))
	}
	assert.Equal(t, []string{"one", "two"}, got)

	it = objectstore.NewIterator(get, nil, keys(), true, nil)
	got = nil
	for it.Seek(append(prefix, 0xff)); it.ValidForPrefix(prefix); it.Next() {
		val, err := it.Item().ValueCopy(make([]byte, 0, 8))
		require.NoError(t, err)
		got = append(got, string(val))
	}
	assert.Equal(t, []string{"two", "one"}, got)

	errIt := objectstore.NewErrorIterator(assert.AnError)
	assert.False(t, errIt.Valid())
	assert.Nil(t, errIt.Item())
	require.ErrorIs(t, errIt.Err(), assert.AnError)
}

func TestCheckTxn(t *testing.T) {
	owner, other := new(int), new(int)
	require.ErrorIs(t, objectstore.CheckTxn(nil, owner, false), types.ErrNilTxn)

	ro := objectstore.NewTxn(owner, false)
	require.NoError(t, objectstore.CheckTxn(ro, owner, false))
	require.Error(t, objectstore.CheckTxn(ro, owner, true))
	require.ErrorIs(t, objectstore.CheckTxn(ro, other, false), types.ErrTxnWrongType)

	rw := objectstore.NewTxn(owner, true)
	require.NoError(t, objectstore.CheckTxn(rw, owner, true))
	require.NoError(t, rw.Commit())
	require.Error(t, objectstore.CheckTxn(rw, owner, false))
}
