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

package badger_test

import (
	"errors"
	"testing"

	"github.com/blinklabs-io/raffled/database/plugin"
	"github.com/blinklabs-io/raffled/database/plugin/blob/badger"
	"github.com/blinklabs-io/raffled/database/types"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...badger.BlobStoreBadgerOptionFunc) *badger.BlobStoreBadger {
	t.Helper()
	opts = append([]badger.BlobStoreBadgerOptionFunc{badger.WithGc(false)}, opts...)
	store, err := badger.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestGetSetDelete(t *testing.T) {
	store := newTestStore(t)

	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, []byte("key"), []byte("value")))
	require.NoError(t, txn.Commit())

	txn = store.NewTransaction(false)
	val, err := store.Get(txn, []byte("key"))
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), val)
	_, err = store.Get(txn, []byte("missing"))
	require.ErrorIs(t, err, types.ErrBlobKeyNotFound)
	require.NoError(t, txn.Rollback())

	txn = store.NewTransaction(true)
	require.NoError(t, store.Delete(txn, []byte("key")))
	require.NoError(t, txn.Commit())

	txn = store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	_, err = store.Get(txn, []byte("key"))
	require.ErrorIs(t, err, types.ErrBlobKeyNotFound)
}

func TestRollbackDiscardsWrites(t *testing.T) {
	store := newTestStore(t)
	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, []byte("key"), []byte("value")))
	require.NoError(t, txn.Rollback())
	// Finished transactions reject further use
	require.Error(t, store.Set(txn, []byte("key"), []byte("value")))

	txn = store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	_, err := store.Get(txn, []byte("key"))
	require.ErrorIs(t, err, types.ErrBlobKeyNotFound)
}

func TestInvalidTxn(t *testing.T) {
	store := newTestStore(t)
	other := newTestStore(t)
	_, err := store.Get(nil, []byte("key"))
	require.ErrorIs(t, err, types.ErrNilTxn)
	otherTxn := other.NewTransaction(false)
	defer otherTxn.Rollback() //nolint:errcheck
	_, err = store.Get(otherTxn, []byte("key"))
	require.Error(t, err)
	iter := store.NewIterator(nil, types.BlobIteratorOptions{})
	assert.False(t, iter.Valid())
	require.ErrorIs(t, iter.Err(), types.ErrNilTxn)
}

func TestIterator(t *testing.T) {
	store := newTestStore(t)
	txn := store.NewTransaction(true)
	for _, round := range []uint64{3, 1, 2} {
		require.NoError(t, store.Set(txn, types.DrawReceiptKey(round), []byte{byte(round)}))
	}
	require.NoError(t, store.Set(txn, []byte(types.RaffleStateKey), []byte("state")))
	require.NoError(t, txn.Commit())

	txn = store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	prefix := []byte(types.DrawReceiptKeyPrefix)
	iter := store.NewIterator(txn, types.BlobIteratorOptions{Prefix: prefix, Reverse: true})
	defer iter.Close()
	var rounds []uint64
	// Reverse iteration must seek past the end of the prefix
	for iter.Seek(append(prefix, 0xff)); iter.ValidForPrefix(prefix); iter.Next() {
		round, err := types.DrawReceiptRound(iter.Item().Key())
		require.NoError(t, err)
		val, err := iter.Item().ValueCopy(nil)
		require.NoError(t, err)
		assert.Equal(t, []byte{byte(round)}, val)
		rounds = append(rounds, round)
	}
	require.NoError(t, iter.Err())
	assert.Equal(t, []uint64{3, 2, 1}, rounds)
}

func TestCommitTimestamp(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetCommitTimestamp()
	require.True(t, errors.Is(err, types.ErrBlobKeyNotFound))

	txn := store.NewTransaction(true)
	require.NoError(t, store.SetCommitTimestamp(1767225600000, txn))
	require.NoError(t, txn.Commit())
	ts, err := store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(1767225600000), ts)

	require.ErrorIs(t, store.SetCommitTimestamp(1, nil), types.ErrNilTxn)
}

func TestDataDir(t *testing.T) {
	dir := t.TempDir()
	store, err := badger.New(badger.WithDataDir(dir), badger.WithGc(false))
	require.NoError(t, err)
	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, []byte("key"), []byte("value")))
	require.NoError(t, txn.Commit())
	require.NoError(t, store.Close())

	store, err = badger.New(badger.WithDataDir(dir), badger.WithGc(false))
	require.NoError(t, err)
	defer store.Close() //nolint:errcheck
	txn = store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	val, err := store.Get(txn, []byte("key"))
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), val)
}

func TestMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	store := newTestStore(t, badger.WithPromRegistry(registry))
	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, []byte("key"), []byte("value")))
	require.NoError(t, txn.Commit())
	count, err := promtestutil.GatherAndCount(registry, "database_blob_ops_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPluginOptions(t *testing.T) {
	require.NoError(t, plugin.SetPluginOption(plugin.PluginTypeBlob, "badger", "data-dir", ""))
	require.NoError(t, plugin.SetPluginOption(plugin.PluginTypeBlob, "badger", "gc", false))
	require.NoError(t, plugin.SetPluginOption(plugin.PluginTypeBlob, "badger", "block-cache-size", uint64(1<<20)))
	require.Error(t, plugin.SetPluginOption(plugin.PluginTypeBlob, "badger", "gc", 123))
	p, err := plugin.StartPlugin(plugin.PluginTypeBlob, "badger")
	require.NoError(t, err)
	_, ok := p.(*badger.BlobStoreBadger)
	assert.True(t, ok)
	require.NoError(t, p.Stop())
}
