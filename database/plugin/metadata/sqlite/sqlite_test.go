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

package sqlite_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/blinklabs-io/raffled/database/models"
	"github.com/blinklabs-io/raffled/database/plugin"
	"github.com/blinklabs-io/raffled/database/plugin/metadata/sqlite"
	"github.com/blinklabs-io/raffled/database/types"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *sqlite.MetadataStoreSqlite {
	t.Helper()
	store, err := sqlite.New("", nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testEntry(round uint64, position int, addr byte) *models.RaffleEntry {
	return &models.RaffleEntry{
		Round:     round,
		Position:  position,
		Address:   []byte{addr, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, addr},
		Amount:    types.NewBigInt(big.NewInt(100)),
		CreatedAt: time.Now(),
	}
}

func TestInMemoryStoresAreIsolated(t *testing.T) {
	a := newTestStore(t)
	b := newTestStore(t)
	require.NoError(t, a.AddEntry(testEntry(1, 0, 0xaa), nil))
	entries, err := b.GetEntries(1, nil)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEntries(t *testing.T) {
	store := newTestStore(t)
	txn := store.Transaction()
	require.NoError(t, store.AddEntry(testEntry(1, 1, 0xbb), txn))
	require.NoError(t, store.AddEntry(testEntry(1, 0, 0xaa), txn))
	require.NoError(t, store.AddEntry(testEntry(2, 0, 0xcc), txn))
	require.NoError(t, txn.Commit())

	entries, err := store.GetEntries(1, nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, byte(0xaa), entries[0].Address[0])
	assert.Equal(t, byte(0xbb), entries[1].Address[0])
	assert.Equal(t, int64(100), entries[0].Amount.Int64())

	// Duplicate position within a round
	require.Error(t, store.AddEntry(testEntry(1, 0, 0xdd), nil))
}

func TestRollback(t *testing.T) {
	store := newTestStore(t)
	txn := store.Transaction()
	require.NoError(t, store.AddEntry(testEntry(1, 0, 0xaa), txn))
	require.NoError(t, txn.Rollback())
	entries, err := store.GetEntries(1, nil)
	require.NoError(t, err)
	assert.Empty(t, entries)
	// A finished transaction cannot be reused
	require.Error(t, store.AddEntry(testEntry(1, 0, 0xaa), txn))
}

func TestRequests(t *testing.T) {
	store := newTestStore(t)
	req, err := store.GetRequest(7, nil)
	require.NoError(t, err)
	assert.Nil(t, req)

	require.NoError(t, store.AddRequest(&models.RandomnessRequest{
		RequestID:   7,
		Round:       1,
		NumEntrants: 3,
		CreatedAt:   time.Now(),
	}, nil))
	req, err = store.GetRequest(7, nil)
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, uint64(1), req.Round)
	assert.False(t, req.Fulfilled())

	require.NoError(t, store.MarkRequestFulfilled(7, time.Now(), nil))
	req, err = store.GetRequest(7, nil)
	require.NoError(t, err)
	assert.True(t, req.Fulfilled())

	// Replays and unknown ids do not match
	require.ErrorIs(t, store.MarkRequestFulfilled(7, time.Now(), nil), types.ErrRecordNotFound)
	require.ErrorIs(t, store.MarkRequestFulfilled(8, time.Now(), nil), types.ErrRecordNotFound)
}

func TestDraws(t *testing.T) {
	store := newTestStore(t)
	word, ok := new(big.Int).SetString("1000000004", 10)
	require.True(t, ok)
	for round := uint64(1); round <= 3; round++ {
		require.NoError(t, store.AddDraw(&models.RaffleDraw{
			Round:       round,
			RequestID:   types.Uint64(round + 10),
			RandomWord:  types.NewBigInt(word),
			WinnerIndex: 1,
			Winner:      []byte{byte(round)},
			Prize:       types.NewBigInt(big.NewInt(300)),
			NumEntrants: 3,
			CreatedAt:   time.Now(),
		}, nil))
	}
	draws, err := store.GetDraws(2, nil)
	require.NoError(t, err)
	require.Len(t, draws, 2)
	assert.Equal(t, uint64(3), draws[0].Round)
	assert.Equal(t, uint64(2), draws[1].Round)

	all, err := store.GetDraws(0, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	draw, err := store.GetDraw(2, nil)
	require.NoError(t, err)
	require.NotNil(t, draw)
	assert.Equal(t, 0, draw.RandomWord.Cmp(word))
	assert.Equal(t, types.Uint64(12), draw.RequestID)

	missing, err := store.GetDraw(9, nil)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCommitTimestamp(t *testing.T) {
	store := newTestStore(t)
	ts, err := store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(0), ts)
	txn := store.Transaction()
	require.NoError(t, store.SetCommitTimestamp(1767225600000, txn))
	require.NoError(t, txn.Commit())
	require.NoError(t, store.SetCommitTimestamp(1767225600001, nil))
	ts, err = store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(1767225600001), ts)
}

func TestWrongTxnType(t *testing.T) {
	store := newTestStore(t)
	require.ErrorIs(t, store.AddEntry(testEntry(1, 0, 0xaa), fakeTxn{}), types.ErrTxnWrongType)
}

type fakeTxn struct{}

func (fakeTxn) Commit() error   { return nil }
func (fakeTxn) Rollback() error { return nil }

func TestDataDir(t *testing.T) {
	dir := t.TempDir()
	store, err := sqlite.New(dir, nil, nil)
	require.NoError(t, err)
	require.NoError(t, store.AddEntry(testEntry(1, 0, 0xaa), nil))
	require.NoError(t, store.Close())

	store, err = sqlite.New(dir, nil, nil)
	require.NoError(t, err)
	defer store.Close() //nolint:errcheck
	entries, err := store.GetEntries(1, nil)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPluginStart(t *testing.T) {
	require.NoError(t, plugin.SetPluginOption(plugin.PluginTypeMetadata, "sqlite", "data-dir", ""))
	registry := prometheus.NewRegistry()
	p, err := plugin.StartPlugin(
		plugin.PluginTypeMetadata,
		"sqlite",
		plugin.WithPromRegistry(registry),
	)
	require.NoError(t, err)
	defer p.Stop() //nolint:errcheck
	_, ok := p.(*sqlite.MetadataStoreSqlite)
	assert.True(t, ok)
	count, err := promtestutil.GatherAndCount(registry, "database_metadata_open_connections")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
