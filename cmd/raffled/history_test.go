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

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/blinklabs-io/raffled/database"
	"github.com/blinklabs-io/raffled/internal/config"
	"github.com/blinklabs-io/raffled/raffle"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedHistory(t *testing.T, dataDir string) []raffle.Address {
	t.Helper()
	db, err := database.New(&database.Config{DataDir: dataDir})
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()
	entrants := []raffle.Address{
		common.HexToAddress("0xA"),
		common.HexToAddress("0xB"),
		common.HexToAddress("0xC"),
	}
	now := time.Unix(1_700_000_000, 0)
	require.NoError(t, db.PersistRaffle(ctx, &raffle.Change{
		Snapshot: &raffle.Snapshot{
			Round:    1,
			Entrants: entrants,
			Balance:  big.NewInt(300),
			Pending:  &raffle.PendingRequest{RequestID: 7, Round: 1, IssuedAt: now},
		},
		Request: &raffle.RequestRecord{
			Round:       1,
			RequestID:   7,
			NumEntrants: 3,
			Timestamp:   now,
		},
	}, nil))
	require.NoError(t, db.PersistRaffle(ctx, &raffle.Change{
		Snapshot: &raffle.Snapshot{
			Round:        2,
			Balance:      new(big.Int),
			LastDrawAt:   now,
			RecentWinner: entrants[1],
		},
		Draw: &raffle.DrawRecord{
			Round:       1,
			RequestID:   7,
			RandomWord:  big.NewInt(3000000004),
			WinnerIndex: 1,
			Winner:      entrants[1],
			Prize:       big.NewInt(300),
			NumEntrants: 3,
			Entrants:    entrants,
			Timestamp:   now,
		},
	}, nil))
	return entrants
}

func testConfig(dataDir string) *config.Config {
	return &config.Config{
		DatabasePath:   dataDir,
		BlobPlugin:     config.DefaultBlobPlugin,
		MetadataPlugin: config.DefaultMetadataPlugin,
	}
}

func TestHistoryList(t *testing.T) {
	dataDir := t.TempDir()
	entrants := seedHistory(t, dataDir)
	var buf bytes.Buffer
	require.NoError(t, historyRun(&buf, testConfig(dataDir), historyFlags{limit: 10}, nil))
	out := buf.String()
	assert.Contains(t, out, "ROUND")
	assert.Contains(t, out, entrants[1].Hex())
	assert.Contains(t, out, "300")

	buf.Reset()
	require.NoError(t, historyRun(&buf, testConfig(dataDir), historyFlags{limit: 10, json: true}, nil))
	var draws []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &draws))
	require.Len(t, draws, 1)
}

func TestHistoryReceipt(t *testing.T) {
	dataDir := t.TempDir()
	entrants := seedHistory(t, dataDir)
	var buf bytes.Buffer
	err := historyRun(&buf, testConfig(dataDir), historyFlags{verify: true}, []string{"1"})
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "Random word:  3000000004")
	assert.Contains(t, out, "[1] "+entrants[1].Hex())
	assert.Contains(t, out, "Verified:     yes")

	buf.Reset()
	require.NoError(t, historyRun(&buf, testConfig(dataDir), historyFlags{json: true}, []string{"1"}))
	var receipt map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &receipt))
	assert.Equal(t, true, receipt["verified"])

	require.Error(t, historyRun(&buf, testConfig(dataDir), historyFlags{}, []string{"2"}))
	require.Error(t, historyRun(&buf, testConfig(dataDir), historyFlags{}, []string{"one"}))
}

func TestListPlugins(t *testing.T) {
	shouldExit, out := listPlugins("list", "")
	assert.True(t, shouldExit)
	assert.Contains(t, out, "badger")
	assert.NotContains(t, out, "sqlite")
	shouldExit, _ = listPlugins("badger", "sqlite")
	assert.False(t, shouldExit)
	assert.Contains(t, listAllPlugins(), "postgres")
}
