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

package raffled

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/blinklabs-io/raffled/internal/test/testutil"
	"github.com/blinklabs-io/raffled/raffle"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testNode struct {
	*Node
	cancel context.CancelFunc
	errCh  chan error
}

func startTestNode(t *testing.T, opts ...ConfigOptionFunc) *testNode {
	t.Helper()
	baseOpts := []ConfigOptionFunc{
		WithPrometheusRegistry(prometheus.NewRegistry()),
		WithEntranceFee(big.NewInt(100)),
		WithOracleFees(big.NewInt(0), big.NewInt(0)),
		WithApiPort(0),
		WithShutdownTimeout(5 * time.Second),
	}
	n, err := New(NewConfig(append(baseOpts, opts...)...))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	tn := &testNode{Node: n, cancel: cancel, errCh: make(chan error, 1)}
	go func() {
		tn.errCh <- n.Run(ctx)
	}()
	select {
	case <-n.Ready():
	case err := <-tn.errCh:
		cancel()
		require.NoError(t, n.Stop())
		t.Fatalf("node failed to start: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for node to start")
	}
	return tn
}

func (tn *testNode) stop(t *testing.T) {
	t.Helper()
	require.NoError(t, tn.Stop())
	select {
	case err := <-tn.errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for node to stop")
	}
	tn.cancel()
}

func TestNodeRunsRound(t *testing.T) {
	tn := startTestNode(
		t,
		WithInterval(500*time.Millisecond),
		WithOracleAutoFulfill(true, 0),
		WithKeeper(true, 20*time.Millisecond),
	)
	defer tn.stop(t)
	ctx := context.Background()
	players := []common.Address{
		common.HexToAddress("0xA"),
		common.HexToAddress("0xB"),
		common.HexToAddress("0xC"),
	}
	fee := big.NewInt(100)
	for _, p := range players {
		require.NoError(t, tn.Ledger().Deposit(p, fee))
		_, err := tn.Ledger().Enter(ctx, tn.Raffle(), p, fee)
		require.NoError(t, err)
	}
	testutil.WaitForCondition(t, func() bool {
		return tn.Raffle().Round() == 2
	}, 5*time.Second, "round drawn by keeper")
	r := tn.Raffle()
	assert.Equal(t, raffle.PhaseOpen, r.Phase())
	assert.Equal(t, 0, r.NumEntrants())
	assert.Equal(t, 0, r.Balance().Sign())
	winner := r.RecentWinner()
	assert.Contains(t, players, winner)
	assert.Equal(t, int64(300), tn.Ledger().Balance(winner).Int64())
}

func TestNodeRestoresState(t *testing.T) {
	dataDir := t.TempDir()
	ctx := context.Background()
	player := common.HexToAddress("0xA")
	tn := startTestNode(
		t,
		WithDatabasePath(dataDir),
		WithOracleAutoFulfill(false, 0),
		WithKeeper(false, 0),
	)
	require.NoError(t, tn.Ledger().Deposit(player, big.NewInt(100)))
	_, err := tn.Ledger().Enter(ctx, tn.Raffle(), player, big.NewInt(100))
	require.NoError(t, err)
	_, err = tn.Raffle().PerformUpkeep(ctx, time.Now())
	require.NoError(t, err)
	pending, ok := tn.Raffle().PendingRequest()
	require.True(t, ok)
	tn.stop(t)

	// Words for the restored request are delivered after restart
	tn = startTestNode(
		t,
		WithDatabasePath(dataDir),
		WithOracleAutoFulfill(true, 0),
		WithKeeper(false, 0),
	)
	defer tn.stop(t)
	r := tn.Raffle()
	assert.Equal(t, uint64(1), pending.Round)
	testutil.WaitForCondition(t, func() bool {
		return r.Round() == 2
	}, 5*time.Second, "restored request fulfilled")
	assert.Equal(t, player, r.RecentWinner())
	assert.Equal(t, int64(100), tn.Ledger().Balance(player).Int64())
}
