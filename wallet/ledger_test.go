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

package wallet

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/blinklabs-io/raffled/raffle"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

type stubCoordinator struct {
	nextID raffle.RequestID
}

func (s *stubCoordinator) RequestRandomWords(
	context.Context,
	raffle.RandomnessRequest,
) (raffle.RequestID, error) {
	s.nextID++
	return s.nextID, nil
}

func TestDepositWithdraw(t *testing.T) {
	l := NewLedger()
	require.ErrorIs(t, l.Deposit(alice, big.NewInt(0)), ErrInvalidAmount)
	require.ErrorIs(t, l.Deposit(alice, nil), ErrInvalidAmount)
	require.NoError(t, l.Deposit(alice, big.NewInt(500)))
	assert.Equal(t, 0, l.Balance(alice).Cmp(big.NewInt(500)))
	assert.Equal(t, 0, l.Balance(bob).Sign())

	require.ErrorIs(t, l.Withdraw(alice, big.NewInt(501)), ErrInsufficientFunds)
	require.ErrorIs(t, l.Withdraw(bob, big.NewInt(1)), ErrInsufficientFunds)
	require.NoError(t, l.Withdraw(alice, big.NewInt(200)))
	assert.Equal(t, 0, l.Balance(alice).Cmp(big.NewInt(300)))

	// Returned balances are copies
	l.Balance(alice).SetInt64(0)
	assert.Equal(t, 0, l.Balance(alice).Cmp(big.NewInt(300)))
	balances := l.Balances()
	require.Len(t, balances, 1)
	assert.Equal(t, 0, balances[alice].Cmp(big.NewInt(300)))
}

func TestTransferReject(t *testing.T) {
	registry := prometheus.NewRegistry()
	l := NewLedger(WithPromRegistry(registry))
	ctx := context.Background()
	l.Reject(bob)
	err := l.Transfer(ctx, bob, big.NewInt(10))
	require.ErrorIs(t, err, ErrTransferRejected)
	assert.Equal(t, 0, l.Balance(bob).Sign())

	l.Accept(bob)
	require.NoError(t, l.Transfer(ctx, bob, big.NewInt(10)))
	assert.Equal(t, 0, l.Balance(bob).Cmp(big.NewInt(10)))
	assert.InDelta(
		t,
		1,
		promtestutil.ToFloat64(l.metrics.transfersTotal.WithLabelValues("rejected")),
		0,
	)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	require.ErrorIs(t, l.Transfer(canceled, bob, big.NewInt(1)), context.Canceled)
}

func TestSpendRefundsOnFailure(t *testing.T) {
	l := NewLedger()
	require.NoError(t, l.Deposit(alice, big.NewInt(100)))
	wantErr := errors.New("refused")
	err := l.Spend(alice, big.NewInt(60), func() error {
		assert.Equal(t, 0, l.Balance(alice).Cmp(big.NewInt(40)))
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)
	assert.Equal(t, 0, l.Balance(alice).Cmp(big.NewInt(100)))
	called := false
	err = l.Spend(alice, big.NewInt(101), func() error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.False(t, called)
}

func TestLedgerBacksRaffle(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r, err := raffle.New(
		raffle.Config{
			EntranceFee: big.NewInt(100),
			Interval:    30 * time.Second,
		},
		raffle.WithCoordinator(&stubCoordinator{}),
		raffle.WithPayer(l),
		raffle.WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)
	require.NoError(t, l.Deposit(alice, big.NewInt(1000)))
	require.NoError(t, l.Deposit(bob, big.NewInt(50)))

	// Underpayment is refunded
	_, err = l.Enter(ctx, r, alice, big.NewInt(99))
	require.Error(t, err)
	assert.Equal(t, raffle.ValidationError, raffle.KindOf(err))
	assert.Equal(t, 0, l.Balance(alice).Cmp(big.NewInt(1000)))

	_, err = l.Enter(ctx, r, bob, big.NewInt(100))
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.NoError(t, l.Deposit(bob, big.NewInt(50)))
	index, err := l.Enter(ctx, r, alice, big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, 0, index)
	index, err = l.Enter(ctx, r, bob, big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, 1, index)
	assert.Equal(t, 0, l.Balance(alice).Cmp(big.NewInt(900)))

	id, err := r.PerformUpkeep(ctx, now.Add(time.Minute))
	require.NoError(t, err)

	l.Reject(alice)
	err = r.FulfillRandomWords(ctx, id, []*big.Int{big.NewInt(42)})
	require.Error(t, err)
	assert.Equal(t, raffle.PayoutError, raffle.KindOf(err))
	assert.Equal(t, raffle.PhaseCalculating, r.Phase())
	assert.Equal(t, 0, l.Balance(alice).Cmp(big.NewInt(900)))

	l.Accept(alice)
	// 42 mod 2 selects alice, who takes both entries
	require.NoError(t, r.FulfillRandomWords(ctx, id, []*big.Int{big.NewInt(42)}))
	assert.Equal(t, 0, l.Balance(alice).Cmp(big.NewInt(1100)))
	assert.Equal(t, alice, r.RecentWinner())
}
