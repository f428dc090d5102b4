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

package raffle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/blinklabs-io/raffled/event"
	"github.com/blinklabs-io/raffled/internal/test/testutil"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockCoordinator hands out sequential request IDs and records requests
type mockCoordinator struct {
	mu       sync.Mutex
	nextID   RequestID
	requests []RandomnessRequest
	err      error
}

func (c *mockCoordinator) RequestRandomWords(
	_ context.Context,
	req RandomnessRequest,
) (RequestID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	c.nextID++
	c.requests = append(c.requests, req)
	return c.nextID, nil
}

type transfer struct {
	to     Address
	amount *big.Int
}

// mockPayer records transfers and fails while err is set
type mockPayer struct {
	mu        sync.Mutex
	transfers []transfer
	err       error
}

func (p *mockPayer) Transfer(
	_ context.Context,
	to Address,
	amount *big.Int,
) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.transfers = append(
		p.transfers,
		transfer{to: to, amount: new(big.Int).Set(amount)},
	)
	return nil
}

func (p *mockPayer) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// mockJournal stores the latest snapshot and runs effects like a transaction
type mockJournal struct {
	mu      sync.Mutex
	changes []*Change
	err     error
}

func (j *mockJournal) PersistRaffle(
	_ context.Context,
	change *Change,
	effect func() error,
) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if effect != nil {
		if err := effect(); err != nil {
			return err
		}
	}
	if j.err != nil {
		return j.err
	}
	j.changes = append(j.changes, change)
	return nil
}

var (
	addrA = common.HexToAddress("0x000000000000000000000000000000000000000a")
	addrB = common.HexToAddress("0x000000000000000000000000000000000000000b")
	addrC = common.HexToAddress("0x000000000000000000000000000000000000000c")
)

var testStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		EntranceFee:          big.NewInt(100),
		Interval:             30 * time.Second,
		KeyHash:              common.HexToHash("0x01"),
		SubscriptionID:       1,
		RequestConfirmations: 3,
		CallbackGasLimit:     500000,
		NumWords:             1,
	}
}

type testRaffle struct {
	*Raffle
	coordinator *mockCoordinator
	payer       *mockPayer
	now         time.Time
}

func newTestRaffle(t *testing.T, opts ...OptionFunc) *testRaffle {
	t.Helper()
	tr := &testRaffle{
		coordinator: &mockCoordinator{},
		payer:       &mockPayer{},
		now:         testStart,
	}
	allOpts := []OptionFunc{
		WithCoordinator(tr.coordinator),
		WithPayer(tr.payer),
		WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))),
		WithPromRegistry(prometheus.NewRegistry()),
		WithClock(func() time.Time { return tr.now }),
	}
	allOpts = append(allOpts, opts...)
	r, err := New(testConfig(), allOpts...)
	require.NoError(t, err)
	tr.Raffle = r
	return tr
}

func (tr *testRaffle) advance(d time.Duration) time.Time {
	tr.now = tr.now.Add(d)
	return tr.now
}

func TestNewValidation(t *testing.T) {
	coord := WithCoordinator(&mockCoordinator{})
	payer := WithPayer(&mockPayer{})

	_, err := New(Config{Interval: time.Second}, coord, payer)
	require.Error(t, err, "nil entrance fee")

	cfg := testConfig()
	cfg.EntranceFee = big.NewInt(-1)
	_, err = New(cfg, coord, payer)
	require.Error(t, err, "negative entrance fee")

	cfg = testConfig()
	cfg.NumWords = 2
	_, err = New(cfg, coord, payer)
	require.Error(t, err, "more than one random word")

	_, err = New(testConfig(), payer)
	require.Error(t, err, "missing coordinator")

	_, err = New(testConfig(), coord)
	require.Error(t, err, "missing payer")

	cfg = testConfig()
	cfg.NumWords = 0
	r, err := New(cfg, coord, payer)
	require.NoError(t, err)
	assert.Equal(t, DefaultNumWords, r.Config().NumWords)
}

func TestInitialState(t *testing.T) {
	tr := newTestRaffle(t)
	assert.Equal(t, PhaseOpen, tr.Phase())
	assert.Equal(t, 0, tr.NumEntrants())
	assert.Equal(t, int64(0), tr.Balance().Int64())
	assert.Equal(t, testStart, tr.LastDrawAt())
	assert.Equal(t, Address{}, tr.RecentWinner())
	assert.Equal(t, uint64(1), tr.Round())
	_, ok := tr.PendingRequest()
	assert.False(t, ok)
	assert.Equal(t, int64(100), tr.EntranceFee().Int64())
	assert.Equal(t, 30*time.Second, tr.Interval())
}

func TestConfigIsCopied(t *testing.T) {
	cfg := testConfig()
	r, err := New(
		cfg,
		WithCoordinator(&mockCoordinator{}),
		WithPayer(&mockPayer{}),
	)
	require.NoError(t, err)
	cfg.EntranceFee.SetInt64(1)
	assert.Equal(t, int64(100), r.EntranceFee().Int64())
	r.EntranceFee().SetInt64(5)
	assert.Equal(t, int64(100), r.EntranceFee().Int64())
}

func TestEnter(t *testing.T) {
	tr := newTestRaffle(t)
	ctx := context.Background()

	require.NoError(t, tr.Enter(ctx, big.NewInt(100), addrA))
	require.NoError(t, tr.Enter(ctx, big.NewInt(250), addrB))
	// The same address may enter more than once
	require.NoError(t, tr.Enter(ctx, big.NewInt(100), addrA))

	assert.Equal(t, 3, tr.NumEntrants())
	assert.Equal(t, int64(450), tr.Balance().Int64())
	assert.Equal(t, []Address{addrA, addrB, addrA}, tr.Entrants())
	entrant, err := tr.Entrant(1)
	require.NoError(t, err)
	assert.Equal(t, addrB, entrant)
	_, err = tr.Entrant(3)
	require.Error(t, err)
	_, err = tr.Entrant(-1)
	require.Error(t, err)
}

func TestEnterInsufficientFee(t *testing.T) {
	tr := newTestRaffle(t)
	ctx := context.Background()

	for _, payment := range []*big.Int{nil, big.NewInt(0), big.NewInt(99)} {
		err := tr.Enter(ctx, payment, addrA)
		require.ErrorIs(t, err, ErrInsufficientEntranceFee)
		assert.Equal(t, ValidationError, KindOf(err))
	}
	assert.Equal(t, 0, tr.NumEntrants())
	assert.Equal(t, int64(0), tr.Balance().Int64())
}

func TestEnterZeroFee(t *testing.T) {
	cfg := testConfig()
	cfg.EntranceFee = big.NewInt(0)
	r, err := New(
		cfg,
		WithCoordinator(&mockCoordinator{}),
		WithPayer(&mockPayer{}),
	)
	require.NoError(t, err)
	require.NoError(t, r.Enter(context.Background(), big.NewInt(0), addrA))
	assert.Equal(t, 1, r.NumEntrants())
	// Entrants without a balance never trigger an upkeep
	needed, _ := r.CheckUpkeep(time.Now().Add(time.Hour))
	assert.False(t, needed)
}

func TestCheckUpkeep(t *testing.T) {
	tr := newTestRaffle(t)
	ctx := context.Background()

	needed, data := tr.CheckUpkeep(tr.advance(time.Minute))
	assert.False(t, needed, "no players")
	assert.Empty(t, data)

	require.NoError(t, tr.Enter(ctx, big.NewInt(100), addrA))
	needed, _ = tr.CheckUpkeep(testStart.Add(29 * time.Second))
	assert.False(t, needed, "interval not elapsed")
	needed, _ = tr.CheckUpkeep(testStart.Add(30 * time.Second))
	assert.True(t, needed, "interval elapsed exactly")

	_, err := tr.PerformUpkeep(ctx, testStart.Add(31*time.Second))
	require.NoError(t, err)
	needed, _ = tr.CheckUpkeep(testStart.Add(time.Hour))
	assert.False(t, needed, "calculating")
}

func TestPerformUpkeepNotNeeded(t *testing.T) {
	tr := newTestRaffle(t)
	ctx := context.Background()

	_, err := tr.PerformUpkeep(ctx, testStart.Add(time.Hour))
	require.ErrorIs(t, err, ErrUpkeepNotNeeded)
	assert.Equal(t, ValidationError, KindOf(err))

	require.NoError(t, tr.Enter(ctx, big.NewInt(100), addrA))
	_, err = tr.PerformUpkeep(ctx, testStart.Add(time.Second))
	require.ErrorIs(t, err, ErrUpkeepNotNeeded)
	assert.Equal(t, PhaseOpen, tr.Phase())
	assert.Empty(t, tr.coordinator.requests)
}

func TestPerformUpkeep(t *testing.T) {
	tr := newTestRaffle(t)
	ctx := context.Background()
	require.NoError(t, tr.Enter(ctx, big.NewInt(100), addrA))

	now := testStart.Add(time.Minute)
	reqID, err := tr.PerformUpkeep(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, RequestID(1), reqID)
	assert.Equal(t, PhaseCalculating, tr.Phase())

	pending, ok := tr.PendingRequest()
	require.True(t, ok)
	assert.Equal(t, reqID, pending.RequestID)
	assert.Equal(t, uint64(1), pending.Round)
	assert.Equal(t, now, pending.IssuedAt)

	require.Len(t, tr.coordinator.requests, 1)
	req := tr.coordinator.requests[0]
	cfg := testConfig()
	assert.Equal(t, cfg.KeyHash, req.KeyHash)
	assert.Equal(t, cfg.SubscriptionID, req.SubscriptionID)
	assert.Equal(t, cfg.RequestConfirmations, req.RequestConfirmations)
	assert.Equal(t, cfg.CallbackGasLimit, req.CallbackGasLimit)
	assert.Equal(t, uint32(1), req.NumWords)

	// Entries are refused while calculating
	err = tr.Enter(ctx, big.NewInt(100), addrB)
	require.ErrorIs(t, err, ErrRaffleNotOpen)
	assert.Equal(t, ValidationError, KindOf(err))
	assert.Equal(t, 1, tr.NumEntrants())

	// A second upkeep is refused while a request is outstanding
	_, err = tr.PerformUpkeep(ctx, now.Add(time.Hour))
	require.ErrorIs(t, err, ErrUpkeepNotNeeded)
	assert.Len(t, tr.coordinator.requests, 1)
}

func TestPerformUpkeepOracleFailure(t *testing.T) {
	tr := newTestRaffle(t)
	ctx := context.Background()
	require.NoError(t, tr.Enter(ctx, big.NewInt(100), addrA))

	tr.coordinator.err = errors.New("subscription has no funds")
	_, err := tr.PerformUpkeep(ctx, testStart.Add(time.Minute))
	require.ErrorIs(t, err, ErrOracleUnavailable)
	assert.Equal(t, DependencyError, KindOf(err))
	assert.Contains(t, err.Error(), "subscription has no funds")
	assert.Equal(t, PhaseOpen, tr.Phase())
	_, ok := tr.PendingRequest()
	assert.False(t, ok)

	// Upkeep can be retried once the oracle recovers
	tr.coordinator.err = nil
	_, err = tr.PerformUpkeep(ctx, testStart.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, PhaseCalculating, tr.Phase())
}

func TestSingleEntrantRound(t *testing.T) {
	tr := newTestRaffle(t)
	ctx := context.Background()
	require.NoError(t, tr.Enter(ctx, big.NewInt(100), addrA))
	assert.Equal(t, int64(100), tr.Balance().Int64())

	tr.coordinator.nextID = 6
	reqID, err := tr.PerformUpkeep(ctx, testStart.Add(31*time.Second))
	require.NoError(t, err)
	require.Equal(t, RequestID(7), reqID)

	drawTime := tr.advance(45 * time.Second)
	require.NoError(t, tr.FulfillRandomWords(ctx, 7, []*big.Int{big.NewInt(42)}))

	assert.Equal(t, addrA, tr.RecentWinner())
	require.Len(t, tr.payer.transfers, 1)
	assert.Equal(t, addrA, tr.payer.transfers[0].to)
	assert.Equal(t, int64(100), tr.payer.transfers[0].amount.Int64())
	assert.Equal(t, 0, tr.NumEntrants())
	assert.Equal(t, int64(0), tr.Balance().Int64())
	assert.Equal(t, PhaseOpen, tr.Phase())
	assert.Equal(t, drawTime, tr.LastDrawAt())
	assert.Equal(t, uint64(2), tr.Round())
}

func TestThreeEntrantWinnerSelection(t *testing.T) {
	for _, word := range []string{"4", "3000000004"} {
		t.Run(word, func(t *testing.T) {
			tr := newTestRaffle(t)
			ctx := context.Background()
			require.NoError(t, tr.Enter(ctx, big.NewInt(100), addrA))
			require.NoError(t, tr.Enter(ctx, big.NewInt(100), addrB))
			require.NoError(t, tr.Enter(ctx, big.NewInt(100), addrC))

			reqID, err := tr.PerformUpkeep(ctx, testStart.Add(time.Minute))
			require.NoError(t, err)
			randomWord, ok := new(big.Int).SetString(word, 10)
			require.True(t, ok)
			require.NoError(
				t,
				tr.FulfillRandomWords(ctx, reqID, []*big.Int{randomWord}),
			)

			assert.Equal(t, addrB, tr.RecentWinner())
			require.Len(t, tr.payer.transfers, 1)
			assert.Equal(t, addrB, tr.payer.transfers[0].to)
			assert.Equal(t, int64(300), tr.payer.transfers[0].amount.Int64())
		})
	}
}

func TestFulfillUnrecognizedRequest(t *testing.T) {
	tr := newTestRaffle(t)
	ctx := context.Background()
	words := []*big.Int{big.NewInt(1)}

	// Nothing pending
	before := tr.Snapshot()
	err := tr.FulfillRandomWords(ctx, 1, words)
	require.ErrorIs(t, err, ErrUnrecognizedRequest)
	assert.Equal(t, AuthorizationError, KindOf(err))
	assert.Equal(t, before, tr.Snapshot())

	require.NoError(t, tr.Enter(ctx, big.NewInt(100), addrA))
	require.NoError(t, tr.Enter(ctx, big.NewInt(150), addrB))
	reqID, err := tr.PerformUpkeep(ctx, testStart.Add(time.Minute))
	require.NoError(t, err)
	before = tr.Snapshot()

	rejected := []struct {
		name      string
		requestID RequestID
		words     []*big.Int
	}{
		{name: "wrong request ID", requestID: reqID + 1, words: words},
		{name: "no words", requestID: reqID},
		{name: "negative word", requestID: reqID, words: []*big.Int{big.NewInt(-1)}},
	}
	for _, tc := range rejected {
		err = tr.FulfillRandomWords(ctx, tc.requestID, tc.words)
		require.ErrorIs(t, err, ErrUnrecognizedRequest, tc.name)
		assert.Equal(t, AuthorizationError, KindOf(err), tc.name)
		assert.Equal(t, before, tr.Snapshot(), tc.name)
	}
	assert.Equal(t, PhaseCalculating, tr.Phase())
	assert.Empty(t, tr.payer.transfers)

	require.NoError(t, tr.FulfillRandomWords(ctx, reqID, words))

	// Replaying a consumed request is rejected
	before = tr.Snapshot()
	err = tr.FulfillRandomWords(ctx, reqID, words)
	require.ErrorIs(t, err, ErrUnrecognizedRequest)
	assert.Equal(t, AuthorizationError, KindOf(err))
	assert.Equal(t, before, tr.Snapshot())
	assert.Len(t, tr.payer.transfers, 1)
}

func TestStaleRequestFromPreviousRound(t *testing.T) {
	tr := newTestRaffle(t)
	ctx := context.Background()
	words := []*big.Int{big.NewInt(5)}

	require.NoError(t, tr.Enter(ctx, big.NewInt(100), addrA))
	first, err := tr.PerformUpkeep(ctx, testStart.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, tr.FulfillRandomWords(ctx, first, words))

	tr.advance(2 * time.Minute)
	require.NoError(t, tr.Enter(ctx, big.NewInt(100), addrB))
	second, err := tr.PerformUpkeep(ctx, tr.now.Add(time.Minute))
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	err = tr.FulfillRandomWords(ctx, first, words)
	require.ErrorIs(t, err, ErrUnrecognizedRequest)
	assert.Equal(t, PhaseCalculating, tr.Phase())
	require.NoError(t, tr.FulfillRandomWords(ctx, second, words))
	assert.Equal(t, addrB, tr.RecentWinner())
	assert.Equal(t, uint64(3), tr.Round())
}

func TestPayoutFailureRollsBack(t *testing.T) {
	tr := newTestRaffle(t)
	ctx := context.Background()
	require.NoError(t, tr.Enter(ctx, big.NewInt(100), addrA))
	require.NoError(t, tr.Enter(ctx, big.NewInt(100), addrB))
	reqID, err := tr.PerformUpkeep(ctx, testStart.Add(time.Minute))
	require.NoError(t, err)
	before := tr.Snapshot()

	tr.payer.setErr(errors.New("recipient rejected transfer"))
	err = tr.FulfillRandomWords(ctx, reqID, []*big.Int{big.NewInt(3)})
	require.ErrorIs(t, err, ErrPayoutFailed)
	assert.Equal(t, PayoutError, KindOf(err))
	assert.Contains(t, err.Error(), "recipient rejected transfer")

	assert.Equal(t, before, tr.Snapshot())
	assert.Equal(t, PhaseCalculating, tr.Phase())
	assert.Equal(t, int64(200), tr.Balance().Int64())
	assert.Equal(t, Address{}, tr.RecentWinner())

	// The same request can be fulfilled once the payout succeeds
	tr.payer.setErr(nil)
	require.NoError(
		t,
		tr.FulfillRandomWords(ctx, reqID, []*big.Int{big.NewInt(3)}),
	)
	assert.Equal(t, addrB, tr.RecentWinner())
	assert.Equal(t, PhaseOpen, tr.Phase())
}

func TestJournal(t *testing.T) {
	journal := &mockJournal{}
	tr := newTestRaffle(t, WithJournal(journal))
	ctx := context.Background()

	require.NoError(t, tr.Enter(ctx, big.NewInt(100), addrA))
	require.NoError(t, tr.Enter(ctx, big.NewInt(150), addrB))
	reqID, err := tr.PerformUpkeep(ctx, testStart.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(
		t,
		tr.FulfillRandomWords(ctx, reqID, []*big.Int{big.NewInt(2)}),
	)

	require.Len(t, journal.changes, 4)
	entry := journal.changes[1].Entry
	require.NotNil(t, entry)
	assert.Equal(t, 1, entry.Index)
	assert.Equal(t, addrB, entry.Address)
	assert.Equal(t, int64(150), entry.Amount.Int64())
	assert.Equal(t, int64(250), journal.changes[1].Snapshot.Balance.Int64())

	request := journal.changes[2].Request
	require.NotNil(t, request)
	assert.Equal(t, reqID, request.RequestID)
	assert.Equal(t, 2, request.NumEntrants)
	assert.Equal(t, PhaseCalculating, journal.changes[2].Snapshot.Phase())

	draw := journal.changes[3].Draw
	require.NotNil(t, draw)
	assert.Equal(t, uint64(1), draw.Round)
	assert.Equal(t, 0, draw.WinnerIndex)
	assert.Equal(t, addrA, draw.Winner)
	assert.Equal(t, int64(250), draw.Prize.Int64())
	assert.Equal(t, uint64(2), journal.changes[3].Snapshot.Round)
}

func TestJournalFailureLeavesStateUnchanged(t *testing.T) {
	journal := &mockJournal{}
	tr := newTestRaffle(t, WithJournal(journal))
	ctx := context.Background()

	journal.err = errors.New("disk full")
	err := tr.Enter(ctx, big.NewInt(100), addrA)
	require.Error(t, err)
	assert.Equal(t, StorageError, KindOf(err))
	assert.Equal(t, 0, tr.NumEntrants())

	journal.err = nil
	require.NoError(t, tr.Enter(ctx, big.NewInt(100), addrA))
	journal.err = errors.New("disk full")
	_, err = tr.PerformUpkeep(ctx, testStart.Add(time.Minute))
	assert.Equal(t, StorageError, KindOf(err))
	assert.Equal(t, PhaseOpen, tr.Phase())
}

func TestCommitFailureAfterPayout(t *testing.T) {
	journal := &mockJournal{}
	tr := newTestRaffle(t, WithJournal(journal))
	ctx := context.Background()
	require.NoError(t, tr.Enter(ctx, big.NewInt(100), addrA))
	reqID, err := tr.PerformUpkeep(ctx, testStart.Add(time.Minute))
	require.NoError(t, err)

	journal.err = errors.New("commit failed")
	require.NoError(
		t,
		tr.FulfillRandomWords(ctx, reqID, []*big.Int{big.NewInt(9)}),
	)
	// The prize was paid, so the raffle moves on and never pays twice
	assert.Len(t, tr.payer.transfers, 1)
	assert.Equal(t, PhaseOpen, tr.Phase())
	err = tr.FulfillRandomWords(ctx, reqID, []*big.Int{big.NewInt(9)})
	require.ErrorIs(t, err, ErrUnrecognizedRequest)
	assert.Len(t, tr.payer.transfers, 1)
}

func TestRestoreSnapshot(t *testing.T) {
	snapshot := &Snapshot{
		Round:      4,
		Entrants:   []Address{addrA, addrB},
		Balance:    big.NewInt(200),
		LastDrawAt: testStart,
		Pending: &PendingRequest{
			RequestID: 11,
			Round:     4,
			IssuedAt:  testStart.Add(time.Minute),
		},
	}
	tr := newTestRaffle(t, WithSnapshot(snapshot))
	assert.Equal(t, PhaseCalculating, tr.Phase())
	assert.Equal(t, uint64(4), tr.Round())
	// The raffle owns its copy
	snapshot.Entrants[0] = addrC
	entrant, err := tr.Entrant(0)
	require.NoError(t, err)
	assert.Equal(t, addrA, entrant)

	require.NoError(
		t,
		tr.FulfillRandomWords(
			context.Background(),
			11,
			[]*big.Int{big.NewInt(1)},
		),
	)
	assert.Equal(t, addrB, tr.RecentWinner())
	assert.Equal(t, uint64(5), tr.Round())

	_, err = New(
		testConfig(),
		WithCoordinator(&mockCoordinator{}),
		WithPayer(&mockPayer{}),
		WithSnapshot(&Snapshot{
			Balance: big.NewInt(0),
			Pending: &PendingRequest{},
		}),
	)
	require.Error(t, err)
}

func TestEvents(t *testing.T) {
	eventBus := event.NewEventBus(nil, nil)
	defer eventBus.Stop()
	_, entryCh := eventBus.Subscribe(EntryRecordedEventType)
	_, upkeepCh := eventBus.Subscribe(UpkeepPerformedEventType)
	_, winnerCh := eventBus.Subscribe(WinnerPickedEventType)
	_, failCh := eventBus.Subscribe(PayoutFailedEventType)

	tr := newTestRaffle(t, WithEventBus(eventBus))
	ctx := context.Background()
	require.NoError(t, tr.Enter(ctx, big.NewInt(120), addrA))
	evt := testutil.RequireReceive(t, entryCh, time.Second, "entry event")
	entryEvt, ok := evt.Data.(EntryRecordedEvent)
	require.True(t, ok)
	assert.Equal(t, addrA, entryEvt.Address)
	assert.Equal(t, int64(120), entryEvt.Amount.Int64())
	assert.Equal(t, 1, entryEvt.Entrants)

	// Rejected operations publish nothing
	require.Error(t, tr.Enter(ctx, big.NewInt(1), addrB))
	testutil.RequireNoReceive(t, entryCh, 50*time.Millisecond, "rejected entry")

	reqID, err := tr.PerformUpkeep(ctx, testStart.Add(time.Minute))
	require.NoError(t, err)
	evt = testutil.RequireReceive(t, upkeepCh, time.Second, "upkeep event")
	upkeepEvt, ok := evt.Data.(UpkeepPerformedEvent)
	require.True(t, ok)
	assert.Equal(t, reqID, upkeepEvt.RequestID)

	tr.payer.setErr(errors.New("boom"))
	require.Error(
		t,
		tr.FulfillRandomWords(ctx, reqID, []*big.Int{big.NewInt(0)}),
	)
	evt = testutil.RequireReceive(t, failCh, time.Second, "payout failed event")
	failEvt, ok := evt.Data.(PayoutFailedEvent)
	require.True(t, ok)
	assert.Equal(t, "boom", failEvt.Error)
	testutil.RequireNoReceive(t, winnerCh, 50*time.Millisecond, "failed payout")

	tr.payer.setErr(nil)
	require.NoError(
		t,
		tr.FulfillRandomWords(ctx, reqID, []*big.Int{big.NewInt(0)}),
	)
	evt = testutil.RequireReceive(t, winnerCh, time.Second, "winner event")
	winnerEvt, ok := evt.Data.(WinnerPickedEvent)
	require.True(t, ok)
	assert.Equal(t, addrA, winnerEvt.Winner)
	assert.Equal(t, int64(120), winnerEvt.Prize.Int64())
	assert.Equal(t, reqID, winnerEvt.RequestID)
}

func TestMetrics(t *testing.T) {
	tr := newTestRaffle(t)
	ctx := context.Background()
	require.NoError(t, tr.Enter(ctx, big.NewInt(100), addrA))
	require.NoError(t, tr.Enter(ctx, big.NewInt(100), addrB))
	require.Error(t, tr.Enter(ctx, big.NewInt(1), addrC))

	assert.InDelta(t, 2, promtestutil.ToFloat64(tr.metrics.entriesTotal), 0)
	assert.InDelta(t, 2, promtestutil.ToFloat64(tr.metrics.entrants), 0)
	assert.InDelta(t, 200, promtestutil.ToFloat64(tr.metrics.balance), 0)
	assert.InDelta(
		t,
		1,
		promtestutil.ToFloat64(
			tr.metrics.rejectionsTotal.WithLabelValues(opEnter, "validation"),
		),
		0,
	)

	reqID, err := tr.PerformUpkeep(ctx, testStart.Add(time.Minute))
	require.NoError(t, err)
	assert.InDelta(t, 1, promtestutil.ToFloat64(tr.metrics.phase), 0)
	require.NoError(
		t,
		tr.FulfillRandomWords(ctx, reqID, []*big.Int{big.NewInt(1)}),
	)
	assert.InDelta(t, 1, promtestutil.ToFloat64(tr.metrics.drawsTotal), 0)
	assert.InDelta(t, 0, promtestutil.ToFloat64(tr.metrics.phase), 0)
	assert.InDelta(t, 2, promtestutil.ToFloat64(tr.metrics.round), 0)
}

func TestConcurrentEntries(t *testing.T) {
	tr := newTestRaffle(t)
	ctx := context.Background()
	var wg sync.WaitGroup
	indexes := make([]int, 50)
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			addr := common.BigToAddress(big.NewInt(int64(i + 1)))
			index, err := tr.EnterIndex(ctx, big.NewInt(100), addr)
			assert.NoError(t, err)
			indexes[i] = index
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, tr.NumEntrants())
	assert.Equal(t, int64(5000), tr.Balance().Int64())
	// Each caller gets the position of its own entry
	for i, index := range indexes {
		addr := common.BigToAddress(big.NewInt(int64(i + 1)))
		player, err := tr.Entrant(index)
		require.NoError(t, err)
		assert.Equal(t, addr, player)
	}
}
