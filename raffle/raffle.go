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
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"slices"
	"sync"
	"time"

	"github.com/blinklabs-io/raffled/event"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/blinklabs-io/raffled/raffle"

const (
	opEnter         = "enter"
	opPerformUpkeep = "performUpkeep"
	opFulfill       = "fulfillRandomWords"
)

// Raffle is the raffle state machine. All operations are serialized and either
// succeed with a full state transition or fail leaving the state untouched
type Raffle struct {
	mu           sync.RWMutex
	config       Config
	state        *Snapshot
	coordinator  Coordinator
	payer        Payer
	journal      Journal
	eventBus     *event.EventBus
	logger       *slog.Logger
	promRegistry prometheus.Registerer
	clock        func() time.Time
	tracer       trace.Tracer
	metrics      raffleMetrics
}

type OptionFunc func(*Raffle)

// WithCoordinator specifies the randomness coordinator
func WithCoordinator(coordinator Coordinator) OptionFunc {
	return func(r *Raffle) {
		r.coordinator = coordinator
	}
}

// WithPayer specifies how prizes are paid out
func WithPayer(payer Payer) OptionFunc {
	return func(r *Raffle) {
		r.payer = payer
	}
}

// WithJournal specifies where state changes are persisted
func WithJournal(journal Journal) OptionFunc {
	return func(r *Raffle) {
		r.journal = journal
	}
}

// WithEventBus specifies the event bus used to publish raffle events
func WithEventBus(eventBus *event.EventBus) OptionFunc {
	return func(r *Raffle) {
		r.eventBus = eventBus
	}
}

// WithLogger specifies the logger
func WithLogger(logger *slog.Logger) OptionFunc {
	return func(r *Raffle) {
		r.logger = logger
	}
}

// WithPromRegistry specifies the prometheus registry to use for metrics
func WithPromRegistry(registry prometheus.Registerer) OptionFunc {
	return func(r *Raffle) {
		r.promRegistry = registry
	}
}

// WithClock overrides the time source used for entry and draw timestamps
func WithClock(clock func() time.Time) OptionFunc {
	return func(r *Raffle) {
		r.clock = clock
	}
}

// WithSnapshot restores a previously persisted state
func WithSnapshot(snapshot *Snapshot) OptionFunc {
	return func(r *Raffle) {
		if snapshot != nil {
			r.state = snapshot.Clone()
		}
	}
}

// New creates a raffle in the open phase, or in the phase of the restored
// snapshot
func New(cfg Config, opts ...OptionFunc) (*Raffle, error) {
	if cfg.NumWords == 0 {
		cfg.NumWords = DefaultNumWords
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid raffle config: %w", err)
	}
	r := &Raffle{
		config: cfg.clone(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.coordinator == nil {
		return nil, errors.New("raffle: no coordinator specified")
	}
	if r.payer == nil {
		return nil, errors.New("raffle: no payer specified")
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	r.logger = r.logger.With("component", "raffle")
	if r.state == nil {
		r.state = &Snapshot{
			Round:      1,
			Balance:    new(big.Int),
			LastDrawAt: r.clock(),
		}
	}
	if r.state.Round == 0 {
		r.state.Round = 1
	}
	if r.state.Pending != nil && r.state.Pending.RequestID == 0 {
		return nil, errors.New("raffle: restored snapshot has invalid pending request")
	}
	r.tracer = otel.Tracer(tracerName)
	r.initMetrics()
	r.updateGauges()
	return r, nil
}

// Enter records caller as an entrant of the current round. The payment must be
// at least the entrance fee and is added to the prize pool in full
func (r *Raffle) Enter(
	ctx context.Context,
	payment *big.Int,
	caller Address,
) error {
	_, err := r.EnterIndex(ctx, payment, caller)
	return err
}

// EnterIndex is Enter, also returning the position assigned to the new entry
func (r *Raffle) EnterIndex(
	ctx context.Context,
	payment *big.Int,
	caller Address,
) (int, error) {
	ctx, span := r.tracer.Start(ctx, "raffle.Enter",
		trace.WithAttributes(attribute.String("entrant", caller.Hex())),
	)
	defer span.End()
	r.mu.Lock()
	evt, err := r.enter(ctx, payment, caller)
	r.mu.Unlock()
	if err != nil {
		r.recordFailure(span, opEnter, err)
		return 0, err
	}
	r.publish(EntryRecordedEventType, evt)
	return evt.Entrants - 1, nil
}

func (r *Raffle) enter(
	ctx context.Context,
	payment *big.Int,
	caller Address,
) (EntryRecordedEvent, error) {
	if r.state.Phase() != PhaseOpen {
		return EntryRecordedEvent{}, newError(
			ValidationError,
			opEnter,
			ErrRaffleNotOpen,
			"",
		)
	}
	if payment == nil || payment.Cmp(r.config.EntranceFee) < 0 {
		paid := "0"
		if payment != nil {
			paid = payment.String()
		}
		return EntryRecordedEvent{}, newError(
			ValidationError,
			opEnter,
			ErrInsufficientEntranceFee,
			fmt.Sprintf(
				"paid %s, required %s",
				paid,
				r.config.EntranceFee.String(),
			),
		)
	}
	next := r.state.Clone()
	next.Entrants = append(next.Entrants, caller)
	next.Balance.Add(next.Balance, payment)
	change := &Change{
		Snapshot: next,
		Entry: &EntryRecord{
			Round:     next.Round,
			Index:     len(next.Entrants) - 1,
			Address:   caller,
			Amount:    new(big.Int).Set(payment),
			Timestamp: r.clock(),
		},
	}
	if err := r.persist(ctx, opEnter, change); err != nil {
		return EntryRecordedEvent{}, err
	}
	r.state = next
	r.updateGauges()
	r.metrics.entriesTotal.Inc()
	r.logger.Debug(
		"entry recorded",
		"round", next.Round,
		"entrant", caller.Hex(),
		"amount", payment.String(),
		"entrants", len(next.Entrants),
	)
	return EntryRecordedEvent{
		Round:    next.Round,
		Address:  caller,
		Amount:   new(big.Int).Set(payment),
		Balance:  new(big.Int).Set(next.Balance),
		Entrants: len(next.Entrants),
	}, nil
}

// CheckUpkeep reports whether a draw is due at the given time. The returned
// data is always empty
func (r *Raffle) CheckUpkeep(now time.Time) (bool, []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return IsUpkeepDue(r.state, r.config, now)
}

// PerformUpkeep closes the round and requests randomness from the coordinator.
// The upkeep condition is re-evaluated regardless of any earlier CheckUpkeep
// result
func (r *Raffle) PerformUpkeep(
	ctx context.Context,
	now time.Time,
) (RequestID, error) {
	ctx, span := r.tracer.Start(ctx, "raffle.PerformUpkeep")
	defer span.End()
	r.mu.Lock()
	evt, err := r.performUpkeep(ctx, now)
	r.mu.Unlock()
	if err != nil {
		r.recordFailure(span, opPerformUpkeep, err)
		return 0, err
	}
	span.SetAttributes(
		attribute.Int64("request_id", int64(evt.RequestID)), // #nosec G115
	)
	r.publish(UpkeepPerformedEventType, evt)
	return evt.RequestID, nil
}

func (r *Raffle) performUpkeep(
	ctx context.Context,
	now time.Time,
) (UpkeepPerformedEvent, error) {
	if needed, _ := IsUpkeepDue(r.state, r.config, now); !needed {
		return UpkeepPerformedEvent{}, newError(
			ValidationError,
			opPerformUpkeep,
			ErrUpkeepNotNeeded,
			fmt.Sprintf(
				"balance=%s entrants=%d phase=%s",
				r.state.Balance.String(),
				len(r.state.Entrants),
				r.state.Phase(),
			),
		)
	}
	requestID, err := r.coordinator.RequestRandomWords(
		ctx,
		RandomnessRequest{
			KeyHash:              r.config.KeyHash,
			SubscriptionID:       r.config.SubscriptionID,
			RequestConfirmations: r.config.RequestConfirmations,
			CallbackGasLimit:     r.config.CallbackGasLimit,
			NumWords:             r.config.NumWords,
		},
	)
	if err != nil {
		if !errors.Is(err, ErrOracleUnavailable) {
			err = fmt.Errorf("%w: %w", ErrOracleUnavailable, err)
		}
		return UpkeepPerformedEvent{}, newError(
			DependencyError,
			opPerformUpkeep,
			err,
			"",
		)
	}
	if requestID == 0 {
		return UpkeepPerformedEvent{}, newError(
			DependencyError,
			opPerformUpkeep,
			ErrOracleUnavailable,
			"coordinator returned request id 0",
		)
	}
	next := r.state.Clone()
	next.Pending = &PendingRequest{
		RequestID: requestID,
		Round:     next.Round,
		IssuedAt:  now,
	}
	change := &Change{
		Snapshot: next,
		Request: &RequestRecord{
			Round:       next.Round,
			RequestID:   requestID,
			NumEntrants: len(next.Entrants),
			Timestamp:   now,
		},
	}
	if err := r.persist(ctx, opPerformUpkeep, change); err != nil {
		// Words delivered for this request are rejected as unrecognized,
		// which makes the coordinator drop it
		return UpkeepPerformedEvent{}, err
	}
	r.state = next
	r.updateGauges()
	r.metrics.upkeepsTotal.Inc()
	r.logger.Info(
		"upkeep performed",
		"round", next.Round,
		"request_id", uint64(requestID),
		"entrants", len(next.Entrants),
		"balance", next.Balance.String(),
	)
	return UpkeepPerformedEvent{
		Round:     next.Round,
		RequestID: requestID,
	}, nil
}

// FulfillRandomWords is the coordinator callback. It accepts words only for the
// request that is currently pending, selects the winner, pays out the whole
// prize pool and reopens the raffle. If the payout fails nothing changes and
// the request stays pending
func (r *Raffle) FulfillRandomWords(
	ctx context.Context,
	requestID RequestID,
	randomWords []*big.Int,
) error {
	ctx, span := r.tracer.Start(ctx, "raffle.FulfillRandomWords",
		trace.WithAttributes(
			attribute.Int64("request_id", int64(requestID)), // #nosec G115
		),
	)
	defer span.End()
	r.mu.Lock()
	evt, failEvt, err := r.fulfillRandomWords(ctx, requestID, randomWords)
	r.mu.Unlock()
	if failEvt != nil {
		r.publish(PayoutFailedEventType, *failEvt)
	}
	if err != nil {
		r.recordFailure(span, opFulfill, err)
		return err
	}
	span.SetAttributes(attribute.String("winner", evt.Winner.Hex()))
	r.publish(WinnerPickedEventType, evt)
	return nil
}

func (r *Raffle) fulfillRandomWords(
	ctx context.Context,
	requestID RequestID,
	randomWords []*big.Int,
) (WinnerPickedEvent, *PayoutFailedEvent, error) {
	pending := r.state.Pending
	if pending == nil ||
		pending.RequestID != requestID ||
		pending.Round != r.state.Round {
		return WinnerPickedEvent{}, nil, newError(
			AuthorizationError,
			opFulfill,
			ErrUnrecognizedRequest,
			fmt.Sprintf("request id %d", uint64(requestID)),
		)
	}
	if len(r.state.Entrants) == 0 {
		return WinnerPickedEvent{}, nil, newError(
			AuthorizationError,
			opFulfill,
			ErrUnrecognizedRequest,
			"round has no entrants",
		)
	}
	if len(randomWords) == 0 {
		return WinnerPickedEvent{}, nil, newError(
			AuthorizationError,
			opFulfill,
			ErrUnrecognizedRequest,
			"no random words delivered",
		)
	}
	winnerIdx, err := SelectWinner(randomWords[0], len(r.state.Entrants))
	if err != nil {
		return WinnerPickedEvent{}, nil, newError(
			AuthorizationError,
			opFulfill,
			ErrUnrecognizedRequest,
			err.Error(),
		)
	}
	winner := r.state.Entrants[winnerIdx]
	prize := new(big.Int).Set(r.state.Balance)
	now := r.clock()
	next := &Snapshot{
		Round:        r.state.Round + 1,
		Entrants:     []Address{},
		Balance:      new(big.Int),
		LastDrawAt:   now,
		RecentWinner: winner,
	}
	change := &Change{
		Snapshot: next,
		Draw: &DrawRecord{
			Round:       r.state.Round,
			RequestID:   requestID,
			RandomWord:  new(big.Int).Set(randomWords[0]),
			WinnerIndex: winnerIdx,
			Winner:      winner,
			Prize:       new(big.Int).Set(prize),
			NumEntrants: len(r.state.Entrants),
			Entrants:    slices.Clone(r.state.Entrants),
			Timestamp:   now,
		},
	}
	payoutErr, err := r.commit(ctx, change, func() error {
		return r.payer.Transfer(ctx, winner, prize)
	})
	if payoutErr != nil {
		r.metrics.payoutFailuresTotal.Inc()
		r.logger.Error(
			"payout failed",
			"round", r.state.Round,
			"request_id", uint64(requestID),
			"winner", winner.Hex(),
			"prize", prize.String(),
			"error", payoutErr,
		)
		failEvt := &PayoutFailedEvent{
			Round:     r.state.Round,
			RequestID: requestID,
			Winner:    winner,
			Prize:     new(big.Int).Set(prize),
			Error:     payoutErr.Error(),
		}
		return WinnerPickedEvent{}, failEvt, newError(
			PayoutError,
			opFulfill,
			fmt.Errorf("%w: %w", ErrPayoutFailed, payoutErr),
			"",
		)
	}
	if err != nil {
		if errors.Is(err, errPayoutCommitted) {
			// The prize has left the pool, so the in-memory state must move on.
			// The next successful write stores the full snapshot again
			r.logger.Error(
				"failed to persist completed draw",
				"round", r.state.Round,
				"request_id", uint64(requestID),
				"error", err,
			)
		} else {
			return WinnerPickedEvent{}, nil, newError(
				StorageError,
				opFulfill,
				err,
				"",
			)
		}
	}
	round := r.state.Round
	r.state = next
	r.updateGauges()
	r.metrics.drawsTotal.Inc()
	r.logger.Info(
		"winner picked",
		"round", round,
		"request_id", uint64(requestID),
		"winner", winner.Hex(),
		"prize", prize.String(),
	)
	return WinnerPickedEvent{
		Round:     round,
		RequestID: requestID,
		Winner:    winner,
		Prize:     prize,
	}, nil, nil
}

var errPayoutCommitted = errors.New("payout completed but state was not persisted")

// persist writes a change without side effects
func (r *Raffle) persist(ctx context.Context, op string, change *Change) error {
	if _, err := r.commit(ctx, change, nil); err != nil {
		return newError(StorageError, op, err, "")
	}
	return nil
}

// commit writes the change and runs effect inside the same journal
// transaction. The effect error is returned separately from storage errors. A
// storage error after a successful effect wraps errPayoutCommitted
func (r *Raffle) commit(
	ctx context.Context,
	change *Change,
	effect func() error,
) (error, error) {
	var effectErr error
	effectRan := false
	var wrapped func() error
	if effect != nil {
		wrapped = func() error {
			effectRan = true
			effectErr = effect()
			return effectErr
		}
	}
	if r.journal == nil {
		if wrapped != nil {
			return wrapped(), nil
		}
		return nil, nil
	}
	err := r.journal.PersistRaffle(ctx, change, wrapped)
	if effectErr != nil {
		return effectErr, nil
	}
	if err != nil {
		if effectRan {
			return nil, fmt.Errorf("%w: %w", errPayoutCommitted, err)
		}
		return nil, err
	}
	return nil, nil
}

func (r *Raffle) publish(eventType event.EventType, data any) {
	if r.eventBus == nil {
		return
	}
	r.eventBus.Publish(eventType, event.NewEvent(eventType, data))
}

func (r *Raffle) recordFailure(span trace.Span, op string, err error) {
	kind := KindOf(err)
	r.metrics.rejectionsTotal.WithLabelValues(op, kind.String()).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if kind == StorageError {
		r.logger.Error("raffle operation failed", "op", op, "error", err)
		return
	}
	r.logger.Debug("raffle operation rejected", "op", op, "error", err)
}

// Config returns a copy of the parameters the raffle was created with
func (r *Raffle) Config() Config {
	return r.config.clone()
}

func (r *Raffle) EntranceFee() *big.Int {
	return new(big.Int).Set(r.config.EntranceFee)
}

func (r *Raffle) Interval() time.Duration {
	return r.config.Interval
}

func (r *Raffle) Phase() Phase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Phase()
}

func (r *Raffle) Round() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Round
}

// Entrant returns the entrant at index in the current round
func (r *Raffle) Entrant(index int) (Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index < 0 || index >= len(r.state.Entrants) {
		return Address{}, fmt.Errorf(
			"entrant index %d out of range (%d entrants)",
			index,
			len(r.state.Entrants),
		)
	}
	return r.state.Entrants[index], nil
}

func (r *Raffle) Entrants() []Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.state.Entrants)
}

func (r *Raffle) NumEntrants() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.state.Entrants)
}

func (r *Raffle) Balance() *big.Int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return new(big.Int).Set(r.state.Balance)
}

func (r *Raffle) LastDrawAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.LastDrawAt
}

func (r *Raffle) RecentWinner() Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.RecentWinner
}

// PendingRequest returns the outstanding randomness request, if any
func (r *Raffle) PendingRequest() (PendingRequest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.state.Pending == nil {
		return PendingRequest{}, false
	}
	return *r.state.Pending, true
}

// Snapshot returns a copy of the current state
func (r *Raffle) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Clone()
}
