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

// Package oracle implements a local verifiable randomness coordinator. It
// manages funded subscriptions, accepts randomness requests from the
// subscription's consumer and delivers the random words back to it
// asynchronously, either on demand or after a configurable delay.
package oracle

import (
	"cmp"
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
	"github.com/blinklabs-io/raffled/raffle"
	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultWorkers      = 4
	DefaultFulfillDelay = 2 * time.Second
)

var (
	// DefaultBaseFee is the flat fee charged per fulfillment (0.25 LINK)
	DefaultBaseFee = big.NewInt(250_000_000_000_000_000)
	// DefaultGasPriceLink is the fee charged per unit of callback gas
	DefaultGasPriceLink = big.NewInt(1_000_000_000)
)

var (
	ErrNonexistentRequest      = errors.New("nonexistent request")
	ErrInvalidSubscription     = errors.New("invalid subscription")
	ErrInvalidConsumer         = errors.New("invalid consumer")
	ErrConsumerAlreadyAdded    = errors.New("subscription already has a consumer")
	ErrInsufficientBalance     = errors.New("insufficient subscription balance")
	ErrInvalidRandomWords      = errors.New("invalid random words")
	ErrCoordinatorStopped      = errors.New("coordinator stopped")
	ErrInvalidFundingAmount    = errors.New("invalid funding amount")
	ErrRequestAlreadyScheduled = errors.New("request already scheduled")
)

// Consumer receives random words for the requests it made
type Consumer interface {
	FulfillRandomWords(
		ctx context.Context,
		requestID raffle.RequestID,
		randomWords []*big.Int,
	) error
}

type request struct {
	id             raffle.RequestID
	subscriptionID uint64
	numWords       uint32
	gasLimit       uint32
	issuedAt       time.Time
	scheduled      bool
}

// Request describes an outstanding randomness request
type Request struct {
	ID             raffle.RequestID
	SubscriptionID uint64
	NumWords       uint32
	CallbackGas    uint32
	IssuedAt       time.Time
}

// Coordinator is an in-process randomness coordinator. It implements
// raffle.Coordinator
type Coordinator struct {
	mu            sync.Mutex
	logger        *slog.Logger
	promRegistry  prometheus.Registerer
	eventBus      *event.EventBus
	pool          *ants.Pool
	subscriptions map[uint64]*Subscription
	requests      map[raffle.RequestID]*request
	baseFee       *big.Int
	gasPriceLink  *big.Int
	workers       int
	autoFulfill   bool
	fulfillDelay  time.Duration
	lastSubID     uint64
	lastRequestID uint64
	metrics       coordinatorMetrics
	stopCh        chan struct{}
	stopped       bool
	wg            sync.WaitGroup
}

type CoordinatorOptionFunc func(*Coordinator)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) CoordinatorOptionFunc {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithPromRegistry specifies the prometheus registry to use for metrics
func WithPromRegistry(registry prometheus.Registerer) CoordinatorOptionFunc {
	return func(c *Coordinator) {
		c.promRegistry = registry
	}
}

// WithEventBus specifies the event bus that request and fulfillment events
// are published to
func WithEventBus(eventBus *event.EventBus) CoordinatorOptionFunc {
	return func(c *Coordinator) {
		c.eventBus = eventBus
	}
}

// WithBaseFee specifies the flat fee charged per fulfillment
func WithBaseFee(fee *big.Int) CoordinatorOptionFunc {
	return func(c *Coordinator) {
		if fee != nil {
			c.baseFee = new(big.Int).Set(fee)
		}
	}
}

// WithGasPriceLink specifies the fee charged per unit of callback gas
func WithGasPriceLink(price *big.Int) CoordinatorOptionFunc {
	return func(c *Coordinator) {
		if price != nil {
			c.gasPriceLink = new(big.Int).Set(price)
		}
	}
}

// WithAutoFulfill makes the coordinator deliver random words on its own, the
// given delay after each request
func WithAutoFulfill(delay time.Duration) CoordinatorOptionFunc {
	return func(c *Coordinator) {
		c.autoFulfill = true
		c.fulfillDelay = delay
	}
}

// WithWorkers specifies the size of the delivery worker pool
func WithWorkers(workers int) CoordinatorOptionFunc {
	return func(c *Coordinator) {
		c.workers = workers
	}
}

// NewCoordinator creates a coordinator and starts its delivery worker pool
func NewCoordinator(opts ...CoordinatorOptionFunc) (*Coordinator, error) {
	c := &Coordinator{
		subscriptions: make(map[uint64]*Subscription),
		requests:      make(map[raffle.RequestID]*request),
		baseFee:       new(big.Int).Set(DefaultBaseFee),
		gasPriceLink:  new(big.Int).Set(DefaultGasPriceLink),
		workers:       DefaultWorkers,
		fulfillDelay:  DefaultFulfillDelay,
		stopCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	c.logger = c.logger.With("component", "oracle")
	if c.workers <= 0 {
		c.workers = DefaultWorkers
	}
	if c.fulfillDelay < 0 {
		c.fulfillDelay = 0
	}
	pool, err := ants.NewPool(
		c.workers,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p any) {
			c.logger.Error("panic in delivery worker", "panic", p)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create delivery pool: %w", err)
	}
	c.pool = pool
	c.initMetrics()
	return c, nil
}

// Stop cancels pending scheduled deliveries and waits for in-flight ones
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.stopCh)
	c.mu.Unlock()
	c.wg.Wait()
	if err := c.pool.ReleaseTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("failed to release delivery pool: %w", err)
	}
	return nil
}

// BaseFee returns the flat fee charged per fulfillment
func (c *Coordinator) BaseFee() *big.Int {
	return new(big.Int).Set(c.baseFee)
}

// GasPriceLink returns the fee charged per unit of callback gas
func (c *Coordinator) GasPriceLink() *big.Int {
	return new(big.Int).Set(c.gasPriceLink)
}

// Fee returns the fee charged for delivering a request with the given
// callback gas limit
func (c *Coordinator) Fee(callbackGasLimit uint32) *big.Int {
	ret := new(big.Int).SetUint64(uint64(callbackGasLimit))
	ret.Mul(ret, c.gasPriceLink)
	return ret.Add(ret, c.baseFee)
}

// RequestRandomWords registers a request on the subscription. The words are
// never delivered before this call returns
func (c *Coordinator) RequestRandomWords(
	ctx context.Context,
	req raffle.RandomnessRequest,
) (raffle.RequestID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return 0, ErrCoordinatorStopped
	}
	sub, ok := c.subscriptions[req.SubscriptionID]
	if !ok {
		return 0, fmt.Errorf(
			"%w: %d",
			ErrInvalidSubscription,
			req.SubscriptionID,
		)
	}
	if sub.consumer == nil {
		return 0, fmt.Errorf(
			"%w: subscription %d has no consumer",
			ErrInvalidConsumer,
			req.SubscriptionID,
		)
	}
	if req.NumWords == 0 {
		return 0, fmt.Errorf("%w: zero words requested", ErrInvalidRandomWords)
	}
	c.lastRequestID++
	tmpReq := &request{
		id:             raffle.RequestID(c.lastRequestID),
		subscriptionID: req.SubscriptionID,
		numWords:       req.NumWords,
		gasLimit:       req.CallbackGasLimit,
		issuedAt:       time.Now(),
	}
	c.requests[tmpReq.id] = tmpReq
	c.metrics.requestsTotal.Inc()
	c.metrics.pendingRequests.Set(float64(len(c.requests)))
	c.logger.Debug(
		"randomness requested",
		"request_id", uint64(tmpReq.id),
		"subscription_id", req.SubscriptionID,
		"num_words", req.NumWords,
	)
	c.publish(
		RandomWordsRequestedEventType,
		RandomWordsRequestedEvent{
			RequestID:      tmpReq.id,
			SubscriptionID: req.SubscriptionID,
			NumWords:       req.NumWords,
		},
	)
	if c.autoFulfill {
		if err := c.schedule(tmpReq, c.fulfillDelay); err != nil {
			// The request stays outstanding and can be fulfilled manually
			c.logger.Warn(
				"failed to schedule automatic fulfillment",
				"request_id", uint64(tmpReq.id),
				"error", err,
			)
		}
	}
	return tmpReq.id, nil
}

// FulfillRandomWordsAsync schedules delivery of the words for a request on
// the worker pool
func (c *Coordinator) FulfillRandomWordsAsync(requestID raffle.RequestID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ErrCoordinatorStopped
	}
	tmpReq, ok := c.requests[requestID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNonexistentRequest, uint64(requestID))
	}
	return c.schedule(tmpReq, 0)
}

// schedule must be called with the lock held
func (c *Coordinator) schedule(tmpReq *request, delay time.Duration) error {
	if tmpReq.scheduled {
		return ErrRequestAlreadyScheduled
	}
	requestID := tmpReq.id
	c.wg.Add(1)
	err := c.pool.Submit(func() {
		defer c.wg.Done()
		if delay > 0 {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-c.stopCh:
				return
			}
		}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-c.stopCh:
				cancel()
			case <-ctx.Done():
			}
		}()
		c.mu.Lock()
		if tmpReq, ok := c.requests[requestID]; ok {
			tmpReq.scheduled = false
		}
		c.mu.Unlock()
		if err := c.FulfillRandomWords(ctx, requestID); err != nil {
			c.logger.Warn(
				"automatic fulfillment failed",
				"request_id", uint64(requestID),
				"error", err,
			)
		}
	})
	if err != nil {
		c.wg.Done()
		return fmt.Errorf("failed to submit delivery: %w", err)
	}
	tmpReq.scheduled = true
	return nil
}

// FulfillRandomWords derives the words for a request and delivers them to the
// subscription's consumer
func (c *Coordinator) FulfillRandomWords(
	ctx context.Context,
	requestID raffle.RequestID,
) error {
	c.mu.Lock()
	tmpReq, ok := c.requests[requestID]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrNonexistentRequest, uint64(requestID))
	}
	return c.FulfillRandomWordsWithOverride(
		ctx,
		requestID,
		RandomWords(requestID, tmpReq.numWords),
	)
}

// FulfillRandomWordsWithOverride delivers the given words instead of the
// derived ones. The request is consumed and the subscription charged only
// when the consumer accepts the words
func (c *Coordinator) FulfillRandomWordsWithOverride(
	ctx context.Context,
	requestID raffle.RequestID,
	words []*big.Int,
) error {
	c.mu.Lock()
	tmpReq, ok := c.requests[requestID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNonexistentRequest, uint64(requestID))
	}
	if len(words) != int(tmpReq.numWords) {
		c.mu.Unlock()
		return fmt.Errorf(
			"%w: expected %d words, got %d",
			ErrInvalidRandomWords,
			tmpReq.numWords,
			len(words),
		)
	}
	for _, word := range words {
		if word == nil || word.Sign() < 0 {
			c.mu.Unlock()
			return fmt.Errorf("%w: negative or missing word", ErrInvalidRandomWords)
		}
	}
	sub, ok := c.subscriptions[tmpReq.subscriptionID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf(
			"%w: %d",
			ErrInvalidSubscription,
			tmpReq.subscriptionID,
		)
	}
	consumer := sub.consumer
	if consumer == nil {
		c.mu.Unlock()
		return fmt.Errorf(
			"%w: subscription %d has no consumer",
			ErrInvalidConsumer,
			tmpReq.subscriptionID,
		)
	}
	fee := c.Fee(tmpReq.gasLimit)
	if sub.balance.Cmp(fee) < 0 {
		c.mu.Unlock()
		return fmt.Errorf(
			"%w: have %s, need %s",
			ErrInsufficientBalance,
			sub.balance.String(),
			fee.String(),
		)
	}
	c.mu.Unlock()

	// The consumer takes its own lock, so it is called without ours
	if err := consumer.FulfillRandomWords(ctx, requestID, words); err != nil {
		c.metrics.deliveryFailuresTotal.Inc()
		// A consumer that does not recognize the request will never accept
		// it, so it is dropped without charging the subscription
		if raffle.KindOf(err) == raffle.AuthorizationError {
			c.mu.Lock()
			delete(c.requests, requestID)
			c.metrics.pendingRequests.Set(float64(len(c.requests)))
			c.mu.Unlock()
			c.logger.Warn(
				"dropped request refused by consumer",
				"request_id", uint64(requestID),
				"subscription_id", tmpReq.subscriptionID,
				"error", err,
			)
		}
		return fmt.Errorf(
			"consumer rejected request %d: %w",
			uint64(requestID),
			err,
		)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.requests, requestID)
	// The balance was checked before delivery but may have changed since
	if sub.balance.Cmp(fee) < 0 {
		sub.balance.SetInt64(0)
	} else {
		sub.balance.Sub(sub.balance, fee)
	}
	c.metrics.fulfillmentsTotal.Inc()
	c.metrics.pendingRequests.Set(float64(len(c.requests)))
	c.logger.Info(
		"random words fulfilled",
		"request_id", uint64(requestID),
		"subscription_id", tmpReq.subscriptionID,
		"payment", fee.String(),
	)
	c.publish(
		RandomWordsFulfilledEventType,
		RandomWordsFulfilledEvent{
			RequestID:      requestID,
			SubscriptionID: tmpReq.subscriptionID,
			Payment:        fee,
		},
	)
	return nil
}

// RestoreRequest re-registers a request that was outstanding before a
// restart. Later requests are numbered after it
func (c *Coordinator) RestoreRequest(req Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ErrCoordinatorStopped
	}
	if req.ID == 0 {
		return fmt.Errorf("%w: %d", ErrNonexistentRequest, uint64(req.ID))
	}
	if _, ok := c.subscriptions[req.SubscriptionID]; !ok {
		return fmt.Errorf(
			"%w: %d",
			ErrInvalidSubscription,
			req.SubscriptionID,
		)
	}
	if req.NumWords == 0 {
		return fmt.Errorf("%w: zero words requested", ErrInvalidRandomWords)
	}
	if _, ok := c.requests[req.ID]; ok {
		return nil
	}
	issuedAt := req.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now()
	}
	tmpReq := &request{
		id:             req.ID,
		subscriptionID: req.SubscriptionID,
		numWords:       req.NumWords,
		gasLimit:       req.CallbackGas,
		issuedAt:       issuedAt,
	}
	c.requests[tmpReq.id] = tmpReq
	c.lastRequestID = max(c.lastRequestID, uint64(req.ID))
	c.metrics.pendingRequests.Set(float64(len(c.requests)))
	c.logger.Info(
		"restored outstanding request",
		"request_id", uint64(req.ID),
		"subscription_id", req.SubscriptionID,
	)
	if c.autoFulfill {
		if err := c.schedule(tmpReq, c.fulfillDelay); err != nil {
			c.logger.Warn(
				"failed to schedule automatic fulfillment",
				"request_id", uint64(tmpReq.id),
				"error", err,
			)
		}
	}
	return nil
}

// PendingRequests returns the outstanding requests ordered by id
func (c *Coordinator) PendingRequests() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	ret := make([]Request, 0, len(c.requests))
	for _, tmpReq := range c.requests {
		ret = append(ret, Request{
			ID:             tmpReq.id,
			SubscriptionID: tmpReq.subscriptionID,
			NumWords:       tmpReq.numWords,
			CallbackGas:    tmpReq.gasLimit,
			IssuedAt:       tmpReq.issuedAt,
		})
	}
	slices.SortFunc(ret, func(a, b Request) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return ret
}

func (c *Coordinator) publish(eventType event.EventType, data any) {
	if c.eventBus == nil {
		return
	}
	c.eventBus.PublishAsync(eventType, event.NewEvent(eventType, data))
}
