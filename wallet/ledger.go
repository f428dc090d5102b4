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

// Package wallet provides an in-process value ledger. It backs raffle entry
// payments and prize payouts with real balances.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"

	"github.com/blinklabs-io/raffled/raffle"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrTransferRejected  = errors.New("recipient rejected transfer")
)

// Ledger tracks the balance of every address. The zero balance is implied for
// unknown addresses
type Ledger struct {
	mu       sync.RWMutex
	logger   *slog.Logger
	balances map[raffle.Address]*big.Int
	rejected map[raffle.Address]struct{}
	metrics  ledgerMetrics
}

type ledgerMetrics struct {
	depositsTotal  prometheus.Counter
	transfersTotal *prometheus.CounterVec
}

type LedgerOptionFunc func(*ledgerOptions)

type ledgerOptions struct {
	logger       *slog.Logger
	promRegistry prometheus.Registerer
}

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) LedgerOptionFunc {
	return func(o *ledgerOptions) {
		o.logger = logger
	}
}

// WithPromRegistry specifies the prometheus registry to use for metrics
func WithPromRegistry(registry prometheus.Registerer) LedgerOptionFunc {
	return func(o *ledgerOptions) {
		o.promRegistry = registry
	}
}

func NewLedger(opts ...LedgerOptionFunc) *Ledger {
	var tmpOpts ledgerOptions
	for _, opt := range opts {
		opt(&tmpOpts)
	}
	if tmpOpts.logger == nil {
		tmpOpts.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	l := &Ledger{
		logger:   tmpOpts.logger.With("component", "wallet"),
		balances: make(map[raffle.Address]*big.Int),
		rejected: make(map[raffle.Address]struct{}),
	}
	promautoFactory := promauto.With(tmpOpts.promRegistry)
	l.metrics.depositsTotal = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "wallet_deposits_total",
			Help: "total deposits credited",
		},
	)
	l.metrics.transfersTotal = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_transfers_total",
			Help: "total transfers by result",
		},
		[]string{"result"},
	)
	return l
}

func validAmount(amount *big.Int) bool {
	return amount != nil && amount.Sign() >= 0
}

// Balance returns the balance of an address
func (l *Ledger) Balance(addr raffle.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if bal, ok := l.balances[addr]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// Balances returns a copy of all non-zero balances
func (l *Ledger) Balances() map[raffle.Address]*big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ret := make(map[raffle.Address]*big.Int, len(l.balances))
	for addr, bal := range l.balances {
		if bal.Sign() == 0 {
			continue
		}
		ret[addr] = new(big.Int).Set(bal)
	}
	return ret
}

// Deposit credits an address with new funds
func (l *Ledger) Deposit(addr raffle.Address, amount *big.Int) error {
	if !validAmount(amount) || amount.Sign() == 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(addr, amount)
	l.metrics.depositsTotal.Inc()
	l.logger.Debug(
		"deposit",
		"address", addr.Hex(),
		"amount", amount.String(),
	)
	return nil
}

// Withdraw debits an address
func (l *Ledger) Withdraw(addr raffle.Address, amount *big.Int) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debit(addr, amount)
}

// credit must be called with the lock held
func (l *Ledger) credit(addr raffle.Address, amount *big.Int) {
	bal, ok := l.balances[addr]
	if !ok {
		bal = new(big.Int)
		l.balances[addr] = bal
	}
	bal.Add(bal, amount)
}

// debit must be called with the lock held
func (l *Ledger) debit(addr raffle.Address, amount *big.Int) error {
	bal, ok := l.balances[addr]
	if !ok {
		bal = new(big.Int)
	}
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf(
			"%w: %s has %s, needs %s",
			ErrInsufficientFunds,
			addr.Hex(),
			bal.String(),
			amount.String(),
		)
	}
	if ok {
		bal.Sub(bal, amount)
	}
	return nil
}

// Reject makes every future transfer to addr fail
func (l *Ledger) Reject(addr raffle.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rejected[addr] = struct{}{}
}

// Accept undoes Reject
func (l *Ledger) Accept(addr raffle.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.rejected, addr)
}

// Transfer credits a payout to an address. It implements raffle.Payer
func (l *Ledger) Transfer(
	ctx context.Context,
	to raffle.Address,
	amount *big.Int,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.rejected[to]; ok {
		l.metrics.transfersTotal.WithLabelValues("rejected").Inc()
		return fmt.Errorf("%w: %s", ErrTransferRejected, to.Hex())
	}
	l.credit(to, amount)
	l.metrics.transfersTotal.WithLabelValues("ok").Inc()
	l.logger.Info(
		"transfer",
		"to", to.Hex(),
		"amount", amount.String(),
	)
	return nil
}

// Spend debits amount from an address and runs fn. The debit is refunded if
// fn fails. fn runs without the ledger lock held
func (l *Ledger) Spend(
	from raffle.Address,
	amount *big.Int,
	fn func() error,
) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	if err := l.debit(from, amount); err != nil {
		l.mu.Unlock()
		return err
	}
	l.mu.Unlock()
	if err := fn(); err != nil {
		l.mu.Lock()
		l.credit(from, amount)
		l.mu.Unlock()
		return err
	}
	return nil
}

// Enter pays the entry to r from the caller's balance and returns the entry's
// index. The payment is refunded when the raffle refuses the entry
func (l *Ledger) Enter(
	ctx context.Context,
	r *raffle.Raffle,
	caller raffle.Address,
	payment *big.Int,
) (int, error) {
	var index int
	err := l.Spend(caller, payment, func() error {
		var err error
		index, err = r.EnterIndex(ctx, payment, caller)
		return err
	})
	return index, err
}
