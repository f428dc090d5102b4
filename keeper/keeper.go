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

// Package keeper drives raffle upkeep on a schedule. Each tick asks the
// raffle whether a draw is due and, if so, performs the upkeep.
package keeper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/blinklabs-io/raffled/raffle"
	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	DefaultCheckInterval = 5 * time.Second

	jobName = "raffle_upkeep"
)

// Upkeeper is the part of the raffle the keeper drives
type Upkeeper interface {
	CheckUpkeep(now time.Time) (bool, []byte)
	PerformUpkeep(ctx context.Context, now time.Time) (raffle.RequestID, error)
}

type KeeperConfig struct {
	Upkeeper      Upkeeper
	Logger        *slog.Logger
	PromRegistry  prometheus.Registerer
	Clock         func() time.Time
	CheckInterval time.Duration
}

type Keeper struct {
	config    KeeperConfig
	logger    *slog.Logger
	scheduler gocron.Scheduler
	metrics   keeperMetrics
	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	running   bool
}

type keeperMetrics struct {
	checksTotal   prometheus.Counter
	upkeepsTotal  prometheus.Counter
	failuresTotal prometheus.Counter
}

func NewKeeper(cfg KeeperConfig) (*Keeper, error) {
	if cfg.Upkeeper == nil {
		return nil, errors.New("keeper: no upkeeper specified")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	k := &Keeper{
		config: cfg,
		logger: cfg.Logger.With("component", "keeper"),
	}
	promautoFactory := promauto.With(cfg.PromRegistry)
	k.metrics.checksTotal = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "keeper_checks_total",
			Help: "total upkeep checks",
		},
	)
	k.metrics.upkeepsTotal = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "keeper_upkeeps_total",
			Help: "total upkeeps performed by the keeper",
		},
	)
	k.metrics.failuresTotal = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "keeper_upkeep_failures_total",
			Help: "total failed upkeep attempts",
		},
	)
	return k, nil
}

// Start schedules the upkeep job. Overlapping runs are skipped
func (k *Keeper) Start(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.running {
		return nil
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	k.ctx, k.cancel = context.WithCancel(ctx)
	_, err = s.NewJob(
		gocron.DurationJob(k.config.CheckInterval),
		gocron.NewTask(k.run),
		gocron.WithName(jobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		k.cancel()
		_ = s.Shutdown()
		return fmt.Errorf("failed to register upkeep job: %w", err)
	}
	s.Start()
	k.scheduler = s
	k.running = true
	k.logger.Info(
		"keeper started",
		"check_interval", k.config.CheckInterval.String(),
	)
	return nil
}

// Stop cancels any in-progress upkeep and shuts down the scheduler
func (k *Keeper) Stop() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.running {
		return nil
	}
	k.cancel()
	err := k.scheduler.Shutdown()
	k.scheduler = nil
	k.running = false
	if err != nil {
		return fmt.Errorf("failed to shutdown scheduler: %w", err)
	}
	k.logger.Info("keeper stopped")
	return nil
}

func (k *Keeper) run() {
	k.Tick(k.ctx)
}

// Tick runs a single check and performs the upkeep when it is due. It
// returns true if an upkeep was performed
func (k *Keeper) Tick(ctx context.Context) bool {
	now := k.config.Clock()
	k.metrics.checksTotal.Inc()
	if needed, _ := k.config.Upkeeper.CheckUpkeep(now); !needed {
		return false
	}
	requestID, err := k.config.Upkeeper.PerformUpkeep(ctx, now)
	if err != nil {
		// Another caller may have closed the round between check and perform
		if errors.Is(err, raffle.ErrUpkeepNotNeeded) {
			k.logger.Debug("upkeep no longer needed")
			return false
		}
		k.metrics.failuresTotal.Inc()
		k.logger.Error("failed to perform upkeep", "error", err)
		return false
	}
	k.metrics.upkeepsTotal.Inc()
	k.logger.Info("upkeep performed", "request_id", uint64(requestID))
	return true
}
