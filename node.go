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
	"errors"
	"fmt"
	"sync"

	"github.com/blinklabs-io/raffled/api"
	"github.com/blinklabs-io/raffled/database"
	"github.com/blinklabs-io/raffled/event"
	"github.com/blinklabs-io/raffled/keeper"
	"github.com/blinklabs-io/raffled/oracle"
	"github.com/blinklabs-io/raffled/raffle"
	"github.com/blinklabs-io/raffled/wallet"
)

type Node struct {
	eventBus       *event.EventBus
	db             *database.Database
	ledger         *wallet.Ledger
	coordinator    *oracle.Coordinator
	raffle         *raffle.Raffle
	keeper         *keeper.Keeper
	api            *api.Api
	subscriptionID uint64
	shutdownFuncs  []func(context.Context) error
	config         Config
	done           chan struct{}
	ready          chan struct{}
	shutdownOnce   sync.Once
}

func New(cfg Config) (*Node, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	eventBus := event.NewEventBus(cfg.promRegistry, cfg.logger)
	n := &Node{
		config:   cfg,
		eventBus: eventBus,
		done:     make(chan struct{}),
		ready:    make(chan struct{}),
	}
	return n, nil
}

// Run starts every component and blocks until ctx is done or Stop is called
func (n *Node) Run(ctx context.Context) error {
	// Configure tracing
	if n.config.tracing {
		if err := n.setupTracing(); err != nil {
			return err
		}
	}
	// Load database
	db, err := database.New(&database.Config{
		DataDir:        n.config.dataDir,
		Logger:         n.config.logger,
		PromRegistry:   n.config.promRegistry,
		BlobPlugin:     n.config.blobPlugin,
		MetadataPlugin: n.config.metadataPlugin,
	})
	if db == nil {
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		return errors.New("empty database returned")
	}
	n.db = db
	if err != nil {
		var dbErr database.CommitTimestampError
		if !errors.As(err, &dbErr) {
			return fmt.Errorf("failed to open database: %w", err)
		}
		n.config.logger.Warn(
			"database initialization error, needs recovery",
			"error",
			err,
		)
		if err := n.db.RecoverCommitTimestamp(); err != nil {
			return fmt.Errorf("failed to recover database: %w", err)
		}
	}
	snapshot, err := n.db.LoadRaffle()
	if err != nil {
		return fmt.Errorf("failed to load raffle state: %w", err)
	}
	// Payout wallet
	n.ledger = wallet.NewLedger(
		wallet.WithLogger(n.config.logger),
		wallet.WithPromRegistry(n.config.promRegistry),
	)
	// Randomness oracle
	if err := n.setupCoordinator(); err != nil {
		return err
	}
	// Raffle
	raffleOpts := []raffle.OptionFunc{
		raffle.WithCoordinator(n.coordinator),
		raffle.WithPayer(n.ledger),
		raffle.WithJournal(n.db),
		raffle.WithEventBus(n.eventBus),
		raffle.WithLogger(n.config.logger),
		raffle.WithPromRegistry(n.config.promRegistry),
	}
	if snapshot != nil {
		raffleOpts = append(raffleOpts, raffle.WithSnapshot(snapshot))
	}
	r, err := raffle.New(
		raffle.Config{
			EntranceFee:          n.config.entranceFee,
			Interval:             n.config.interval,
			KeyHash:              n.config.keyHash,
			SubscriptionID:       n.subscriptionID,
			RequestConfirmations: n.config.requestConfirmations,
			CallbackGasLimit:     n.config.callbackGasLimit,
		},
		raffleOpts...,
	)
	if err != nil {
		return fmt.Errorf("failed to create raffle: %w", err)
	}
	n.raffle = r
	if err := n.coordinator.AddConsumer(n.subscriptionID, n.raffle); err != nil {
		return fmt.Errorf("failed to add raffle as oracle consumer: %w", err)
	}
	if snapshot != nil {
		n.config.logger.Info(
			"restored raffle state",
			"component", "node",
			"round", snapshot.Round,
			"entrants", len(snapshot.Entrants),
			"phase", snapshot.Phase().String(),
		)
		if snapshot.Pending != nil {
			err := n.coordinator.RestoreRequest(oracle.Request{
				ID:             snapshot.Pending.RequestID,
				SubscriptionID: n.subscriptionID,
				NumWords:       raffle.DefaultNumWords,
				CallbackGas:    n.config.callbackGasLimit,
				IssuedAt:       snapshot.Pending.IssuedAt,
			})
			if err != nil {
				return fmt.Errorf("failed to restore pending request: %w", err)
			}
		}
	}
	// Upkeep scheduler
	if !n.config.keeperDisabled {
		n.keeper, err = keeper.NewKeeper(keeper.KeeperConfig{
			Upkeeper:      n.raffle,
			Logger:        n.config.logger,
			PromRegistry:  n.config.promRegistry,
			CheckInterval: n.config.keeperCheckInterval,
		})
		if err != nil {
			return fmt.Errorf("failed to create keeper: %w", err)
		}
		if err := n.keeper.Start(ctx); err != nil {
			return fmt.Errorf("failed to start keeper: %w", err)
		}
	}
	// HTTP API
	if n.config.apiPort > 0 {
		n.api, err = api.NewApi(api.ApiConfig{
			Logger:          n.config.logger,
			EventBus:        n.eventBus,
			Raffle:          n.raffle,
			Ledger:          n.ledger,
			Coordinator:     n.coordinator,
			History:         n.db,
			PromGatherer:    n.config.promGatherer,
			AllowOverride:   n.config.oracleAllowOverride,
			Host:            n.config.apiHost,
			Port:            n.config.apiPort,
			TlsCertFilePath: n.config.tlsCertFilePath,
			TlsKeyFilePath:  n.config.tlsKeyFilePath,
		})
		if err != nil {
			return fmt.Errorf("failed to create API: %w", err)
		}
		if err := n.api.Start(); err != nil {
			return err
		}
	}

	close(n.ready)

	// Wait for shutdown signal
	select {
	case <-ctx.Done():
	case <-n.done:
	}
	return nil
}

func (n *Node) setupCoordinator() error {
	coordinatorOpts := []oracle.CoordinatorOptionFunc{
		oracle.WithLogger(n.config.logger),
		oracle.WithPromRegistry(n.config.promRegistry),
		oracle.WithEventBus(n.eventBus),
		oracle.WithWorkers(n.config.oracleWorkers),
	}
	if n.config.oracleBaseFee != nil {
		coordinatorOpts = append(
			coordinatorOpts,
			oracle.WithBaseFee(n.config.oracleBaseFee),
		)
	}
	if n.config.oracleGasPriceLink != nil {
		coordinatorOpts = append(
			coordinatorOpts,
			oracle.WithGasPriceLink(n.config.oracleGasPriceLink),
		)
	}
	if n.config.oracleAutoFulfill {
		coordinatorOpts = append(
			coordinatorOpts,
			oracle.WithAutoFulfill(n.config.oracleFulfillDelay),
		)
	}
	coordinator, err := oracle.NewCoordinator(coordinatorOpts...)
	if err != nil {
		return fmt.Errorf("failed to create oracle coordinator: %w", err)
	}
	n.coordinator = coordinator
	if n.config.subscriptionID > 0 {
		if err := coordinator.RegisterSubscription(n.config.subscriptionID); err != nil {
			return err
		}
		n.subscriptionID = n.config.subscriptionID
	} else {
		n.subscriptionID = coordinator.CreateSubscription()
	}
	funding := n.config.subscriptionFunding
	if funding == nil {
		funding = DefaultSubscriptionFunding
	}
	if funding.Sign() > 0 {
		if err := coordinator.FundSubscription(n.subscriptionID, funding); err != nil {
			return fmt.Errorf("failed to fund oracle subscription: %w", err)
		}
	}
	n.config.logger.Info(
		"oracle subscription ready",
		"component", "node",
		"subscription_id", n.subscriptionID,
		"funding", funding.String(),
	)
	return nil
}

// Ready is closed once Run has started every component
func (n *Node) Ready() <-chan struct{} {
	return n.ready
}

// Raffle returns the running raffle. It is only valid after Ready is closed
func (n *Node) Raffle() *raffle.Raffle {
	return n.raffle
}

// Api returns the API server, or nil when it is disabled. It is only valid
// after Ready is closed
func (n *Node) Api() *api.Api {
	return n.api
}

// Ledger returns the payout wallet. It is only valid after Ready is closed
func (n *Node) Ledger() *wallet.Ledger {
	return n.ledger
}

func (n *Node) Stop() error {
	var err error
	n.shutdownOnce.Do(func() {
		err = n.shutdown()
	})
	return err
}

func (n *Node) shutdown() error {
	// Create shutdown context with timeout (default 30s if not configured)
	shutdownTimeout := DefaultShutdownTimeout
	if n.config.shutdownTimeout > 0 {
		shutdownTimeout = n.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error

	n.config.logger.Debug("starting graceful shutdown")

	// Phase 1: Stop accepting new work
	n.config.logger.Debug("shutdown phase 1: stopping new work")

	if n.api != nil {
		if stopErr := n.api.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("api shutdown: %w", stopErr))
		}
	}

	if n.keeper != nil {
		if stopErr := n.keeper.Stop(); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("keeper shutdown: %w", stopErr))
		}
	}

	// Phase 2: Drain in-flight deliveries
	n.config.logger.Debug("shutdown phase 2: draining oracle deliveries")

	if n.coordinator != nil {
		if stopErr := n.coordinator.Stop(); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("oracle shutdown: %w", stopErr))
		}
	}

	// Phase 3: Close database
	n.config.logger.Debug("shutdown phase 3: closing database")

	if n.db != nil {
		if closeErr := n.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}

	// Phase 4: Cleanup resources
	n.config.logger.Debug("shutdown phase 4: cleanup resources")

	// Call registered shutdown functions
	for _, fn := range n.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	n.shutdownFuncs = nil

	if n.eventBus != nil {
		n.eventBus.Stop()
	}

	n.config.logger.Debug("graceful shutdown complete")
	close(n.done)
	return err
}
