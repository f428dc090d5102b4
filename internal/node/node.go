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

package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os/signal"
	"syscall"

	"github.com/blinklabs-io/raffled"
	"github.com/blinklabs-io/raffled/internal/config"
	"github.com/prometheus/client_golang/prometheus"
)

// Options converts the loaded configuration into node options
func Options(
	cfg *config.Config,
	logger *slog.Logger,
) ([]raffled.ConfigOptionFunc, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	// Values below were checked by Validate
	entranceFee, _ := config.ParseAmount(cfg.Raffle.EntranceFee)
	interval, _ := config.ParseDuration(cfg.Raffle.Interval)
	keyHash, _ := config.ParseKeyHash(cfg.Raffle.KeyHash)
	fulfillDelay, _ := config.ParseDuration(cfg.Oracle.FulfillDelay)
	checkInterval, _ := config.ParseDuration(cfg.Keeper.CheckInterval)
	shutdownTimeout, _ := config.ParseDuration(cfg.ShutdownTimeout)
	if shutdownTimeout == 0 {
		shutdownTimeout = raffled.DefaultShutdownTimeout
	}
	opts := []raffled.ConfigOptionFunc{
		raffled.WithLogger(logger),
		raffled.WithDatabasePath(cfg.DatabasePath),
		raffled.WithBlobPlugin(cfg.BlobPlugin),
		raffled.WithMetadataPlugin(cfg.MetadataPlugin),
		raffled.WithEntranceFee(entranceFee),
		raffled.WithInterval(interval),
		raffled.WithKeyHash(keyHash),
		raffled.WithSubscriptionID(cfg.Raffle.SubscriptionId),
		raffled.WithRequestConfirmations(cfg.Raffle.RequestConfirmations),
		raffled.WithCallbackGasLimit(cfg.Raffle.CallbackGasLimit),
		raffled.WithOracleFees(
			optionalAmount(cfg.Oracle.BaseFee),
			optionalAmount(cfg.Oracle.GasPriceLink),
		),
		raffled.WithSubscriptionFunding(
			optionalAmount(cfg.Oracle.SubscriptionFunding),
		),
		raffled.WithOracleAutoFulfill(cfg.Oracle.AutoFulfill, fulfillDelay),
		raffled.WithOracleWorkers(cfg.Oracle.Workers),
		raffled.WithOracleAllowOverride(cfg.Oracle.AllowOverride),
		raffled.WithKeeper(cfg.Keeper.Enabled, checkInterval),
		raffled.WithApiHost(cfg.Api.Host),
		raffled.WithApiPort(cfg.Api.Port),
		raffled.WithApiTlsCertFilePath(cfg.Api.TlsCertFilePath),
		raffled.WithApiTlsKeyFilePath(cfg.Api.TlsKeyFilePath),
		raffled.WithTracing(cfg.Tracing),
		raffled.WithTracingStdout(cfg.TracingStdout),
		raffled.WithShutdownTimeout(shutdownTimeout),
		// Enable metrics with default prometheus registry
		raffled.WithPrometheusRegistry(prometheus.DefaultRegisterer),
		raffled.WithPrometheusGatherer(prometheus.DefaultGatherer),
	}
	return opts, nil
}

func optionalAmount(s string) *big.Int {
	if s == "" {
		return nil
	}
	ret, _ := config.ParseAmount(s)
	return ret
}

func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")
	opts, err := Options(cfg, logger)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	r, err := raffled.New(raffled.NewConfig(opts...))
	if err != nil {
		return err
	}
	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	// Run node in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- r.Run(signalCtx)
	}()

	select {
	case <-signalCtx.Done():
		logger.Info("signal received, initiating graceful shutdown")
	case <-r.Ready():
		logger.Info("raffle node started", "component", "node")
		select {
		case <-signalCtx.Done():
			logger.Info("signal received, initiating graceful shutdown")
		case err := <-errChan:
			return stopAfter(r, logger, err)
		}
	case err := <-errChan:
		return stopAfter(r, logger, err)
	}
	if err := r.Stop(); err != nil {
		logger.Error("shutdown errors occurred", "error", err)
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// stopAfter releases node resources after Run returned on its own
func stopAfter(r *raffled.Node, logger *slog.Logger, runErr error) error {
	if runErr != nil {
		logger.Error("node error", "error", runErr)
	} else {
		logger.Info("node stopped")
	}
	if stopErr := r.Stop(); stopErr != nil {
		logger.Error(
			"shutdown errors occurred",
			"error",
			stopErr,
		)
		return errors.Join(runErr, stopErr)
	}
	return runErr
}
