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
	"errors"
	"io"
	"log/slog"
	"math/big"
	"time"

	"github.com/blinklabs-io/raffled/api"
	"github.com/blinklabs-io/raffled/keeper"
	"github.com/blinklabs-io/raffled/oracle"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
)

const DefaultShutdownTimeout = 30 * time.Second

// DefaultSubscriptionFunding is the amount a newly created oracle
// subscription is funded with (100 LINK)
var DefaultSubscriptionFunding = new(big.Int).Mul(
	big.NewInt(100),
	big.NewInt(1_000_000_000_000_000_000),
)

type Config struct {
	promRegistry         prometheus.Registerer
	promGatherer         prometheus.Gatherer
	logger               *slog.Logger
	dataDir              string
	blobPlugin           string
	metadataPlugin       string
	entranceFee          *big.Int
	interval             time.Duration
	keyHash              common.Hash
	subscriptionID       uint64
	requestConfirmations uint16
	callbackGasLimit     uint32
	oracleBaseFee        *big.Int
	oracleGasPriceLink   *big.Int
	subscriptionFunding  *big.Int
	oracleAutoFulfill    bool
	oracleFulfillDelay   time.Duration
	oracleWorkers        int
	oracleAllowOverride  bool
	keeperDisabled       bool
	keeperCheckInterval  time.Duration
	apiHost              string
	apiPort              uint
	tlsCertFilePath      string
	tlsKeyFilePath       string
	tracing              bool
	tracingStdout        bool
	shutdownTimeout      time.Duration
}

func (c *Config) validate() error {
	if c.entranceFee == nil || c.entranceFee.Sign() < 0 {
		return errors.New("entrance fee must be a non-negative value")
	}
	if c.interval < 0 {
		return errors.New("interval must not be negative")
	}
	if c.keeperCheckInterval < 0 {
		return errors.New("keeper check interval must not be negative")
	}
	if c.subscriptionFunding != nil && c.subscriptionFunding.Sign() < 0 {
		return errors.New("subscription funding must not be negative")
	}
	if (c.tlsCertFilePath == "") != (c.tlsKeyFilePath == "") {
		return errors.New("TLS requires both a certificate and a key")
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the node config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new raffled config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:              slog.New(slog.NewJSONHandler(io.Discard, nil)),
		entranceFee:         new(big.Int),
		oracleAutoFulfill:   true,
		oracleFulfillDelay:  oracle.DefaultFulfillDelay,
		oracleWorkers:       oracle.DefaultWorkers,
		keeperCheckInterval: keeper.DefaultCheckInterval,
		apiHost:             api.DefaultHost,
		apiPort:             api.DefaultPort,
		shutdownTimeout:     DefaultShutdownTimeout,
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithDatabasePath specifies the persistent data directory to use. The default is to store everything in memory
func WithDatabasePath(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithBlobPlugin specifies the blob storage plugin to use.
func WithBlobPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.blobPlugin = plugin
	}
}

// WithMetadataPlugin specifies the metadata storage plugin to use.
func WithMetadataPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.metadataPlugin = plugin
	}
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to. In most cases, prometheus.DefaultRegistry would be
// a good choice to get metrics working
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithPrometheusGatherer specifies the prometheus.Gatherer served on the API /metrics endpoint. Metrics are not served when unset
func WithPrometheusGatherer(gatherer prometheus.Gatherer) ConfigOptionFunc {
	return func(c *Config) {
		c.promGatherer = gatherer
	}
}

// WithEntranceFee specifies the minimum payment required to enter the raffle
func WithEntranceFee(fee *big.Int) ConfigOptionFunc {
	return func(c *Config) {
		if fee != nil {
			c.entranceFee = new(big.Int).Set(fee)
		} else {
			c.entranceFee = nil
		}
	}
}

// WithInterval specifies the minimum time between draws
func WithInterval(interval time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.interval = interval
	}
}

// WithKeyHash specifies the oracle key hash (gas lane) sent with each randomness request
func WithKeyHash(keyHash common.Hash) ConfigOptionFunc {
	return func(c *Config) {
		c.keyHash = keyHash
	}
}

// WithSubscriptionID specifies an existing oracle subscription to bill requests to. When unset, a subscription
// is created and funded on startup
func WithSubscriptionID(id uint64) ConfigOptionFunc {
	return func(c *Config) {
		c.subscriptionID = id
	}
}

// WithRequestConfirmations specifies the confirmations the oracle waits for before answering
func WithRequestConfirmations(confirmations uint16) ConfigOptionFunc {
	return func(c *Config) {
		c.requestConfirmations = confirmations
	}
}

// WithCallbackGasLimit specifies the gas limit for the randomness callback
func WithCallbackGasLimit(limit uint32) ConfigOptionFunc {
	return func(c *Config) {
		c.callbackGasLimit = limit
	}
}

// WithOracleFees specifies the oracle base fee and per-gas price. A nil value keeps the oracle default
func WithOracleFees(baseFee, gasPriceLink *big.Int) ConfigOptionFunc {
	return func(c *Config) {
		c.oracleBaseFee = baseFee
		c.oracleGasPriceLink = gasPriceLink
	}
}

// WithSubscriptionFunding specifies the amount a newly created subscription is funded with
func WithSubscriptionFunding(amount *big.Int) ConfigOptionFunc {
	return func(c *Config) {
		c.subscriptionFunding = amount
	}
}

// WithOracleAutoFulfill specifies whether the oracle answers requests on its own after the given delay.
// This is enabled by default with a 2 second delay
func WithOracleAutoFulfill(enabled bool, delay time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.oracleAutoFulfill = enabled
		c.oracleFulfillDelay = delay
	}
}

// WithOracleWorkers specifies the size of the oracle delivery worker pool
func WithOracleWorkers(workers int) ConfigOptionFunc {
	return func(c *Config) {
		c.oracleWorkers = workers
	}
}

// WithOracleAllowOverride specifies whether API callers may supply their own random words when fulfilling
// a request. This is meant for local testing only and is disabled by default
func WithOracleAllowOverride(allow bool) ConfigOptionFunc {
	return func(c *Config) {
		c.oracleAllowOverride = allow
	}
}

// WithKeeper specifies whether the upkeep scheduler runs and how often it checks. The default is enabled
// with a 5 second interval
func WithKeeper(enabled bool, checkInterval time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.keeperDisabled = !enabled
		c.keeperCheckInterval = checkInterval
	}
}

// WithApiHost specifies the host to bind the API listener to. This defaults to 0.0.0.0
func WithApiHost(host string) ConfigOptionFunc {
	return func(c *Config) {
		c.apiHost = host
	}
}

// WithApiPort specifies the port to use for the API listener. This defaults to port 8080. A value of 0 disables the API
func WithApiPort(port uint) ConfigOptionFunc {
	return func(c *Config) {
		c.apiPort = port
	}
}

// WithApiTlsCertFilePath specifies the path to the TLS certificate for the API listener. This defaults to empty
func WithApiTlsCertFilePath(path string) ConfigOptionFunc {
	return func(c *Config) {
		c.tlsCertFilePath = path
	}
}

// WithApiTlsKeyFilePath specifies the path to the TLS key for the API listener. This defaults to empty
func WithApiTlsKeyFilePath(path string) ConfigOptionFunc {
	return func(c *Config) {
		c.tlsKeyFilePath = path
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) endpoint using OTLP. This can be configured
// using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. The default is 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}
