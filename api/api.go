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

// Package api exposes the raffle over HTTP. It serves a JSON API, a
// server-sent event stream of raffle events, Prometheus metrics and a gRPC
// health endpoint from a single listener.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"sync"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/grpchealth"
	"github.com/blinklabs-io/raffled/database"
	"github.com/blinklabs-io/raffled/event"
	"github.com/blinklabs-io/raffled/oracle"
	"github.com/blinklabs-io/raffled/raffle"
	"github.com/blinklabs-io/raffled/wallet"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const (
	// ServiceName is reported by the gRPC health endpoint
	ServiceName = "raffled.v1.RaffleService"

	DefaultHost = "0.0.0.0"
	DefaultPort = 8080
)

// History is the read side of the persisted raffle history
type History interface {
	Draws(limit int) ([]raffle.DrawRecord, error)
	DrawReceipt(round uint64) (*database.DrawReceipt, error)
	Entries(round uint64) ([]raffle.EntryRecord, error)
}

type ApiConfig struct {
	Logger          *slog.Logger
	EventBus        *event.EventBus
	Raffle          *raffle.Raffle
	Ledger          *wallet.Ledger
	Coordinator     *oracle.Coordinator
	History         History
	PromGatherer    prometheus.Gatherer
	Clock           func() time.Time
	Host            string
	Port            uint
	TlsCertFilePath string
	TlsKeyFilePath  string
	// AllowOverride lets fulfil requests carry caller-chosen random words
	AllowOverride bool
}

type Api struct {
	config        ApiConfig
	logger        *slog.Logger
	healthChecker *grpchealth.StaticChecker
	server        *http.Server
	listener      net.Listener
	mu            sync.Mutex
	serveErr      chan error
	// Closed on Stop so that event streams end before the server drains
	stopCh chan struct{}
}

func NewApi(cfg ApiConfig) (*Api, error) {
	if cfg.Raffle == nil {
		return nil, errors.New("api: no raffle specified")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Api{
		config:        cfg,
		logger:        cfg.Logger.With("component", "api"),
		healthChecker: grpchealth.NewStaticChecker(ServiceName),
		stopCh:        make(chan struct{}),
	}, nil
}

// Handler returns the root handler serving every endpoint
func (a *Api) Handler() http.Handler {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.handler(a.stopCh)
}

func (a *Api) handler(stopCh <-chan struct{}) http.Handler {
	mux := http.NewServeMux()
	compress1KB := connect.WithCompressMinBytes(1024)
	mux.Handle(
		grpchealth.NewHandler(a.healthChecker, compress1KB),
	)
	if a.config.PromGatherer != nil {
		mux.Handle(
			"/metrics",
			promhttp.HandlerFor(a.config.PromGatherer, promhttp.HandlerOpts{}),
		)
	}
	mux.Handle("/", a.router(stopCh))
	return mux
}

// Start begins serving on the configured address and returns once the
// listener is open
func (a *Api) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		return errors.New("api already started")
	}
	addr := net.JoinHostPort(a.config.Host, fmt.Sprintf("%d", a.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	a.listener = listener
	a.serveErr = make(chan error, 1)
	stopCh := a.stopCh
	useTls := a.config.TlsCertFilePath != "" && a.config.TlsKeyFilePath != ""
	handler := a.handler(stopCh)
	if !useTls {
		// Use h2c so we can serve HTTP/2 without TLS
		handler = h2c.NewHandler(handler, &http2.Server{})
	}
	a.server = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 60 * time.Second,
	}
	a.healthChecker.SetStatus(ServiceName, grpchealth.StatusServing)
	a.logger.Info(
		"starting API listener",
		"address", listener.Addr().String(),
		"tls", useTls,
	)
	server := a.server
	go func() {
		var serveErr error
		if useTls {
			serveErr = server.ServeTLS(
				listener,
				a.config.TlsCertFilePath,
				a.config.TlsKeyFilePath,
			)
		} else {
			serveErr = server.Serve(listener)
		}
		if errors.Is(serveErr, http.ErrServerClosed) {
			serveErr = nil
		}
		a.serveErr <- serveErr
	}()
	return nil
}

// Addr returns the address the API is listening on, or nil before Start
func (a *Api) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// Stop marks the service as not serving and gracefully shuts down the server
func (a *Api) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server == nil {
		return nil
	}
	a.healthChecker.SetStatus(ServiceName, grpchealth.StatusNotServing)
	close(a.stopCh)
	err := a.server.Shutdown(ctx)
	if serveErr := <-a.serveErr; serveErr != nil {
		err = errors.Join(err, serveErr)
	}
	a.server = nil
	a.listener = nil
	a.stopCh = make(chan struct{})
	a.logger.Debug("API listener stopped")
	return err
}

func (a *Api) router(stopCh <-chan struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), a.requestLogger())

	v1 := r.Group("/api/v1")
	{
		raffleGroup := v1.Group("/raffle")
		raffleGroup.GET("", a.getRaffle)
		raffleGroup.GET("/players", a.getPlayers)
		raffleGroup.GET("/players/:index", a.getPlayer)
		raffleGroup.POST("/enter", a.postEnter)
		raffleGroup.GET("/upkeep", a.getUpkeep)
		raffleGroup.POST("/upkeep", a.postUpkeep)
		raffleGroup.GET("/events", a.streamEvents(stopCh))
	}
	{
		oracleGroup := v1.Group("/oracle")
		oracleGroup.GET("/requests", a.getOracleRequests)
		oracleGroup.POST("/requests/:id/fulfill", a.postFulfill)
	}
	{
		drawGroup := v1.Group("/draws")
		drawGroup.GET("", a.getDraws)
		drawGroup.GET("/:round", a.getDraw)
	}
	{
		walletGroup := v1.Group("/wallet")
		walletGroup.GET("/:address", a.getWallet)
		walletGroup.POST("/:address/deposit", a.postDeposit)
	}
	return r
}

func (a *Api) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.logger.Debug(
			"request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
		)
	}
}

func parseAmount(s string) (*big.Int, bool) {
	ret, ok := new(big.Int).SetString(s, 10)
	if !ok || ret.Sign() < 0 {
		return nil, false
	}
	return ret, true
}
