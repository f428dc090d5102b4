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

package api

import (
	"errors"
	"io"
	"math/big"
	"net/http"
	"strconv"

	"github.com/blinklabs-io/raffled/database/types"
	"github.com/blinklabs-io/raffled/event"
	"github.com/blinklabs-io/raffled/oracle"
	"github.com/blinklabs-io/raffled/raffle"
	"github.com/blinklabs-io/raffled/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

const (
	defaultDrawsLimit = 20
	streamBufferSize  = 64
)

var streamEventTypes = []event.EventType{
	raffle.EntryRecordedEventType,
	raffle.UpkeepPerformedEventType,
	raffle.WinnerPickedEventType,
	raffle.PayoutFailedEventType,
	oracle.RandomWordsRequestedEventType,
	oracle.RandomWordsFulfilledEventType,
}

var (
	errInvalidAddress = errors.New("invalid address")
	errInvalidAmount  = errors.New("invalid amount")
	errNotAvailable   = errors.New("not available")
	errOverrideDenied = errors.New("random word override is disabled")
)

// errorStatus maps an error onto an HTTP status code
func errorStatus(err error) int {
	switch raffle.KindOf(err) {
	case raffle.ValidationError:
		if errors.Is(err, raffle.ErrRaffleNotOpen) ||
			errors.Is(err, raffle.ErrUpkeepNotNeeded) {
			return http.StatusConflict
		}
		return http.StatusBadRequest
	case raffle.AuthorizationError:
		return http.StatusForbidden
	case raffle.DependencyError:
		return http.StatusBadGateway
	case raffle.PayoutError:
		return http.StatusConflict
	case raffle.StorageError:
		return http.StatusInternalServerError
	}
	switch {
	case errors.Is(err, errInvalidAddress),
		errors.Is(err, errInvalidAmount),
		errors.Is(err, wallet.ErrInvalidAmount),
		errors.Is(err, oracle.ErrInvalidRandomWords):
		return http.StatusBadRequest
	case errors.Is(err, wallet.ErrInsufficientFunds),
		errors.Is(err, oracle.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, oracle.ErrNonexistentRequest),
		errors.Is(err, types.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, errNotAvailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, errOverrideDenied):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func (a *Api) writeError(c *gin.Context, err error) {
	status := errorStatus(err)
	resp := ErrorResponse{Error: err.Error()}
	if kind := raffle.KindOf(err); kind != 0 {
		resp.Kind = kind.String()
	}
	if status >= http.StatusInternalServerError {
		a.logger.Error(
			"request failed",
			"path", c.FullPath(),
			"error", err,
		)
	}
	c.JSON(status, resp)
}

func parseAddress(s string) (raffle.Address, error) {
	if !common.IsHexAddress(s) {
		return raffle.Address{}, errInvalidAddress
	}
	return common.HexToAddress(s), nil
}

func (a *Api) getRaffle(c *gin.Context) {
	r := a.config.Raffle
	snapshot := r.Snapshot()
	resp := RaffleResponse{
		State:         snapshot.Phase().String(),
		Round:         snapshot.Round,
		EntranceFee:   amountString(r.EntranceFee()),
		Interval:      r.Interval().String(),
		NumPlayers:    len(snapshot.Entrants),
		Balance:       amountString(snapshot.Balance),
		LastTimestamp: snapshot.LastDrawAt.Unix(),
		RecentWinner:  snapshot.RecentWinner.Hex(),
	}
	if snapshot.Pending != nil {
		resp.PendingRequestID = uint64(snapshot.Pending.RequestID)
	}
	c.JSON(http.StatusOK, resp)
}

func (a *Api) getPlayers(c *gin.Context) {
	entrants := a.config.Raffle.Entrants()
	resp := make([]PlayerResponse, 0, len(entrants))
	for i, addr := range entrants {
		resp = append(resp, PlayerResponse{Index: i, Address: addr.Hex()})
	}
	c.JSON(http.StatusOK, resp)
}

func (a *Api) getPlayer(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid index"})
		return
	}
	addr, err := a.config.Raffle.Entrant(index)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, PlayerResponse{Index: index, Address: addr.Hex()})
}

func (a *Api) postEnter(c *gin.Context) {
	var req EnterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	addr, err := parseAddress(req.Address)
	if err != nil {
		a.writeError(c, err)
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		a.writeError(c, errInvalidAmount)
		return
	}
	ctx := c.Request.Context()
	var index int
	if a.config.Ledger != nil {
		index, err = a.config.Ledger.Enter(ctx, a.config.Raffle, addr, amount)
	} else {
		index, err = a.config.Raffle.EnterIndex(ctx, amount, addr)
	}
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, PlayerResponse{
		Index:   index,
		Address: addr.Hex(),
	})
}

func (a *Api) getUpkeep(c *gin.Context) {
	needed, performData := a.config.Raffle.CheckUpkeep(a.config.Clock())
	c.JSON(http.StatusOK, UpkeepResponse{
		UpkeepNeeded: needed,
		PerformData:  "0x" + common.Bytes2Hex(performData),
	})
}

func (a *Api) postUpkeep(c *gin.Context) {
	requestID, err := a.config.Raffle.PerformUpkeep(
		c.Request.Context(),
		a.config.Clock(),
	)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, PerformUpkeepResponse{RequestID: uint64(requestID)})
}

func (a *Api) getOracleRequests(c *gin.Context) {
	if a.config.Coordinator == nil {
		a.writeError(c, errNotAvailable)
		return
	}
	pending := a.config.Coordinator.PendingRequests()
	resp := make([]OracleRequestResponse, 0, len(pending))
	for _, req := range pending {
		resp = append(resp, OracleRequestResponse{
			RequestID:      uint64(req.ID),
			SubscriptionID: req.SubscriptionID,
			NumWords:       req.NumWords,
			CallbackGas:    req.CallbackGas,
			IssuedAt:       req.IssuedAt,
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (a *Api) postFulfill(c *gin.Context) {
	if a.config.Coordinator == nil {
		a.writeError(c, errNotAvailable)
		return
	}
	requestID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || requestID == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request id"})
		return
	}
	var req FulfillRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
	}
	ctx := c.Request.Context()
	id := raffle.RequestID(requestID)
	if len(req.RandomWords) > 0 {
		if !a.config.AllowOverride {
			a.writeError(c, errOverrideDenied)
			return
		}
		words := make([]*big.Int, 0, len(req.RandomWords))
		for _, tmpWord := range req.RandomWords {
			word, ok := parseAmount(tmpWord)
			if !ok {
				a.writeError(c, oracle.ErrInvalidRandomWords)
				return
			}
			words = append(words, word)
		}
		err = a.config.Coordinator.FulfillRandomWordsWithOverride(ctx, id, words)
	} else {
		err = a.config.Coordinator.FulfillRandomWords(ctx, id)
	}
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *Api) getDraws(c *gin.Context) {
	if a.config.History == nil {
		a.writeError(c, errNotAvailable)
		return
	}
	limit := defaultDrawsLimit
	if tmpLimit := c.Query("limit"); tmpLimit != "" {
		v, err := strconv.Atoi(tmpLimit)
		if err != nil || v < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = v
	}
	draws, err := a.config.History.Draws(limit)
	if err != nil {
		a.writeError(c, err)
		return
	}
	resp := make([]DrawResponse, 0, len(draws))
	for i := range draws {
		resp = append(resp, drawResponse(&draws[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (a *Api) getDraw(c *gin.Context) {
	if a.config.History == nil {
		a.writeError(c, errNotAvailable)
		return
	}
	round, err := strconv.ParseUint(c.Param("round"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid round"})
		return
	}
	receipt, err := a.config.History.DrawReceipt(round)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, receiptResponse(receipt))
}

func (a *Api) getWallet(c *gin.Context) {
	if a.config.Ledger == nil {
		a.writeError(c, errNotAvailable)
		return
	}
	addr, err := parseAddress(c.Param("address"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, WalletResponse{
		Address: addr.Hex(),
		Balance: amountString(a.config.Ledger.Balance(addr)),
	})
}

func (a *Api) postDeposit(c *gin.Context) {
	if a.config.Ledger == nil {
		a.writeError(c, errNotAvailable)
		return
	}
	addr, err := parseAddress(c.Param("address"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		a.writeError(c, errInvalidAmount)
		return
	}
	if err := a.config.Ledger.Deposit(addr, amount); err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, WalletResponse{
		Address: addr.Hex(),
		Balance: amountString(a.config.Ledger.Balance(addr)),
	})
}

// streamEvents relays raffle and oracle events to the client as server-sent
// events until the client goes away or the API stops
func (a *Api) streamEvents(stopCh <-chan struct{}) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.config.EventBus == nil {
			a.writeError(c, errNotAvailable)
			return
		}
		eventCh := make(chan event.Event, streamBufferSize)
		subIds := make([]event.EventSubscriberId, 0, len(streamEventTypes))
		for _, eventType := range streamEventTypes {
			subId := a.config.EventBus.SubscribeFunc(
				eventType,
				func(evt event.Event) {
					select {
					case eventCh <- evt:
					default:
						a.logger.Warn(
							"event stream client too slow, dropping event",
							"type", evt.Type,
						)
					}
				},
			)
			subIds = append(subIds, subId)
		}
		defer func() {
			for i, subId := range subIds {
				a.config.EventBus.Unsubscribe(streamEventTypes[i], subId)
			}
		}()
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("X-Accel-Buffering", "no")
		// Send headers immediately so clients see the stream open
		c.Writer.WriteHeader(http.StatusOK)
		c.Writer.Flush()
		ctx := c.Request.Context()
		c.Stream(func(_ io.Writer) bool {
			select {
			case evt := <-eventCh:
				c.SSEvent(string(evt.Type), eventPayload(evt))
				return true
			case <-ctx.Done():
				return false
			case <-stopCh:
				return false
			}
		})
	}
}
