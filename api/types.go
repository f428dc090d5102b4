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
	"math/big"
	"time"

	"github.com/blinklabs-io/raffled/database"
	"github.com/blinklabs-io/raffled/event"
	"github.com/blinklabs-io/raffled/oracle"
	"github.com/blinklabs-io/raffled/raffle"
)

// Amounts are rendered as decimal strings so that clients never lose
// precision

type RaffleResponse struct {
	State            string `json:"state"`
	Round            uint64 `json:"round"`
	EntranceFee      string `json:"entranceFee"`
	Interval         string `json:"interval"`
	NumPlayers       int    `json:"numPlayers"`
	Balance          string `json:"balance"`
	LastTimestamp    int64  `json:"lastTimestamp"`
	RecentWinner     string `json:"recentWinner"`
	PendingRequestID uint64 `json:"pendingRequestId,omitempty"`
}

type PlayerResponse struct {
	Index   int    `json:"index"`
	Address string `json:"address"`
}

type EnterRequest struct {
	Address string `json:"address" binding:"required"`
	Amount  string `json:"amount"  binding:"required"`
}

type UpkeepResponse struct {
	UpkeepNeeded bool   `json:"upkeepNeeded"`
	PerformData  string `json:"performData"`
}

type PerformUpkeepResponse struct {
	RequestID uint64 `json:"requestId"`
}

type FulfillRequest struct {
	// RandomWords overrides the derived words when set
	RandomWords []string `json:"randomWords"`
}

type OracleRequestResponse struct {
	RequestID      uint64    `json:"requestId"`
	SubscriptionID uint64    `json:"subscriptionId"`
	NumWords       uint32    `json:"numWords"`
	CallbackGas    uint32    `json:"callbackGasLimit"`
	IssuedAt       time.Time `json:"issuedAt"`
}

type DrawResponse struct {
	Round       uint64    `json:"round"`
	RequestID   uint64    `json:"requestId"`
	RandomWord  string    `json:"randomWord"`
	WinnerIndex int       `json:"winnerIndex"`
	Winner      string    `json:"winner"`
	Prize       string    `json:"prize"`
	NumEntrants int       `json:"numEntrants"`
	Timestamp   time.Time `json:"timestamp"`
	Entrants    []string  `json:"entrants,omitempty"`
	Verified    *bool     `json:"verified,omitempty"`
}

type DepositRequest struct {
	Amount string `json:"amount" binding:"required"`
}

type WalletResponse struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func addressStrings(addrs []raffle.Address) []string {
	ret := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		ret = append(ret, addr.Hex())
	}
	return ret
}

func drawResponse(d *raffle.DrawRecord) DrawResponse {
	return DrawResponse{
		Round:       d.Round,
		RequestID:   uint64(d.RequestID),
		RandomWord:  amountString(d.RandomWord),
		WinnerIndex: d.WinnerIndex,
		Winner:      d.Winner.Hex(),
		Prize:       amountString(d.Prize),
		NumEntrants: d.NumEntrants,
		Timestamp:   d.Timestamp,
	}
}

func receiptResponse(r *database.DrawReceipt) DrawResponse {
	verified := r.Verify() == nil
	return DrawResponse{
		Round:       r.Round,
		RequestID:   uint64(r.RequestID),
		RandomWord:  amountString(r.RandomWord),
		WinnerIndex: r.WinnerIndex,
		Winner:      r.Winner.Hex(),
		Prize:       amountString(r.Prize),
		NumEntrants: len(r.Entrants),
		Timestamp:   r.Timestamp,
		Entrants:    addressStrings(r.Entrants),
		Verified:    &verified,
	}
}

// eventPayload converts known event data into its JSON shape
func eventPayload(evt event.Event) any {
	switch data := evt.Data.(type) {
	case raffle.EntryRecordedEvent:
		return map[string]any{
			"round":    data.Round,
			"address":  data.Address.Hex(),
			"amount":   amountString(data.Amount),
			"balance":  amountString(data.Balance),
			"entrants": data.Entrants,
		}
	case raffle.UpkeepPerformedEvent:
		return map[string]any{
			"round":     data.Round,
			"requestId": uint64(data.RequestID),
		}
	case raffle.WinnerPickedEvent:
		return map[string]any{
			"round":     data.Round,
			"requestId": uint64(data.RequestID),
			"winner":    data.Winner.Hex(),
			"prize":     amountString(data.Prize),
		}
	case raffle.PayoutFailedEvent:
		return map[string]any{
			"round":     data.Round,
			"requestId": uint64(data.RequestID),
			"winner":    data.Winner.Hex(),
			"prize":     amountString(data.Prize),
			"error":     data.Error,
		}
	case oracle.RandomWordsRequestedEvent:
		return map[string]any{
			"requestId":      uint64(data.RequestID),
			"subscriptionId": data.SubscriptionID,
			"numWords":       data.NumWords,
		}
	case oracle.RandomWordsFulfilledEvent:
		return map[string]any{
			"requestId":      uint64(data.RequestID),
			"subscriptionId": data.SubscriptionID,
			"payment":        amountString(data.Payment),
		}
	default:
		return data
	}
}
