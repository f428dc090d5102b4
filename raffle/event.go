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
	"math/big"

	"github.com/blinklabs-io/raffled/event"
)

const (
	EntryRecordedEventType   event.EventType = "raffle.entry_recorded"
	UpkeepPerformedEventType event.EventType = "raffle.upkeep_performed"
	WinnerPickedEventType    event.EventType = "raffle.winner_picked"
	PayoutFailedEventType    event.EventType = "raffle.payout_failed"
)

// EntryRecordedEvent is emitted for every accepted entry
type EntryRecordedEvent struct {
	Round    uint64
	Address  Address
	Amount   *big.Int
	Balance  *big.Int
	Entrants int
}

// UpkeepPerformedEvent is emitted once a randomness request has been issued
type UpkeepPerformedEvent struct {
	Round     uint64
	RequestID RequestID
}

// WinnerPickedEvent is emitted after the prize has been paid out and the
// raffle reopened
type WinnerPickedEvent struct {
	Round     uint64
	RequestID RequestID
	Winner    Address
	Prize     *big.Int
}

// PayoutFailedEvent is emitted when a winner was selected but the transfer
// failed. The round stays in the calculating phase
type PayoutFailedEvent struct {
	Round     uint64
	RequestID RequestID
	Winner    Address
	Prize     *big.Int
	Error     string
}
