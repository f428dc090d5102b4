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

package models

import (
	"time"

	"github.com/blinklabs-io/raffled/database/types"
)

// MigrateModels lists the tables created by every metadata plugin
var MigrateModels = []any{
	&RaffleEntry{},
	&RandomnessRequest{},
	&RaffleDraw{},
}

// RaffleEntry records one accepted entry into a round
type RaffleEntry struct {
	Amount    types.BigInt
	CreatedAt time.Time
	Address   []byte `gorm:"size:20;index"`
	ID        uint   `gorm:"primarykey"`
	Round     uint64 `gorm:"uniqueIndex:idx_raffle_entry_round_position"`
	Position  int    `gorm:"uniqueIndex:idx_raffle_entry_round_position"`
}

func (RaffleEntry) TableName() string {
	return "raffle_entry"
}

// RandomnessRequest tracks an oracle request from issue to fulfillment
type RandomnessRequest struct {
	CreatedAt   time.Time
	FulfilledAt *time.Time
	ID          uint         `gorm:"primarykey"`
	RequestID   types.Uint64 `gorm:"uniqueIndex"`
	Round       uint64       `gorm:"index"`
	NumEntrants int
}

func (RandomnessRequest) TableName() string {
	return "randomness_request"
}

// Fulfilled reports whether a draw has consumed the request
func (r *RandomnessRequest) Fulfilled() bool {
	return r.FulfilledAt != nil
}

// RaffleDraw records the outcome of a completed round
type RaffleDraw struct {
	RandomWord  types.BigInt
	Prize       types.BigInt
	CreatedAt   time.Time
	Winner      []byte `gorm:"size:20;index"`
	ID          uint   `gorm:"primarykey"`
	Round       uint64 `gorm:"uniqueIndex"`
	RequestID   types.Uint64
	WinnerIndex int
	NumEntrants int
}

func (RaffleDraw) TableName() string {
	return "raffle_draw"
}
