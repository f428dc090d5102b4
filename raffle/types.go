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
	"errors"
	"fmt"
	"math/big"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Address identifies an entrant or payout recipient
type Address = common.Address

// RequestID identifies an outstanding randomness request. Valid IDs are
// always greater than zero
type RequestID uint64

// Phase is the lifecycle phase of the raffle
type Phase uint8

const (
	PhaseOpen        Phase = 0
	PhaseCalculating Phase = 1
)

func (p Phase) String() string {
	switch p {
	case PhaseOpen:
		return "OPEN"
	case PhaseCalculating:
		return "CALCULATING"
	default:
		return fmt.Sprintf("Phase(%d)", uint8(p))
	}
}

// DefaultNumWords is the number of random words requested per draw
const DefaultNumWords uint32 = 1

// Config holds the parameters a raffle is created with. It is copied on
// construction and never modified afterwards
type Config struct {
	EntranceFee          *big.Int
	Interval             time.Duration
	KeyHash              common.Hash
	SubscriptionID       uint64
	RequestConfirmations uint16
	CallbackGasLimit     uint32
	NumWords             uint32
}

func (c Config) validate() error {
	if c.EntranceFee == nil || c.EntranceFee.Sign() < 0 {
		return errors.New("entrance fee must be a non-negative value")
	}
	if c.Interval < 0 {
		return errors.New("interval must not be negative")
	}
	if c.NumWords != DefaultNumWords {
		return fmt.Errorf(
			"unsupported number of random words: %d",
			c.NumWords,
		)
	}
	return nil
}

func (c Config) clone() Config {
	ret := c
	ret.EntranceFee = new(big.Int).Set(c.EntranceFee)
	return ret
}

// PendingRequest ties an outstanding randomness request to the round it was
// issued for
type PendingRequest struct {
	RequestID RequestID
	Round     uint64
	IssuedAt  time.Time
}

// Snapshot is a point-in-time copy of the round state
type Snapshot struct {
	Round        uint64
	Entrants     []Address
	Balance      *big.Int
	LastDrawAt   time.Time
	RecentWinner Address
	Pending      *PendingRequest
}

// Phase is derived from the presence of a pending request
func (s *Snapshot) Phase() Phase {
	if s.Pending != nil {
		return PhaseCalculating
	}
	return PhaseOpen
}

// Clone returns a deep copy of the snapshot
func (s *Snapshot) Clone() *Snapshot {
	ret := &Snapshot{
		Round:        s.Round,
		Entrants:     slices.Clone(s.Entrants),
		Balance:      new(big.Int),
		LastDrawAt:   s.LastDrawAt,
		RecentWinner: s.RecentWinner,
	}
	if s.Balance != nil {
		ret.Balance.Set(s.Balance)
	}
	if s.Pending != nil {
		tmpPending := *s.Pending
		ret.Pending = &tmpPending
	}
	return ret
}

// RandomnessRequest is the outbound request handed to the coordinator
type RandomnessRequest struct {
	KeyHash              common.Hash
	SubscriptionID       uint64
	RequestConfirmations uint16
	CallbackGasLimit     uint32
	NumWords             uint32
}
