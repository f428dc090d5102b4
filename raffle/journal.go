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
	"context"
	"math/big"
	"time"
)

// Coordinator issues randomness requests on behalf of the raffle. The random
// words are delivered later through Raffle.FulfillRandomWords and never from
// within RequestRandomWords
type Coordinator interface {
	RequestRandomWords(ctx context.Context, req RandomnessRequest) (RequestID, error)
}

// Payer moves the prize pool to the winner
type Payer interface {
	Transfer(ctx context.Context, to Address, amount *big.Int) error
}

// Journal persists raffle state changes. PersistRaffle must write the change
// and run effect (when not nil) inside a single transaction, rolling back
// everything if effect or the write fails
type Journal interface {
	PersistRaffle(ctx context.Context, change *Change, effect func() error) error
}

// Change describes the result of a single raffle operation. Snapshot is the
// full state after the operation, at most one of the records is set
type Change struct {
	Snapshot *Snapshot
	Entry    *EntryRecord
	Request  *RequestRecord
	Draw     *DrawRecord
}

type EntryRecord struct {
	Round     uint64
	Index     int
	Address   Address
	Amount    *big.Int
	Timestamp time.Time
}

type RequestRecord struct {
	Round       uint64
	RequestID   RequestID
	NumEntrants int
	Timestamp   time.Time
}

// DrawRecord is the outcome of a round. Entrants is the list the winner was
// selected from, so the draw can be verified from the record alone
type DrawRecord struct {
	Round       uint64
	RequestID   RequestID
	RandomWord  *big.Int
	WinnerIndex int
	Winner      Address
	Prize       *big.Int
	NumEntrants int
	Entrants    []Address
	Timestamp   time.Time
}
