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

package oracle

import (
	"math/big"

	"github.com/blinklabs-io/raffled/event"
	"github.com/blinklabs-io/raffled/raffle"
)

const (
	RandomWordsRequestedEventType event.EventType = "oracle.random_words_requested"
	RandomWordsFulfilledEventType event.EventType = "oracle.random_words_fulfilled"
)

type RandomWordsRequestedEvent struct {
	RequestID      raffle.RequestID
	SubscriptionID uint64
	NumWords       uint32
}

// RandomWordsFulfilledEvent is emitted once the consumer has accepted the
// words and the subscription has been charged
type RandomWordsFulfilledEvent struct {
	RequestID      raffle.RequestID
	SubscriptionID uint64
	Payment        *big.Int
}
