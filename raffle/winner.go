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
	"math/big"
)

// SelectWinner maps a random value onto an index in an entrant list of the
// given length
func SelectWinner(randomValue *big.Int, numEntrants int) (int, error) {
	if numEntrants <= 0 {
		return 0, errors.New("cannot select a winner without entrants")
	}
	if randomValue == nil || randomValue.Sign() < 0 {
		return 0, errors.New("random value must be a non-negative integer")
	}
	idx := new(big.Int).Mod(randomValue, big.NewInt(int64(numEntrants)))
	return int(idx.Int64()), nil
}
