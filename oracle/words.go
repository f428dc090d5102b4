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

	"github.com/blinklabs-io/raffled/raffle"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// RandomWords derives the words for a request as
// keccak256(abi.encode(requestId, i)) for i in [0, numWords)
func RandomWords(requestID raffle.RequestID, numWords uint32) []*big.Int {
	ret := make([]*big.Int, 0, numWords)
	idWord := common.LeftPadBytes(
		new(big.Int).SetUint64(uint64(requestID)).Bytes(),
		32,
	)
	for i := range numWords {
		idxWord := common.LeftPadBytes(
			new(big.Int).SetUint64(uint64(i)).Bytes(),
			32,
		)
		ret = append(
			ret,
			new(big.Int).SetBytes(crypto.Keccak256(idWord, idxWord)),
		)
	}
	return ret
}
