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

package types

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// RaffleStateKey holds the latest raffle snapshot
	RaffleStateKey = "raffle_state"

	// DrawReceiptKeyPrefix is followed by the big-endian round number
	DrawReceiptKeyPrefix = "rd"
)

// DrawReceiptKey returns the blob key for the draw receipt of a round
func DrawReceiptKey(round uint64) []byte {
	key := make([]byte, 0, len(DrawReceiptKeyPrefix)+8)
	key = append(key, DrawReceiptKeyPrefix...)
	return binary.BigEndian.AppendUint64(key, round)
}

// DrawReceiptRound extracts the round number from a draw receipt key
func DrawReceiptRound(key []byte) (uint64, error) {
	if len(key) != len(DrawReceiptKeyPrefix)+8 ||
		string(key[:len(DrawReceiptKeyPrefix)]) != DrawReceiptKeyPrefix {
		return 0, errors.New("invalid draw receipt key")
	}
	return binary.BigEndian.Uint64(key[len(DrawReceiptKeyPrefix):]), nil
}

// CommitTimestampKey holds the commit timestamp in blob stores. It sits
// outside the other key prefixes
const CommitTimestampKey = "metadata_commit_timestamp"

// EncodeTimestamp encodes a commit timestamp as 8 big-endian bytes
func EncodeTimestamp(ts int64) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(ts)) // #nosec G115
}

// DecodeTimestamp reverses EncodeTimestamp
func DecodeTimestamp(data []byte) (int64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("invalid commit timestamp length %d", len(data))
	}
	return int64(binary.BigEndian.Uint64(data)), nil // #nosec G115
}
