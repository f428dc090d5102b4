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
	"time"
)

// IsUpkeepDue reports whether a drawing should start. It has no side effects
// and is safe to call speculatively. The returned data is always empty and
// exists for parity with the automation interface
func IsUpkeepDue(state *Snapshot, cfg Config, now time.Time) (bool, []byte) {
	performData := []byte{}
	if state == nil {
		return false, performData
	}
	isOpen := state.Phase() == PhaseOpen
	hasBalance := state.Balance != nil && state.Balance.Sign() > 0
	hasPlayers := len(state.Entrants) > 0
	timePassed := now.Sub(state.LastDrawAt) >= cfg.Interval
	return isOpen && hasBalance && hasPlayers && timePassed, performData
}
