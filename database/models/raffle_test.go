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

package models_test

import (
	"testing"
	"time"

	"github.com/blinklabs-io/raffled/database/models"
	"github.com/stretchr/testify/assert"
)

func TestTableNames(t *testing.T) {
	assert.Equal(t, "raffle_entry", models.RaffleEntry{}.TableName())
	assert.Equal(t, "randomness_request", models.RandomnessRequest{}.TableName())
	assert.Equal(t, "raffle_draw", models.RaffleDraw{}.TableName())
	assert.Len(t, models.MigrateModels, 3)
}

func TestRandomnessRequestFulfilled(t *testing.T) {
	req := models.RandomnessRequest{RequestID: 7}
	assert.False(t, req.Fulfilled())
	now := time.Now()
	req.FulfilledAt = &now
	assert.True(t, req.Fulfilled())
}
