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

package keeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/blinklabs-io/raffled/internal/test/testutil"
	"github.com/blinklabs-io/raffled/raffle"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type mockUpkeeper struct {
	mu       sync.Mutex
	due      bool
	err      error
	checks   int
	performs int
}

func (m *mockUpkeeper) CheckUpkeep(time.Time) (bool, []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks++
	return m.due, []byte{}
}

func (m *mockUpkeeper) PerformUpkeep(
	context.Context,
	time.Time,
) (raffle.RequestID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.performs++
	if m.err != nil {
		return 0, m.err
	}
	// A performed upkeep closes the round
	m.due = false
	return raffle.RequestID(m.performs), nil
}

func (m *mockUpkeeper) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checks, m.performs
}

func TestNewKeeperRequiresUpkeeper(t *testing.T) {
	_, err := NewKeeper(KeeperConfig{})
	require.Error(t, err)
}

func TestTick(t *testing.T) {
	registry := prometheus.NewRegistry()
	upkeeper := &mockUpkeeper{}
	k, err := NewKeeper(KeeperConfig{
		Upkeeper:     upkeeper,
		PromRegistry: registry,
	})
	require.NoError(t, err)
	ctx := context.Background()

	assert.False(t, k.Tick(ctx))
	upkeeper.due = true
	assert.True(t, k.Tick(ctx))
	assert.False(t, k.Tick(ctx))
	checks, performs := upkeeper.counts()
	assert.Equal(t, 3, checks)
	assert.Equal(t, 1, performs)
	assert.InDelta(t, 1, promtestutil.ToFloat64(k.metrics.upkeepsTotal), 0)

	upkeeper.due = true
	upkeeper.err = errors.New("oracle down")
	assert.False(t, k.Tick(ctx))
	assert.InDelta(t, 1, promtestutil.ToFloat64(k.metrics.failuresTotal), 0)

	upkeeper.err = raffle.ErrUpkeepNotNeeded
	assert.False(t, k.Tick(ctx))
	assert.InDelta(t, 1, promtestutil.ToFloat64(k.metrics.failuresTotal), 0)
}

func TestKeeperSchedule(t *testing.T) {
	defer goleak.VerifyNone(t)
	upkeeper := &mockUpkeeper{due: true}
	k, err := NewKeeper(KeeperConfig{
		Upkeeper:      upkeeper,
		CheckInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, k.Start(context.Background()))
	// Starting twice is a no-op
	require.NoError(t, k.Start(context.Background()))
	testutil.WaitForCondition(
		t,
		func() bool {
			checks, performs := upkeeper.counts()
			return checks >= 3 && performs == 1
		},
		2*time.Second,
		"keeper performs upkeep once",
	)
	require.NoError(t, k.Stop())
	require.NoError(t, k.Stop())
}
