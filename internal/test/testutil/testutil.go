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

// Package testutil holds synchronization helpers shared by the raffled tests
// for waiting on asynchronous deliveries (events, oracle callbacks, keeper
// ticks) without fixed sleeps.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const pollInterval = 10 * time.Millisecond

// WaitForCondition fails the test unless condition becomes true within timeout
func WaitForCondition(
	t *testing.T,
	condition func() bool,
	timeout time.Duration,
	msg string,
) {
	t.Helper()
	require.Eventually(t, condition, timeout, pollInterval, msg)
}

// RequireReceive returns the next value sent on ch, failing the test after
// timeout
func RequireReceive[T any](
	t *testing.T,
	ch <-chan T,
	timeout time.Duration,
	msg string,
) T {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case v := <-ch:
		return v
	case <-timer.C:
		t.Fatalf("timed out after %s waiting for %s", timeout, msg)
	}
	var zero T
	return zero
}

// RequireNoReceive fails the test if anything arrives on ch within window
func RequireNoReceive[T any](
	t *testing.T,
	ch <-chan T,
	window time.Duration,
	msg string,
) {
	t.Helper()
	timer := time.NewTimer(window)
	defer timer.Stop()
	select {
	case v := <-ch:
		t.Fatalf("unexpected value %v: %s", v, msg)
	case <-timer.C:
	}
}
