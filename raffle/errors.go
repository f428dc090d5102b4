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
)

var (
	ErrRaffleNotOpen           = errors.New("raffle not open")
	ErrInsufficientEntranceFee = errors.New("insufficient entrance fee")
	ErrUpkeepNotNeeded         = errors.New("upkeep not needed")
	ErrOracleUnavailable       = errors.New("randomness oracle unavailable")
	ErrUnrecognizedRequest     = errors.New("unrecognized randomness request")
	ErrPayoutFailed            = errors.New("payout to winner failed")
)

// ErrorKind classifies raffle errors
type ErrorKind uint8

const (
	ValidationError ErrorKind = iota + 1
	DependencyError
	AuthorizationError
	PayoutError
	StorageError
)

func (k ErrorKind) String() string {
	switch k {
	case ValidationError:
		return "validation"
	case DependencyError:
		return "dependency"
	case AuthorizationError:
		return "authorization"
	case PayoutError:
		return "payout"
	case StorageError:
		return "storage"
	default:
		return "unknown"
	}
}

// Error is returned by all raffle operations. State is never modified when an
// Error is returned
type Error struct {
	Kind   ErrorKind
	Op     string
	Err    error
	Detail string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("raffle %s: %s: %s", e.Op, e.Err, e.Detail)
	}
	return fmt.Sprintf("raffle %s: %s", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, op string, err error, detail string) *Error {
	return &Error{
		Kind:   kind,
		Op:     op,
		Err:    err,
		Detail: detail,
	}
}

// KindOf returns the ErrorKind of err, or 0 if err is not a raffle error
func KindOf(err error) ErrorKind {
	var rErr *Error
	if errors.As(err, &rErr) {
		return rErr.Kind
	}
	return 0
}
