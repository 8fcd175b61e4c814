/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package store

import (
	"errors"
	"fmt"

	"sticker-ledger-go/internal/models"
)

// Sentinel errors shared across all backend implementations and engines.
var (
	ErrValidation             = errors.New("validation failed")
	ErrNotFound               = errors.New("not found")
	ErrConflict               = errors.New("conflict")
	ErrRuleDisabled           = errors.New("rule disabled")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrIntegrity              = errors.New("integrity violation")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrVerifierUnavailable    = errors.New("chain verifier unavailable")
)

var (
	ErrRuleNotFound   = fmt.Errorf("rule %w", ErrNotFound)
	ErrIntentNotFound = fmt.Errorf("intent %w", ErrNotFound)
	ErrWalletNotFound = fmt.Errorf("active wallet %w", ErrNotFound)

	ErrDuplicateRule        = fmt.Errorf("duplicate rule code: %w", ErrConflict)
	ErrDuplicateEntry       = fmt.Errorf("duplicate ledger entry: %w", ErrConflict)
	ErrDuplicateTransaction = fmt.Errorf("duplicate transaction: %w", ErrConflict)
)

// ValidationError names the offending input.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	UserId  int64
	Balance int64
	Delta   int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for user %d: balance %d, delta %d, shortfall %d",
		e.UserId, e.Balance, e.Delta, -(e.Balance + e.Delta))
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// InvalidStateTransitionError reports a rejected intent status change.
type InvalidStateTransitionError struct {
	IntentId int64
	From     models.IntentStatus
	To       models.IntentStatus
}

func (e *InvalidStateTransitionError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("intent %d is %s and can no longer be confirmed", e.IntentId, e.From)
	}
	return fmt.Sprintf("intent %d cannot move from %s to %s", e.IntentId, e.From, e.To)
}

func (e *InvalidStateTransitionError) Unwrap() error {
	return ErrInvalidStateTransition
}

// IntegrityError signals persisted state that breaks a ledger or intent invariant.
type IntegrityError struct {
	UserId   int64
	IntentId int64
	Reason   string
}

func (e *IntegrityError) Error() string {
	switch {
	case e.IntentId != 0:
		return fmt.Sprintf("integrity violation on intent %d: %s", e.IntentId, e.Reason)
	case e.UserId != 0:
		return fmt.Sprintf("integrity violation for user %d: %s", e.UserId, e.Reason)
	}
	return "integrity violation: " + e.Reason
}

func (e *IntegrityError) Unwrap() error {
	return ErrIntegrity
}

// IsClientError returns true if the error is due to invalid caller input or state.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrRuleDisabled) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidStateTransition)
}

// IsRetryable returns true if the same call might succeed later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrVerifierUnavailable)
}
