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

package api

import (
	"errors"

	"sticker-ledger-go/internal/store"
)

// ErrorKind is the user-facing category of an error
type ErrorKind string

const (
	KindNone                 ErrorKind = ""
	KindValidation           ErrorKind = "validation"
	KindNotFound             ErrorKind = "not_found"
	KindRuleDisabled         ErrorKind = "rule_disabled"
	KindConflict             ErrorKind = "conflict"
	KindDuplicateTransaction ErrorKind = "duplicate_transaction"
	KindInsufficientBalance  ErrorKind = "insufficient_balance"
	KindInvalidState         ErrorKind = "invalid_state"
	KindRetryable            ErrorKind = "retryable"
	KindIncident             ErrorKind = "incident"
)

// Classify maps an error returned by LedgerService to the kind a handler
// should report. Integrity violations and unknown errors are incidents.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, store.ErrIntegrity):
		return KindIncident
	case errors.Is(err, store.ErrValidation):
		return KindValidation
	case errors.Is(err, store.ErrInsufficientBalance):
		return KindInsufficientBalance
	case errors.Is(err, store.ErrRuleDisabled):
		return KindRuleDisabled
	case errors.Is(err, store.ErrDuplicateTransaction):
		return KindDuplicateTransaction
	case errors.Is(err, store.ErrConflict):
		return KindConflict
	case errors.Is(err, store.ErrNotFound):
		return KindNotFound
	case errors.Is(err, store.ErrInvalidStateTransition):
		return KindInvalidState
	case store.IsRetryable(err):
		return KindRetryable
	}
	return KindIncident
}

// IsUserFacing reports whether the error message may be shown to the end user.
func IsUserFacing(err error) bool {
	kind := Classify(err)
	return kind != KindNone && kind != KindIncident && kind != KindRetryable
}
