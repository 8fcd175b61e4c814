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

package ton

import (
	"fmt"
	"strings"

	"sticker-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

// NanoPerTon is the number of nanotons in one TON.
const NanoPerTon int64 = 1_000_000_000

const tonDecimals = 9

// ParseTon converts a decimal TON amount such as "1.5" into nanotons.
// More than nine fractional digits or a non-positive amount is rejected.
func ParseTon(amount string) (int64, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, store.NewValidationError("amount", fmt.Sprintf("%q is not a decimal number", amount))
	}
	if !value.IsPositive() {
		return 0, store.NewValidationError("amount", "must be positive")
	}
	nano := value.Shift(tonDecimals)
	if !nano.Equal(nano.Truncate(0)) {
		return 0, store.NewValidationError("amount", "at most 9 decimal places are allowed")
	}
	if !nano.BigInt().IsInt64() {
		return 0, store.NewValidationError("amount", "too large")
	}
	return nano.IntPart(), nil
}

// FormatNano renders nanotons as a TON amount without trailing zeros.
func FormatNano(nano int64) string {
	return decimal.New(nano, -tonDecimals).String()
}
