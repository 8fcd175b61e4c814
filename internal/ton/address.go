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
	"regexp"

	"sticker-ledger-go/internal/store"

	"github.com/xssnick/tonutils-go/address"
)

const userFriendlyAddressLength = 48

var (
	validPrefixes  = []string{"EQ", "UQ", "kQ", "0Q"}
	base64urlChars = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// AddressValidator accepts user-friendly TON addresses.
type AddressValidator struct{}

func NewAddressValidator() *AddressValidator {
	return &AddressValidator{}
}

// Validate checks the textual format first, then decodes the address to verify its checksum.
func (v *AddressValidator) Validate(addr string) error {
	if len(addr) != userFriendlyAddressLength {
		return store.NewValidationError("wallet_address",
			fmt.Sprintf("must be %d characters, got %d", userFriendlyAddressLength, len(addr)))
	}

	prefixOk := false
	for _, prefix := range validPrefixes {
		if addr[:2] == prefix {
			prefixOk = true
			break
		}
	}
	if !prefixOk {
		return store.NewValidationError("wallet_address", fmt.Sprintf("unsupported prefix %q", addr[:2]))
	}

	if !base64urlChars.MatchString(addr) {
		return store.NewValidationError("wallet_address", "only A-Z, a-z, 0-9, _ and - are allowed")
	}

	if _, err := address.ParseAddr(addr); err != nil {
		return store.NewValidationError("wallet_address", fmt.Sprintf("invalid address: %v", err))
	}
	return nil
}
