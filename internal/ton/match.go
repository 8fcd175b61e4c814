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
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"

	"sticker-ledger-go/internal/store"

	"github.com/xssnick/tonutils-go/address"
)

const txHashLength = 32

var errMalformedHash = errors.New("malformed transaction hash")

// transfer is an incoming value transfer observed on the destination account
type transfer struct {
	Hash       []byte
	From       string
	AmountNano int64
	Comment    string
}

// decodeHash accepts the hex and base64 (standard or url-safe) renderings explorers use.
func decodeHash(txHash string) ([]byte, error) {
	txHash = strings.TrimSpace(txHash)
	if len(txHash) == 2*txHashLength {
		if raw, err := hex.DecodeString(txHash); err == nil {
			return raw, nil
		}
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if raw, err := enc.DecodeString(txHash); err == nil && len(raw) == txHashLength {
			return raw, nil
		}
	}
	return nil, errMalformedHash
}

// CanonicalHash renders a transaction hash as lower-case hex so every
// accepted encoding of the same hash maps to one stored value.
func CanonicalHash(txHash string) (string, error) {
	raw, err := decodeHash(txHash)
	if err != nil {
		return "", store.NewValidationError("tx_hash", "must be a 32-byte hex or base64 hash")
	}
	return hex.EncodeToString(raw), nil
}

// sameAddress compares two addresses regardless of their bounceable or testnet flags.
func sameAddress(a, b string) bool {
	if a == b {
		return true
	}
	left, err := address.ParseAddr(a)
	if err != nil {
		return false
	}
	right, err := address.ParseAddr(b)
	if err != nil {
		return false
	}
	return left.Workchain() == right.Workchain() && bytes.Equal(left.Data(), right.Data())
}

// matchTransfer looks for the claimed transfer. The sender is only checked
// when known and the amount may exceed the expected one. On a miss the
// reason is returned for logging.
func matchTransfer(transfers []transfer, hash []byte, from string, amountNano int64) (bool, string) {
	for _, t := range transfers {
		if !bytes.Equal(t.Hash, hash) {
			continue
		}
		if from != "" && !sameAddress(t.From, from) {
			return false, "sender mismatch"
		}
		if t.AmountNano < amountNano {
			return false, "amount too low"
		}
		return true, ""
	}
	return false, "transaction not found"
}
