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

package wallet

import (
	"context"
	"errors"
	"strings"

	"sticker-ledger-go/internal/models"
	"sticker-ledger-go/internal/store"

	"go.uber.org/zap"
)

const maxWalletTypeLength = 32

// AddressValidator rejects addresses that are not well-formed for the chain.
type AddressValidator interface {
	Validate(address string) error
}

// AddressValidatorFunc adapts a plain function to AddressValidator.
type AddressValidatorFunc func(address string) error

func (f AddressValidatorFunc) Validate(address string) error { return f(address) }

// Registry links TON wallets to users. A user has at most one active wallet.
type Registry struct {
	store     store.WalletStore
	validator AddressValidator
}

func NewRegistry(walletStore store.WalletStore, validator AddressValidator) *Registry {
	return &Registry{store: walletStore, validator: validator}
}

// LinkWallet makes address the user's active wallet. Relinking a previously
// used address reactivates its row.
func (r *Registry) LinkWallet(ctx context.Context, userId int64, address, walletType string) (*models.UserWallet, error) {
	if userId <= 0 {
		return nil, store.NewValidationError("user_id", "must be positive")
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, store.NewValidationError("wallet_address", "must not be empty")
	}
	if len(walletType) > maxWalletTypeLength {
		return nil, store.NewValidationError("wallet_type", "too long")
	}
	if r.validator != nil {
		if err := r.validator.Validate(address); err != nil {
			zap.L().Warn("Rejected wallet address",
				zap.Int64("user_id", userId),
				zap.String("address", address),
				zap.Error(err))
			var verr *store.ValidationError
			if errors.As(err, &verr) {
				return nil, err
			}
			return nil, store.NewValidationError("wallet_address", err.Error())
		}
	}

	return r.store.ReplaceActiveWallet(ctx, userId, address, walletType)
}

// GetActiveWallet returns store.ErrWalletNotFound when the user has none.
func (r *Registry) GetActiveWallet(ctx context.Context, userId int64) (*models.UserWallet, error) {
	return r.store.GetActiveWallet(ctx, userId)
}

// HasActiveWallet reports false on any lookup failure.
func (r *Registry) HasActiveWallet(ctx context.Context, userId int64) bool {
	_, err := r.store.GetActiveWallet(ctx, userId)
	if err != nil {
		if !errors.Is(err, store.ErrWalletNotFound) {
			zap.L().Error("Failed to check active wallet", zap.Int64("user_id", userId), zap.Error(err))
		}
		return false
	}
	return true
}

func (r *Registry) ListWallets(ctx context.Context, userId int64) ([]models.UserWallet, error) {
	return r.store.ListWallets(ctx, userId)
}
