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

package intent

import (
	"context"
	"fmt"

	"sticker-ledger-go/internal/models"
	"sticker-ledger-go/internal/store"

	"go.uber.org/zap"
)

const bpsDenominator = 10_000

// DestinationResolver decides where the TON of an intent goes.
type DestinationResolver interface {
	ResolveLegs(ctx context.Context, intentType models.IntentType, subjectEntityId, amountNano int64) ([]models.TransactionLeg, error)
}

// SubjectOwnerLookup maps a subject (e.g. a sticker set) to the user that receives payments for it.
type SubjectOwnerLookup interface {
	OwnerOf(ctx context.Context, subjectEntityId int64) (int64, error)
}

// OwnerLookupFunc adapts a plain function to SubjectOwnerLookup.
type OwnerLookupFunc func(ctx context.Context, subjectEntityId int64) (int64, error)

func (f OwnerLookupFunc) OwnerOf(ctx context.Context, subjectEntityId int64) (int64, error) {
	return f(ctx, subjectEntityId)
}

// WalletLookup returns a user's active wallet or store.ErrWalletNotFound.
type WalletLookup interface {
	GetActiveWallet(ctx context.Context, userId int64) (*models.UserWallet, error)
}

// OwnerWalletResolver pays the subject owner's active wallet, optionally
// splitting a platform fee into a separate FEE leg.
type OwnerWalletResolver struct {
	owners         SubjectOwnerLookup
	wallets        WalletLookup
	platformWallet string
	feeBps         int
}

func NewOwnerWalletResolver(owners SubjectOwnerLookup, wallets WalletLookup) *OwnerWalletResolver {
	return &OwnerWalletResolver{owners: owners, wallets: wallets}
}

// WithPlatformFee enables the FEE leg. A zero rate or empty wallet disables it.
func (r *OwnerWalletResolver) WithPlatformFee(platformWallet string, feeBps int) *OwnerWalletResolver {
	r.platformWallet = platformWallet
	r.feeBps = feeBps
	return r
}

func (r *OwnerWalletResolver) ResolveLegs(ctx context.Context, intentType models.IntentType, subjectEntityId, amountNano int64) ([]models.TransactionLeg, error) {
	ownerId, err := r.owners.OwnerOf(ctx, subjectEntityId)
	if err != nil {
		return nil, err
	}
	if ownerId <= 0 {
		return nil, fmt.Errorf("%w: subject %d has no owner", store.ErrNotFound, subjectEntityId)
	}

	wallet, err := r.wallets.GetActiveWallet(ctx, ownerId)
	if err != nil {
		zap.L().Warn("Subject owner has no active wallet",
			zap.String("type", string(intentType)),
			zap.Int64("subject_entity_id", subjectEntityId),
			zap.Int64("owner_id", ownerId),
			zap.Error(err))
		return nil, err
	}

	fee := r.fee(amountNano)
	owner := ownerId
	main := models.TransactionLeg{
		LegType:         models.LegTypeMain,
		ToEntityId:      &owner,
		ToWalletAddress: wallet.WalletAddress,
		AmountNano:      amountNano - fee,
	}
	if main.AmountNano <= 0 {
		return nil, store.NewValidationError("amount_nano", "too small to cover the platform fee")
	}

	legs := []models.TransactionLeg{main}
	if fee > 0 {
		legs = append(legs, models.TransactionLeg{
			LegType:         models.LegTypeFee,
			ToWalletAddress: r.platformWallet,
			AmountNano:      fee,
		})
	}
	return legs, nil
}

func (r *OwnerWalletResolver) fee(amountNano int64) int64 {
	if r.platformWallet == "" || r.feeBps <= 0 {
		return 0
	}
	bps := int64(r.feeBps)
	// floor(amount*bps/denominator) without overflowing the product
	return amountNano/bpsDenominator*bps + amountNano%bpsDenominator*bps/bpsDenominator
}
