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
	"context"
	"encoding/json"

	"sticker-ledger-go/internal/intent"
	"sticker-ledger-go/internal/models"
	"sticker-ledger-go/internal/store"
	"sticker-ledger-go/internal/ton"

	"go.uber.org/zap"
)

// LinkWallet makes the address the user's only active TON wallet
func (s *LedgerService) LinkWallet(ctx context.Context, userId int64, address, walletType string) (*models.UserWallet, error) {
	linked, err := s.wallets.LinkWallet(ctx, userId, address, walletType)
	if err != nil {
		logFailure("Failed to link wallet", err, zap.Int64("user_id", userId))
		return nil, err
	}
	return linked, nil
}

// GetActiveWallet returns the user's active wallet or an error wrapping store.ErrWalletNotFound
func (s *LedgerService) GetActiveWallet(ctx context.Context, userId int64) (*models.UserWallet, error) {
	return s.wallets.GetActiveWallet(ctx, userId)
}

// HasActiveWallet reports whether the user can receive TON
func (s *LedgerService) HasActiveWallet(ctx context.Context, userId int64) bool {
	return s.wallets.HasActiveWallet(ctx, userId)
}

// PrepareDonation creates a DONATION intent from a decimal TON amount such as "1.5".
func (s *LedgerService) PrepareDonation(ctx context.Context, donorId, stickerSetId int64, amountTon string, metadata json.RawMessage) (*models.PreparedIntent, error) {
	amountNano, err := ton.ParseTon(amountTon)
	if err != nil {
		return nil, err
	}
	return s.CreateIntent(ctx, models.IntentTypeDonation, donorId, stickerSetId, amountNano, metadata)
}

// CreateIntent registers a TON transfer the client is about to perform and
// returns the per-leg transfer instructions.
func (s *LedgerService) CreateIntent(ctx context.Context, intentType models.IntentType, initiatorId, subjectId, amountNano int64, metadata json.RawMessage) (*models.PreparedIntent, error) {
	created, legs, err := s.intents.CreateIntent(ctx, intent.CreateParams{
		Type:            intentType,
		InitiatorUserId: initiatorId,
		SubjectEntityId: subjectId,
		AmountNano:      amountNano,
		Metadata:        metadata,
	})
	if err != nil {
		logFailure("Failed to create intent", err,
			zap.String("type", string(intentType)),
			zap.Int64("initiator_user_id", initiatorId),
			zap.Int64("subject_entity_id", subjectId))
		return nil, err
	}
	return toPreparedIntent(*created, legs), nil
}

// GetIntent returns an intent with its legs
func (s *LedgerService) GetIntent(ctx context.Context, intentId int64) (*models.PreparedIntent, error) {
	if intentId <= 0 {
		return nil, store.NewValidationError("intent_id", "must be positive")
	}

	found, err := s.intents.FindById(ctx, intentId)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, store.ErrIntentNotFound
	}

	legs, err := s.intents.GetLegsForIntent(ctx, intentId)
	if err != nil {
		return nil, err
	}
	return toPreparedIntent(*found, legs), nil
}

// GetTransactionAttempts returns the audit rows of every hash submitted for the intent
func (s *LedgerService) GetTransactionAttempts(ctx context.Context, intentId int64) ([]models.BlockchainTransaction, error) {
	if intentId <= 0 {
		return nil, store.NewValidationError("intent_id", "must be positive")
	}
	return s.store.GetBlockchainTransactions(ctx, intentId)
}

// MarkSent records that the user claims to have submitted the transfer
func (s *LedgerService) MarkSent(ctx context.Context, intentId int64) (*models.PreparedIntent, error) {
	updated, err := s.intents.MarkSent(ctx, intentId)
	if err != nil {
		logFailure("Failed to mark intent sent", err, zap.Int64("intent_id", intentId))
		return nil, err
	}

	legs, err := s.intents.GetLegsForIntent(ctx, intentId)
	if err != nil {
		return nil, err
	}
	return toPreparedIntent(*updated, legs), nil
}

// Confirm verifies the submitted transaction hash on chain and settles the intent.
func (s *LedgerService) Confirm(ctx context.Context, intentId int64, txHash, fromWallet string) (*models.ConfirmationResult, error) {
	result, err := s.confirmations.Confirm(ctx, intentId, txHash, fromWallet)
	if err != nil {
		logFailure("Failed to confirm intent", err,
			zap.Int64("intent_id", intentId),
			zap.String("tx_hash", txHash))
		return nil, err
	}
	return result, nil
}

func toPreparedIntent(i models.TransactionIntent, legs []models.TransactionLeg) *models.PreparedIntent {
	instructions := make([]models.LegInstruction, len(legs))
	for idx, leg := range legs {
		instructions[idx] = models.LegInstruction{
			LegType:       leg.LegType,
			WalletAddress: leg.ToWalletAddress,
			AmountNano:    leg.AmountNano,
			AmountTon:     ton.FormatNano(leg.AmountNano),
		}
	}

	return &models.PreparedIntent{
		IntentId:   i.Id,
		Reference:  i.Reference,
		Status:     i.Status,
		AmountNano: i.AmountNano,
		AmountTon:  ton.FormatNano(i.AmountNano),
		Currency:   i.Currency,
		Legs:       instructions,
	}
}
