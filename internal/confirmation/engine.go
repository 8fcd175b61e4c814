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

package confirmation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sticker-ledger-go/internal/models"
	"sticker-ledger-go/internal/store"
	"sticker-ledger-go/internal/ton"

	"go.uber.org/zap"
)

const (
	defaultVerifyTimeout = 30 * time.Second
	maxTxHashLength      = 128

	messageConfirmed        = "Transaction confirmed successfully"
	messageFailed           = "Transaction failed verification"
	messageAlreadyProcessed = "Transaction already processed by a concurrent attempt"
)

// ChainVerifier checks a claimed transfer against the blockchain. A non-nil
// error means the chain could not be queried, not that the transfer is invalid.
type ChainVerifier interface {
	Verify(ctx context.Context, txHash, from, to string, amountNano int64) (bool, error)
}

// Recorder receives confirmed intents, e.g. to mirror them into an external ledger.
type Recorder interface {
	RecordConfirmation(ctx context.Context, intent models.TransactionIntent, legs []models.TransactionLeg, tx models.BlockchainTransaction) error
}

// Engine settles transaction intents from user-submitted transaction hashes
type Engine struct {
	store         store.IntentStore
	verifier      ChainVerifier
	verifyTimeout time.Duration
	recorder      Recorder
}

func NewEngine(intentStore store.IntentStore, verifier ChainVerifier, verifyTimeout time.Duration) *Engine {
	if verifyTimeout <= 0 {
		verifyTimeout = defaultVerifyTimeout
	}
	return &Engine{store: intentStore, verifier: verifier, verifyTimeout: verifyTimeout}
}

// SetRecorder installs a post-commit hook for confirmed intents. Failures are logged only.
func (e *Engine) SetRecorder(recorder Recorder) { e.recorder = recorder }

// Confirm verifies the claimed transfer and moves the intent to CONFIRMED or
// FAILED together with the audit row. When the chain cannot be queried
// nothing is recorded and the call may be retried with the same hash.
func (e *Engine) Confirm(ctx context.Context, intentId int64, txHash, fromWallet string) (*models.ConfirmationResult, error) {
	txHash = strings.TrimSpace(txHash)
	fromWallet = strings.TrimSpace(fromWallet)

	zap.L().Info("Confirming transaction",
		zap.Int64("intent_id", intentId),
		zap.String("tx_hash", txHash),
		zap.String("from_wallet", fromWallet))

	if intentId <= 0 {
		return nil, store.NewValidationError("intent_id", "must be positive")
	}
	if txHash == "" {
		return nil, store.NewValidationError("tx_hash", "must not be empty")
	}
	if len(txHash) > maxTxHashLength {
		return nil, store.NewValidationError("tx_hash", "too long")
	}
	canonical, err := ton.CanonicalHash(txHash)
	if err != nil {
		return nil, err
	}
	txHash = canonical

	intent, err := e.store.GetIntent(ctx, intentId)
	if err != nil {
		return nil, err
	}
	if !intent.Status.Confirmable() {
		zap.L().Warn("Intent can no longer be confirmed",
			zap.Int64("intent_id", intentId),
			zap.String("status", string(intent.Status)))
		return nil, &store.InvalidStateTransitionError{IntentId: intentId, From: intent.Status}
	}

	legs, err := e.store.GetLegs(ctx, intentId)
	if err != nil {
		return nil, err
	}
	main, ok := models.MainLeg(legs)
	if !ok {
		zap.L().Error("Intent has no legs", zap.Int64("intent_id", intentId))
		return nil, &store.IntegrityError{IntentId: intentId, Reason: "intent has no legs"}
	}

	exists, err := e.store.TxHashExists(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if exists {
		zap.L().Warn("Transaction hash already used", zap.Int64("intent_id", intentId), zap.String("tx_hash", txHash))
		return nil, fmt.Errorf("%w: %s", store.ErrDuplicateTransaction, txHash)
	}

	verified, err := e.verify(ctx, txHash, fromWallet, main)
	if err != nil {
		zap.L().Warn("Chain verifier unavailable, intent left unchanged",
			zap.Int64("intent_id", intentId),
			zap.String("tx_hash", txHash),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", store.ErrVerifierUnavailable, err)
	}

	newStatus := models.IntentStatusFailed
	if verified {
		newStatus = models.IntentStatusConfirmed
	}

	recorded, err := e.store.RecordConfirmation(ctx, store.RecordConfirmationParams{
		Transaction: models.BlockchainTransaction{
			IntentId:   intentId,
			TxHash:     txHash,
			FromWallet: fromWallet,
			ToWallet:   main.ToWalletAddress,
			AmountNano: main.AmountNano,
			Currency:   intent.Currency,
			Verified:   verified,
		},
		NewStatus: newStatus,
	})
	switch {
	case errors.Is(err, store.ErrDuplicateTransaction):
		return e.resolveLostRace(ctx, intentId, txHash, err)
	case errors.Is(err, store.ErrConcurrentModification):
		reloaded, reloadErr := e.store.GetIntent(ctx, intentId)
		if reloadErr != nil {
			return nil, reloadErr
		}
		return nil, &store.InvalidStateTransitionError{IntentId: intentId, From: reloaded.Status}
	case err != nil:
		zap.L().Error("Failed to record confirmation", zap.Int64("intent_id", intentId), zap.Error(err))
		return nil, err
	}

	if verified && e.recorder != nil {
		intent.Status = newStatus
		if err := e.recorder.RecordConfirmation(ctx, *intent, legs, *recorded); err != nil {
			zap.L().Warn("Failed to mirror confirmed intent",
				zap.Int64("intent_id", intentId),
				zap.Error(err))
		}
	}

	result := &models.ConfirmationResult{
		IntentId: intentId,
		Status:   newStatus,
		TxHash:   txHash,
		Success:  verified,
		Message:  messageFailed,
	}
	if verified {
		result.Message = messageConfirmed
	}

	zap.L().Info("Transaction confirmation processed",
		zap.Int64("intent_id", intentId),
		zap.String("status", string(newStatus)),
		zap.Bool("verified", verified))
	return result, nil
}

func (e *Engine) verify(ctx context.Context, txHash, fromWallet string, leg models.TransactionLeg) (bool, error) {
	verifyCtx, cancel := context.WithTimeout(ctx, e.verifyTimeout)
	defer cancel()
	return e.verifier.Verify(verifyCtx, txHash, fromWallet, leg.ToWalletAddress, leg.AmountNano)
}

// resolveLostRace handles a hash that was recorded between the pre-check and the insert.
func (e *Engine) resolveLostRace(ctx context.Context, intentId int64, txHash string, cause error) (*models.ConfirmationResult, error) {
	reloaded, err := e.store.GetIntent(ctx, intentId)
	if err != nil {
		return nil, err
	}
	if !reloaded.Status.IsTerminal() {
		return nil, cause
	}

	zap.L().Info("Confirmation already processed by a concurrent attempt",
		zap.Int64("intent_id", intentId),
		zap.String("tx_hash", txHash),
		zap.String("status", string(reloaded.Status)))
	return &models.ConfirmationResult{
		IntentId:         intentId,
		Status:           reloaded.Status,
		TxHash:           txHash,
		Success:          reloaded.Status == models.IntentStatusConfirmed,
		AlreadyProcessed: true,
		Message:          messageAlreadyProcessed,
	}, nil
}
