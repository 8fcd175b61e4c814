package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sticker-ledger-go/internal/models"
	"sticker-ledger-go/internal/store"

	"go.uber.org/zap"
)

func scanIntent(row rowScanner) (*models.TransactionIntent, error) {
	var intent models.TransactionIntent
	var intentType, status, metadata string
	err := row.Scan(&intent.Id, &intentType, &intent.InitiatorUserId, &intent.SubjectEntityId, &intent.AmountNano,
		&intent.Currency, &status, &intent.Reference, &metadata, &intent.CreatedAt, &intent.UpdatedAt)
	if err != nil {
		return nil, err
	}
	intent.Type = models.IntentType(intentType)
	intent.Status = models.IntentStatus(status)
	intent.Metadata = []byte(metadata)
	return &intent, nil
}

// CreateIntent stores the intent first, then its legs, in one transaction
func (s *Service) CreateIntent(ctx context.Context, intent models.TransactionIntent, legs []models.TransactionLeg) (*models.TransactionIntent, []models.TransactionLeg, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	intent.Metadata = []byte(metadataText(intent.Metadata))
	intent.CreatedAt = now
	intent.UpdatedAt = now

	err = tx.QueryRowContext(ctx, queryInsertIntent,
		string(intent.Type), intent.InitiatorUserId, intent.SubjectEntityId, intent.AmountNano,
		intent.Currency, string(intent.Status), intent.Reference, string(intent.Metadata), now, now).
		Scan(&intent.Id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert intent: %w", err)
	}

	stored := make([]models.TransactionLeg, len(legs))
	for i, leg := range legs {
		leg.IntentId = intent.Id
		err := tx.QueryRowContext(ctx, queryInsertLeg,
			intent.Id, string(leg.LegType), nullInt64(leg.ToEntityId), leg.ToWalletAddress, leg.AmountNano).
			Scan(&leg.Id)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to insert %s leg: %w", leg.LegType, err)
		}
		stored[i] = leg
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Intent stored",
		zap.Int64("intent_id", intent.Id),
		zap.String("type", string(intent.Type)),
		zap.Int64("amount_nano", intent.AmountNano),
		zap.Int("legs", len(stored)))
	return &intent, stored, nil
}

func (s *Service) GetIntent(ctx context.Context, id int64) (*models.TransactionIntent, error) {
	intent, err := scanIntent(s.db.QueryRowContext(ctx, queryGetIntent, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", store.ErrIntentNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to get intent %d: %w", id, err)
	}
	return intent, nil
}

func (s *Service) GetLegs(ctx context.Context, intentId int64) ([]models.TransactionLeg, error) {
	rows, err := s.db.QueryContext(ctx, queryGetLegs, intentId)
	if err != nil {
		return nil, fmt.Errorf("unable to query legs: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var legs []models.TransactionLeg
	for rows.Next() {
		var leg models.TransactionLeg
		var legType string
		var toEntity sql.NullInt64
		if err := rows.Scan(&leg.Id, &leg.IntentId, &legType, &toEntity, &leg.ToWalletAddress, &leg.AmountNano); err != nil {
			return nil, fmt.Errorf("unable to scan leg row: %w", err)
		}
		leg.LegType = models.LegType(legType)
		leg.ToEntityId = int64Ptr(toEntity)
		legs = append(legs, leg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leg rows: %w", err)
	}
	return legs, nil
}

func (s *Service) CompareAndSetStatus(ctx context.Context, id int64, from, to models.IntentStatus) error {
	result, err := s.db.ExecContext(ctx, queryCompareAndSetStatus, string(to), time.Now().UTC(), id, string(from))
	if err != nil {
		return fmt.Errorf("failed to update intent status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, queryIntentExists, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %d", store.ErrIntentNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("unable to check intent %d: %w", id, err)
	}
	return fmt.Errorf("intent %d is no longer %s - %w", id, from, store.ErrConcurrentModification)
}

func (s *Service) TxHashExists(ctx context.Context, txHash string) (bool, error) {
	var found int
	err := s.db.QueryRowContext(ctx, queryTxHashExists, txHash).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check transaction hash: %w", err)
	}
	return true, nil
}

func (s *Service) RecordConfirmation(ctx context.Context, params store.RecordConfirmationParams) (*models.BlockchainTransaction, error) {
	bt := params.Transaction

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	bt.CreatedAt = now
	err = tx.QueryRowContext(ctx, queryInsertBlockchainTx,
		bt.IntentId, bt.TxHash, bt.FromWallet, bt.ToWallet, bt.AmountNano, bt.Currency, bt.Verified, now).
		Scan(&bt.Id)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: %s", store.ErrDuplicateTransaction, bt.TxHash)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert blockchain transaction: %w", err)
	}

	result, err := tx.ExecContext(ctx, queryConfirmIntentStatus, string(params.NewStatus), now, bt.IntentId)
	if err != nil {
		return nil, fmt.Errorf("failed to update intent status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		zap.L().Warn("Confirmation attempt recorded for finalized intent",
			zap.Int64("intent_id", bt.IntentId),
			zap.String("tx_hash", bt.TxHash),
			zap.Bool("verified", bt.Verified))
		return nil, fmt.Errorf("intent %d already finalized - %w", bt.IntentId, store.ErrConcurrentModification)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Confirmation recorded",
		zap.Int64("intent_id", bt.IntentId),
		zap.String("tx_hash", bt.TxHash),
		zap.Bool("verified", bt.Verified),
		zap.String("status", string(params.NewStatus)))
	return &bt, nil
}

func (s *Service) GetBlockchainTransactions(ctx context.Context, intentId int64) ([]models.BlockchainTransaction, error) {
	rows, err := s.db.QueryContext(ctx, queryGetBlockchainTxs, intentId)
	if err != nil {
		return nil, fmt.Errorf("unable to query blockchain transactions: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var txs []models.BlockchainTransaction
	for rows.Next() {
		var bt models.BlockchainTransaction
		if err := rows.Scan(&bt.Id, &bt.IntentId, &bt.TxHash, &bt.FromWallet, &bt.ToWallet,
			&bt.AmountNano, &bt.Currency, &bt.Verified, &bt.CreatedAt); err != nil {
			return nil, fmt.Errorf("unable to scan blockchain transaction: %w", err)
		}
		txs = append(txs, bt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating blockchain transactions: %w", err)
	}
	return txs, nil
}
