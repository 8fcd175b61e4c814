package postgres

import (
	"context"
	"errors"
	"fmt"

	"sticker-ledger-go/internal/models"
	"sticker-ledger-go/internal/store"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const intentColumns = `id, intent_type, initiator_user_id, subject_entity_id, amount_nano, currency, status, reference, metadata, created_at, updated_at`

func scanIntent(row pgx.Row) (*models.TransactionIntent, error) {
	var intent models.TransactionIntent
	var intentType, status string
	var metadata []byte
	err := row.Scan(&intent.Id, &intentType, &intent.InitiatorUserId, &intent.SubjectEntityId, &intent.AmountNano,
		&intent.Currency, &status, &intent.Reference, &metadata, &intent.CreatedAt, &intent.UpdatedAt)
	if err != nil {
		return nil, err
	}
	intent.Type = models.IntentType(intentType)
	intent.Status = models.IntentStatus(status)
	intent.Metadata = metadata
	return &intent, nil
}

func (s *Service) CreateIntent(ctx context.Context, intent models.TransactionIntent, legs []models.TransactionLeg) (*models.TransactionIntent, []models.TransactionLeg, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	created, err := scanIntent(tx.QueryRow(ctx, `
		INSERT INTO transaction_intents (intent_type, initiator_user_id, subject_entity_id, amount_nano, currency, status, reference, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+intentColumns,
		string(intent.Type), intent.InitiatorUserId, intent.SubjectEntityId, intent.AmountNano,
		intent.Currency, string(intent.Status), intent.Reference, metadataText(intent.Metadata)))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert intent: %w", err)
	}

	stored := make([]models.TransactionLeg, len(legs))
	for i, leg := range legs {
		leg.IntentId = created.Id
		err := tx.QueryRow(ctx, `
			INSERT INTO transaction_legs (intent_id, leg_type, to_entity_id, to_wallet_address, amount_nano)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			created.Id, string(leg.LegType), leg.ToEntityId, leg.ToWalletAddress, leg.AmountNano).Scan(&leg.Id)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to insert %s leg: %w", leg.LegType, err)
		}
		stored[i] = leg
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Intent stored",
		zap.Int64("intent_id", created.Id),
		zap.String("type", string(created.Type)),
		zap.Int64("amount_nano", created.AmountNano),
		zap.Int("legs", len(stored)))
	return created, stored, nil
}

func (s *Service) GetIntent(ctx context.Context, id int64) (*models.TransactionIntent, error) {
	intent, err := scanIntent(s.pool.QueryRow(ctx, `SELECT `+intentColumns+` FROM transaction_intents WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", store.ErrIntentNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to get intent %d: %w", id, err)
	}
	return intent, nil
}

func (s *Service) GetLegs(ctx context.Context, intentId int64) ([]models.TransactionLeg, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, intent_id, leg_type, to_entity_id, to_wallet_address, amount_nano
		FROM transaction_legs
		WHERE intent_id = $1
		ORDER BY id`, intentId)
	if err != nil {
		return nil, fmt.Errorf("unable to query legs: %w", err)
	}
	defer rows.Close()

	var legs []models.TransactionLeg
	for rows.Next() {
		var leg models.TransactionLeg
		var legType string
		if err := rows.Scan(&leg.Id, &leg.IntentId, &legType, &leg.ToEntityId, &leg.ToWalletAddress, &leg.AmountNano); err != nil {
			return nil, fmt.Errorf("unable to scan leg row: %w", err)
		}
		leg.LegType = models.LegType(legType)
		legs = append(legs, leg)
	}
	return legs, rows.Err()
}

func (s *Service) CompareAndSetStatus(ctx context.Context, id int64, from, to models.IntentStatus) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE transaction_intents SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`, string(to), id, string(from))
	if err != nil {
		return fmt.Errorf("failed to update intent status: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transaction_intents WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("unable to check intent %d: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("%w: %d", store.ErrIntentNotFound, id)
	}
	return fmt.Errorf("intent %d is no longer %s - %w", id, from, store.ErrConcurrentModification)
}

func (s *Service) TxHashExists(ctx context.Context, txHash string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM blockchain_transactions WHERE tx_hash = $1)`, txHash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check transaction hash: %w", err)
	}
	return exists, nil
}

func (s *Service) RecordConfirmation(ctx context.Context, params store.RecordConfirmationParams) (*models.BlockchainTransaction, error) {
	bt := params.Transaction

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO blockchain_transactions (intent_id, tx_hash, from_wallet, to_wallet, amount_nano, currency, verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		bt.IntentId, bt.TxHash, bt.FromWallet, bt.ToWallet, bt.AmountNano, bt.Currency, bt.Verified).
		Scan(&bt.Id, &bt.CreatedAt)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: %s", store.ErrDuplicateTransaction, bt.TxHash)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert blockchain transaction: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE transaction_intents SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status IN ('CREATED', 'SENT')`, string(params.NewStatus), bt.IntentId)
	if err != nil {
		return nil, fmt.Errorf("failed to update intent status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		zap.L().Warn("Confirmation attempt recorded for finalized intent",
			zap.Int64("intent_id", bt.IntentId),
			zap.String("tx_hash", bt.TxHash),
			zap.Bool("verified", bt.Verified))
		return nil, fmt.Errorf("intent %d already finalized - %w", bt.IntentId, store.ErrConcurrentModification)
	}

	if err := tx.Commit(ctx); err != nil {
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
	rows, err := s.pool.Query(ctx, `
		SELECT id, intent_id, tx_hash, from_wallet, to_wallet, amount_nano, currency, verified, created_at
		FROM blockchain_transactions
		WHERE intent_id = $1
		ORDER BY id`, intentId)
	if err != nil {
		return nil, fmt.Errorf("unable to query blockchain transactions: %w", err)
	}
	defer rows.Close()

	var txs []models.BlockchainTransaction
	for rows.Next() {
		var bt models.BlockchainTransaction
		if err := rows.Scan(&bt.Id, &bt.IntentId, &bt.TxHash, &bt.FromWallet, &bt.ToWallet,
			&bt.AmountNano, &bt.Currency, &bt.Verified, &bt.CreatedAt); err != nil {
			return nil, fmt.Errorf("unable to scan blockchain transaction: %w", err)
		}
		txs = append(txs, bt)
	}
	return txs, rows.Err()
}
