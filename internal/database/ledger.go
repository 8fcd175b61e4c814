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

func scanEntry(row rowScanner) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	var ruleCode, externalId sql.NullString
	var performedBy sql.NullInt64
	var direction, metadata string
	err := row.Scan(&entry.Id, &entry.UserId, &ruleCode, &direction, &entry.Delta, &entry.BalanceAfter,
		&metadata, &externalId, &performedBy, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	entry.RuleCode = ruleCode.String
	entry.Direction = models.Direction(direction)
	entry.Metadata = []byte(metadata)
	entry.ExternalId = externalId.String
	entry.PerformedBy = int64Ptr(performedBy)
	return &entry, nil
}

// AppendEntry atomically updates the cached balance and records the entry
func (s *Service) AppendEntry(ctx context.Context, params store.AppendEntryParams) (*models.LedgerEntry, error) {
	zap.L().Info("Appending ledger entry",
		zap.Int64("user_id", params.UserId),
		zap.String("rule_code", params.RuleCode),
		zap.Int64("delta", params.Delta),
		zap.String("external_id", params.ExternalId))

	// BEGIN IMMEDIATE (see dsn) takes the write lock up front
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	var currentBalance, version int64
	err = tx.QueryRowContext(ctx, queryGetUserBalance, params.UserId).Scan(&currentBalance, &version)
	if errors.Is(err, sql.ErrNoRows) {
		currentBalance = 0
		version = 1
		if _, err := tx.ExecContext(ctx, queryInsertUserBalance, params.UserId, now); err != nil {
			return nil, fmt.Errorf("failed to create user balance: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to get current balance: %w", err)
	}

	newBalance := currentBalance + params.Delta
	if newBalance < 0 {
		zap.L().Warn("Rejected ledger entry: insufficient balance",
			zap.Int64("user_id", params.UserId),
			zap.Int64("balance", currentBalance),
			zap.Int64("delta", params.Delta))
		return nil, &store.InsufficientBalanceError{UserId: params.UserId, Balance: currentBalance, Delta: params.Delta}
	}

	entry := &models.LedgerEntry{
		UserId:       params.UserId,
		RuleCode:     params.RuleCode,
		Direction:    params.Direction,
		Delta:        params.Delta,
		BalanceAfter: newBalance,
		Metadata:     []byte(metadataText(params.Metadata)),
		ExternalId:   params.ExternalId,
		PerformedBy:  params.PerformedBy,
		CreatedAt:    now,
	}
	err = tx.QueryRowContext(ctx, queryInsertLedgerEntry,
		params.UserId, nullString(params.RuleCode), string(params.Direction), params.Delta, newBalance,
		metadataText(params.Metadata), nullString(params.ExternalId), nullInt64(params.PerformedBy), now).
		Scan(&entry.Id)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: rule %s external id %s", store.ErrDuplicateEntry, params.RuleCode, params.ExternalId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	// Update cached balance (with optimistic locking)
	result, err := tx.ExecContext(ctx, queryUpdateUserBalance, newBalance, entry.Id, now, params.UserId, version)
	if err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("balance update failed - %w", store.ErrConcurrentModification)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Ledger entry appended",
		zap.Int64("entry_id", entry.Id),
		zap.Int64("user_id", params.UserId),
		zap.Int64("old_balance", currentBalance),
		zap.Int64("new_balance", newBalance))

	return entry, nil
}

func (s *Service) FindEntryByExternalId(ctx context.Context, ruleCode, externalId string) (*models.LedgerEntry, error) {
	entry, err := scanEntry(s.db.QueryRowContext(ctx, queryFindEntryByExternalId, ruleCode, externalId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up entry by external id: %w", err)
	}
	return entry, nil
}

// GetBalance returns the cached balance for a user (O(1) lookup)
func (s *Service) GetBalance(ctx context.Context, userId int64) (int64, error) {
	zap.L().Debug("Getting balance", zap.Int64("user_id", userId))

	var balance, version int64
	err := s.db.QueryRowContext(ctx, queryGetUserBalance, userId).Scan(&balance, &version)
	if errors.Is(err, sql.ErrNoRows) {
		// No balance record means zero balance
		return 0, nil
	}
	if err != nil {
		zap.L().Error("Failed to get balance", zap.Int64("user_id", userId), zap.Error(err))
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

func (s *Service) SumDeltas(ctx context.Context, userId int64) (int64, error) {
	var sum int64
	if err := s.db.QueryRowContext(ctx, querySumDeltas, userId).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to calculate balance from entries: %w", err)
	}
	return sum, nil
}

// GetEntries returns entries newest first
func (s *Service) GetEntries(ctx context.Context, userId int64, limit, offset int) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, queryGetEntries, userId, limit, offset)
	if err != nil {
		zap.L().Error("Failed to get ledger entries", zap.Int64("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var entries []models.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}
	return entries, nil
}

func (s *Service) ListBalances(ctx context.Context) ([]models.UserBalance, error) {
	rows, err := s.db.QueryContext(ctx, queryListUserBalances)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var balances []models.UserBalance
	for rows.Next() {
		var balance models.UserBalance
		if err := rows.Scan(&balance.UserId, &balance.Balance, &balance.Version, &balance.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		balances = append(balances, balance)
	}
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during balance row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating balance rows: %w", err)
	}
	return balances, nil
}
