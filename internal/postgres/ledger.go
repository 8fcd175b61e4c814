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

const entryColumns = `id, user_id, rule_code, direction, delta, balance_after, metadata, external_id, performed_by, created_at`

func scanEntry(row pgx.Row) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	var ruleCode, externalId *string
	var direction string
	var metadata []byte
	err := row.Scan(&entry.Id, &entry.UserId, &ruleCode, &direction, &entry.Delta, &entry.BalanceAfter,
		&metadata, &externalId, &entry.PerformedBy, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	entry.RuleCode = derefString(ruleCode)
	entry.Direction = models.Direction(direction)
	entry.Metadata = metadata
	entry.ExternalId = derefString(externalId)
	return &entry, nil
}

// AppendEntry locks the user's balance row, checks the resulting balance and
// records the entry in one transaction
func (s *Service) AppendEntry(ctx context.Context, params store.AppendEntryParams) (*models.LedgerEntry, error) {
	zap.L().Info("Appending ledger entry",
		zap.Int64("user_id", params.UserId),
		zap.String("rule_code", params.RuleCode),
		zap.Int64("delta", params.Delta),
		zap.String("external_id", params.ExternalId))

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO user_balances (user_id, balance, version) VALUES ($1, 0, 1)
		ON CONFLICT (user_id) DO NOTHING`, params.UserId); err != nil {
		return nil, fmt.Errorf("failed to create user balance: %w", err)
	}

	var currentBalance, version int64
	err = tx.QueryRow(ctx, `SELECT balance, version FROM user_balances WHERE user_id = $1 FOR UPDATE`, params.UserId).
		Scan(&currentBalance, &version)
	if err != nil {
		return nil, fmt.Errorf("failed to lock balance: %w", err)
	}

	newBalance := currentBalance + params.Delta
	if newBalance < 0 {
		zap.L().Warn("Rejected ledger entry: insufficient balance",
			zap.Int64("user_id", params.UserId),
			zap.Int64("balance", currentBalance),
			zap.Int64("delta", params.Delta))
		return nil, &store.InsufficientBalanceError{UserId: params.UserId, Balance: currentBalance, Delta: params.Delta}
	}

	entry, err := scanEntry(tx.QueryRow(ctx, `
		INSERT INTO ledger_entries (user_id, rule_code, direction, delta, balance_after, metadata, external_id, performed_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+entryColumns,
		params.UserId, optionalString(params.RuleCode), string(params.Direction), params.Delta, newBalance,
		metadataText(params.Metadata), optionalString(params.ExternalId), params.PerformedBy))
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: rule %s external id %s", store.ErrDuplicateEntry, params.RuleCode, params.ExternalId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE user_balances
		SET balance = $1, last_entry_id = $2, version = version + 1, updated_at = NOW()
		WHERE user_id = $3 AND version = $4`,
		newBalance, entry.Id, params.UserId, version)
	if err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("balance update failed - %w", store.ErrConcurrentModification)
	}

	if err := tx.Commit(ctx); err != nil {
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
	entry, err := scanEntry(s.pool.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE rule_code = $1 AND external_id = $2`, ruleCode, externalId))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up entry by external id: %w", err)
	}
	return entry, nil
}

func (s *Service) GetBalance(ctx context.Context, userId int64) (int64, error) {
	var balance int64
	err := s.pool.QueryRow(ctx, `SELECT balance FROM user_balances WHERE user_id = $1`, userId).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

func (s *Service) SumDeltas(ctx context.Context, userId int64) (int64, error) {
	var sum int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(SUM(delta), 0)::BIGINT FROM ledger_entries WHERE user_id = $1`, userId).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to calculate balance from entries: %w", err)
	}
	return sum, nil
}

func (s *Service) GetEntries(ctx context.Context, userId int64, limit, offset int) ([]models.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2 OFFSET $3`, userId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func (s *Service) ListBalances(ctx context.Context) ([]models.UserBalance, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id, balance, version, updated_at FROM user_balances ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	defer rows.Close()

	var balances []models.UserBalance
	for rows.Next() {
		var balance models.UserBalance
		if err := rows.Scan(&balance.UserId, &balance.Balance, &balance.Version, &balance.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		balances = append(balances, balance)
	}
	return balances, rows.Err()
}
