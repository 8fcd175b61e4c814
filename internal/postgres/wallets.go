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

const walletColumns = `id, user_id, wallet_address, wallet_type, is_active, created_at`

func scanWallet(row pgx.Row) (*models.UserWallet, error) {
	var wallet models.UserWallet
	var walletType *string
	if err := row.Scan(&wallet.Id, &wallet.UserId, &wallet.WalletAddress, &walletType, &wallet.IsActive, &wallet.CreatedAt); err != nil {
		return nil, err
	}
	wallet.WalletType = derefString(walletType)
	return &wallet, nil
}

func (s *Service) ReplaceActiveWallet(ctx context.Context, userId int64, address, walletType string) (*models.UserWallet, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Serialize relinks of the same user
	if _, err := tx.Exec(ctx, `SELECT id FROM user_wallets WHERE user_id = $1 FOR UPDATE`, userId); err != nil {
		return nil, fmt.Errorf("failed to lock wallets: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE user_wallets SET is_active = FALSE WHERE user_id = $1 AND is_active`, userId); err != nil {
		return nil, fmt.Errorf("failed to deactivate wallets: %w", err)
	}

	wallet, err := scanWallet(tx.QueryRow(ctx, `
		INSERT INTO user_wallets (user_id, wallet_address, wallet_type, is_active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (user_id, wallet_address)
		DO UPDATE SET is_active = TRUE, wallet_type = COALESCE(EXCLUDED.wallet_type, user_wallets.wallet_type)
		RETURNING `+walletColumns, userId, address, optionalString(walletType)))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert wallet: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Wallet linked", zap.Int64("user_id", userId), zap.Int64("wallet_id", wallet.Id))
	return wallet, nil
}

func (s *Service) GetActiveWallet(ctx context.Context, userId int64) (*models.UserWallet, error) {
	wallet, err := scanWallet(s.pool.QueryRow(ctx, `
		SELECT `+walletColumns+`
		FROM user_wallets
		WHERE user_id = $1 AND is_active
		ORDER BY id DESC
		LIMIT 1`, userId))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %d", store.ErrWalletNotFound, userId)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to get active wallet: %w", err)
	}
	return wallet, nil
}

func (s *Service) ListWallets(ctx context.Context, userId int64) ([]models.UserWallet, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+walletColumns+`
		FROM user_wallets
		WHERE user_id = $1
		ORDER BY is_active DESC, id DESC`, userId)
	if err != nil {
		return nil, fmt.Errorf("unable to query wallets: %w", err)
	}
	defer rows.Close()

	var wallets []models.UserWallet
	for rows.Next() {
		wallet, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan wallet row: %w", err)
		}
		wallets = append(wallets, *wallet)
	}
	return wallets, rows.Err()
}
