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

func scanWallet(row rowScanner) (*models.UserWallet, error) {
	var wallet models.UserWallet
	var walletType sql.NullString
	err := row.Scan(&wallet.Id, &wallet.UserId, &wallet.WalletAddress, &walletType, &wallet.IsActive, &wallet.CreatedAt)
	if err != nil {
		return nil, err
	}
	wallet.WalletType = walletType.String
	return &wallet, nil
}

func (s *Service) ReplaceActiveWallet(ctx context.Context, userId int64, address, walletType string) (*models.UserWallet, error) {
	zap.L().Info("Linking wallet",
		zap.Int64("user_id", userId),
		zap.String("address", address),
		zap.String("wallet_type", walletType))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	deactivated, err := tx.ExecContext(ctx, queryDeactivateWallets, userId)
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate wallets: %w", err)
	}

	result, err := tx.ExecContext(ctx, queryReactivateWallet, nullString(walletType), userId, address)
	if err != nil {
		return nil, fmt.Errorf("failed to reactivate wallet: %w", err)
	}
	reactivated, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if reactivated == 0 {
		if _, err := tx.ExecContext(ctx, queryInsertWallet, userId, address, nullString(walletType), time.Now().UTC()); err != nil {
			return nil, fmt.Errorf("failed to insert wallet: %w", err)
		}
	}

	wallet, err := scanWallet(tx.QueryRowContext(ctx, queryGetActiveWallet, userId))
	if err != nil {
		return nil, fmt.Errorf("failed to reload active wallet: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	previous, _ := deactivated.RowsAffected()
	zap.L().Info("Wallet linked",
		zap.Int64("user_id", userId),
		zap.Int64("wallet_id", wallet.Id),
		zap.Bool("reactivated", reactivated > 0),
		zap.Int64("deactivated", previous))
	return wallet, nil
}

func (s *Service) GetActiveWallet(ctx context.Context, userId int64) (*models.UserWallet, error) {
	wallet, err := scanWallet(s.db.QueryRowContext(ctx, queryGetActiveWallet, userId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %d", store.ErrWalletNotFound, userId)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to get active wallet: %w", err)
	}
	return wallet, nil
}

func (s *Service) ListWallets(ctx context.Context, userId int64) ([]models.UserWallet, error) {
	rows, err := s.db.QueryContext(ctx, queryListWallets, userId)
	if err != nil {
		return nil, fmt.Errorf("unable to query wallets: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var wallets []models.UserWallet
	for rows.Next() {
		wallet, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan wallet row: %w", err)
		}
		wallets = append(wallets, *wallet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wallet rows: %w", err)
	}
	return wallets, nil
}
