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

package common

import (
	"context"
	"fmt"

	"sticker-ledger-go/internal/models"
	"sticker-ledger-go/internal/store"

	"go.uber.org/zap"
)

// SelectBalances returns the cached balance of one user when userFilter is
// positive, or of every user holding a balance row otherwise.
func SelectBalances(ctx context.Context, ledgerStore store.LedgerStore, userFilter int64, logger *zap.Logger) ([]models.UserBalance, error) {
	var balances []models.UserBalance

	if userFilter > 0 {
		logger.Info("Looking up user balance", zap.Int64("user_id", userFilter))
		balance, err := ledgerStore.GetBalance(ctx, userFilter)
		if err != nil {
			return nil, fmt.Errorf("failed to get balance for user %d: %w", userFilter, err)
		}
		balances = append(balances, models.UserBalance{UserId: userFilter, Balance: balance})
	} else {
		all, err := ledgerStore.ListBalances(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list balances: %w", err)
		}
		balances = all
	}

	logger.Info("Retrieved balances", zap.Int("count", len(balances)))
	return balances, nil
}
