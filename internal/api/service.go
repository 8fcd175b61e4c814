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
	"fmt"

	"sticker-ledger-go/internal/confirmation"
	"sticker-ledger-go/internal/intent"
	"sticker-ledger-go/internal/ledger"
	"sticker-ledger-go/internal/models"
	"sticker-ledger-go/internal/rules"
	"sticker-ledger-go/internal/wallet"
)

// Backend is the part of the store the facade reads directly.
type Backend interface {
	Ping(ctx context.Context) error
	GetBlockchainTransactions(ctx context.Context, intentId int64) ([]models.BlockchainTransaction, error)
}

// LedgerService is the facade exposed to the bot and web handlers
type LedgerService struct {
	store         Backend
	catalog       *rules.Catalog
	ledger        *ledger.Engine
	wallets       *wallet.Registry
	intents       *intent.Engine
	confirmations *confirmation.Engine
}

func NewLedgerService(
	backend Backend,
	catalog *rules.Catalog,
	ledgerEngine *ledger.Engine,
	wallets *wallet.Registry,
	intents *intent.Engine,
	confirmations *confirmation.Engine,
) *LedgerService {
	return &LedgerService{
		store:         backend,
		catalog:       catalog,
		ledger:        ledgerEngine,
		wallets:       wallets,
		intents:       intents,
		confirmations: confirmations,
	}
}

func (s *LedgerService) HealthCheck(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
