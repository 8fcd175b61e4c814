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

package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mattn/go-sqlite3"
)

const schema = `
	-- Reward Rules (Tariff Catalog)
	CREATE TABLE IF NOT EXISTS reward_rules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL UNIQUE,
		direction TEXT NOT NULL CHECK (direction IN ('CREDIT', 'DEBIT')),
		amount INTEGER NOT NULL CHECK (amount >= 0),
		is_enabled BOOLEAN NOT NULL DEFAULT 1,
		description TEXT NOT NULL DEFAULT '',
		metadata_schema TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	-- User Balances (Current State - Hot Data)
	CREATE TABLE IF NOT EXISTS user_balances (
		user_id INTEGER PRIMARY KEY,
		balance INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
		last_entry_id INTEGER,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP NOT NULL
	);

	-- Ledger Entries (Audit Trail - Cold Data, append-only)
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		rule_code TEXT,
		direction TEXT NOT NULL CHECK (direction IN ('CREDIT', 'DEBIT')),
		delta INTEGER NOT NULL CHECK (delta <> 0),
		balance_after INTEGER NOT NULL CHECK (balance_after >= 0),
		metadata TEXT NOT NULL DEFAULT '{}',
		external_id TEXT,
		performed_by INTEGER,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_entries_user_id ON ledger_entries(user_id, id);
	CREATE INDEX IF NOT EXISTS idx_ledger_entries_created_at ON ledger_entries(created_at);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_entries_rule_external
		ON ledger_entries(rule_code, external_id) WHERE external_id IS NOT NULL;

	-- Linked TON Wallets
	CREATE TABLE IF NOT EXISTS user_wallets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		wallet_address TEXT NOT NULL,
		wallet_type TEXT,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		UNIQUE(user_id, wallet_address)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_user_wallets_one_active ON user_wallets(user_id) WHERE is_active = 1;

	-- Transaction Intents
	CREATE TABLE IF NOT EXISTS transaction_intents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		intent_type TEXT NOT NULL,
		initiator_user_id INTEGER NOT NULL,
		subject_entity_id INTEGER NOT NULL,
		amount_nano INTEGER NOT NULL CHECK (amount_nano > 0),
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		reference TEXT NOT NULL UNIQUE,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transaction_intents_initiator ON transaction_intents(initiator_user_id);
	CREATE INDEX IF NOT EXISTS idx_transaction_intents_status ON transaction_intents(status);

	CREATE TABLE IF NOT EXISTS transaction_legs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		intent_id INTEGER NOT NULL REFERENCES transaction_intents(id),
		leg_type TEXT NOT NULL CHECK (leg_type IN ('MAIN', 'FEE')),
		to_entity_id INTEGER,
		to_wallet_address TEXT NOT NULL,
		amount_nano INTEGER NOT NULL CHECK (amount_nano > 0)
	);

	CREATE INDEX IF NOT EXISTS idx_transaction_legs_intent_id ON transaction_legs(intent_id);

	-- Blockchain Transactions (one row per submitted hash, globally unique)
	CREATE TABLE IF NOT EXISTS blockchain_transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		intent_id INTEGER NOT NULL REFERENCES transaction_intents(id),
		tx_hash TEXT NOT NULL UNIQUE,
		from_wallet TEXT NOT NULL,
		to_wallet TEXT NOT NULL,
		amount_nano INTEGER NOT NULL,
		currency TEXT NOT NULL,
		verified BOOLEAN NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_blockchain_transactions_intent_id ON blockchain_transactions(intent_id);
	`

func (s *Service) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func metadataText(raw []byte) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}
