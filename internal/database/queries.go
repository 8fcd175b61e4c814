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

const (
	// Rule queries
	ruleColumns = `id, code, direction, amount, is_enabled, description, metadata_schema, created_at, updated_at`

	queryListRules = `
		SELECT ` + ruleColumns + `
		FROM reward_rules
		ORDER BY code`

	queryGetRuleByCode = `
		SELECT ` + ruleColumns + `
		FROM reward_rules
		WHERE code = ?`

	queryInsertRule = `
		INSERT INTO reward_rules (code, direction, amount, is_enabled, description, metadata_schema, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`

	queryUpdateRule = `
		UPDATE reward_rules
		SET code = ?, direction = ?, amount = ?, is_enabled = ?, description = ?, metadata_schema = ?, updated_at = ?
		WHERE id = ?`

	queryGetRuleById = `
		SELECT ` + ruleColumns + `
		FROM reward_rules
		WHERE id = ?`

	querySetRuleEnabled = `
		UPDATE reward_rules SET is_enabled = ?, updated_at = ? WHERE code = ?`

	// Balance queries
	queryGetUserBalance = `
		SELECT balance, version
		FROM user_balances
		WHERE user_id = ?`

	queryInsertUserBalance = `
		INSERT INTO user_balances (user_id, balance, version, updated_at)
		VALUES (?, 0, 1, ?)`

	queryUpdateUserBalance = `
		UPDATE user_balances
		SET balance = ?, last_entry_id = ?, version = version + 1, updated_at = ?
		WHERE user_id = ? AND version = ?`

	queryListUserBalances = `
		SELECT user_id, balance, version, updated_at
		FROM user_balances
		ORDER BY user_id`

	querySumDeltas = `
		SELECT COALESCE(SUM(delta), 0)
		FROM ledger_entries
		WHERE user_id = ?`

	// Ledger entry queries
	entryColumns = `id, user_id, rule_code, direction, delta, balance_after, metadata, external_id, performed_by, created_at`

	queryInsertLedgerEntry = `
		INSERT INTO ledger_entries (user_id, rule_code, direction, delta, balance_after, metadata, external_id, performed_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`

	queryFindEntryByExternalId = `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE rule_code = ? AND external_id = ?`

	queryGetEntries = `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ? OFFSET ?`

	// Wallet queries
	walletColumns = `id, user_id, wallet_address, wallet_type, is_active, created_at`

	queryDeactivateWallets = `
		UPDATE user_wallets SET is_active = 0 WHERE user_id = ? AND is_active = 1`

	queryReactivateWallet = `
		UPDATE user_wallets
		SET is_active = 1, wallet_type = COALESCE(?, wallet_type)
		WHERE user_id = ? AND wallet_address = ?`

	queryInsertWallet = `
		INSERT INTO user_wallets (user_id, wallet_address, wallet_type, is_active, created_at)
		VALUES (?, ?, ?, 1, ?)`

	queryGetActiveWallet = `
		SELECT ` + walletColumns + `
		FROM user_wallets
		WHERE user_id = ? AND is_active = 1
		ORDER BY id DESC
		LIMIT 1`

	queryListWallets = `
		SELECT ` + walletColumns + `
		FROM user_wallets
		WHERE user_id = ?
		ORDER BY is_active DESC, id DESC`

	// Intent queries
	intentColumns = `id, intent_type, initiator_user_id, subject_entity_id, amount_nano, currency, status, reference, metadata, created_at, updated_at`

	queryInsertIntent = `
		INSERT INTO transaction_intents (intent_type, initiator_user_id, subject_entity_id, amount_nano, currency, status, reference, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`

	queryInsertLeg = `
		INSERT INTO transaction_legs (intent_id, leg_type, to_entity_id, to_wallet_address, amount_nano)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`

	queryGetIntent = `
		SELECT ` + intentColumns + `
		FROM transaction_intents
		WHERE id = ?`

	queryGetLegs = `
		SELECT id, intent_id, leg_type, to_entity_id, to_wallet_address, amount_nano
		FROM transaction_legs
		WHERE intent_id = ?
		ORDER BY id`

	queryCompareAndSetStatus = `
		UPDATE transaction_intents
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`

	queryConfirmIntentStatus = `
		UPDATE transaction_intents
		SET status = ?, updated_at = ?
		WHERE id = ? AND status IN ('CREATED', 'SENT')`

	queryIntentExists = `
		SELECT 1 FROM transaction_intents WHERE id = ?`

	// Blockchain transaction queries
	queryTxHashExists = `
		SELECT 1 FROM blockchain_transactions WHERE tx_hash = ? LIMIT 1`

	queryInsertBlockchainTx = `
		INSERT INTO blockchain_transactions (intent_id, tx_hash, from_wallet, to_wallet, amount_nano, currency, verified, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`

	queryGetBlockchainTxs = `
		SELECT id, intent_id, tx_hash, from_wallet, to_wallet, amount_nano, currency, verified, created_at
		FROM blockchain_transactions
		WHERE intent_id = ?
		ORDER BY id`
)
