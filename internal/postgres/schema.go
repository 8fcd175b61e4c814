package postgres

const schema = `
	CREATE TABLE IF NOT EXISTS reward_rules (
		id BIGSERIAL PRIMARY KEY,
		code VARCHAR(64) NOT NULL UNIQUE,
		direction TEXT NOT NULL CHECK (direction IN ('CREDIT', 'DEBIT')),
		amount BIGINT NOT NULL CHECK (amount >= 0),
		is_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		description TEXT NOT NULL DEFAULT '',
		metadata_schema TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS user_balances (
		user_id BIGINT PRIMARY KEY,
		balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
		last_entry_id BIGINT,
		version BIGINT NOT NULL DEFAULT 1,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS ledger_entries (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		rule_code VARCHAR(64),
		direction TEXT NOT NULL CHECK (direction IN ('CREDIT', 'DEBIT')),
		delta BIGINT NOT NULL CHECK (delta <> 0),
		balance_after BIGINT NOT NULL CHECK (balance_after >= 0),
		metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
		external_id TEXT,
		performed_by BIGINT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_entries_user_id ON ledger_entries(user_id, id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_entries_rule_external
		ON ledger_entries(rule_code, external_id) WHERE external_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS user_wallets (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		wallet_address TEXT NOT NULL,
		wallet_type TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, wallet_address)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_user_wallets_one_active ON user_wallets(user_id) WHERE is_active;

	CREATE TABLE IF NOT EXISTS transaction_intents (
		id BIGSERIAL PRIMARY KEY,
		intent_type TEXT NOT NULL,
		initiator_user_id BIGINT NOT NULL,
		subject_entity_id BIGINT NOT NULL,
		amount_nano BIGINT NOT NULL CHECK (amount_nano > 0),
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		reference TEXT NOT NULL UNIQUE,
		metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_transaction_intents_initiator ON transaction_intents(initiator_user_id);

	CREATE TABLE IF NOT EXISTS transaction_legs (
		id BIGSERIAL PRIMARY KEY,
		intent_id BIGINT NOT NULL REFERENCES transaction_intents(id),
		leg_type TEXT NOT NULL CHECK (leg_type IN ('MAIN', 'FEE')),
		to_entity_id BIGINT,
		to_wallet_address TEXT NOT NULL,
		amount_nano BIGINT NOT NULL CHECK (amount_nano > 0)
	);

	CREATE INDEX IF NOT EXISTS idx_transaction_legs_intent_id ON transaction_legs(intent_id);

	CREATE TABLE IF NOT EXISTS blockchain_transactions (
		id BIGSERIAL PRIMARY KEY,
		intent_id BIGINT NOT NULL REFERENCES transaction_intents(id),
		tx_hash TEXT NOT NULL UNIQUE,
		from_wallet TEXT NOT NULL,
		to_wallet TEXT NOT NULL,
		amount_nano BIGINT NOT NULL,
		currency TEXT NOT NULL,
		verified BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_blockchain_transactions_intent_id ON blockchain_transactions(intent_id);
	`
