package store

import (
	"context"
	"encoding/json"

	"sticker-ledger-go/internal/models"
)

// AppendEntryParams contains the parameters for appending a ledger entry.
type AppendEntryParams struct {
	UserId      int64
	RuleCode    string // empty for ad-hoc adjustments
	Direction   models.Direction
	Delta       int64
	Metadata    json.RawMessage
	ExternalId  string
	PerformedBy *int64
}

// RecordConfirmationParams captures a verifier verdict to persist together with
// the intent status change.
type RecordConfirmationParams struct {
	Transaction models.BlockchainTransaction
	NewStatus   models.IntentStatus
}

// RuleStore persists the reward rule catalog.
type RuleStore interface {
	ListRules(ctx context.Context) ([]models.RewardRule, error)
	// GetRuleByCode returns ErrRuleNotFound when no rule has the code.
	GetRuleByCode(ctx context.Context, code string) (*models.RewardRule, error)
	// CreateRule returns ErrDuplicateRule when the code is taken.
	CreateRule(ctx context.Context, rule models.RewardRule) (*models.RewardRule, error)
	UpdateRule(ctx context.Context, rule models.RewardRule) (*models.RewardRule, error)
	SetRuleEnabled(ctx context.Context, code string, enabled bool) error
}

// LedgerStore persists ART ledger entries and cached balances.
type LedgerStore interface {
	// AppendEntry serializes per user, rejects a negative resulting balance with
	// *InsufficientBalanceError and returns ErrDuplicateEntry when the
	// (rule code, external id) pair already exists.
	AppendEntry(ctx context.Context, params AppendEntryParams) (*models.LedgerEntry, error)
	// FindEntryByExternalId returns nil, nil when absent.
	FindEntryByExternalId(ctx context.Context, ruleCode, externalId string) (*models.LedgerEntry, error)
	GetBalance(ctx context.Context, userId int64) (int64, error)
	SumDeltas(ctx context.Context, userId int64) (int64, error)
	GetEntries(ctx context.Context, userId int64, limit, offset int) ([]models.LedgerEntry, error)
	ListBalances(ctx context.Context) ([]models.UserBalance, error)
}

// WalletStore persists linked TON wallets.
type WalletStore interface {
	// ReplaceActiveWallet deactivates every active wallet of the user and
	// activates the given address, reusing an existing row for the same address.
	ReplaceActiveWallet(ctx context.Context, userId int64, address, walletType string) (*models.UserWallet, error)
	// GetActiveWallet returns ErrWalletNotFound when the user has none.
	GetActiveWallet(ctx context.Context, userId int64) (*models.UserWallet, error)
	ListWallets(ctx context.Context, userId int64) ([]models.UserWallet, error)
}

// IntentStore persists transaction intents, legs and blockchain audit rows.
type IntentStore interface {
	// CreateIntent stores the intent and its legs in one transaction.
	CreateIntent(ctx context.Context, intent models.TransactionIntent, legs []models.TransactionLeg) (*models.TransactionIntent, []models.TransactionLeg, error)
	// GetIntent returns ErrIntentNotFound when absent.
	GetIntent(ctx context.Context, id int64) (*models.TransactionIntent, error)
	GetLegs(ctx context.Context, intentId int64) ([]models.TransactionLeg, error)
	// CompareAndSetStatus returns ErrConcurrentModification when the current
	// status is no longer from.
	CompareAndSetStatus(ctx context.Context, id int64, from, to models.IntentStatus) error
	TxHashExists(ctx context.Context, txHash string) (bool, error)
	// RecordConfirmation inserts the blockchain transaction and moves a CREATED
	// or SENT intent to the new status atomically. A taken hash yields
	// ErrDuplicateTransaction and leaves no trace. An intent that is no longer
	// confirmable yields ErrConcurrentModification; the attempt row is still
	// kept so the hash stays burned and the verdict stays on record.
	RecordConfirmation(ctx context.Context, params RecordConfirmationParams) (*models.BlockchainTransaction, error)
	GetBlockchainTransactions(ctx context.Context, intentId int64) ([]models.BlockchainTransaction, error)
}

// Store is the contract every backend (SQLite, PostgreSQL) must satisfy.
type Store interface {
	RuleStore
	LedgerStore
	WalletStore
	IntentStore

	// --- Lifecycle ---
	Ping(ctx context.Context) error
	Close()
}
