package models

import "time"

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig
	Ledger   LedgerConfig
	Ton      TonConfig
	Formance FormanceConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // sqlite or postgres
	Path            string
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	BusyTimeout     time.Duration
}

// LedgerConfig holds ART ledger settings
type LedgerConfig struct {
	RulesFile       string
	HistoryPageSize int
}

// TonConfig holds TON network and intent settings
type TonConfig struct {
	Testnet         bool
	Verifier        string // liteclient or toncenter
	ConfigURL       string
	ToncenterURL    string
	ToncenterAPIKey string
	PlatformWallet  string
	PlatformFeeBps  int
	VerifyTimeout   time.Duration
	TxScanLimit     int
	MaxRetries      int
	RetryBackoff    time.Duration
}

// FormanceConfig holds connection settings for the Formance ledger mirror
type FormanceConfig struct {
	Enabled      bool
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}

const (
	DriverSqlite   = "sqlite"
	DriverPostgres = "postgres"

	VerifierLiteclient = "liteclient"
	VerifierToncenter  = "toncenter"
)
