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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"sticker-ledger-go/internal/models"
)

func Load() (*models.Config, error) {
	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	busyTimeout, err := getEnvDuration("DB_BUSY_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	verifyTimeout, err := getEnvDuration("TON_VERIFY_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	retryBackoff, err := getEnvDuration("TON_RETRY_BACKOFF", 500*time.Millisecond)
	if err != nil {
		return nil, err
	}

	cfg := &models.Config{
		Database: models.DatabaseConfig{
			Driver:          getEnvString("DB_DRIVER", models.DriverSqlite),
			Path:            getEnvString("DATABASE_PATH", "ledger.db"),
			URL:             getEnvString("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
			BusyTimeout:     busyTimeout,
		},
		Ledger: models.LedgerConfig{
			RulesFile:       getEnvString("RULES_FILE", "rules.yaml"),
			HistoryPageSize: getEnvInt("HISTORY_PAGE_SIZE", 20),
		},
		Ton: models.TonConfig{
			Testnet:         getEnvBool("TON_TESTNET", false),
			Verifier:        getEnvString("TON_VERIFIER", models.VerifierLiteclient),
			ConfigURL:       getEnvString("TON_CONFIG_URL", ""),
			ToncenterURL:    getEnvString("TONCENTER_URL", ""),
			ToncenterAPIKey: getEnvString("TONCENTER_API_KEY", ""),
			PlatformWallet:  getEnvString("TON_PLATFORM_WALLET", ""),
			PlatformFeeBps:  getEnvInt("TON_PLATFORM_FEE_BPS", 0),
			VerifyTimeout:   verifyTimeout,
			TxScanLimit:     getEnvInt("TON_TX_SCAN_LIMIT", 20),
			MaxRetries:      getEnvInt("TON_MAX_RETRIES", 2),
			RetryBackoff:    retryBackoff,
		},
		Formance: models.FormanceConfig{
			Enabled:      getEnvBool("FORMANCE_ENABLED", false),
			StackURL:     getEnvString("FORMANCE_STACK_URL", ""),
			ClientID:     getEnvString("FORMANCE_CLIENT_ID", ""),
			ClientSecret: getEnvString("FORMANCE_CLIENT_SECRET", ""),
			LedgerName:   getEnvString("FORMANCE_LEDGER", "sticker-art-gallery"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *models.Config) error {
	switch cfg.Database.Driver {
	case models.DriverSqlite:
	case models.DriverPostgres:
		if cfg.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when DB_DRIVER=%s", models.DriverPostgres)
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}

	switch cfg.Ton.Verifier {
	case models.VerifierLiteclient, models.VerifierToncenter:
	default:
		return fmt.Errorf("unsupported TON_VERIFIER %q", cfg.Ton.Verifier)
	}

	if cfg.Ton.PlatformFeeBps < 0 || cfg.Ton.PlatformFeeBps >= 10_000 {
		return fmt.Errorf("TON_PLATFORM_FEE_BPS must be in [0, 10000), got %d", cfg.Ton.PlatformFeeBps)
	}
	if cfg.Ton.PlatformFeeBps > 0 && cfg.Ton.PlatformWallet == "" {
		return fmt.Errorf("TON_PLATFORM_WALLET is required when TON_PLATFORM_FEE_BPS is set")
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
