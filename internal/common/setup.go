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
	"log"
	"strings"

	"sticker-ledger-go/internal/api"
	"sticker-ledger-go/internal/confirmation"
	"sticker-ledger-go/internal/database"
	"sticker-ledger-go/internal/formance"
	"sticker-ledger-go/internal/intent"
	"sticker-ledger-go/internal/ledger"
	"sticker-ledger-go/internal/models"
	"sticker-ledger-go/internal/postgres"
	"sticker-ledger-go/internal/rules"
	"sticker-ledger-go/internal/schema"
	"sticker-ledger-go/internal/store"
	"sticker-ledger-go/internal/ton"
	"sticker-ledger-go/internal/wallet"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	Store         store.Store
	Catalog       *rules.Catalog
	Ledger        *ledger.Engine
	Wallets       *wallet.Registry
	Intents       *intent.Engine
	Confirmations *confirmation.Engine
	Mirror        *formance.Mirror
	Api           *api.LedgerService
}

// SubjectIsOwner treats the subject entity id as the receiving user id.
// It is the default owner lookup for the command line tools, where the
// sticker catalog that owns subjects is not available.
var SubjectIsOwner = intent.OwnerLookupFunc(func(_ context.Context, subjectEntityId int64) (int64, error) {
	return subjectEntityId, nil
})

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices wires storage, engines, the chain verifier and the
// optional Formance mirror. A nil owners lookup falls back to SubjectIsOwner.
func InitializeServices(ctx context.Context, cfg *models.Config, owners intent.SubjectOwnerLookup) (*Services, error) {
	st, err := InitializeStoreOnly(ctx, cfg)
	if err != nil {
		return nil, err
	}

	verifier, err := newVerifier(cfg.Ton)
	if err != nil {
		st.Close()
		return nil, err
	}

	var mirror *formance.Mirror
	if cfg.Formance.Enabled {
		zap.L().Info("Connecting Formance mirror", zap.String("ledger", cfg.Formance.LedgerName))
		mirror, err = formance.NewMirror(ctx, cfg.Formance)
		if err != nil {
			st.Close()
			return nil, err
		}
	}

	if owners == nil {
		owners = SubjectIsOwner
	}

	services := newServices(st, verifier, owners, cfg)
	if mirror != nil {
		services.Mirror = mirror
		services.Ledger.SetRecorder(mirror)
		services.Confirmations.SetRecorder(mirror)
	}

	zap.L().Info("Services initialized",
		zap.String("driver", cfg.Database.Driver),
		zap.String("verifier", cfg.Ton.Verifier),
		zap.Bool("testnet", cfg.Ton.Testnet),
		zap.Bool("formance_mirror", mirror != nil))
	return services, nil
}

func newServices(st store.Store, verifier confirmation.ChainVerifier, owners intent.SubjectOwnerLookup, cfg *models.Config) *Services {
	schemas := schema.NewValidator()
	catalog := rules.NewCatalog(st, schemas)

	ledgerEngine := ledger.NewEngine(st, catalog, schemas)
	ledgerEngine.SetPageSize(cfg.Ledger.HistoryPageSize)

	wallets := wallet.NewRegistry(st, ton.NewAddressValidator())

	resolver := intent.NewOwnerWalletResolver(owners, wallets).
		WithPlatformFee(cfg.Ton.PlatformWallet, cfg.Ton.PlatformFeeBps)
	intents := intent.NewEngine(st, resolver)

	confirmations := confirmation.NewEngine(st, verifier, cfg.Ton.VerifyTimeout)

	return &Services{
		Store:         st,
		Catalog:       catalog,
		Ledger:        ledgerEngine,
		Wallets:       wallets,
		Intents:       intents,
		Confirmations: confirmations,
		Api:           api.NewLedgerService(st, catalog, ledgerEngine, wallets, intents, confirmations),
	}
}

func newVerifier(cfg models.TonConfig) (confirmation.ChainVerifier, error) {
	switch cfg.Verifier {
	case models.VerifierToncenter:
		verifier, err := ton.NewToncenterVerifier(cfg)
		if err != nil {
			return nil, err
		}
		return verifier, nil
	case models.VerifierLiteclient, "":
		return ton.NewLiteVerifier(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported verifier %q", cfg.Verifier)
	}
}

// InitializeStoreOnly opens the configured backend without the chain verifier
// or the Formance mirror. Useful for setup and read-only reports.
func InitializeStoreOnly(ctx context.Context, cfg *models.Config) (store.Store, error) {
	switch cfg.Database.Driver {
	case models.DriverPostgres:
		pg, err := postgres.NewService(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case models.DriverSqlite, "":
		db, err := database.NewService(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

func (cs *Services) Close() {
	if cs.Store != nil {
		cs.Store.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
