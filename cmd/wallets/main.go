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

package main

import (
	"context"
	"flag"
	"fmt"

	"sticker-ledger-go/internal/api"
	"sticker-ledger-go/internal/common"
	"sticker-ledger-go/internal/config"
	"sticker-ledger-go/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	ctx := models.WithRequestContext(context.Background(), &models.RequestContext{
		RequestId: uuid.NewString(),
		Source:    "cmd/wallets",
	})

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	userFlag := flag.Int64("user", 0, "User id (required)")
	addressFlag := flag.String("address", "", "TON address to link (optional, shows wallets when empty)")
	typeFlag := flag.String("type", "", "Wallet app, e.g. tonkeeper")
	flag.Parse()

	if *userFlag <= 0 {
		logger.Fatal("-user is required")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg, nil)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if *addressFlag != "" {
		linked, err := services.Api.LinkWallet(ctx, *userFlag, *addressFlag, *typeFlag)
		if err != nil {
			logger.Fatal("Failed to link wallet",
				zap.String("kind", string(api.Classify(err))),
				zap.Error(err))
		}
		logger.Info("Wallet linked",
			zap.Int64("user_id", linked.UserId),
			zap.Int64("wallet_id", linked.Id))
	}

	wallets, err := services.Wallets.ListWallets(ctx, *userFlag)
	if err != nil {
		logger.Fatal("Failed to list wallets", zap.Error(err))
	}

	common.PrintHeader(fmt.Sprintf("TON WALLETS FOR USER %d", *userFlag), common.DefaultWidth)
	if len(wallets) == 0 {
		fmt.Println("No wallets linked")
	}
	for i, w := range wallets {
		status := "inactive"
		if w.IsActive {
			status = "ACTIVE"
		}
		fmt.Printf("%s %-8s %s  %s  (linked %s)\n",
			common.BoxPrefix(i == len(wallets)-1),
			status,
			w.WalletAddress,
			w.WalletType,
			w.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	common.PrintSeparator("=", common.DefaultWidth)
}
