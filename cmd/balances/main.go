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
	"errors"
	"flag"
	"fmt"

	"sticker-ledger-go/internal/common"
	"sticker-ledger-go/internal/config"
	"sticker-ledger-go/internal/formance"
	"sticker-ledger-go/internal/ledger"
	"sticker-ledger-go/internal/models"
	"sticker-ledger-go/internal/store"

	"go.uber.org/zap"
)

type balanceStats struct {
	totalUsers     int
	totalArt       int64
	mismatches     int
	mirrorDiffered int
}

type mirrorView struct {
	art         int64
	tonReceived string
}

func printUserBalance(balance models.UserBalance, reconcileErr error, mirrored *mirrorView) {
	fmt.Printf("\n┌─ User: %d\n", balance.UserId)
	fmt.Printf("│  Balance: %d ART (v%d, updated: %s)\n",
		balance.Balance,
		balance.Version,
		balance.UpdatedAt.Format("2006-01-02 15:04:05"))

	if mirrored != nil {
		fmt.Printf("│  Formance: %d ART, %s TON received\n", mirrored.art, mirrored.tonReceived)
	}

	switch {
	case reconcileErr == nil:
		fmt.Printf("%s Ledger: consistent\n", common.BoxPrefix(true))
	case errors.Is(reconcileErr, store.ErrIntegrity):
		fmt.Printf("%s Ledger: MISMATCH (%v)\n", common.BoxPrefix(true), reconcileErr)
	default:
		fmt.Printf("%s Ledger: not checked (%v)\n", common.BoxPrefix(true), reconcileErr)
	}
}

func readMirror(ctx context.Context, mirror *formance.Mirror, userId int64, logger *zap.Logger) *mirrorView {
	art, err := mirror.GetUserBalance(ctx, userId)
	if err != nil {
		logger.Warn("Failed to read Formance balance", zap.Int64("user_id", userId), zap.Error(err))
		return nil
	}
	received, err := mirror.GetTonReceived(ctx, userId)
	if err != nil {
		logger.Warn("Failed to read Formance TON volume", zap.Int64("user_id", userId), zap.Error(err))
		return &mirrorView{art: art, tonReceived: "?"}
	}
	return &mirrorView{art: art, tonReceived: received.String()}
}

func processBalances(ctx context.Context, balances []models.UserBalance, engine *ledger.Engine, mirror *formance.Mirror, logger *zap.Logger) balanceStats {
	stats := balanceStats{}

	for _, balance := range balances {
		stats.totalUsers++
		stats.totalArt += balance.Balance

		reconcileErr := engine.Reconcile(ctx, balance.UserId)
		if errors.Is(reconcileErr, store.ErrIntegrity) {
			stats.mismatches++
		} else if reconcileErr != nil {
			logger.Error("Failed to reconcile user",
				zap.Int64("user_id", balance.UserId),
				zap.Error(reconcileErr))
		}

		var mirrored *mirrorView
		if mirror != nil {
			mirrored = readMirror(ctx, mirror, balance.UserId, logger)
			if mirrored != nil && mirrored.art != balance.Balance {
				stats.mirrorDiffered++
			}
		}

		printUserBalance(balance, reconcileErr, mirrored)
	}

	return stats
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	userFlag := flag.Int64("user", 0, "Filter by user id (optional)")
	flag.Parse()

	logger.Info("Starting balance report")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Connecting to database", zap.String("driver", cfg.Database.Driver))
	services, err := common.InitializeServices(ctx, cfg, nil)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	balances, err := common.SelectBalances(ctx, services.Store, *userFlag, logger)
	if err != nil {
		logger.Fatal("Failed to select balances", zap.Error(err))
	}

	common.PrintHeader("ART BALANCE REPORT", common.DefaultWidth)

	stats := processBalances(ctx, balances, services.Ledger, services.Mirror, logger)

	summary := fmt.Sprintf("SUMMARY: %d users, %d ART in circulation, %d ledger mismatches",
		stats.totalUsers, stats.totalArt, stats.mismatches)
	if services.Mirror != nil {
		summary += fmt.Sprintf(", %d differ from Formance", stats.mirrorDiffered)
	}
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Balance report completed",
		zap.Int("users", stats.totalUsers),
		zap.Int64("total_art", stats.totalArt),
		zap.Int("mismatches", stats.mismatches),
		zap.Int("mirror_differences", stats.mirrorDiffered))
}
