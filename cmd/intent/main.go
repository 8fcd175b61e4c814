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
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"sticker-ledger-go/internal/api"
	"sticker-ledger-go/internal/common"
	"sticker-ledger-go/internal/config"
	"sticker-ledger-go/internal/models"
	"sticker-ledger-go/internal/ton"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const usage = `usage: intent <command> [flags]

commands:
  create     -initiator ID -subject ID -amount TON [-type DONATION] [-metadata JSON]
  mark-sent  -id ID
  show       -id ID
  confirm    -id ID -hash TX_HASH [-from ADDRESS]`

func printIntent(prepared *models.PreparedIntent) {
	common.PrintHeader(fmt.Sprintf("INTENT #%d", prepared.IntentId), common.DefaultWidth)
	fmt.Printf("Reference: %s\n", prepared.Reference)
	fmt.Printf("Status:    %s\n", prepared.Status)
	fmt.Printf("Amount:    %s %s (%d nano)\n", prepared.AmountTon, prepared.Currency, prepared.AmountNano)
	fmt.Printf("Legs:      %d\n", len(prepared.Legs))
	common.PrintBoxSeparator(78)
	for i, leg := range prepared.Legs {
		isLast := i == len(prepared.Legs)-1
		fmt.Printf("%s %-5s %s\n", common.BoxPrefix(isLast), leg.LegType, common.FormatTon(leg.AmountNano))
		fmt.Printf("%s       to %s\n", common.BoxDetailPrefix(isLast), leg.WalletAddress)
	}
	common.PrintSeparator("=", common.DefaultWidth)
}

func printAttempts(attempts []models.BlockchainTransaction) {
	if len(attempts) == 0 {
		fmt.Println("No transaction submitted yet")
		return
	}
	fmt.Printf("Submitted transactions: %d\n", len(attempts))
	for i, tx := range attempts {
		isLast := i == len(attempts)-1
		fmt.Printf("%s %s verified=%t at %s\n",
			common.BoxPrefix(isLast),
			common.Truncate(tx.TxHash, 24),
			tx.Verified,
			tx.CreatedAt.Format("2006-01-02 15:04:05"))
		if tx.FromWallet != "" {
			fmt.Printf("%s   from %s\n", common.BoxDetailPrefix(isLast), tx.FromWallet)
		}
	}
}

func printConfirmation(result *models.ConfirmationResult) {
	common.PrintHeader(fmt.Sprintf("CONFIRMATION FOR INTENT #%d", result.IntentId), common.DefaultWidth)
	fmt.Printf("Tx hash:  %s\n", common.Truncate(result.TxHash, 24))
	fmt.Printf("Status:   %s\n", result.Status)
	fmt.Printf("Verified: %t\n", result.Success)
	if result.AlreadyProcessed {
		fmt.Println("Already processed by another request")
	}
	common.PrintFooter(result.Message, common.DefaultWidth)
}

func run(ctx context.Context, service *api.LedgerService, command string, args []string) error {
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	id := fs.Int64("id", 0, "Intent id")
	initiator := fs.Int64("initiator", 0, "Initiating user id")
	subject := fs.Int64("subject", 0, "Subject entity id, e.g. the sticker set")
	amount := fs.String("amount", "", "Amount in TON, e.g. 1.5")
	intentType := fs.String("type", string(models.IntentTypeDonation), "Intent type")
	metadata := fs.String("metadata", "", "JSON metadata")
	hash := fs.String("hash", "", "Transaction hash")
	from := fs.String("from", "", "Sender wallet address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch command {
	case "create":
		var prepared *models.PreparedIntent
		var err error
		if models.IntentType(*intentType) == models.IntentTypeDonation {
			prepared, err = service.PrepareDonation(ctx, *initiator, *subject, *amount, json.RawMessage(*metadata))
		} else {
			prepared, err = createIntent(ctx, service, models.IntentType(*intentType), *initiator, *subject, *amount, *metadata)
		}
		if err != nil {
			return err
		}
		printIntent(prepared)
	case "mark-sent":
		prepared, err := service.MarkSent(ctx, *id)
		if err != nil {
			return err
		}
		printIntent(prepared)
	case "show":
		prepared, err := service.GetIntent(ctx, *id)
		if err != nil {
			return err
		}
		printIntent(prepared)
		attempts, err := service.GetTransactionAttempts(ctx, *id)
		if err != nil {
			return err
		}
		printAttempts(attempts)
	case "confirm":
		result, err := service.Confirm(ctx, *id, *hash, *from)
		if err != nil {
			return err
		}
		printConfirmation(result)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}

func createIntent(ctx context.Context, service *api.LedgerService, intentType models.IntentType, initiator, subject int64, amount, metadata string) (*models.PreparedIntent, error) {
	amountNano, err := ton.ParseTon(amount)
	if err != nil {
		return nil, err
	}
	return service.CreateIntent(ctx, intentType, initiator, subject, amountNano, json.RawMessage(metadata))
}

func main() {
	ctx := models.WithRequestContext(context.Background(), &models.RequestContext{
		RequestId: uuid.NewString(),
		Source:    "cmd/intent",
	})

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg, nil)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if err := run(ctx, services.Api, command, os.Args[2:]); err != nil {
		logger.Error("Intent command failed",
			zap.String("command", command),
			zap.String("kind", string(api.Classify(err))),
			zap.Error(err))
		fmt.Fprintln(os.Stderr, usage)
		services.Close()
		loggerCleanup()
		os.Exit(1)
	}
}
