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
		Source:    "cmd/adjust",
	})

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	userFlag := flag.Int64("user", 0, "User id to adjust (required)")
	ruleFlag := flag.String("rule", "", "Rule code to apply")
	externalIdFlag := flag.String("external-id", "", "Idempotency key for the rule (generated when empty)")
	deltaFlag := flag.Int64("delta", 0, "Signed ad-hoc delta, used when -rule is empty")
	adminFlag := flag.Int64("admin", 0, "Admin user id performing an ad-hoc adjustment")
	metadataFlag := flag.String("metadata", "", "JSON object metadata")
	flag.Parse()

	if *userFlag <= 0 {
		logger.Fatal("-user is required")
	}
	if *ruleFlag == "" && *deltaFlag == 0 {
		logger.Fatal("either -rule or -delta is required")
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

	metadata := json.RawMessage(*metadataFlag)

	var record *models.HistoryRecord
	if *ruleFlag != "" {
		externalId := *externalIdFlag
		if externalId == "" {
			externalId = uuid.NewString()
		}
		record, err = services.Api.ApplyRule(ctx, *userFlag, *ruleFlag, metadata, externalId)
	} else {
		record, err = services.Api.ApplyAdhoc(ctx, *userFlag, *deltaFlag, *adminFlag, metadata)
	}
	if err != nil {
		logger.Fatal("Adjustment rejected",
			zap.String("kind", string(api.Classify(err))),
			zap.Error(err))
	}

	label := record.RuleCode
	if label == "" {
		label = "ADHOC"
	}
	common.PrintHeader("ART ADJUSTMENT", common.DefaultWidth)
	fmt.Printf("User:          %d\n", *userFlag)
	fmt.Printf("Entry:         #%d (%s)\n", record.Id, label)
	fmt.Printf("Delta:         %s\n", common.FormatArt(record.Delta))
	fmt.Printf("Balance after: %d ART\n", record.BalanceAfter)
	common.PrintSeparator("=", common.DefaultWidth)
}
