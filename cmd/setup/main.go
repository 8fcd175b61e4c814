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

	"sticker-ledger-go/internal/common"
	"sticker-ledger-go/internal/config"
	"sticker-ledger-go/internal/rules"
	"sticker-ledger-go/internal/schema"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	rulesFlag := flag.String("rules", "", "Rule catalog file (defaults to RULES_FILE)")
	flag.Parse()

	logger.Info("Starting ledger setup")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	rulesFile := cfg.Ledger.RulesFile
	if *rulesFlag != "" {
		rulesFile = *rulesFlag
	}

	// Opening the store creates the schema
	logger.Info("Connecting to database", zap.String("driver", cfg.Database.Driver))
	st, err := common.InitializeStoreOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer st.Close()

	logger.Info("Loading rule catalog", zap.String("file", rulesFile))
	seeds, err := common.LoadRuleCatalog(rulesFile)
	if err != nil {
		logger.Fatal("Failed to load rule catalog", zap.Error(err))
	}

	catalog := rules.NewCatalog(st, schema.NewValidator())
	created, err := catalog.Seed(ctx, seeds)
	if err != nil {
		logger.Fatal("Failed to seed rule catalog", zap.Error(err))
	}

	all, err := catalog.List(ctx)
	if err != nil {
		logger.Fatal("Failed to list rules", zap.Error(err))
	}

	common.PrintHeader("REWARD RULE CATALOG", common.DefaultWidth)
	for i, rule := range all {
		status := "enabled"
		if !rule.Enabled {
			status = "disabled"
		}
		fmt.Printf("%s %-24s %-6s %8d  %s\n",
			common.BoxPrefix(i == len(all)-1), rule.Code, rule.Direction, rule.Amount, status)
	}
	common.PrintFooter(fmt.Sprintf("SETUP COMPLETE: %d rules created, %d already present", created, len(seeds)-created), common.DefaultWidth)

	logger.Info("Ledger setup completed",
		zap.Int("rules_in_file", len(seeds)),
		zap.Int("rules_created", created),
		zap.Int("rules_total", len(all)))
}
