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

package api

import (
	"context"
	"encoding/json"
	"fmt"

	"sticker-ledger-go/internal/ledger"
	"sticker-ledger-go/internal/models"
	"sticker-ledger-go/internal/store"

	"go.uber.org/zap"
)

// ApplyRule charges or rewards a user according to a catalog rule.
// Repeating the same externalId returns the original entry.
func (s *LedgerService) ApplyRule(ctx context.Context, userId int64, ruleCode string, metadata json.RawMessage, externalId string) (*models.HistoryRecord, error) {
	entry, err := s.ledger.Apply(ctx, ledger.ApplyParams{
		UserId:     userId,
		RuleCode:   ruleCode,
		Metadata:   metadata,
		ExternalId: externalId,
	})
	if err != nil {
		logFailure("Failed to apply rule", err,
			zap.Int64("user_id", userId),
			zap.String("rule_code", ruleCode),
			zap.String("external_id", externalId))
		return nil, err
	}
	record := toHistoryRecord(*entry)
	return &record, nil
}

// ApplyAdhoc posts an admin adjustment that is not tied to a rule.
func (s *LedgerService) ApplyAdhoc(ctx context.Context, userId, delta, performedBy int64, metadata json.RawMessage) (*models.HistoryRecord, error) {
	if performedBy <= 0 {
		return nil, store.NewValidationError("performed_by", "must be positive")
	}

	entry, err := s.ledger.ApplyAdhoc(ctx, userId, delta, &performedBy, metadata)
	if err != nil {
		logFailure("Failed to apply adjustment", err,
			zap.Int64("user_id", userId),
			zap.Int64("delta", delta),
			zap.Int64("performed_by", performedBy))
		return nil, err
	}
	record := toHistoryRecord(*entry)
	return &record, nil
}

// GetBalance returns the current ART balance for a user
func (s *LedgerService) GetBalance(ctx context.Context, userId int64) (*models.BalanceView, error) {
	if userId <= 0 {
		return nil, store.NewValidationError("user_id", "must be positive")
	}

	balance, err := s.ledger.GetBalance(ctx, userId)
	if err != nil {
		zap.L().Error("Failed to get user balance", zap.Int64("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve balance: %w", err)
	}

	return &models.BalanceView{UserId: userId, Balance: balance}, nil
}

// GetHistory returns paginated ledger history for a user, newest first
func (s *LedgerService) GetHistory(ctx context.Context, userId int64, limit, offset int) ([]models.HistoryRecord, error) {
	if userId <= 0 {
		return nil, store.NewValidationError("user_id", "must be positive")
	}

	entries, err := s.ledger.History(ctx, userId, limit, offset)
	if err != nil {
		zap.L().Error("Failed to get ledger history", zap.Int64("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve history: %w", err)
	}

	result := make([]models.HistoryRecord, len(entries))
	for i, entry := range entries {
		result[i] = toHistoryRecord(entry)
	}
	return result, nil
}

// Tariffs returns the public price list of enabled rules
func (s *LedgerService) Tariffs(ctx context.Context) (*models.Tariffs, error) {
	return s.catalog.Tariffs(ctx)
}

// UpsertRule creates or updates a catalog rule (admin)
func (s *LedgerService) UpsertRule(ctx context.Context, rule models.RewardRule) (*models.RewardRule, error) {
	saved, err := s.catalog.Upsert(ctx, rule)
	if err != nil {
		logFailure("Failed to upsert rule", err, zap.String("rule_code", rule.Code))
		return nil, err
	}
	return saved, nil
}

// SetRuleEnabled toggles a catalog rule (admin)
func (s *LedgerService) SetRuleEnabled(ctx context.Context, code string, enabled bool) error {
	if err := s.catalog.SetEnabled(ctx, code, enabled); err != nil {
		logFailure("Failed to toggle rule", err, zap.String("rule_code", code), zap.Bool("enabled", enabled))
		return err
	}
	return nil
}

func toHistoryRecord(entry models.LedgerEntry) models.HistoryRecord {
	return models.HistoryRecord{
		Id:           entry.Id,
		RuleCode:     entry.RuleCode,
		Direction:    entry.Direction,
		Delta:        entry.Delta,
		BalanceAfter: entry.BalanceAfter,
		CreatedAt:    entry.CreatedAt,
	}
}

// logFailure logs expected rejections at warn level and everything else as an error.
func logFailure(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err), zap.String("kind", string(Classify(err))))
	if IsUserFacing(err) {
		zap.L().Warn(msg, fields...)
		return
	}
	zap.L().Error(msg, fields...)
}
