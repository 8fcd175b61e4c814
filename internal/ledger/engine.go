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

package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"sticker-ledger-go/internal/models"
	"sticker-ledger-go/internal/store"

	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// RuleSource resolves rules that may currently be applied.
type RuleSource interface {
	EnabledRule(ctx context.Context, code string) (*models.RewardRule, error)
}

// MetadataValidator checks entry metadata against a rule's schema.
type MetadataValidator interface {
	Validate(schema string, metadata []byte) error
}

// EntryRecorder receives committed entries, e.g. to mirror them into an external ledger.
type EntryRecorder interface {
	RecordEntry(ctx context.Context, entry models.LedgerEntry) error
}

// ApplyParams contains the parameters for applying a rule to a user
type ApplyParams struct {
	UserId         int64
	RuleCode       string
	Metadata       json.RawMessage
	ExternalId     string
	OverrideAmount *int64
	PerformedBy    *int64
}

// Engine applies reward rules and ad-hoc adjustments to the ART ledger
type Engine struct {
	store    store.LedgerStore
	rules    RuleSource
	schemas  MetadataValidator
	recorder EntryRecorder
	pageSize int
}

func NewEngine(ledgerStore store.LedgerStore, rules RuleSource, schemas MetadataValidator) *Engine {
	return &Engine{
		store:    ledgerStore,
		rules:    rules,
		schemas:  schemas,
		pageSize: defaultPageSize,
	}
}

// SetRecorder installs a post-commit hook. Recorder failures are logged only.
func (e *Engine) SetRecorder(recorder EntryRecorder) { e.recorder = recorder }

// SetPageSize sets the default history page size.
func (e *Engine) SetPageSize(size int) {
	if size > 0 && size <= maxPageSize {
		e.pageSize = size
	}
}

// Apply appends the ledger entry the rule describes. A repeated
// (rule, externalId) pair returns the entry recorded the first time.
func (e *Engine) Apply(ctx context.Context, params ApplyParams) (*models.LedgerEntry, error) {
	if params.UserId <= 0 {
		return nil, store.NewValidationError("user_id", "must be positive")
	}
	if params.RuleCode == "" {
		return nil, store.NewValidationError("rule_code", "must not be empty")
	}

	if params.ExternalId != "" {
		existing, err := e.store.FindEntryByExternalId(ctx, params.RuleCode, params.ExternalId)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			zap.L().Info("Rule already applied for external id, returning existing entry",
				zap.String("rule_code", params.RuleCode),
				zap.String("external_id", params.ExternalId),
				zap.Int64("entry_id", existing.Id))
			return existing, nil
		}
	}

	rule, err := e.rules.EnabledRule(ctx, params.RuleCode)
	if err != nil {
		zap.L().Warn("Rule cannot be applied", zap.String("rule_code", params.RuleCode), zap.Error(err))
		return nil, err
	}

	metadata, err := normalizeMetadata(params.Metadata)
	if err != nil {
		return nil, err
	}
	if e.schemas != nil {
		if err := e.schemas.Validate(rule.MetadataSchema, metadata); err != nil {
			zap.L().Warn("Metadata rejected by rule schema",
				zap.String("rule_code", rule.Code),
				zap.Int64("user_id", params.UserId),
				zap.Error(err))
			return nil, err
		}
	}

	amount := rule.Amount
	if params.OverrideAmount != nil {
		if *params.OverrideAmount <= 0 {
			return nil, store.NewValidationError("override_amount", "must be positive")
		}
		amount = *params.OverrideAmount
	}
	delta := rule.Direction.Apply(amount)
	if delta == 0 {
		return nil, store.NewValidationError("amount", fmt.Sprintf("rule %s has a zero amount", rule.Code))
	}

	entry, err := e.store.AppendEntry(ctx, store.AppendEntryParams{
		UserId:      params.UserId,
		RuleCode:    rule.Code,
		Direction:   rule.Direction,
		Delta:       delta,
		Metadata:    metadata,
		ExternalId:  params.ExternalId,
		PerformedBy: params.PerformedBy,
	})
	if errors.Is(err, store.ErrDuplicateEntry) {
		// Lost a race against a concurrent call with the same key
		existing, findErr := e.store.FindEntryByExternalId(ctx, rule.Code, params.ExternalId)
		if findErr != nil {
			return nil, findErr
		}
		if existing != nil {
			return existing, nil
		}
	}
	if err != nil {
		return nil, err
	}

	e.record(ctx, *entry)
	return entry, nil
}

// ApplyAdhoc posts an administrative adjustment that is not tied to a rule.
func (e *Engine) ApplyAdhoc(ctx context.Context, userId, delta int64, performedBy *int64, metadata json.RawMessage) (*models.LedgerEntry, error) {
	if userId <= 0 {
		return nil, store.NewValidationError("user_id", "must be positive")
	}
	if delta == 0 {
		return nil, store.NewValidationError("delta", "must not be zero")
	}
	normalized, err := normalizeMetadata(metadata)
	if err != nil {
		return nil, err
	}

	entry, err := e.store.AppendEntry(ctx, store.AppendEntryParams{
		UserId:      userId,
		Direction:   models.DirectionOf(delta),
		Delta:       delta,
		Metadata:    normalized,
		PerformedBy: performedBy,
	})
	if err != nil {
		return nil, err
	}

	e.record(ctx, *entry)
	return entry, nil
}

func (e *Engine) GetBalance(ctx context.Context, userId int64) (int64, error) {
	return e.store.GetBalance(ctx, userId)
}

// History returns the user's entries, newest first.
func (e *Engine) History(ctx context.Context, userId int64, limit, offset int) ([]models.LedgerEntry, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = e.pageSize
	}
	if offset < 0 {
		offset = 0
	}
	return e.store.GetEntries(ctx, userId, limit, offset)
}

// Reconcile verifies that the cached balance matches both the sum of all
// deltas and the balance snapshot of the latest entry.
func (e *Engine) Reconcile(ctx context.Context, userId int64) error {
	zap.L().Info("Reconciling balance", zap.Int64("user_id", userId))

	cached, err := e.store.GetBalance(ctx, userId)
	if err != nil {
		return fmt.Errorf("failed to get cached balance: %w", err)
	}
	calculated, err := e.store.SumDeltas(ctx, userId)
	if err != nil {
		return err
	}
	if cached != calculated {
		zap.L().Error("Balance reconciliation failed",
			zap.Int64("user_id", userId),
			zap.Int64("cached_balance", cached),
			zap.Int64("calculated_balance", calculated),
			zap.Int64("difference", cached-calculated))
		return &store.IntegrityError{
			UserId: userId,
			Reason: fmt.Sprintf("cached balance %d does not match sum of deltas %d", cached, calculated),
		}
	}

	latest, err := e.store.GetEntries(ctx, userId, 1, 0)
	if err != nil {
		return err
	}
	if len(latest) == 1 && latest[0].BalanceAfter != cached {
		zap.L().Error("Latest entry snapshot differs from cached balance",
			zap.Int64("user_id", userId),
			zap.Int64("entry_id", latest[0].Id),
			zap.Int64("balance_after", latest[0].BalanceAfter),
			zap.Int64("cached_balance", cached))
		return &store.IntegrityError{
			UserId: userId,
			Reason: fmt.Sprintf("latest entry %d snapshot %d does not match cached balance %d", latest[0].Id, latest[0].BalanceAfter, cached),
		}
	}

	zap.L().Info("Balance reconciliation successful", zap.Int64("user_id", userId), zap.Int64("balance", cached))
	return nil
}

func (e *Engine) record(ctx context.Context, entry models.LedgerEntry) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.RecordEntry(ctx, entry); err != nil {
		zap.L().Warn("Failed to mirror ledger entry",
			zap.Int64("entry_id", entry.Id),
			zap.Int64("user_id", entry.UserId),
			zap.Error(err))
	}
}

func normalizeMetadata(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		return json.RawMessage("{}"), nil
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, store.NewValidationError("metadata", "must be a JSON object")
	}
	return raw, nil
}
