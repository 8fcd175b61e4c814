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

package rules

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"sticker-ledger-go/internal/models"
	"sticker-ledger-go/internal/store"

	"go.uber.org/zap"
)

const maxCodeLength = 64

var codePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// SchemaCompiler checks that a metadata schema is usable before it is stored.
type SchemaCompiler interface {
	Compile(schema string) error
}

// Catalog is the CRUD surface over reward rules. Reads by code go through a
// cache that every write invalidates.
type Catalog struct {
	store   store.RuleStore
	schemas SchemaCompiler

	mu         sync.RWMutex
	cache      map[string]models.RewardRule
	generation uint64
}

func NewCatalog(ruleStore store.RuleStore, schemas SchemaCompiler) *Catalog {
	return &Catalog{
		store:   ruleStore,
		schemas: schemas,
		cache:   make(map[string]models.RewardRule),
	}
}

func (c *Catalog) List(ctx context.Context) ([]models.RewardRule, error) {
	return c.store.ListRules(ctx)
}

// FindByCode returns the rule regardless of its enabled flag.
func (c *Catalog) FindByCode(ctx context.Context, code string) (*models.RewardRule, error) {
	c.mu.RLock()
	cached, ok := c.cache[code]
	generation := c.generation
	c.mu.RUnlock()
	if ok {
		return &cached, nil
	}

	rule, err := c.store.GetRuleByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	// A write that landed during the fetch may have made the row stale
	c.mu.Lock()
	if c.generation == generation {
		c.cache[code] = *rule
	}
	c.mu.Unlock()
	return rule, nil
}

// EnabledRule returns the rule only when it exists and is enabled.
func (c *Catalog) EnabledRule(ctx context.Context, code string) (*models.RewardRule, error) {
	rule, err := c.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !rule.Enabled {
		return nil, fmt.Errorf("%w: %s", store.ErrRuleDisabled, code)
	}
	return rule, nil
}

// Upsert creates the rule when it has no id and updates it in place otherwise.
func (c *Catalog) Upsert(ctx context.Context, rule models.RewardRule) (*models.RewardRule, error) {
	rule.Code = strings.TrimSpace(rule.Code)
	if err := c.validate(rule); err != nil {
		return nil, err
	}

	var saved *models.RewardRule
	var err error
	if rule.Id == 0 {
		saved, err = c.store.CreateRule(ctx, rule)
	} else {
		if err := c.checkCodeUnchanged(ctx, rule); err != nil {
			return nil, err
		}
		saved, err = c.store.UpdateRule(ctx, rule)
	}
	if err != nil {
		return nil, err
	}

	c.invalidate()
	return saved, nil
}

func (c *Catalog) SetEnabled(ctx context.Context, code string, enabled bool) error {
	if err := c.store.SetRuleEnabled(ctx, code, enabled); err != nil {
		return err
	}
	c.invalidate()
	return nil
}

// Tariffs lists enabled rules grouped by direction.
func (c *Catalog) Tariffs(ctx context.Context) (*models.Tariffs, error) {
	all, err := c.store.ListRules(ctx)
	if err != nil {
		return nil, err
	}

	tariffs := &models.Tariffs{Credits: []models.Tariff{}, Debits: []models.Tariff{}}
	for _, rule := range all {
		if !rule.Enabled {
			continue
		}
		tariff := models.Tariff{Code: rule.Code, Amount: rule.Amount, Description: rule.Description}
		if rule.Direction == models.DirectionDebit {
			tariffs.Debits = append(tariffs.Debits, tariff)
		} else {
			tariffs.Credits = append(tariffs.Credits, tariff)
		}
	}
	sort.Slice(tariffs.Credits, func(i, j int) bool { return tariffs.Credits[i].Code < tariffs.Credits[j].Code })
	sort.Slice(tariffs.Debits, func(i, j int) bool { return tariffs.Debits[i].Code < tariffs.Debits[j].Code })
	return tariffs, nil
}

// Seed creates every rule that does not exist yet. Existing rules keep their
// admin-edited values.
func (c *Catalog) Seed(ctx context.Context, seeds []models.RewardRule) (int, error) {
	created := 0
	for _, seed := range seeds {
		seed.Id = 0
		_, err := c.Upsert(ctx, seed)
		if errors.Is(err, store.ErrDuplicateRule) {
			zap.L().Debug("Rule already present, skipping seed", zap.String("code", seed.Code))
			continue
		}
		if err != nil {
			return created, fmt.Errorf("failed to seed rule %s: %w", seed.Code, err)
		}
		created++
	}

	zap.L().Info("Rule catalog seeded", zap.Int("created", created), zap.Int("total", len(seeds)))
	return created, nil
}

func (c *Catalog) validate(rule models.RewardRule) error {
	if rule.Code == "" {
		return store.NewValidationError("code", "must not be empty")
	}
	if len(rule.Code) > maxCodeLength {
		return store.NewValidationError("code", fmt.Sprintf("must be at most %d characters", maxCodeLength))
	}
	if !codePattern.MatchString(rule.Code) {
		return store.NewValidationError("code", "must be upper snake case")
	}
	if !rule.Direction.Valid() {
		return store.NewValidationError("direction", fmt.Sprintf("unknown direction %q", rule.Direction))
	}
	if rule.Amount < 0 {
		return store.NewValidationError("amount", "must not be negative")
	}
	if strings.TrimSpace(rule.MetadataSchema) != "" && c.schemas != nil {
		if err := c.schemas.Compile(rule.MetadataSchema); err != nil {
			return err
		}
	}
	return nil
}

// checkCodeUnchanged rejects renames: ledger entries reference rules by code.
func (c *Catalog) checkCodeUnchanged(ctx context.Context, rule models.RewardRule) error {
	all, err := c.store.ListRules(ctx)
	if err != nil {
		return err
	}
	for _, existing := range all {
		if existing.Id != rule.Id {
			continue
		}
		if existing.Code != rule.Code {
			return store.NewValidationError("code", fmt.Sprintf("cannot rename rule %s", existing.Code))
		}
		return nil
	}
	return fmt.Errorf("%w: id %d", store.ErrRuleNotFound, rule.Id)
}

func (c *Catalog) invalidate() {
	c.mu.Lock()
	c.cache = make(map[string]models.RewardRule)
	c.generation++
	c.mu.Unlock()
}
