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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sticker-ledger-go/internal/models"

	"gopkg.in/yaml.v2"
)

type RuleSeed struct {
	Code           string `yaml:"code"`
	Direction      string `yaml:"direction"`
	Amount         int64  `yaml:"amount"`
	Enabled        *bool  `yaml:"enabled"`
	Description    string `yaml:"description"`
	MetadataSchema string `yaml:"metadata_schema"`
}

type RulesConfig struct {
	Rules []RuleSeed `yaml:"rules"`
}

// LoadRuleCatalog reads the reward rule seeds. Rules are enabled unless the
// file says otherwise.
func LoadRuleCatalog(rulesFile string) ([]models.RewardRule, error) {
	var rulesPath string
	if filepath.IsAbs(rulesFile) {
		rulesPath = rulesFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		rulesPath = filepath.Join(wd, rulesFile)
	}

	data, err := os.ReadFile(rulesPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", rulesFile, err)
	}

	return ParseRuleCatalog(data)
}

func ParseRuleCatalog(data []byte) ([]models.RewardRule, error) {
	var config RulesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse rule catalog: %w", err)
	}

	seen := make(map[string]bool, len(config.Rules))
	result := make([]models.RewardRule, 0, len(config.Rules))
	for i, seed := range config.Rules {
		code := strings.TrimSpace(seed.Code)
		if code == "" {
			return nil, fmt.Errorf("rule at index %d missing code", i)
		}
		if seen[code] {
			return nil, fmt.Errorf("rule %s declared twice", code)
		}
		seen[code] = true

		direction := models.Direction(strings.ToUpper(strings.TrimSpace(seed.Direction)))
		if !direction.Valid() {
			return nil, fmt.Errorf("rule %s has invalid direction %q", code, seed.Direction)
		}

		enabled := true
		if seed.Enabled != nil {
			enabled = *seed.Enabled
		}

		result = append(result, models.RewardRule{
			Code:           code,
			Direction:      direction,
			Amount:         seed.Amount,
			Enabled:        enabled,
			Description:    seed.Description,
			MetadataSchema: strings.TrimSpace(seed.MetadataSchema),
		})
	}

	return result, nil
}
