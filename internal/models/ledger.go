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

package models

import (
	"encoding/json"
	"time"
)

// Direction of a reward rule or ledger entry
type Direction string

const (
	DirectionCredit Direction = "CREDIT"
	DirectionDebit  Direction = "DEBIT"
)

func (d Direction) Valid() bool {
	return d == DirectionCredit || d == DirectionDebit
}

// Apply turns a non-negative nominal amount into a signed delta.
func (d Direction) Apply(amount int64) int64 {
	if d == DirectionDebit {
		return -amount
	}
	return amount
}

// DirectionOf derives the direction of a signed delta.
func DirectionOf(delta int64) Direction {
	if delta < 0 {
		return DirectionDebit
	}
	return DirectionCredit
}

// RewardRule is a named tariff describing how much ART a business event earns or costs
type RewardRule struct {
	Id             int64     `db:"id" yaml:"-"`
	Code           string    `db:"code" yaml:"code"`
	Direction      Direction `db:"direction" yaml:"direction"`
	Amount         int64     `db:"amount" yaml:"amount"`
	Enabled        bool      `db:"is_enabled" yaml:"enabled"`
	Description    string    `db:"description" yaml:"description"`
	MetadataSchema string    `db:"metadata_schema" yaml:"metadata_schema"`
	CreatedAt      time.Time `db:"created_at" yaml:"-"`
	UpdatedAt      time.Time `db:"updated_at" yaml:"-"`
}

// Delta is the signed nominal amount of the rule.
func (r RewardRule) Delta() int64 {
	return r.Direction.Apply(r.Amount)
}

// LedgerEntry is an immutable ART movement (cold data)
type LedgerEntry struct {
	Id           int64           `db:"id"`
	UserId       int64           `db:"user_id"`
	RuleCode     string          `db:"rule_code"` // empty for ad-hoc adjustments
	Direction    Direction       `db:"direction"`
	Delta        int64           `db:"delta"`
	BalanceAfter int64           `db:"balance_after"`
	Metadata     json.RawMessage `db:"metadata"`
	ExternalId   string          `db:"external_id"`
	PerformedBy  *int64          `db:"performed_by"`
	CreatedAt    time.Time       `db:"created_at"`
}

// IsAdhoc reports whether the entry was posted without a rule.
func (e LedgerEntry) IsAdhoc() bool {
	return e.RuleCode == ""
}

// UserBalance represents the cached ART balance of a user (hot data)
type UserBalance struct {
	UserId    int64     `db:"user_id"`
	Balance   int64     `db:"balance"`
	Version   int64     `db:"version"`
	UpdatedAt time.Time `db:"updated_at"`
}

// UserWallet is a TON wallet address linked to a user
type UserWallet struct {
	Id            int64     `db:"id"`
	UserId        int64     `db:"user_id"`
	WalletAddress string    `db:"wallet_address"`
	WalletType    string    `db:"wallet_type"`
	IsActive      bool      `db:"is_active"`
	CreatedAt     time.Time `db:"created_at"`
}
