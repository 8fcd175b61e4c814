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
	"time"
)

// BalanceView is the user-facing ART balance
type BalanceView struct {
	UserId  int64 `json:"user_id"`
	Balance int64 `json:"balance"`
}

// HistoryRecord represents a ledger entry in the user's history
type HistoryRecord struct {
	Id           int64     `json:"id"`
	RuleCode     string    `json:"rule_code,omitempty"`
	Direction    Direction `json:"direction"`
	Delta        int64     `json:"delta"`
	BalanceAfter int64     `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}

// Tariff is a single public price list row
type Tariff struct {
	Code        string `json:"code"`
	Amount      int64  `json:"amount"`
	Description string `json:"description,omitempty"`
}

// Tariffs lists enabled rules grouped by direction
type Tariffs struct {
	Credits []Tariff `json:"credits"`
	Debits  []Tariff `json:"debits"`
}

// LegInstruction is what the client needs to perform one transfer of an intent
type LegInstruction struct {
	LegType       LegType `json:"leg_type"`
	WalletAddress string  `json:"wallet_address"`
	AmountNano    int64   `json:"amount_nano"`
	AmountTon     string  `json:"amount_ton"`
}

// PreparedIntent is returned to the client after an intent is created
type PreparedIntent struct {
	IntentId   int64            `json:"intent_id"`
	Reference  string           `json:"reference"`
	Status     IntentStatus     `json:"status"`
	AmountNano int64            `json:"amount_nano"`
	AmountTon  string           `json:"amount_ton"`
	Currency   string           `json:"currency"`
	Legs       []LegInstruction `json:"legs"`
}

// ConfirmationResult represents the outcome of a confirmation request
type ConfirmationResult struct {
	IntentId         int64        `json:"intent_id"`
	Status           IntentStatus `json:"status"`
	TxHash           string       `json:"tx_hash"`
	Success          bool         `json:"success"`
	AlreadyProcessed bool         `json:"already_processed,omitempty"`
	Message          string       `json:"message"`
}
