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

const CurrencyTon = "TON"

// IntentType is the business purpose of a TON transfer
type IntentType string

const (
	IntentTypeDonation IntentType = "DONATION"
	IntentTypePurchase IntentType = "PURCHASE"
)

func (t IntentType) Valid() bool {
	return t == IntentTypeDonation || t == IntentTypePurchase
}

// IntentStatus is the lifecycle state of a TransactionIntent
type IntentStatus string

const (
	IntentStatusCreated   IntentStatus = "CREATED"
	IntentStatusSent      IntentStatus = "SENT"
	IntentStatusConfirmed IntentStatus = "CONFIRMED"
	IntentStatusFailed    IntentStatus = "FAILED"
)

var intentTransitions = map[IntentStatus][]IntentStatus{
	IntentStatusCreated: {IntentStatusSent, IntentStatusConfirmed, IntentStatusFailed},
	IntentStatusSent:    {IntentStatusConfirmed, IntentStatusFailed},
}

func (s IntentStatus) Valid() bool {
	switch s {
	case IntentStatusCreated, IntentStatusSent, IntentStatusConfirmed, IntentStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s IntentStatus) IsTerminal() bool {
	return s == IntentStatusConfirmed || s == IntentStatusFailed
}

// Confirmable reports whether a confirmation may still be recorded.
func (s IntentStatus) Confirmable() bool {
	return s == IntentStatusCreated || s == IntentStatusSent
}

// CanTransitionTo checks the intent state machine.
func (s IntentStatus) CanTransitionTo(next IntentStatus) bool {
	for _, allowed := range intentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// LegType is a closed set of roles a leg can play within an intent
type LegType string

const (
	LegTypeMain LegType = "MAIN"
	LegTypeFee  LegType = "FEE"
)

// TransactionIntent is the server-side record of a TON transfer the client is asked to perform
type TransactionIntent struct {
	Id              int64           `db:"id"`
	Type            IntentType      `db:"intent_type"`
	InitiatorUserId int64           `db:"initiator_user_id"`
	SubjectEntityId int64           `db:"subject_entity_id"`
	AmountNano      int64           `db:"amount_nano"`
	Currency        string          `db:"currency"`
	Status          IntentStatus    `db:"status"`
	Reference       string          `db:"reference"`
	Metadata        json.RawMessage `db:"metadata"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

// TransactionLeg is one destination of an intent with a snapshotted wallet address
type TransactionLeg struct {
	Id              int64   `db:"id"`
	IntentId        int64   `db:"intent_id"`
	LegType         LegType `db:"leg_type"`
	ToEntityId      *int64  `db:"to_entity_id"`
	ToWalletAddress string  `db:"to_wallet_address"`
	AmountNano      int64   `db:"amount_nano"`
}

// BlockchainTransaction is the audit record of a submitted on-chain hash
type BlockchainTransaction struct {
	Id         int64     `db:"id"`
	IntentId   int64     `db:"intent_id"`
	TxHash     string    `db:"tx_hash"`
	FromWallet string    `db:"from_wallet"`
	ToWallet   string    `db:"to_wallet"`
	AmountNano int64     `db:"amount_nano"`
	Currency   string    `db:"currency"`
	Verified   bool      `db:"verified"`
	CreatedAt  time.Time `db:"created_at"`
}

// MainLeg returns the authoritative leg of an intent: the MAIN leg, or the first leg as a fallback.
func MainLeg(legs []TransactionLeg) (TransactionLeg, bool) {
	if len(legs) == 0 {
		return TransactionLeg{}, false
	}
	for _, leg := range legs {
		if leg.LegType == LegTypeMain {
			return leg, true
		}
	}
	return legs[0], true
}

// SumLegs adds up the leg amounts.
func SumLegs(legs []TransactionLeg) int64 {
	var total int64
	for _, leg := range legs {
		total += leg.AmountNano
	}
	return total
}
