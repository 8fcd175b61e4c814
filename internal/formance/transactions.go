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

package formance

import (
	"context"
	"fmt"
	"strconv"

	"sticker-ledger-go/internal/models"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Numscript templates. All metadata is set inside the script via
// set_tx_meta() so the Formance transaction is fully self-describing.
// ---------------------------------------------------------------------------

const numscriptArtCredit = `vars {
  asset $asset
  number $amount
  account $user_id
  string $entry_id
  string $rule_code
  string $external_id
  string $balance_after
  string $request_id
  string $source
}

send [$asset $amount] (
  source = @world
  destination = @users:$user_id
)

set_tx_meta("event_type", "art_credit")
set_tx_meta("entry_id", $entry_id)
set_tx_meta("rule_code", $rule_code)
set_tx_meta("external_id", $external_id)
set_tx_meta("balance_after", $balance_after)
set_tx_meta("request_id", $request_id)
set_tx_meta("source", $source)
`

const numscriptArtDebit = `vars {
  asset $asset
  number $amount
  account $user_id
  string $entry_id
  string $rule_code
  string $external_id
  string $balance_after
  string $request_id
  string $source
}

send [$asset $amount] (
  source = @users:$user_id allowing unbounded overdraft
  destination = @platform:art:spent
)

set_tx_meta("event_type", "art_debit")
set_tx_meta("entry_id", $entry_id)
set_tx_meta("rule_code", $rule_code)
set_tx_meta("external_id", $external_id)
set_tx_meta("balance_after", $balance_after)
set_tx_meta("request_id", $request_id)
set_tx_meta("source", $source)
`

const numscriptTonLeg = `vars {
  asset $asset
  number $amount
  account $initiator_id
  account $recipient
  string $intent_id
  string $intent_type
  string $intent_reference
  string $leg_type
  string $tx_hash
  string $to_wallet
  string $request_id
  string $source
}

send [$asset $amount] (
  source = @users:$initiator_id:ton allowing unbounded overdraft
  destination = $recipient
)

set_tx_meta("event_type", "ton_transfer_confirmed")
set_tx_meta("intent_id", $intent_id)
set_tx_meta("intent_type", $intent_type)
set_tx_meta("intent_reference", $intent_reference)
set_tx_meta("leg_type", $leg_type)
set_tx_meta("tx_hash", $tx_hash)
set_tx_meta("to_wallet", $to_wallet)
set_tx_meta("request_id", $request_id)
set_tx_meta("source", $source)
`

const adhocRuleCode = "ADHOC"

// RecordEntry mirrors one ART ledger entry. Replays are ignored.
func (m *Mirror) RecordEntry(ctx context.Context, entry models.LedgerEntry) error {
	postTx := entryTransaction(entry, models.GetRequestContext(ctx))

	_, err := m.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger:            m.ledger,
		V2PostTransaction: postTx,
	})
	if err != nil {
		if isConflictError(err) {
			return nil // idempotent
		}
		return fmt.Errorf("error mirroring ledger entry %d: %w", entry.Id, err)
	}

	zap.L().Info("Ledger entry mirrored in Formance",
		zap.Int64("entry_id", entry.Id),
		zap.Int64("user_id", entry.UserId),
		zap.Int64("delta", entry.Delta))
	return nil
}

// RecordConfirmation mirrors every leg of a confirmed intent as its own transaction.
func (m *Mirror) RecordConfirmation(ctx context.Context, intent models.TransactionIntent, legs []models.TransactionLeg, tx models.BlockchainTransaction) error {
	rc := models.GetRequestContext(ctx)
	for _, leg := range legs {
		_, err := m.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
			Ledger:            m.ledger,
			V2PostTransaction: legTransaction(intent, leg, tx, rc),
		})
		if err != nil {
			if isConflictError(err) {
				continue
			}
			return fmt.Errorf("error mirroring %s leg of intent %d: %w", leg.LegType, intent.Id, err)
		}
	}

	zap.L().Info("Confirmed intent mirrored in Formance",
		zap.Int64("intent_id", intent.Id),
		zap.String("tx_hash", tx.TxHash),
		zap.Int("legs", len(legs)))
	return nil
}

// entryTransaction builds the Formance transaction for an ART entry.
func entryTransaction(entry models.LedgerEntry, rc *models.RequestContext) shared.V2PostTransaction {
	script := numscriptArtCredit
	amount := entry.Delta
	if entry.Delta < 0 {
		script = numscriptArtDebit
		amount = -entry.Delta
	}
	ruleCode := entry.RuleCode
	if entry.IsAdhoc() {
		ruleCode = adhocRuleCode
	}
	requestId, source := requestMeta(rc)

	postTx := shared.V2PostTransaction{
		Reference: strPtr(entryReference(entry.Id)),
		Script: &shared.V2PostTransactionScript{
			Plain: script,
			Vars: map[string]string{
				"asset":         formanceAsset(assetArt),
				"amount":        strconv.FormatInt(amount, 10),
				"user_id":       strconv.FormatInt(entry.UserId, 10),
				"entry_id":      strconv.FormatInt(entry.Id, 10),
				"rule_code":     ruleCode,
				"external_id":   entry.ExternalId,
				"balance_after": strconv.FormatInt(entry.BalanceAfter, 10),
				"request_id":    requestId,
				"source":        source,
			},
		},
	}
	if !entry.CreatedAt.IsZero() {
		ts := entry.CreatedAt
		postTx.Timestamp = &ts
	}
	return postTx
}

// legTransaction builds the Formance transaction for one leg of a confirmed intent.
func legTransaction(intent models.TransactionIntent, leg models.TransactionLeg, tx models.BlockchainTransaction, rc *models.RequestContext) shared.V2PostTransaction {
	requestId, source := requestMeta(rc)

	postTx := shared.V2PostTransaction{
		Reference: strPtr(legReference(intent.Id, leg.Id)),
		Script: &shared.V2PostTransactionScript{
			Plain: numscriptTonLeg,
			Vars: map[string]string{
				"asset":            formanceAsset(assetTon),
				"amount":           strconv.FormatInt(leg.AmountNano, 10),
				"initiator_id":     strconv.FormatInt(intent.InitiatorUserId, 10),
				"recipient":        legRecipient(leg),
				"intent_id":        strconv.FormatInt(intent.Id, 10),
				"intent_type":      string(intent.Type),
				"intent_reference": intent.Reference,
				"leg_type":         string(leg.LegType),
				"tx_hash":          tx.TxHash,
				"to_wallet":        leg.ToWalletAddress,
				"request_id":       requestId,
				"source":           source,
			},
		},
	}
	if !tx.CreatedAt.IsZero() {
		ts := tx.CreatedAt
		postTx.Timestamp = &ts
	}
	return postTx
}

// legRecipient maps a leg to the account receiving its TON.
func legRecipient(leg models.TransactionLeg) string {
	switch {
	case leg.LegType == models.LegTypeFee:
		return "platform:ton:fees"
	case leg.ToEntityId != nil:
		return fmt.Sprintf("users:%d:ton", *leg.ToEntityId)
	default:
		return "platform:ton:unassigned"
	}
}

func entryReference(entryId int64) string {
	return fmt.Sprintf("art-entry-%d", entryId)
}

func legReference(intentId, legId int64) string {
	return fmt.Sprintf("intent-%d-leg-%d", intentId, legId)
}

func requestMeta(rc *models.RequestContext) (string, string) {
	if rc == nil {
		return "", ""
	}
	return rc.RequestId, rc.Source
}
