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

package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"sticker-ledger-go/internal/models"
	"sticker-ledger-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateParams contains the parameters for creating a transaction intent
type CreateParams struct {
	Type            models.IntentType
	InitiatorUserId int64
	SubjectEntityId int64
	AmountNano      int64
	Metadata        json.RawMessage
}

// Engine owns the lifecycle of transaction intents and their legs
type Engine struct {
	store    store.IntentStore
	resolver DestinationResolver
}

func NewEngine(intentStore store.IntentStore, resolver DestinationResolver) *Engine {
	return &Engine{store: intentStore, resolver: resolver}
}

// CreateIntent stores a CREATED intent together with at least one leg.
// The legs always add up to the intent amount.
func (e *Engine) CreateIntent(ctx context.Context, params CreateParams) (*models.TransactionIntent, []models.TransactionLeg, error) {
	zap.L().Info("Creating transaction intent",
		zap.String("type", string(params.Type)),
		zap.Int64("initiator_user_id", params.InitiatorUserId),
		zap.Int64("subject_entity_id", params.SubjectEntityId),
		zap.Int64("amount_nano", params.AmountNano))

	if err := validateCreate(params); err != nil {
		return nil, nil, err
	}
	metadata := params.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage("{}")
	} else if !json.Valid(metadata) {
		return nil, nil, store.NewValidationError("metadata", "must be valid JSON")
	}

	legs, err := e.resolver.ResolveLegs(ctx, params.Type, params.SubjectEntityId, params.AmountNano)
	if err != nil {
		return nil, nil, err
	}
	if len(legs) == 0 {
		return nil, nil, &store.IntegrityError{Reason: "destination resolver returned no legs"}
	}
	if total := models.SumLegs(legs); total != params.AmountNano {
		return nil, nil, &store.IntegrityError{
			Reason: fmt.Sprintf("legs total %d does not match intent amount %d", total, params.AmountNano),
		}
	}

	intent, stored, err := e.store.CreateIntent(ctx, models.TransactionIntent{
		Type:            params.Type,
		InitiatorUserId: params.InitiatorUserId,
		SubjectEntityId: params.SubjectEntityId,
		AmountNano:      params.AmountNano,
		Currency:        models.CurrencyTon,
		Status:          models.IntentStatusCreated,
		Reference:       uuid.NewString(),
		Metadata:        metadata,
	}, legs)
	if err != nil {
		zap.L().Error("Failed to store intent", zap.Error(err))
		return nil, nil, err
	}

	zap.L().Info("Transaction intent created",
		zap.Int64("intent_id", intent.Id),
		zap.String("reference", intent.Reference),
		zap.Int("legs", len(stored)))
	return intent, stored, nil
}

// FindById returns nil, nil when the intent does not exist.
func (e *Engine) FindById(ctx context.Context, id int64) (*models.TransactionIntent, error) {
	intent, err := e.store.GetIntent(ctx, id)
	if errors.Is(err, store.ErrIntentNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return intent, nil
}

func (e *Engine) GetLegsForIntent(ctx context.Context, id int64) ([]models.TransactionLeg, error) {
	return e.store.GetLegs(ctx, id)
}

// UpdateStatus moves the intent along the state machine. The change is
// applied only if nobody else moved the intent in the meantime.
func (e *Engine) UpdateStatus(ctx context.Context, id int64, next models.IntentStatus) (*models.TransactionIntent, error) {
	if !next.Valid() {
		return nil, store.NewValidationError("status", fmt.Sprintf("unknown status %q", next))
	}

	current, err := e.store.GetIntent(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(next) {
		zap.L().Warn("Rejected intent status change",
			zap.Int64("intent_id", id),
			zap.String("from", string(current.Status)),
			zap.String("to", string(next)))
		return nil, &store.InvalidStateTransitionError{IntentId: id, From: current.Status, To: next}
	}

	err = e.store.CompareAndSetStatus(ctx, id, current.Status, next)
	if errors.Is(err, store.ErrConcurrentModification) {
		reloaded, reloadErr := e.store.GetIntent(ctx, id)
		if reloadErr != nil {
			return nil, reloadErr
		}
		return nil, &store.InvalidStateTransitionError{IntentId: id, From: reloaded.Status, To: next}
	}
	if err != nil {
		return nil, err
	}

	zap.L().Info("Intent status updated",
		zap.Int64("intent_id", id),
		zap.String("from", string(current.Status)),
		zap.String("to", string(next)))
	return e.store.GetIntent(ctx, id)
}

// MarkSent records that the user claims to have submitted the transfer.
func (e *Engine) MarkSent(ctx context.Context, id int64) (*models.TransactionIntent, error) {
	return e.UpdateStatus(ctx, id, models.IntentStatusSent)
}

func validateCreate(params CreateParams) error {
	if !params.Type.Valid() {
		return store.NewValidationError("intent_type", fmt.Sprintf("unknown type %q", params.Type))
	}
	if params.InitiatorUserId <= 0 {
		return store.NewValidationError("initiator_user_id", "must be positive")
	}
	if params.SubjectEntityId <= 0 {
		return store.NewValidationError("subject_entity_id", "must be positive")
	}
	if params.AmountNano <= 0 {
		return store.NewValidationError("amount_nano", "must be positive")
	}
	return nil
}
