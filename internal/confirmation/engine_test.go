package confirmation

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"sticker-ledger-go/internal/confirmation/mocks"
	"sticker-ledger-go/internal/database"
	"sticker-ledger-go/internal/models"
	"sticker-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	oneTon        = int64(1_000_000_000)
	authorWallet  = "EQCD39VS5jcptHL8vMjEXrzGaRcCVYto7HUn4bpAOg8xqB2N"
	feeWallet     = "EQplatformfee"
	donorWallet   = "UQdonor"
	confirmedHash = "a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90"
	failedHash    = "0f1e2d3c4b5a69788796a5b4c3d2e1f00f1e2d3c4b5a69788796a5b4c3d2e1f0"
	otherHash     = "5555555555555555555555555555555555555555555555555555555555555555"
)

type recordedConfirmation struct {
	intent models.TransactionIntent
	legs   []models.TransactionLeg
	tx     models.BlockchainTransaction
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedConfirmation
	err   error
}

func (r *fakeRecorder) RecordConfirmation(_ context.Context, intent models.TransactionIntent, legs []models.TransactionLeg, tx models.BlockchainTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedConfirmation{intent: intent, legs: legs, tx: tx})
	return r.err
}

func setupDb(t *testing.T) *database.Service {
	t.Helper()
	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "confirmations.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 4,
		PingTimeout:  5 * time.Second,
		BusyTimeout:  10 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func createDonation(t *testing.T, db *database.Service, legs ...models.TransactionLeg) *models.TransactionIntent {
	t.Helper()
	if legs == nil {
		author := int64(10)
		legs = []models.TransactionLeg{{LegType: models.LegTypeMain, ToEntityId: &author, ToWalletAddress: authorWallet, AmountNano: oneTon}}
	}
	amount := models.SumLegs(legs)
	if amount == 0 {
		amount = oneTon
	}
	intent, _, err := db.CreateIntent(context.Background(), models.TransactionIntent{
		Type:            models.IntentTypeDonation,
		InitiatorUserId: 20,
		SubjectEntityId: 300,
		AmountNano:      amount,
		Currency:        models.CurrencyTon,
		Status:          models.IntentStatusCreated,
		Reference:       uuid.NewString(),
	}, legs)
	require.NoError(t, err)
	return intent
}

func TestConfirm_Verified(t *testing.T) {
	db := setupDb(t)
	verifier := mocks.NewChainVerifier(t)
	recorder := &fakeRecorder{}
	engine := NewEngine(db, verifier, time.Second)
	engine.SetRecorder(recorder)
	intent := createDonation(t, db)

	verifier.On("Verify", mock.Anything, confirmedHash, donorWallet, authorWallet, oneTon).Return(true, nil).Once()

	result, err := engine.Confirm(context.Background(), intent.Id, confirmedHash, donorWallet)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.AlreadyProcessed)
	assert.Equal(t, models.IntentStatusConfirmed, result.Status)
	assert.Equal(t, "Transaction confirmed successfully", result.Message)

	stored, err := db.GetIntent(context.Background(), intent.Id)
	require.NoError(t, err)
	assert.Equal(t, models.IntentStatusConfirmed, stored.Status)

	txs, err := db.GetBlockchainTransactions(context.Background(), intent.Id)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, txs[0].Verified)
	assert.Equal(t, authorWallet, txs[0].ToWallet)
	assert.Equal(t, oneTon, txs[0].AmountNano)

	require.Len(t, recorder.calls, 1)
	assert.Equal(t, models.IntentStatusConfirmed, recorder.calls[0].intent.Status)
	assert.Equal(t, confirmedHash, recorder.calls[0].tx.TxHash)
}

func TestConfirm_NotVerified(t *testing.T) {
	db := setupDb(t)
	verifier := mocks.NewChainVerifier(t)
	recorder := &fakeRecorder{}
	engine := NewEngine(db, verifier, time.Second)
	engine.SetRecorder(recorder)
	intent := createDonation(t, db)

	verifier.On("Verify", mock.Anything, failedHash, "", authorWallet, oneTon).Return(false, nil).Once()

	result, err := engine.Confirm(context.Background(), intent.Id, failedHash, "")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, models.IntentStatusFailed, result.Status)
	assert.Equal(t, "Transaction failed verification", result.Message)
	assert.Empty(t, recorder.calls)

	txs, err := db.GetBlockchainTransactions(context.Background(), intent.Id)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.False(t, txs[0].Verified)

	// FAILED is terminal
	_, err = engine.Confirm(context.Background(), intent.Id, otherHash, "")
	var transition *store.InvalidStateTransitionError
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, models.IntentStatusFailed, transition.From)
}

func TestConfirm_VerifierUnavailable(t *testing.T) {
	db := setupDb(t)
	verifier := mocks.NewChainVerifier(t)
	engine := NewEngine(db, verifier, time.Second)
	intent := createDonation(t, db)

	verifier.On("Verify", mock.Anything, confirmedHash, donorWallet, authorWallet, oneTon).
		Return(false, errors.New("lite server timeout")).Once()

	_, err := engine.Confirm(context.Background(), intent.Id, confirmedHash, donorWallet)
	require.ErrorIs(t, err, store.ErrVerifierUnavailable)
	assert.True(t, store.IsRetryable(err))

	stored, err := db.GetIntent(context.Background(), intent.Id)
	require.NoError(t, err)
	assert.Equal(t, models.IntentStatusCreated, stored.Status)
	exists, err := db.TxHashExists(context.Background(), confirmedHash)
	require.NoError(t, err)
	assert.False(t, exists)

	// Same hash may be retried once the chain is reachable again
	verifier.On("Verify", mock.Anything, confirmedHash, donorWallet, authorWallet, oneTon).Return(true, nil).Once()
	result, err := engine.Confirm(context.Background(), intent.Id, confirmedHash, donorWallet)
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestConfirm_DuplicateHashAcrossIntents(t *testing.T) {
	db := setupDb(t)
	verifier := mocks.NewChainVerifier(t)
	engine := NewEngine(db, verifier, time.Second)
	first := createDonation(t, db)
	second := createDonation(t, db)

	verifier.On("Verify", mock.Anything, confirmedHash, "", authorWallet, oneTon).Return(true, nil).Once()

	_, err := engine.Confirm(context.Background(), first.Id, confirmedHash, "")
	require.NoError(t, err)

	_, err = engine.Confirm(context.Background(), second.Id, confirmedHash, "")
	assert.ErrorIs(t, err, store.ErrDuplicateTransaction)
	assert.ErrorIs(t, err, store.ErrConflict)

	stored, err := db.GetIntent(context.Background(), second.Id)
	require.NoError(t, err)
	assert.Equal(t, models.IntentStatusCreated, stored.Status)
}

func TestConfirm_SameHashInAnotherEncoding(t *testing.T) {
	db := setupDb(t)
	verifier := mocks.NewChainVerifier(t)
	engine := NewEngine(db, verifier, time.Second)
	first := createDonation(t, db)
	second := createDonation(t, db)

	raw, err := hex.DecodeString(confirmedHash)
	require.NoError(t, err)

	verifier.On("Verify", mock.Anything, confirmedHash, "", authorWallet, oneTon).Return(true, nil).Once()

	result, err := engine.Confirm(context.Background(), first.Id, strings.ToUpper(confirmedHash), "")
	require.NoError(t, err)
	assert.Equal(t, confirmedHash, result.TxHash)

	for _, encoded := range []string{
		base64.StdEncoding.EncodeToString(raw),
		base64.RawURLEncoding.EncodeToString(raw),
		confirmedHash,
	} {
		_, err = engine.Confirm(context.Background(), second.Id, encoded, "")
		assert.ErrorIs(t, err, store.ErrDuplicateTransaction, encoded)
	}

	txs, err := db.GetBlockchainTransactions(context.Background(), first.Id)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, confirmedHash, txs[0].TxHash)

	stored, err := db.GetIntent(context.Background(), second.Id)
	require.NoError(t, err)
	assert.Equal(t, models.IntentStatusCreated, stored.Status)
}

func TestConfirm_IntentFinalizedDuringVerification(t *testing.T) {
	db := setupDb(t)
	verifier := mocks.NewChainVerifier(t)
	recorder := &fakeRecorder{}
	engine := NewEngine(db, verifier, time.Second)
	engine.SetRecorder(recorder)
	intent := createDonation(t, db)

	verifier.On("Verify", mock.Anything, confirmedHash, "", authorWallet, oneTon).
		Run(func(mock.Arguments) {
			require.NoError(t, db.CompareAndSetStatus(context.Background(), intent.Id, models.IntentStatusCreated, models.IntentStatusFailed))
		}).
		Return(true, nil).Once()

	_, err := engine.Confirm(context.Background(), intent.Id, confirmedHash, "")
	var transition *store.InvalidStateTransitionError
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, models.IntentStatusFailed, transition.From)
	assert.Empty(t, recorder.calls)

	// The losing attempt keeps its audit row and burns the hash
	txs, err := db.GetBlockchainTransactions(context.Background(), intent.Id)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, confirmedHash, txs[0].TxHash)
	assert.True(t, txs[0].Verified)

	other := createDonation(t, db)
	_, err = engine.Confirm(context.Background(), other.Id, confirmedHash, "")
	assert.ErrorIs(t, err, store.ErrDuplicateTransaction)
}

func TestConfirm_UsesMainLeg(t *testing.T) {
	db := setupDb(t)
	verifier := mocks.NewChainVerifier(t)
	engine := NewEngine(db, verifier, time.Second)
	author := int64(10)
	intent := createDonation(t, db,
		models.TransactionLeg{LegType: models.LegTypeFee, ToWalletAddress: feeWallet, AmountNano: 25_000_000},
		models.TransactionLeg{LegType: models.LegTypeMain, ToEntityId: &author, ToWalletAddress: authorWallet, AmountNano: 975_000_000},
	)

	verifier.On("Verify", mock.Anything, confirmedHash, "", authorWallet, int64(975_000_000)).Return(true, nil).Once()

	result, err := engine.Confirm(context.Background(), intent.Id, confirmedHash, "")
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestConfirm_Rejections(t *testing.T) {
	db := setupDb(t)
	verifier := mocks.NewChainVerifier(t)
	engine := NewEngine(db, verifier, time.Second)

	_, err := engine.Confirm(context.Background(), 42, confirmedHash, "")
	assert.ErrorIs(t, err, store.ErrIntentNotFound)

	intent := createDonation(t, db)
	_, err = engine.Confirm(context.Background(), intent.Id, "   ", "")
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = engine.Confirm(context.Background(), intent.Id, "not-a-hash", "")
	var invalid *store.ValidationError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "tx_hash", invalid.Field)

	_, err = engine.Confirm(context.Background(), 0, confirmedHash, "")
	assert.ErrorIs(t, err, store.ErrValidation)

	legless := createDonation(t, db, []models.TransactionLeg{}...)
	_, err = engine.Confirm(context.Background(), legless.Id, confirmedHash, "")
	assert.ErrorIs(t, err, store.ErrIntegrity)

	verifier.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirm_ConcurrentSameHash(t *testing.T) {
	db := setupDb(t)
	verifier := mocks.NewChainVerifier(t)
	engine := NewEngine(db, verifier, time.Second)
	intent := createDonation(t, db)

	verifier.On("Verify", mock.Anything, confirmedHash, "", authorWallet, oneTon).Return(true, nil)

	const attempts = 5
	results := make([]*models.ConfirmationResult, attempts)
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = engine.Confirm(context.Background(), intent.Id, confirmedHash, "")
		}(i)
	}
	wg.Wait()

	fresh := 0
	for i := 0; i < attempts; i++ {
		if errs[i] != nil {
			// Late arrivals see the terminal status or the recorded hash
			assert.True(t, errors.Is(errs[i], store.ErrInvalidStateTransition) || errors.Is(errs[i], store.ErrDuplicateTransaction), errs[i])
			continue
		}
		assert.True(t, results[i].Success)
		if !results[i].AlreadyProcessed {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)

	txs, err := db.GetBlockchainTransactions(context.Background(), intent.Id)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}
