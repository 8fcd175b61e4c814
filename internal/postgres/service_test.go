package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"sticker-ledger-go/internal/models"
	"sticker-ledger-go/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration tests run only when TEST_POSTGRES_URL points at a disposable database.
func setupTestDb(t *testing.T) *Service {
	t.Helper()
	url := os.Getenv("TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("TEST_POSTGRES_URL not set")
	}

	ctx := context.Background()
	service, err := NewService(ctx, models.DatabaseConfig{
		URL:          url,
		MaxOpenConns: 8,
		PingTimeout:  5 * time.Second,
	})
	require.NoError(t, err)

	_, err = service.pool.Exec(ctx, `TRUNCATE blockchain_transactions, transaction_legs, transaction_intents,
		user_wallets, ledger_entries, user_balances, reward_rules RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	t.Cleanup(service.Close)
	return service
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(context.Background(), models.DatabaseConfig{})
	assert.Error(t, err)

	_, err = NewService(context.Background(), models.DatabaseConfig{URL: "postgres://localhost/x", PingTimeout: time.Second})
	assert.ErrorContains(t, err, "max open connections")
}

func TestAppendEntry_ConcurrentDebits(t *testing.T) {
	service := setupTestDb(t)
	ctx := context.Background()

	_, err := service.AppendEntry(ctx, store.AppendEntryParams{
		UserId: 1, RuleCode: "DAILY_LOGIN", Direction: models.DirectionCredit, Delta: 50, ExternalId: "seed",
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, rejected := 0, 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.AppendEntry(ctx, store.AppendEntryParams{
				UserId: 1, RuleCode: "GENERATE_STICKER", Direction: models.DirectionDebit, Delta: -10,
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if errors.Is(err, store.ErrInsufficientBalance) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 5, rejected)

	balance, err := service.GetBalance(ctx, 1)
	require.NoError(t, err)
	sum, err := service.SumDeltas(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
	assert.Equal(t, balance, sum)
}

func TestAppendEntry_DuplicateExternalId(t *testing.T) {
	service := setupTestDb(t)
	ctx := context.Background()

	params := store.AppendEntryParams{
		UserId: 1, RuleCode: "DAILY_LOGIN", Direction: models.DirectionCredit, Delta: 5, ExternalId: "2024-05-01",
		Metadata: []byte(`{"day":"2024-05-01"}`),
	}
	first, err := service.AppendEntry(ctx, params)
	require.NoError(t, err)

	_, err = service.AppendEntry(ctx, params)
	assert.ErrorIs(t, err, store.ErrDuplicateEntry)

	found, err := service.FindEntryByExternalId(ctx, "DAILY_LOGIN", "2024-05-01")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, first.Id, found.Id)
	assert.JSONEq(t, `{"day":"2024-05-01"}`, string(found.Metadata))
}

func TestWalletsAndIntents(t *testing.T) {
	service := setupTestDb(t)
	ctx := context.Background()

	first, err := service.ReplaceActiveWallet(ctx, 7, "EQ-first", "tonkeeper")
	require.NoError(t, err)
	_, err = service.ReplaceActiveWallet(ctx, 7, "EQ-second", "")
	require.NoError(t, err)
	again, err := service.ReplaceActiveWallet(ctx, 7, "EQ-first", "")
	require.NoError(t, err)
	assert.Equal(t, first.Id, again.Id)
	assert.Equal(t, "tonkeeper", again.WalletType)

	author := int64(7)
	intent, legs, err := service.CreateIntent(ctx, models.TransactionIntent{
		Type: models.IntentTypeDonation, InitiatorUserId: 1, SubjectEntityId: 3, AmountNano: 1_000_000_000,
		Currency: models.CurrencyTon, Status: models.IntentStatusCreated, Reference: "ref-1",
	}, []models.TransactionLeg{{LegType: models.LegTypeMain, ToEntityId: &author, ToWalletAddress: again.WalletAddress, AmountNano: 1_000_000_000}})
	require.NoError(t, err)
	require.Len(t, legs, 1)

	_, err = service.RecordConfirmation(ctx, store.RecordConfirmationParams{
		Transaction: models.BlockchainTransaction{IntentId: intent.Id, TxHash: "h1", FromWallet: "EQ-donor",
			ToWallet: again.WalletAddress, AmountNano: 1_000_000_000, Currency: models.CurrencyTon, Verified: true},
		NewStatus: models.IntentStatusConfirmed,
	})
	require.NoError(t, err)

	_, err = service.RecordConfirmation(ctx, store.RecordConfirmationParams{
		Transaction: models.BlockchainTransaction{IntentId: intent.Id, TxHash: "h1", Currency: models.CurrencyTon},
		NewStatus:   models.IntentStatusConfirmed,
	})
	assert.ErrorIs(t, err, store.ErrDuplicateTransaction)

	loaded, err := service.GetIntent(ctx, intent.Id)
	require.NoError(t, err)
	assert.Equal(t, models.IntentStatusConfirmed, loaded.Status)

	err = service.CompareAndSetStatus(ctx, intent.Id, models.IntentStatusCreated, models.IntentStatusSent)
	assert.ErrorIs(t, err, store.ErrConcurrentModification)
}

func TestCreateIntent_RollsBackOnBadLeg(t *testing.T) {
	service := setupTestDb(t)
	ctx := context.Background()

	author := int64(7)
	_, _, err := service.CreateIntent(ctx, models.TransactionIntent{
		Type: models.IntentTypeDonation, InitiatorUserId: 1, SubjectEntityId: 3, AmountNano: 1_000_000_000,
		Currency: models.CurrencyTon, Status: models.IntentStatusCreated, Reference: "ref-bad",
	}, []models.TransactionLeg{
		{LegType: models.LegTypeFee, ToWalletAddress: "EQ-platform", AmountNano: 10_000_000},
		{LegType: models.LegTypeMain, ToEntityId: &author, ToWalletAddress: "EQ-author", AmountNano: 0},
	})
	require.Error(t, err)

	_, err = service.GetIntent(ctx, 1)
	assert.ErrorIs(t, err, store.ErrIntentNotFound)

	var intents, legs int
	require.NoError(t, service.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transaction_intents`).Scan(&intents))
	require.NoError(t, service.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transaction_legs`).Scan(&legs))
	assert.Zero(t, intents)
	assert.Zero(t, legs)
}
