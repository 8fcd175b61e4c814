package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"sticker-ledger-go/internal/models"
	"sticker-ledger-go/internal/store"
)

func setupTestDb(t *testing.T) (*Service, func()) {
	t.Helper()
	cfg := models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "ledger.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 4,
		PingTimeout:  5 * time.Second,
		BusyTimeout:  10 * time.Second,
	}

	service, err := NewService(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	return service, service.Close
}

func credit(userId, amount int64, externalId string) store.AppendEntryParams {
	return store.AppendEntryParams{
		UserId:     userId,
		RuleCode:   "DAILY_LOGIN",
		Direction:  models.DirectionCredit,
		Delta:      amount,
		ExternalId: externalId,
	}
}

func debit(userId, amount int64, externalId string) store.AppendEntryParams {
	return store.AppendEntryParams{
		UserId:     userId,
		RuleCode:   "GENERATE_STICKER",
		Direction:  models.DirectionDebit,
		Delta:      -amount,
		ExternalId: externalId,
	}
}

func TestAppendEntry_Credit(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	entry, err := service.AppendEntry(ctx, credit(1, 100, "login-1"))
	if err != nil {
		t.Fatalf("AppendEntry failed: %v", err)
	}

	if entry.Id == 0 {
		t.Error("Expected entry id to be assigned")
	}
	if entry.BalanceAfter != 100 {
		t.Errorf("Expected balance after 100, got %d", entry.BalanceAfter)
	}
	if string(entry.Metadata) != "{}" {
		t.Errorf("Expected empty metadata object, got %s", entry.Metadata)
	}

	balance, err := service.GetBalance(ctx, 1)
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance != 100 {
		t.Errorf("Expected cached balance 100, got %d", balance)
	}
}

func TestAppendEntry_Debit(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := service.AppendEntry(ctx, credit(1, 100, "login-1")); err != nil {
		t.Fatalf("Initial credit failed: %v", err)
	}

	entry, err := service.AppendEntry(ctx, debit(1, 30, "gen-1"))
	if err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	if entry.Delta != -30 {
		t.Errorf("Expected delta -30, got %d", entry.Delta)
	}
	if entry.BalanceAfter != 70 {
		t.Errorf("Expected balance after 70, got %d", entry.BalanceAfter)
	}
}

func TestAppendEntry_InsufficientBalance(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := service.AppendEntry(ctx, credit(1, 10, "login-1")); err != nil {
		t.Fatalf("Initial credit failed: %v", err)
	}

	_, err := service.AppendEntry(ctx, debit(1, 30, "gen-1"))
	var insufficient *store.InsufficientBalanceError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Expected InsufficientBalanceError, got %v", err)
	}
	if insufficient.Balance != 10 || insufficient.Delta != -30 {
		t.Errorf("Unexpected error details: %+v", insufficient)
	}

	entries, err := service.GetEntries(ctx, 1, 10, 0)
	if err != nil {
		t.Fatalf("GetEntries failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected ledger to be untouched with 1 entry, got %d", len(entries))
	}
	balance, _ := service.GetBalance(ctx, 1)
	if balance != 10 {
		t.Errorf("Expected balance 10, got %d", balance)
	}
}

func TestAppendEntry_DuplicateExternalId(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	first, err := service.AppendEntry(ctx, credit(1, 100, "login-2024-05-01"))
	if err != nil {
		t.Fatalf("First append failed: %v", err)
	}

	_, err = service.AppendEntry(ctx, credit(1, 100, "login-2024-05-01"))
	if !errors.Is(err, store.ErrDuplicateEntry) {
		t.Fatalf("Expected ErrDuplicateEntry, got %v", err)
	}

	found, err := service.FindEntryByExternalId(ctx, "DAILY_LOGIN", "login-2024-05-01")
	if err != nil {
		t.Fatalf("FindEntryByExternalId failed: %v", err)
	}
	if found == nil || found.Id != first.Id {
		t.Errorf("Expected to find entry %d, got %+v", first.Id, found)
	}

	// Same external id under another rule is a different key
	if _, err := service.AppendEntry(ctx, store.AppendEntryParams{
		UserId: 1, RuleCode: "INVITE_FRIEND", Direction: models.DirectionCredit, Delta: 5, ExternalId: "login-2024-05-01",
	}); err != nil {
		t.Errorf("Expected different rule to accept the same external id, got %v", err)
	}

	missing, err := service.FindEntryByExternalId(ctx, "DAILY_LOGIN", "never-seen")
	if err != nil || missing != nil {
		t.Errorf("Expected nil, nil for unknown external id, got %+v, %v", missing, err)
	}
}

func TestAppendEntry_AdhocEntries(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	admin := int64(42)
	for i := 0; i < 2; i++ {
		entry, err := service.AppendEntry(ctx, store.AppendEntryParams{
			UserId:      1,
			Direction:   models.DirectionCredit,
			Delta:       25,
			Metadata:    []byte(`{"reason":"support"}`),
			PerformedBy: &admin,
		})
		if err != nil {
			t.Fatalf("Ad-hoc append %d failed: %v", i, err)
		}
		if !entry.IsAdhoc() {
			t.Error("Expected entry without rule code")
		}
	}

	entries, err := service.GetEntries(ctx, 1, 10, 0)
	if err != nil {
		t.Fatalf("GetEntries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].PerformedBy == nil || *entries[0].PerformedBy != admin {
		t.Errorf("Expected performed_by %d, got %v", admin, entries[0].PerformedBy)
	}
	if string(entries[0].Metadata) != `{"reason":"support"}` {
		t.Errorf("Unexpected metadata %s", entries[0].Metadata)
	}
}

func TestGetEntries_RunningSum(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	deltas := []store.AppendEntryParams{
		credit(1, 100, "a"), debit(1, 30, "b"), credit(1, 5, "c"), debit(1, 75, "d"),
	}
	for _, params := range deltas {
		if _, err := service.AppendEntry(ctx, params); err != nil {
			t.Fatalf("AppendEntry failed: %v", err)
		}
	}

	entries, err := service.GetEntries(ctx, 1, 10, 0)
	if err != nil {
		t.Fatalf("GetEntries failed: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("Expected 4 entries, got %d", len(entries))
	}

	// Newest first: walk backwards to check the chain
	var previous int64
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].BalanceAfter != previous+entries[i].Delta {
			t.Errorf("Entry %d breaks running sum: %d != %d + %d",
				entries[i].Id, entries[i].BalanceAfter, previous, entries[i].Delta)
		}
		previous = entries[i].BalanceAfter
	}

	sum, err := service.SumDeltas(ctx, 1)
	if err != nil {
		t.Fatalf("SumDeltas failed: %v", err)
	}
	balance, _ := service.GetBalance(ctx, 1)
	if sum != balance || balance != 0 {
		t.Errorf("Expected sum and balance to be 0, got sum=%d balance=%d", sum, balance)
	}

	page, err := service.GetEntries(ctx, 1, 2, 2)
	if err != nil {
		t.Fatalf("GetEntries page failed: %v", err)
	}
	if len(page) != 2 || page[0].Id != entries[2].Id {
		t.Errorf("Unexpected second page: %+v", page)
	}
}

func TestAppendEntry_ConcurrentDebits(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := service.AppendEntry(ctx, credit(1, 50, "seed")); err != nil {
		t.Fatalf("Seed credit failed: %v", err)
	}

	const workers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, rejected := 0, 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := service.AppendEntry(ctx, store.AppendEntryParams{
				UserId: 1, RuleCode: "GENERATE_STICKER", Direction: models.DirectionDebit, Delta: -10,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, store.ErrInsufficientBalance):
				rejected++
			default:
				t.Errorf("Unexpected error from worker %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded != 5 || rejected != 5 {
		t.Errorf("Expected 5 successes and 5 rejections, got %d and %d", succeeded, rejected)
	}

	balance, _ := service.GetBalance(ctx, 1)
	sum, _ := service.SumDeltas(ctx, 1)
	if balance != 0 || sum != 0 {
		t.Errorf("Expected balance and sum 0, got balance=%d sum=%d", balance, sum)
	}
}

func TestListBalances(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	for _, userId := range []int64{3, 1, 2} {
		if _, err := service.AppendEntry(ctx, credit(userId, userId*10, "")); err != nil {
			t.Fatalf("AppendEntry failed: %v", err)
		}
	}

	balances, err := service.ListBalances(ctx)
	if err != nil {
		t.Fatalf("ListBalances failed: %v", err)
	}
	if len(balances) != 3 {
		t.Fatalf("Expected 3 balances, got %d", len(balances))
	}
	for i, balance := range balances {
		if balance.UserId != int64(i+1) || balance.Balance != int64(i+1)*10 {
			t.Errorf("Unexpected balance row %d: %+v", i, balance)
		}
	}

	missing, err := service.GetBalance(ctx, 99)
	if err != nil || missing != 0 {
		t.Errorf("Expected zero balance for unknown user, got %d, %v", missing, err)
	}
}
