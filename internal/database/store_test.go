package database

import (
	"context"
	"errors"
	"testing"

	"sticker-ledger-go/internal/models"
	"sticker-ledger-go/internal/store"
)

func TestRules_CreateUpdateToggle(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	created, err := service.CreateRule(ctx, models.RewardRule{
		Code:        "GENERATE_STICKER",
		Direction:   models.DirectionDebit,
		Amount:      30,
		Enabled:     true,
		Description: "Sticker generation",
	})
	if err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}
	if created.Id == 0 {
		t.Error("Expected rule id to be assigned")
	}

	_, err = service.CreateRule(ctx, models.RewardRule{Code: "GENERATE_STICKER", Direction: models.DirectionCredit})
	if !errors.Is(err, store.ErrDuplicateRule) || !errors.Is(err, store.ErrConflict) {
		t.Errorf("Expected duplicate rule conflict, got %v", err)
	}

	created.Amount = 40
	created.MetadataSchema = `{"type":"object"}`
	updated, err := service.UpdateRule(ctx, *created)
	if err != nil {
		t.Fatalf("UpdateRule failed: %v", err)
	}
	if updated.Amount != 40 || updated.MetadataSchema != `{"type":"object"}` {
		t.Errorf("Unexpected updated rule: %+v", updated)
	}

	if err := service.SetRuleEnabled(ctx, "GENERATE_STICKER", false); err != nil {
		t.Fatalf("SetRuleEnabled failed: %v", err)
	}
	rule, err := service.GetRuleByCode(ctx, "GENERATE_STICKER")
	if err != nil {
		t.Fatalf("GetRuleByCode failed: %v", err)
	}
	if rule.Enabled {
		t.Error("Expected rule to be disabled")
	}

	if _, err := service.GetRuleByCode(ctx, "UNKNOWN"); !errors.Is(err, store.ErrRuleNotFound) {
		t.Errorf("Expected ErrRuleNotFound, got %v", err)
	}
	if err := service.SetRuleEnabled(ctx, "UNKNOWN", true); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := service.UpdateRule(ctx, models.RewardRule{Id: 999, Code: "X", Direction: models.DirectionCredit}); !errors.Is(err, store.ErrRuleNotFound) {
		t.Errorf("Expected ErrRuleNotFound on update, got %v", err)
	}

	rules, err := service.ListRules(ctx)
	if err != nil || len(rules) != 1 {
		t.Errorf("Expected 1 rule, got %d (%v)", len(rules), err)
	}
}

func TestWallets_ReplaceActiveWallet(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := service.GetActiveWallet(ctx, 7); !errors.Is(err, store.ErrWalletNotFound) {
		t.Fatalf("Expected ErrWalletNotFound, got %v", err)
	}

	first, err := service.ReplaceActiveWallet(ctx, 7, "EQ-first", "tonkeeper")
	if err != nil {
		t.Fatalf("ReplaceActiveWallet failed: %v", err)
	}
	second, err := service.ReplaceActiveWallet(ctx, 7, "EQ-second", "")
	if err != nil {
		t.Fatalf("ReplaceActiveWallet failed: %v", err)
	}

	active, err := service.GetActiveWallet(ctx, 7)
	if err != nil {
		t.Fatalf("GetActiveWallet failed: %v", err)
	}
	if active.Id != second.Id || active.WalletAddress != "EQ-second" {
		t.Errorf("Expected second wallet to be active, got %+v", active)
	}

	// Relinking a known address reactivates its row
	again, err := service.ReplaceActiveWallet(ctx, 7, "EQ-first", "")
	if err != nil {
		t.Fatalf("ReplaceActiveWallet failed: %v", err)
	}
	if again.Id != first.Id {
		t.Errorf("Expected reactivation of wallet %d, got %d", first.Id, again.Id)
	}
	if again.WalletType != "tonkeeper" {
		t.Errorf("Expected wallet type to be kept, got %q", again.WalletType)
	}

	wallets, err := service.ListWallets(ctx, 7)
	if err != nil {
		t.Fatalf("ListWallets failed: %v", err)
	}
	if len(wallets) != 2 {
		t.Fatalf("Expected 2 wallet rows, got %d", len(wallets))
	}
	activeCount := 0
	for _, w := range wallets {
		if w.IsActive {
			activeCount++
		}
	}
	if activeCount != 1 {
		t.Errorf("Expected exactly one active wallet, got %d", activeCount)
	}
}

func createTestIntent(t *testing.T, service *Service, reference string) (*models.TransactionIntent, []models.TransactionLeg) {
	t.Helper()
	author := int64(200)
	intent, legs, err := service.CreateIntent(context.Background(), models.TransactionIntent{
		Type:            models.IntentTypeDonation,
		InitiatorUserId: 100,
		SubjectEntityId: 300,
		AmountNano:      1_000_000_000,
		Currency:        models.CurrencyTon,
		Status:          models.IntentStatusCreated,
		Reference:       reference,
	}, []models.TransactionLeg{
		{LegType: models.LegTypeMain, ToEntityId: &author, ToWalletAddress: "EQ-author", AmountNano: 1_000_000_000},
	})
	if err != nil {
		t.Fatalf("CreateIntent failed: %v", err)
	}
	return intent, legs
}

func TestIntents_CreateAndLoad(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	intent, legs := createTestIntent(t, service, "ref-1")
	if intent.Id == 0 || len(legs) != 1 || legs[0].IntentId != intent.Id {
		t.Fatalf("Unexpected stored intent %+v legs %+v", intent, legs)
	}

	loaded, err := service.GetIntent(ctx, intent.Id)
	if err != nil {
		t.Fatalf("GetIntent failed: %v", err)
	}
	if loaded.Status != models.IntentStatusCreated || loaded.AmountNano != 1_000_000_000 || loaded.Reference != "ref-1" {
		t.Errorf("Unexpected loaded intent: %+v", loaded)
	}

	loadedLegs, err := service.GetLegs(ctx, intent.Id)
	if err != nil {
		t.Fatalf("GetLegs failed: %v", err)
	}
	if len(loadedLegs) != 1 || loadedLegs[0].ToWalletAddress != "EQ-author" || *loadedLegs[0].ToEntityId != 200 {
		t.Errorf("Unexpected legs: %+v", loadedLegs)
	}

	if _, err := service.GetIntent(ctx, 999); !errors.Is(err, store.ErrIntentNotFound) {
		t.Errorf("Expected ErrIntentNotFound, got %v", err)
	}
}

func TestIntents_CreateRollsBackOnBadLeg(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	author := int64(200)
	for name, leg := range map[string]models.TransactionLeg{
		"zero amount":  {LegType: models.LegTypeMain, ToEntityId: &author, ToWalletAddress: "EQ-author", AmountNano: 0},
		"unknown type": {LegType: models.LegType("TIP"), ToEntityId: &author, ToWalletAddress: "EQ-author", AmountNano: 1_000_000_000},
	} {
		_, _, err := service.CreateIntent(ctx, models.TransactionIntent{
			Type:            models.IntentTypeDonation,
			InitiatorUserId: 100,
			SubjectEntityId: 300,
			AmountNano:      1_000_000_000,
			Currency:        models.CurrencyTon,
			Status:          models.IntentStatusCreated,
			Reference:       "ref-" + name,
		}, []models.TransactionLeg{
			{LegType: models.LegTypeFee, ToWalletAddress: "EQ-platform", AmountNano: 10_000_000},
			leg,
		})
		if err == nil {
			t.Fatalf("%s: expected CreateIntent to fail", name)
		}
	}

	// Neither the header nor the valid fee leg survived
	if _, err := service.GetIntent(ctx, 1); !errors.Is(err, store.ErrIntentNotFound) {
		t.Errorf("Expected ErrIntentNotFound, got %v", err)
	}
	legs, err := service.GetLegs(ctx, 1)
	if err != nil {
		t.Fatalf("GetLegs failed: %v", err)
	}
	if len(legs) != 0 {
		t.Errorf("Expected no legs, got %+v", legs)
	}

	// The store stays usable
	intent, _ := createTestIntent(t, service, "ref-ok")
	if intent.Id == 0 {
		t.Error("Expected a stored intent after the failed attempts")
	}
}

func TestIntents_CompareAndSetStatus(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	intent, _ := createTestIntent(t, service, "ref-1")

	if err := service.CompareAndSetStatus(ctx, intent.Id, models.IntentStatusCreated, models.IntentStatusSent); err != nil {
		t.Fatalf("CompareAndSetStatus failed: %v", err)
	}
	err := service.CompareAndSetStatus(ctx, intent.Id, models.IntentStatusCreated, models.IntentStatusFailed)
	if !errors.Is(err, store.ErrConcurrentModification) {
		t.Errorf("Expected ErrConcurrentModification, got %v", err)
	}
	err = service.CompareAndSetStatus(ctx, 999, models.IntentStatusCreated, models.IntentStatusSent)
	if !errors.Is(err, store.ErrIntentNotFound) {
		t.Errorf("Expected ErrIntentNotFound, got %v", err)
	}
}

func TestIntents_RecordConfirmation(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	intent, _ := createTestIntent(t, service, "ref-1")
	other, _ := createTestIntent(t, service, "ref-2")

	bt, err := service.RecordConfirmation(ctx, store.RecordConfirmationParams{
		Transaction: models.BlockchainTransaction{
			IntentId: intent.Id, TxHash: "hash-1", FromWallet: "EQ-donor", ToWallet: "EQ-author",
			AmountNano: 1_000_000_000, Currency: models.CurrencyTon, Verified: true,
		},
		NewStatus: models.IntentStatusConfirmed,
	})
	if err != nil {
		t.Fatalf("RecordConfirmation failed: %v", err)
	}
	if bt.Id == 0 {
		t.Error("Expected blockchain transaction id")
	}

	exists, err := service.TxHashExists(ctx, "hash-1")
	if err != nil || !exists {
		t.Errorf("Expected hash-1 to exist, got %v, %v", exists, err)
	}

	// A hash already used elsewhere is rejected without touching the other intent
	_, err = service.RecordConfirmation(ctx, store.RecordConfirmationParams{
		Transaction: models.BlockchainTransaction{IntentId: other.Id, TxHash: "hash-1", FromWallet: "x", ToWallet: "y", Currency: models.CurrencyTon},
		NewStatus:   models.IntentStatusConfirmed,
	})
	if !errors.Is(err, store.ErrDuplicateTransaction) {
		t.Errorf("Expected ErrDuplicateTransaction, got %v", err)
	}
	reloaded, _ := service.GetIntent(ctx, other.Id)
	if reloaded.Status != models.IntentStatusCreated {
		t.Errorf("Expected other intent to stay CREATED, got %s", reloaded.Status)
	}

	// A finalized intent refuses a second hash but keeps the attempt on record
	_, err = service.RecordConfirmation(ctx, store.RecordConfirmationParams{
		Transaction: models.BlockchainTransaction{IntentId: intent.Id, TxHash: "hash-2", FromWallet: "x", ToWallet: "y", Currency: models.CurrencyTon},
		NewStatus:   models.IntentStatusFailed,
	})
	if !errors.Is(err, store.ErrConcurrentModification) {
		t.Errorf("Expected ErrConcurrentModification, got %v", err)
	}
	exists, _ = service.TxHashExists(ctx, "hash-2")
	if !exists {
		t.Error("Expected hash-2 to be kept as a losing attempt")
	}

	txs, err := service.GetBlockchainTransactions(ctx, intent.Id)
	if err != nil {
		t.Fatalf("GetBlockchainTransactions failed: %v", err)
	}
	if len(txs) != 2 || !txs[0].Verified || txs[1].Verified || txs[1].TxHash != "hash-2" {
		t.Errorf("Unexpected blockchain transactions: %+v", txs)
	}
	confirmed, _ := service.GetIntent(ctx, intent.Id)
	if confirmed.Status != models.IntentStatusConfirmed {
		t.Errorf("Expected CONFIRMED, got %s", confirmed.Status)
	}
}
