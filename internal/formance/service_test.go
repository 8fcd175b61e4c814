package formance

import (
	"context"
	"math/big"
	"strings"
	"testing"
	"time"

	"sticker-ledger-go/internal/models"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
)

// ---------- Unit tests for pure helpers (no Formance stack needed) ----------

func TestFormanceAsset(t *testing.T) {
	tests := []struct {
		symbol string
		want   string
	}{
		{"ART", "ART/0"},
		{"TON", "TON/9"},
		{"UNKNOWN", "UNKNOWN/0"},
	}
	for _, tt := range tests {
		if got := formanceAsset(tt.symbol); got != tt.want {
			t.Errorf("formanceAsset(%q) = %q, want %q", tt.symbol, got, tt.want)
		}
	}
}

func TestBigIntToDecimal(t *testing.T) {
	result := bigIntToDecimal(big.NewInt(1_500_000_000), "TON")
	if !result.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("expected 1.5, got %s", result.String())
	}

	result = bigIntToDecimal(big.NewInt(42), "ART")
	if !result.Equal(decimal.NewFromInt(42)) {
		t.Errorf("expected 42, got %s", result.String())
	}

	if !bigIntToDecimal(nil, "TON").IsZero() {
		t.Error("nil should return zero")
	}
}

func TestVolumeBalance(t *testing.T) {
	vols := map[string]shared.V2Volume{
		"ART/0": {Input: big.NewInt(100), Output: big.NewInt(30)},
		"TON/9": {Input: big.NewInt(5), Output: big.NewInt(1), Balance: big.NewInt(4)},
	}
	if got := volumeBalance(vols, "ART/0"); got == nil || got.Int64() != 70 {
		t.Errorf("expected 70, got %v", got)
	}
	if got := volumeBalance(vols, "TON/9"); got == nil || got.Int64() != 4 {
		t.Errorf("expected 4, got %v", got)
	}
	if got := volumeBalance(vols, "USD/2"); got != nil {
		t.Errorf("expected nil for missing asset, got %v", got)
	}
}

func TestEntryTransaction(t *testing.T) {
	created := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	rc := &models.RequestContext{RequestId: "req-1", Source: "cli"}

	debit := entryTransaction(models.LedgerEntry{
		Id: 7, UserId: 3, RuleCode: "GENERATE_STICKER", Direction: models.DirectionDebit,
		Delta: -30, BalanceAfter: 70, ExternalId: "sticker-42", CreatedAt: created,
	}, rc)
	if *debit.Reference != "art-entry-7" {
		t.Errorf("unexpected reference %q", *debit.Reference)
	}
	if !strings.Contains(debit.Script.Plain, "@platform:art:spent") {
		t.Error("debit should move ART to the spent account")
	}
	vars := debit.Script.Vars
	if vars["amount"] != "30" || vars["user_id"] != "3" || vars["asset"] != "ART/0" {
		t.Errorf("unexpected vars %v", vars)
	}
	if vars["request_id"] != "req-1" || vars["source"] != "cli" {
		t.Errorf("request context not propagated: %v", vars)
	}
	if debit.Timestamp == nil || !debit.Timestamp.Equal(created) {
		t.Error("timestamp should match entry creation time")
	}

	adhoc := entryTransaction(models.LedgerEntry{Id: 8, UserId: 3, Delta: 250}, nil)
	if !strings.Contains(adhoc.Script.Plain, "@world") {
		t.Error("credit should be funded from @world")
	}
	if adhoc.Script.Vars["rule_code"] != "ADHOC" || adhoc.Script.Vars["amount"] != "250" {
		t.Errorf("unexpected ad-hoc vars %v", adhoc.Script.Vars)
	}
	if adhoc.Timestamp != nil {
		t.Error("zero creation time should leave the timestamp to the stack")
	}
}

func TestLegTransaction(t *testing.T) {
	author := int64(10)
	intent := models.TransactionIntent{Id: 5, Type: models.IntentTypeDonation, InitiatorUserId: 20, Reference: "ref"}
	tx := models.BlockchainTransaction{TxHash: "abc"}

	main := legTransaction(intent, models.TransactionLeg{Id: 11, LegType: models.LegTypeMain, ToEntityId: &author, AmountNano: 975}, tx, nil)
	if *main.Reference != "intent-5-leg-11" {
		t.Errorf("unexpected reference %q", *main.Reference)
	}
	if main.Script.Vars["recipient"] != "users:10:ton" || main.Script.Vars["amount"] != "975" {
		t.Errorf("unexpected vars %v", main.Script.Vars)
	}

	fee := legTransaction(intent, models.TransactionLeg{Id: 12, LegType: models.LegTypeFee, AmountNano: 25}, tx, nil)
	if fee.Script.Vars["recipient"] != "platform:ton:fees" {
		t.Errorf("unexpected fee recipient %q", fee.Script.Vars["recipient"])
	}
}

func TestIsConflictError(t *testing.T) {
	if isConflictError(nil) {
		t.Error("nil should not be a conflict error")
	}
}

func TestNewMirror_RequiresCredentials(t *testing.T) {
	if _, err := NewMirror(context.Background(), models.FormanceConfig{StackURL: "http://localhost"}); err == nil {
		t.Fatal("expected error for missing credentials")
	}
}
