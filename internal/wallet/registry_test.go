package wallet

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sticker-ledger-go/internal/database"
	"sticker-ledger-go/internal/models"
	"sticker-ledger-go/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRegistry(t *testing.T) *Registry {
	t.Helper()
	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "wallets.db"),
		MaxOpenConns: 2,
		MaxIdleConns: 2,
		PingTimeout:  5 * time.Second,
		BusyTimeout:  5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	onlyEQ := AddressValidatorFunc(func(address string) error {
		if !strings.HasPrefix(address, "EQ") {
			return errors.New("unsupported address prefix")
		}
		return nil
	})
	return NewRegistry(db, onlyEQ)
}

func TestLinkWallet_ReplacesActive(t *testing.T) {
	registry := setupRegistry(t)
	ctx := context.Background()

	assert.False(t, registry.HasActiveWallet(ctx, 1))

	_, err := registry.GetActiveWallet(ctx, 1)
	assert.ErrorIs(t, err, store.ErrWalletNotFound)

	first, err := registry.LinkWallet(ctx, 1, "EQfirst", "tonkeeper")
	require.NoError(t, err)
	assert.True(t, first.IsActive)
	assert.True(t, registry.HasActiveWallet(ctx, 1))

	second, err := registry.LinkWallet(ctx, 1, " EQsecond ", "")
	require.NoError(t, err)
	assert.Equal(t, "EQsecond", second.WalletAddress)

	active, err := registry.GetActiveWallet(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, second.Id, active.Id)

	// Relinking the first address reactivates the same row
	again, err := registry.LinkWallet(ctx, 1, "EQfirst", "")
	require.NoError(t, err)
	assert.Equal(t, first.Id, again.Id)
	assert.Equal(t, "tonkeeper", again.WalletType)

	wallets, err := registry.ListWallets(ctx, 1)
	require.NoError(t, err)
	require.Len(t, wallets, 2)
	activeCount := 0
	for _, w := range wallets {
		if w.IsActive {
			activeCount++
		}
	}
	assert.Equal(t, 1, activeCount)
}

func TestLinkWallet_Validation(t *testing.T) {
	registry := setupRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		userId  int64
		address string
		field   string
	}{
		{"no user", 0, "EQabc", "user_id"},
		{"empty address", 1, "   ", "wallet_address"},
		{"rejected by validator", 1, "UQabc", "wallet_address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registry.LinkWallet(ctx, tt.userId, tt.address, "")
			var verr *store.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	assert.False(t, registry.HasActiveWallet(ctx, 1))
}
