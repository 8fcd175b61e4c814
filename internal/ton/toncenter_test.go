package ton

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"sticker-ledger-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const destination = "EQdestination"

var claimedHash = bytes.Repeat([]byte{0xab}, txHashLength)

func transactionsBody(value string) string {
	return fmt.Sprintf(`{"ok": true, "result": [
		{"transaction_id": {"lt": "1", "hash": "%s"}, "in_msg": {"source": "", "value": "0"}},
		{"transaction_id": {"lt": "2", "hash": "%s"}, "in_msg": {"source": "%s", "value": "%s", "message": "intent-ref"}}
	]}`, base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0x01}, txHashLength)),
		base64.StdEncoding.EncodeToString(claimedHash), foundationWallet, value)
}

func newTestVerifier(t *testing.T, handler http.HandlerFunc) *ToncenterVerifier {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	verifier, err := NewToncenterVerifier(models.TonConfig{
		ToncenterURL:    server.URL + "/api/v2/",
		ToncenterAPIKey: "secret",
		TxScanLimit:     10,
		MaxRetries:      2,
		RetryBackoff:    time.Millisecond,
	})
	require.NoError(t, err)
	return verifier
}

func TestToncenterVerifier_Verify(t *testing.T) {
	verifier := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/getTransactions", r.URL.Path)
		assert.Equal(t, destination, r.URL.Query().Get("address"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		fmt.Fprint(w, transactionsBody("1000000000"))
	})
	ctx := context.Background()
	claim := hex.EncodeToString(claimedHash)

	ok, err := verifier.Verify(ctx, claim, foundationWallet, destination, 1_000_000_000)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = verifier.Verify(ctx, claim, foundationWallet, destination, 2_000_000_000)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = verifier.Verify(ctx, hex.EncodeToString(bytes.Repeat([]byte{0xcd}, txHashLength)), "", destination, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = verifier.Verify(ctx, "nonsense", "", destination, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestToncenterVerifier_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	verifier := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "lite server timeout", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, transactionsBody("1000000000"))
	})

	ok, err := verifier.Verify(context.Background(), base64.URLEncoding.EncodeToString(claimedHash), "", destination, 1_000_000_000)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(3), calls.Load())
}

func TestToncenterVerifier_TransportErrors(t *testing.T) {
	t.Run("client error is not retried", func(t *testing.T) {
		var calls atomic.Int32
		verifier := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
		_, err := verifier.Verify(context.Background(), hex.EncodeToString(claimedHash), "", destination, 1)
		require.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("retries exhausted", func(t *testing.T) {
		var calls atomic.Int32
		verifier := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, "busy", http.StatusTooManyRequests)
		})
		_, err := verifier.Verify(context.Background(), hex.EncodeToString(claimedHash), "", destination, 1)
		require.Error(t, err)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("api reports failure", func(t *testing.T) {
		verifier := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"ok": false, "error": "invalid address"}`)
		})
		_, err := verifier.Verify(context.Background(), hex.EncodeToString(claimedHash), "", destination, 1)
		assert.ErrorContains(t, err, "invalid address")
	})
}
