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

package ton

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"sticker-ledger-go/internal/models"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/tvm/cell"
	"go.uber.org/zap"
)

const (
	MainnetConfigURL = "https://ton.org/global.config.json"
	TestnetConfigURL = "https://ton.org/testnet-global.config.json"

	defaultScanLimit = 20
)

// LiteVerifier checks transfers against the chain through lite servers
type LiteVerifier struct {
	configURL string
	scanLimit int

	mu     sync.Mutex
	client ton.APIClientWrapped
}

func NewLiteVerifier(cfg models.TonConfig) *LiteVerifier {
	configURL := cfg.ConfigURL
	if configURL == "" {
		configURL = MainnetConfigURL
		if cfg.Testnet {
			configURL = TestnetConfigURL
		}
	}
	scanLimit := cfg.TxScanLimit
	if scanLimit <= 0 {
		scanLimit = defaultScanLimit
	}
	return &LiteVerifier{configURL: configURL, scanLimit: scanLimit}
}

// connect lazily builds the connection pool. A failed attempt is retried on the next call.
func (v *LiteVerifier) connect(ctx context.Context) (ton.APIClientWrapped, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.client != nil {
		return v.client, nil
	}

	pool := liteclient.NewConnectionPool()
	if err := pool.AddConnectionsFromConfigUrl(ctx, v.configURL); err != nil {
		return nil, fmt.Errorf("failed to connect to TON network: %w", err)
	}

	v.client = ton.NewAPIClient(pool).WithRetry()
	zap.L().Info("Connected to TON lite servers", zap.String("config_url", v.configURL))
	return v.client, nil
}

// Verify reports whether the destination received the claimed transfer.
// A non-nil error means the chain could not be queried.
func (v *LiteVerifier) Verify(ctx context.Context, txHash, from, to string, amountNano int64) (bool, error) {
	hash, err := decodeHash(txHash)
	if err != nil {
		zap.L().Warn("Rejecting malformed transaction hash", zap.String("tx_hash", txHash))
		return false, nil
	}
	dest, err := address.ParseAddr(to)
	if err != nil {
		zap.L().Warn("Rejecting unparsable destination", zap.String("to", to), zap.Error(err))
		return false, nil
	}

	client, err := v.connect(ctx)
	if err != nil {
		return false, err
	}

	transfers, err := v.recentTransfers(ctx, client, dest)
	if err != nil {
		return false, err
	}

	ok, reason := matchTransfer(transfers, hash, from, amountNano)
	if !ok {
		zap.L().Info("Transfer not verified",
			zap.String("tx_hash", txHash),
			zap.String("to", to),
			zap.Int("scanned", len(transfers)),
			zap.String("reason", reason))
		return false, nil
	}

	zap.L().Info("Transfer verified", zap.String("tx_hash", txHash), zap.String("to", to))
	return true, nil
}

func (v *LiteVerifier) recentTransfers(ctx context.Context, client ton.APIClientWrapped, addr *address.Address) ([]transfer, error) {
	master, err := client.CurrentMasterchainInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get masterchain info: %w", err)
	}

	account, err := client.GetAccount(ctx, master, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if !account.IsActive {
		return nil, nil
	}

	txs, err := client.ListTransactions(ctx, addr, uint32(v.scanLimit), account.LastTxLT, account.LastTxHash)
	if errors.Is(err, ton.ErrNoTransactionsWereFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	transfers := make([]transfer, 0, len(txs))
	for _, tx := range txs {
		if tx.IO.In == nil {
			continue
		}
		if t, ok := parseIncoming(tx); ok {
			zap.L().Debug("Observed incoming transfer",
				zap.String("from", t.From),
				zap.Int64("amount_nano", t.AmountNano),
				zap.String("comment", t.Comment))
			transfers = append(transfers, t)
		}
	}
	return transfers, nil
}

// parseIncoming extracts an internal inbound message. AsInternal panics on external messages.
func parseIncoming(tx *tlb.Transaction) (t transfer, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	msg := tx.IO.In.AsInternal()
	if msg == nil {
		return transfer{}, false
	}

	t = transfer{
		Hash:       tx.Hash,
		AmountNano: msg.Amount.Nano().Int64(),
		Comment:    textComment(msg.Body),
	}
	if msg.SrcAddr != nil {
		t.From = msg.SrcAddr.String()
	}
	return t, true
}

func textComment(body *cell.Cell) string {
	if body == nil {
		return ""
	}
	slice := body.BeginParse()
	op, err := slice.LoadUInt(32)
	if err != nil || op != 0 {
		return ""
	}
	data, err := slice.LoadBinarySnake()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
