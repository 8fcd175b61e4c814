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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sticker-ledger-go/internal/models"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

const (
	MainnetToncenterURL = "https://toncenter.com/api/v2"
	TestnetToncenterURL = "https://testnet.toncenter.com/api/v2"

	defaultRetryBackoff = 500 * time.Millisecond
	maxResponseBytes    = 4 << 20
)

// ToncenterVerifier checks transfers through the toncenter HTTP API
type ToncenterVerifier struct {
	baseURL      string
	apiKey       string
	scanLimit    int
	maxRetries   int
	retryBackoff time.Duration
	httpClient   http.Client
}

type toncenterResponse struct {
	Ok     bool                   `json:"ok"`
	Result []toncenterTransaction `json:"result"`
	Error  string                 `json:"error"`
}

type toncenterTransaction struct {
	TransactionId struct {
		Lt   string `json:"lt"`
		Hash string `json:"hash"`
	} `json:"transaction_id"`
	InMsg *struct {
		Source  string `json:"source"`
		Value   string `json:"value"`
		Message string `json:"message"`
	} `json:"in_msg"`
}

// statusError is a non-2xx answer from toncenter
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("toncenter returned status %d: %s", e.code, e.body)
}

func NewToncenterVerifier(cfg models.TonConfig) (*ToncenterVerifier, error) {
	httpClient, err := createCustomHttpClient()
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}

	baseURL := cfg.ToncenterURL
	if baseURL == "" {
		baseURL = MainnetToncenterURL
		if cfg.Testnet {
			baseURL = TestnetToncenterURL
		}
	}
	scanLimit := cfg.TxScanLimit
	if scanLimit <= 0 {
		scanLimit = defaultScanLimit
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}

	return &ToncenterVerifier{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       cfg.ToncenterAPIKey,
		scanLimit:    scanLimit,
		maxRetries:   retries,
		retryBackoff: backoff,
		httpClient:   httpClient,
	}, nil
}

func createCustomHttpClient() (http.Client, error) {
	tr := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return http.Client{}, err
	}

	return http.Client{
		Transport: tr,
		Timeout:   60 * time.Second,
	}, nil
}

// Verify reports whether the destination received the claimed transfer.
// A non-nil error means toncenter could not be queried.
func (v *ToncenterVerifier) Verify(ctx context.Context, txHash, from, to string, amountNano int64) (bool, error) {
	hash, err := decodeHash(txHash)
	if err != nil {
		zap.L().Warn("Rejecting malformed transaction hash", zap.String("tx_hash", txHash))
		return false, nil
	}

	txs, err := v.getTransactions(ctx, to)
	if err != nil {
		return false, err
	}

	transfers := make([]transfer, 0, len(txs))
	for _, tx := range txs {
		if tx.InMsg == nil || tx.InMsg.Source == "" {
			continue
		}
		txHashBytes, err := decodeHash(tx.TransactionId.Hash)
		if err != nil {
			continue
		}
		value, err := strconv.ParseInt(tx.InMsg.Value, 10, 64)
		if err != nil {
			continue
		}
		transfers = append(transfers, transfer{
			Hash:       txHashBytes,
			From:       tx.InMsg.Source,
			AmountNano: value,
			Comment:    tx.InMsg.Message,
		})
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

func (v *ToncenterVerifier) getTransactions(ctx context.Context, addr string) ([]toncenterTransaction, error) {
	query := url.Values{}
	query.Set("address", addr)
	query.Set("limit", strconv.Itoa(v.scanLimit))
	if v.apiKey != "" {
		query.Set("api_key", v.apiKey)
	}
	endpoint := v.baseURL + "/getTransactions?" + query.Encode()

	var lastErr error
	for attempt := 0; attempt <= v.maxRetries; attempt++ {
		if attempt > 0 {
			wait := v.retryBackoff * time.Duration(1<<(attempt-1))
			zap.L().Warn("Retrying toncenter request",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", wait),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("toncenter request cancelled: %w", ctx.Err())
			case <-time.After(wait):
			}
		}

		txs, err := v.fetch(ctx, endpoint)
		if err == nil {
			return txs, nil
		}
		lastErr = err

		var se *statusError
		if errors.As(err, &se) && se.code < http.StatusInternalServerError && se.code != http.StatusTooManyRequests {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("toncenter getTransactions failed: %w", lastErr)
}

func (v *ToncenterVerifier) fetch(ctx context.Context, endpoint string) ([]toncenterTransaction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	var parsed toncenterResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !parsed.Ok {
		return nil, fmt.Errorf("toncenter error: %s", parsed.Error)
	}
	return parsed.Result, nil
}
