// Package arkclient implements the typed HTTP/JSON boundary to the Ark
// server, per spec §4.2(component 5)/§6.2: getInfo, registerIntent,
// deleteIntent, submitTx, finalizeTx, the batch event stream, and the
// indexer's getVtxos. The Ark server's reference transport is gRPC, but
// this module has no protoc codegen available; the REST/JSON surface the
// same server exposes carries identical semantics, so the request/retry
// machinery here is grounded directly on the teacher's mempool.space client
// (lightweight-wallet/chain/mempool/client.go) exactly as provider.Client
// reuses it.
package arkclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/btcsuite/btclog"
	"golang.org/x/time/rate"
)

var log = btclog.Disabled

// UseLogger sets the package-wide logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// Config mirrors provider.Config: base URL, rate limit, HTTP timeout, and
// bounded retry parameters.
type Config struct {
	BaseURL       string
	RateLimit     int
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// DefaultConfig returns sane request-handling defaults; BaseURL must still
// be set by the caller.
func DefaultConfig() *Config {
	return &Config{
		RateLimit:     10,
		Timeout:       30 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    time.Second,
	}
}

// Client is the Ark server RPC client, per spec §6.2.
type Client struct {
	cfg *Config

	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// NewClient constructs a Client. A nil cfg uses DefaultConfig with no
// BaseURL, which will fail on first request.
func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Client{
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit),
	}
}

// doRequest performs a rate-limited, retried HTTP round trip, mirroring
// provider.Client.doRequest's escalation.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	url := c.cfg.BaseURL + path

	var lastErr error
	for attempt := 0; attempt <= c.cfg.RetryAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("arkclient: rate limiter: %w", err)
		}

		var reqBody io.Reader
		if body != nil {
			reqBody = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return nil, fmt.Errorf("arkclient: build request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("arkclient: http request: %w", err)
			if attempt < c.cfg.RetryAttempts {
				time.Sleep(c.cfg.RetryDelay * time.Duration(attempt+1))
				continue
			}
			return nil, lastErr
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("arkclient: read response: %w", err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return respBody, nil
		}

		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			lastErr = ErrRateLimited
			if attempt < c.cfg.RetryAttempts {
				time.Sleep(c.cfg.RetryDelay * time.Duration(attempt+1) * 2)
				continue
			}
		case http.StatusNotFound:
			return nil, fmt.Errorf("%w: %s", ErrNotFound, string(respBody))
		case http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			lastErr = fmt.Errorf("arkclient: server error %d: %s", resp.StatusCode, string(respBody))
			if attempt < c.cfg.RetryAttempts {
				time.Sleep(c.cfg.RetryDelay * time.Duration(attempt+1))
				continue
			}
		default:
			return nil, fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus, resp.StatusCode, string(respBody))
		}
	}

	return nil, fmt.Errorf("arkclient: request failed after %d attempts: %w", c.cfg.RetryAttempts+1, lastErr)
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("arkclient: marshal request: %w", err)
	}
	body, err := c.doRequest(ctx, http.MethodPost, path, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

// GetInfo implements getInfo, per spec §6.2.
func (c *Client) GetInfo(ctx context.Context) (*Info, error) {
	var out Info
	if err := c.getJSON(ctx, "/v1/info", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RegisterIntent implements registerIntent, per spec §4.5.5 step 3: offers
// the signed intent message to the next commitment batch.
func (c *Client) RegisterIntent(ctx context.Context, signed SignedIntent) (*RegisterIntentResponse, error) {
	var out RegisterIntentResponse
	if err := c.postJSON(ctx, "/v1/batch/registerIntent", signed, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteIntent implements deleteIntent, per spec §4.5.5: withdraws a
// previously registered intent before the batch closes.
func (c *Client) DeleteIntent(ctx context.Context, signed SignedIntent) error {
	return c.postJSON(ctx, "/v1/batch/deleteIntent", signed, nil)
}

// SubmitTx implements submitTx, per spec §4.5.4: submits an out-of-round
// Ark transaction (e.g. claim_vhtlc_with_offchain_tx) along with its
// checkpoint transactions for server co-signing.
func (c *Client) SubmitTx(ctx context.Context, arkTxB64 string, checkpointTxsB64 []string) (*SubmitTxResponse, error) {
	payload := struct {
		ArkTx          string   `json:"signedArkTx"`
		CheckpointTxs  []string `json:"checkpointTxs"`
	}{ArkTx: arkTxB64, CheckpointTxs: checkpointTxsB64}

	var out SubmitTxResponse
	if err := c.postJSON(ctx, "/v1/tx/submit", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FinalizeTx implements finalizeTx, per spec §4.5.4: hands back the fully
// countersigned checkpoint transactions once the offchain leg is confirmed.
func (c *Client) FinalizeTx(ctx context.Context, arkTxid string, finalCheckpointTxsB64 []string) error {
	payload := struct {
		ArkTxid       string   `json:"arkTxid"`
		CheckpointTxs []string `json:"finalCheckpointTxs"`
	}{ArkTxid: arkTxid, CheckpointTxs: finalCheckpointTxsB64}

	return c.postJSON(ctx, "/v1/tx/finalize", payload, nil)
}

// GetVtxos implements the indexer's getVtxos, per spec §6.2.
func (c *Client) GetVtxos(ctx context.Context, script string) (*VtxosResponse, error) {
	var out VtxosResponse
	if err := c.getJSON(ctx, "/v1/indexer/vtxos?script="+script, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LookupUnspentVtxo fetches script's VTXOs and returns the first unspent
// one, matching the single-VTXO-per-swap assumption spec §4.5.1 step 2
// names. It satisfies orchestrator.VtxoLookup's signature directly so a
// caller can wire Executor.LookupVtxo to this method without an adapter.
func (c *Client) LookupUnspentVtxo(ctx context.Context, script string) (Vtxo, error) {
	resp, err := c.GetVtxos(ctx, script)
	if err != nil {
		return Vtxo{}, err
	}
	for _, v := range resp.Vtxos {
		if !v.IsSpent {
			return v, nil
		}
	}
	return Vtxo{}, fmt.Errorf("arkclient: no unspent vtxo for script %s", script)
}

// GetEventStream implements getEventStream, per spec §4.5.5: an
// NDJSON-over-HTTP long-poll of batch signing round events (cosigner
// nonces/signatures, forfeit requests, finalization). Each decoded Event is
// pushed to the returned channel, which is closed when the body is
// exhausted, a decode error occurs, or ctx is canceled.
func (c *Client) GetEventStream(ctx context.Context) (<-chan Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v1/batch/events", nil)
	if err != nil {
		return nil, fmt.Errorf("arkclient: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arkclient: open event stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	events := make(chan Event, 16)
	go func() {
		defer close(events)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var ev Event
			if err := json.Unmarshal(line, &ev); err != nil {
				log.Errorf("arkclient: decode event stream line: %v", err)
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}
