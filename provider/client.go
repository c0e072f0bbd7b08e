// Package provider implements the typed HTTP/WS boundary to the swap
// counterparty, per spec §4.2(component 4)/§6.1: create/get/refund/
// cooperative-claim requests, base64-PSBT exchange, and the real-time
// stream URL. The request/retry machinery is grounded directly on the
// teacher's mempool.space client (lightweight-wallet/chain/mempool/client.go):
// a token-bucket rate limiter plus bounded retries with escalating backoff
// on 429/5xx.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/btcsuite/btclog"
	"golang.org/x/time/rate"

	"github.com/arkade-os/go-swap-engine/types"
)

var log = btclog.Disabled

// UseLogger sets the package-wide logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// Config mirrors the teacher's mempool.Config shape: base URL, rate limit,
// HTTP timeout, and bounded retry parameters.
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

// Client is the provider RPC client, per spec §6.1.
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

// doRequest performs a rate-limited, retried HTTP round trip, mirroring the
// teacher's mempool client's doRequest escalation (linear backoff on
// transport/5xx errors, doubled linear backoff on 429).
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	url := c.cfg.BaseURL + path

	var lastErr error
	for attempt := 0; attempt <= c.cfg.RetryAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("provider: rate limiter: %w", err)
		}

		var reqBody io.Reader
		if body != nil {
			reqBody = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return nil, fmt.Errorf("provider: build request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("provider: http request: %w", err)
			if attempt < c.cfg.RetryAttempts {
				time.Sleep(c.cfg.RetryDelay * time.Duration(attempt+1))
				continue
			}
			return nil, lastErr
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("provider: read response: %w", err)
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
			lastErr = fmt.Errorf("provider: server error %d: %s", resp.StatusCode, string(respBody))
			if attempt < c.cfg.RetryAttempts {
				time.Sleep(c.cfg.RetryDelay * time.Duration(attempt+1))
				continue
			}
		default:
			return nil, fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus, resp.StatusCode, string(respBody))
		}
	}

	return nil, fmt.Errorf("provider: request failed after %d attempts: %w", c.cfg.RetryAttempts+1, lastErr)
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
		return fmt.Errorf("provider: marshal request: %w", err)
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

// GetSwapStatus implements getSwapStatus, per spec §6.1.
func (c *Client) GetSwapStatus(ctx context.Context, id types.SwapId) (*SwapStatusResponse, error) {
	var out SwapStatusResponse
	if err := c.getJSON(ctx, "/swap/"+string(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateSubmarineSwap implements createSubmarineSwap, per spec §6.1.
func (c *Client) CreateSubmarineSwap(ctx context.Context, req types.SubmarineRequest) (*CreateSubmarineResponse, error) {
	var out CreateSubmarineResponse
	if err := c.postJSON(ctx, "/swap/submarine", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateReverseSwap implements createReverseSwap, per spec §6.1.
func (c *Client) CreateReverseSwap(ctx context.Context, req types.ReverseRequest) (*CreateReverseResponse, error) {
	var out CreateReverseResponse
	if err := c.postJSON(ctx, "/swap/reverse", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateChainSwap implements createChainSwap, per spec §6.1.
func (c *Client) CreateChainSwap(ctx context.Context, req types.ChainRequest) (*CreateChainResponse, error) {
	var out CreateChainResponse
	if err := c.postJSON(ctx, "/swap/chain", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RefundSubmarineSwap implements refundSubmarineSwap, per spec §6.1.
func (c *Client) RefundSubmarineSwap(ctx context.Context, id types.SwapId, refundPsbtB64, checkpointPsbtB64 string) (*RefundSubmarineResponse, error) {
	payload := map[string]string{
		"refundTx":   refundPsbtB64,
		"checkpoint": checkpointPsbtB64,
	}
	var out RefundSubmarineResponse
	if err := c.postJSON(ctx, "/swap/submarine/"+string(id)+"/refund", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetReverseSwapTxID implements getReverseSwapTxId, per spec §6.1.
func (c *Client) GetReverseSwapTxID(ctx context.Context, id types.SwapId) (*ReverseSwapTxIDResponse, error) {
	var out ReverseSwapTxIDResponse
	if err := c.getJSON(ctx, "/swap/reverse/"+string(id)+"/txid", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetChainFees implements getChainFees, per spec §6.1.
func (c *Client) GetChainFees(ctx context.Context, from, to string) (*ChainFeesResponse, error) {
	var out ChainFeesResponse
	path := fmt.Sprintf("/swap/chain/fees?from=%s&to=%s", from, to)
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetChainLimits implements getChainLimits, per spec §6.1.
func (c *Client) GetChainLimits(ctx context.Context, from, to string) (*ChainLimitsResponse, error) {
	var out ChainLimitsResponse
	path := fmt.Sprintf("/swap/chain/limits?from=%s&to=%s", from, to)
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetWsURL implements getWsUrl, per spec §6.1: derived from BaseURL by
// scheme substitution http(s) -> ws(s).
func (c *Client) GetWsURL() string {
	url := c.cfg.BaseURL
	switch {
	case strings.HasPrefix(url, "https://"):
		return "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		return "ws://" + strings.TrimPrefix(url, "http://")
	default:
		return url
	}
}
