package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultTimeout     = 15 * time.Second
	defaultMaxAttempts = 3
	defaultBackoff     = time.Second
	maxBodyBytes       = 1 << 20
)

// Config describes the ERP tenant and the retry policy.
type Config struct {
	BaseURL             string
	TokenURL            string
	ClientID            string
	ClientSecret        string
	DataAreaID          string
	ShippingWarehouseID string
	RequestTimeout      time.Duration
	MaxAttempts         int
	Backoff             time.Duration
}

// Client talks to the ERP OData API. It holds no token: every run asks for a
// fresh one with GetToken and passes it to the calls of that run.
type Client struct {
	cfg        Config
	httpClient *http.Client
	now        func() time.Time
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for every call.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithClock replaces the time source used for requested dates.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a new ERP client
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.DataAreaID == "" {
		cfg.DataAreaID = "pat"
	}
	if cfg.ShippingWarehouseID == "" {
		cfg.ShippingWarehouseID = "CD"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.TokenURL = strings.TrimRight(cfg.TokenURL, "/")

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetToken requests a bearer token with the client credentials grant.
func (c *Client) GetToken(ctx context.Context) (string, error) {
	cc := clientcredentials.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		TokenURL:     c.cfg.TokenURL + "/oauth2/v2.0/token",
		Scopes:       []string{c.cfg.BaseURL + "/.default"},
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	var token string
	err := c.retry(ctx, "token", func(ctx context.Context) attemptResult {
		tok, err := cc.Token(context.WithValue(ctx, oauth2.HTTPClient, c.httpClient))
		if err != nil {
			var rerr *oauth2.RetrieveError
			if errors.As(err, &rerr) {
				res := attemptResult{outcome: Permanent, body: string(rerr.Body), err: err}
				if rerr.Response != nil {
					res.status = rerr.Response.StatusCode
				}
				return res
			}
			// Transport failures are retried; a malformed token response is final.
			var uerr *url.Error
			if errors.As(err, &uerr) || errors.Is(err, context.DeadlineExceeded) {
				return attemptResult{outcome: Transient, err: err}
			}
			return attemptResult{outcome: Permanent, err: err}
		}
		if tok.AccessToken == "" {
			return attemptResult{outcome: Permanent, err: errors.New("respuesta sin access_token")}
		}
		token = tok.AccessToken
		return attemptResult{outcome: OK}
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// CreateHeader creates a transfer order from the central warehouse to the
// receiving store and returns its number.
func (c *Client) CreateHeader(ctx context.Context, token, receivingWarehouseID string) (string, error) {
	if receivingWarehouseID == "" {
		return "", errors.New("erp header: receiving warehouse is required")
	}

	body := headerBody(c.cfg.DataAreaID, c.cfg.ShippingWarehouseID, receivingWarehouseID, c.now())
	var resp headerResponse
	if err := c.post(ctx, "header", "/data/TransferOrderHeaders", token, body, &resp); err != nil {
		return "", err
	}
	if resp.TransferOrderNumber == "" {
		return "", &Error{Kind: Permanent, Op: "header", Attempts: 1, Err: errors.New("respuesta sin TransferOrderNumber")}
	}

	log.Info().
		Str("receiving_warehouse", receivingWarehouseID).
		Str("transfer_order", resp.TransferOrderNumber).
		Msg("ERP transfer order header created")
	return resp.TransferOrderNumber, nil
}

// CreateLine adds a line to a transfer order and returns the ERP line id.
func (c *Client) CreateLine(ctx context.Context, token, transferOrderNumber string, line LineData) (string, error) {
	if transferOrderNumber == "" {
		return "", errors.New("erp line: transfer order number is required")
	}

	body := lineBody(c.cfg.DataAreaID, transferOrderNumber, line)
	var resp lineResponse
	if err := c.post(ctx, "line", "/data/TransferOrderLines", token, body, &resp); err != nil {
		return "", err
	}
	if resp.ShippingInventoryLotID == "" {
		return "", &Error{Kind: Permanent, Op: "line", Attempts: 1, Err: errors.New("respuesta sin ShippingInventoryLotId")}
	}
	return resp.ShippingInventoryLotID, nil
}

func (c *Client) post(ctx context.Context, op, path, token string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("erp %s: encode body: %w", op, err)
	}

	var raw []byte
	err = c.retry(ctx, op, func(ctx context.Context) attemptResult {
		res := c.send(ctx, http.MethodPost, c.cfg.BaseURL+path, token, payload)
		if res.outcome == OK {
			raw = res.raw
		}
		return res
	})
	if err != nil {
		return err
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return &Error{Kind: Permanent, Op: op, Attempts: 1, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return nil
}

type attemptResult struct {
	outcome Outcome
	status  int
	body    string
	raw     []byte
	err     error
}

// send performs one HTTP attempt. The request context carries the per-attempt
// deadline so an expired attempt also tears down its connection.
func (c *Client) send(ctx context.Context, method, url, token string, payload []byte) attemptResult {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return attemptResult{outcome: Permanent, err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return attemptResult{outcome: Transient, err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return attemptResult{outcome: Transient, status: resp.StatusCode, err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return attemptResult{
			outcome: Permanent,
			status:  resp.StatusCode,
			body:    strings.TrimSpace(string(raw)),
			err:     fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
	return attemptResult{outcome: OK, status: resp.StatusCode, raw: raw}
}

// retry runs fn until it returns OK or Permanent, the attempt budget is spent
// or ctx is done. Attempt n waits n*Backoff before the next one.
func (c *Client) retry(ctx context.Context, op string, fn func(ctx context.Context) attemptResult) error {
	var last attemptResult
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
		last = fn(attemptCtx)
		cancel()

		switch last.outcome {
		case OK:
			return nil
		case Permanent:
			return &Error{Kind: Permanent, Op: op, Status: last.status, Body: last.body, Attempts: attempt, Err: last.err}
		}

		if ctx.Err() != nil {
			return &Error{Kind: Transient, Op: op, Attempts: attempt, Err: ctx.Err()}
		}

		log.Warn().
			Err(last.err).
			Str("op", op).
			Int("attempt", attempt).
			Int("max_attempts", c.cfg.MaxAttempts).
			Msg("ERP call failed, retrying")

		if attempt == c.cfg.MaxAttempts {
			break
		}

		wait := time.Duration(attempt) * c.cfg.Backoff
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return &Error{Kind: Transient, Op: op, Attempts: attempt, Err: ctx.Err()}
		case <-timer.C:
		}
	}

	return &Error{Kind: Transient, Op: op, Attempts: c.cfg.MaxAttempts, Err: last.err}
}
