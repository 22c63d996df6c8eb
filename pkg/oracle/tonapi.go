package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/chainsafe/qtx-rewards/internal/metrics"
	"github.com/chainsafe/qtx-rewards/pkg/config"
)

const (
	actionTonTransfer = "TonTransfer"
	statusOK          = "ok"
	maxErrorBody      = 512
)

// TonAPIClient verifies payments through the tonapi.io REST API.
type TonAPIClient struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	limiter     *rate.Limiter
	timeout     time.Duration
	tolerance   decimal.Decimal
	eventsLimit int
	logger      *zap.Logger
}

// NewTonAPIClient creates a TonAPI client from the oracle configuration.
func NewTonAPIClient(cfg config.OracleConfig, logger *zap.Logger) (*TonAPIClient, error) {
	tolerance, err := decimal.NewFromString(cfg.Tolerance)
	if err != nil {
		return nil, fmt.Errorf("invalid oracle tolerance %q: %w", cfg.Tolerance, err)
	}
	if tolerance.IsNegative() {
		return nil, fmt.Errorf("oracle tolerance must not be negative")
	}

	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 4
	}
	limit := cfg.EventsLimit
	if limit <= 0 {
		limit = 10
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &TonAPIClient{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		httpClient:  &http.Client{},
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		timeout:     timeout,
		tolerance:   tolerance,
		eventsLimit: limit,
		logger:      logger,
	}, nil
}

// Tolerance returns the accepted difference between expected and paid amounts.
func (c *TonAPIClient) Tolerance() decimal.Decimal { return c.tolerance }

// FindPayment scans the sender's recent events for a TON transfer to the destination.
func (c *TonAPIClient) FindPayment(ctx context.Context, q PaymentQuery) (*Payment, error) {
	sender, err := NormalizeAddress(q.Sender)
	if err != nil {
		return nil, err
	}
	destination, err := NormalizeAddress(q.Destination)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/v2/accounts/%s/events?limit=%d", url.PathEscape(sender), c.eventsLimit)
	var resp eventsResponse
	if err := c.get(ctx, "find_payment", path, &resp); err != nil {
		return nil, err
	}

	since := q.Since.Unix()
	for _, ev := range resp.Events {
		if ev.IsScam || ev.Timestamp < since {
			continue
		}
		for _, a := range ev.Actions {
			if a.Type != actionTonTransfer || a.Status != statusOK || a.TonTransfer == nil {
				continue
			}
			tr := a.TonTransfer
			if tr.Recipient.IsScam {
				continue
			}
			if !SameAddress(tr.Sender.Address, sender) || !SameAddress(tr.Recipient.Address, destination) {
				continue
			}
			amount := NanoToTON(tr.Amount)
			if amount.Sub(q.Amount).Abs().GreaterThanOrEqual(c.tolerance) {
				continue
			}

			c.logger.Debug("payment matched",
				zap.String("event_id", ev.EventID),
				zap.String("sender", sender),
				zap.String("amount", amount.String()))
			return &Payment{
				Hash:      ev.EventID,
				Sender:    sender,
				Recipient: destination,
				Amount:    amount,
				Comment:   tr.Comment,
				Timestamp: time.Unix(ev.Timestamp, 0).UTC(),
			}, nil
		}
	}

	return nil, ErrNoMatchingPayment
}

// Balance returns the on-chain TON balance of address.
func (c *TonAPIClient) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	raw, err := NormalizeAddress(address)
	if err != nil {
		return decimal.Zero, err
	}

	var info accountInfo
	if err := c.get(ctx, "balance", "/v2/accounts/"+url.PathEscape(raw), &info); err != nil {
		return decimal.Zero, err
	}
	return NanoToTON(info.Balance), nil
}

func (c *TonAPIClient) get(ctx context.Context, operation, path string, out any) (err error) {
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
			if errors.Is(err, ErrUpstreamUnavailable) {
				result = "unavailable"
			}
		}
		metrics.OracleRequests.WithLabelValues(operation, result).Inc()
		metrics.OracleDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", ErrUpstreamUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: tonapi status %d: %s", ErrUpstreamUnavailable, resp.StatusCode, string(body))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("tonapi status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		return fmt.Errorf("decode tonapi response: %w", err)
	}
	return nil
}
