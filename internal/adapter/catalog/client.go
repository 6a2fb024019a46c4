// Package catalog is a client of the repair catalog REST API.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/niksmo/repair-shop/internal/core/domain"
	"github.com/niksmo/repair-shop/pkg/retry"
)

const defaultTimeout = 10 * time.Second

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("catalog is unavailable")
)

// A Config describes how the [Client] reaches the catalog.
//
// Authorize, when set, attaches credentials to every request.
// OnUnauthorized is called once per 401 response.
// Retry applies to transport failures and 5xx responses only.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	Authorize      func(*http.Request)
	OnUnauthorized func()
	Retry          retry.RetryConfig
}

type Client struct {
	baseURL        *url.URL
	httpClient     *http.Client
	authorize      func(*http.Request)
	onUnauthorized func()
	retryCfg       retry.RetryConfig
}

func New(cfg Config) (*Client, error) {
	const op = "catalog.New"

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%s: base url %q is not absolute", op, cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	retryCfg := cfg.Retry
	retryCfg.ShouldRetry = isTransient

	return &Client{
		baseURL:        base,
		httpClient:     &http.Client{Timeout: timeout},
		authorize:      cfg.Authorize,
		onUnauthorized: cfg.OnUnauthorized,
		retryCfg:       retryCfg,
	}, nil
}

func (c *Client) Brands(ctx context.Context) ([]string, error) {
	const op = "Client.Brands"

	var brands []string
	if err := c.get(ctx, "v1/brands", nil, &brands); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return brands, nil
}

func (c *Client) Models(ctx context.Context, brand string) ([]string, error) {
	const op = "Client.Models"

	var models []string
	p := "v1/brands/" + url.PathEscape(brand) + "/models"
	if err := c.get(ctx, p, nil, &models); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return models, nil
}

func (c *Client) Records(
	ctx context.Context, brand, model string,
) ([]domain.Record, error) {
	const op = "Client.Records"

	q := url.Values{"brand": {brand}, "model": {model}}
	rs, err := c.records(ctx, "v1/records", q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rs, nil
}

func (c *Client) Search(ctx context.Context, term string) ([]domain.Record, error) {
	const op = "Client.Search"

	rs, err := c.records(ctx, "v1/records/search", url.Values{"q": {term}})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rs, nil
}

func (c *Client) records(
	ctx context.Context, p string, q url.Values,
) ([]domain.Record, error) {
	var rs []record
	if err := c.get(ctx, p, q, &rs); err != nil {
		return nil, err
	}
	out := make([]domain.Record, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// get expects p to be escaped.
func (c *Client) get(ctx context.Context, p string, q url.Values, dst any) error {
	u := c.baseURL.JoinPath(p)
	u.RawQuery = q.Encode()
	target := u.String()

	cfg := c.retryCfg
	cfg.OnRetry = func(attempt int, err error, wait time.Duration) {
		slog.Debug("retrying catalog request",
			"op", "Client.get", "url", target, "attempt", attempt, "wait", wait, "err", err)
	}
	return retry.Do(ctx, cfg, func() error {
		return c.do(ctx, target, dst)
	})
}

func (c *Client) do(ctx context.Context, target string, dst any) error {
	log := slog.With("op", "Client.do", "url", target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.authorize != nil {
		c.authorize(req)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("request failed", "err", err)
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusUnauthorized:
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return ErrUnauthorized
	case res.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case res.StatusCode >= http.StatusInternalServerError:
		log.Warn("catalog responded with error", "status", res.StatusCode)
		return fmt.Errorf("%w: status %d", ErrUnavailable, res.StatusCode)
	case res.StatusCode >= http.StatusBadRequest:
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf(
			"%w: %s", domain.ErrInvalidArgument, strings.TrimSpace(string(msg)),
		)
	}

	if err := json.NewDecoder(res.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func isTransient(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

type record struct {
	ID         string                     `json:"id"`
	Brand      string                     `json:"brand"`
	Model      string                     `json:"model"`
	Attributes map[string]string          `json:"attributes"`
	Prices     map[string]decimal.Decimal `json:"prices"`
}

func (r record) toDomain() domain.Record {
	v := domain.Record{
		ID:         r.ID,
		Brand:      r.Brand,
		Model:      r.Model,
		Attributes: make(domain.Attributes, len(r.Attributes)),
		Prices:     make(domain.Prices, len(r.Prices)),
	}
	for name, value := range r.Attributes {
		if k, ok := domain.ParseAttributeKey(name); ok && value != "" {
			v.Attributes[k] = value
		}
	}
	for name, price := range r.Prices {
		if k, ok := domain.ParsePriceKey(name); ok {
			v.Prices[k] = price
		}
	}
	return v
}
