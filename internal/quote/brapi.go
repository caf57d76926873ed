// Package quote fetches stock prices from the Brapi quote API.
package quote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stockquote-alert/internal/errors"
	"stockquote-alert/internal/logging"
	"stockquote-alert/internal/models"
	"stockquote-alert/internal/resilience"
)

const (
	// DefaultBaseURL is the public Brapi endpoint.
	DefaultBaseURL = "https://brapi.dev/"
	userAgent      = "StockQuoteAlert-App"
)

// DefaultFreeSymbols can be queried without a token.
var DefaultFreeSymbols = []string{"PETR4", "MGLU3", "VALE3", "ITUB4"}

// Config holds quote client settings.
type Config struct {
	BaseURL     string
	Token       string
	FreeSymbols []string
	// Timeout bounds a single HTTP round trip when the caller's context
	// carries no earlier deadline.
	Timeout    time.Duration
	HTTPClient *http.Client
	Breaker    resilience.CircuitBreakerConfig
}

type brapiResponse struct {
	Results []brapiResult `json:"results"`
}

type brapiResult struct {
	Symbol             string              `json:"symbol"`
	ShortName          string              `json:"shortName"`
	Currency           string              `json:"currency"`
	RegularMarketPrice decimal.NullDecimal `json:"regularMarketPrice"`
}

// BrapiClient implements alert.PriceSource over the Brapi HTTP API.
type BrapiClient struct {
	baseURL *url.URL
	token   string
	free    map[string]struct{}
	client  *http.Client
	breaker *resilience.CircuitBreaker
	now     func() time.Time
	log     zerolog.Logger
}

// NewBrapiClient creates a client. An empty base URL uses DefaultBaseURL.
func NewBrapiClient(cfg Config, log zerolog.Logger) (*BrapiClient, error) {
	raw := cfg.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	base, err := url.Parse(raw)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.NewValidationError("monitoring.api_base_url", cfg.BaseURL, "must be an absolute URL")
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	freeSymbols := cfg.FreeSymbols
	if freeSymbols == nil {
		freeSymbols = DefaultFreeSymbols
	}
	free := make(map[string]struct{}, len(freeSymbols))
	for _, s := range freeSymbols {
		free[strings.ToUpper(strings.TrimSpace(s))] = struct{}{}
	}

	breakerCfg := cfg.Breaker
	if breakerCfg.IsFailure == nil {
		breakerCfg.IsFailure = isOutage
	}

	return &BrapiClient{
		baseURL: base,
		token:   cfg.Token,
		free:    free,
		client:  client,
		breaker: resilience.NewCircuitBreaker("brapi", breakerCfg),
		now:     time.Now,
		log:     logging.WithComponent(log, "quote"),
	}, nil
}

// Breaker exposes the client's circuit breaker.
func (c *BrapiClient) Breaker() *resilience.CircuitBreaker {
	return c.breaker
}

// RequiresToken reports whether symbol needs an API token.
func (c *BrapiClient) RequiresToken(symbol string) bool {
	_, ok := c.free[strings.ToUpper(strings.TrimSpace(symbol))]
	return !ok
}

// Quote is the subset of a Brapi quote this tool uses.
type Quote struct {
	Symbol    string
	ShortName string
	Currency  string
	Price     decimal.Decimal
}

// FetchPrice returns the latest regular market price for symbol. On any
// failure it returns an absent sample and the reason.
func (c *BrapiClient) FetchPrice(ctx context.Context, symbol string) (models.Sample, error) {
	q, err := c.Quote(ctx, symbol)
	if err != nil {
		return models.AbsentSample(symbol), err
	}

	c.log.Info().Str("symbol", symbol).Str("price", q.Price.String()).Msg("Current price")
	return models.NewSample(symbol, q.Price, c.now()), nil
}

// Quote fetches the full quote for symbol through the circuit breaker.
func (c *BrapiClient) Quote(ctx context.Context, symbol string) (Quote, error) {
	if c.token == "" && c.RequiresToken(symbol) {
		return Quote{}, errors.NewQuoteError(symbol, 0, "symbol is not in the free tier", errors.ErrTokenRequired)
	}

	return resilience.ExecuteWithResult(c.breaker, ctx, func(ctx context.Context) (Quote, error) {
		start := time.Now()
		q, err := c.do(ctx, symbol)
		logging.LogAPICall(c.log, http.MethodGet, "api/quote/"+symbol, time.Since(start), err)
		return q, err
	})
}

func (c *BrapiClient) do(ctx context.Context, symbol string) (Quote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(symbol), nil)
	if err != nil {
		return Quote{}, errors.NewQuoteError(symbol, 0, "create request", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return Quote{}, errors.NewQuoteError(symbol, 0, "request timed out", errors.ErrTimeout)
		}
		return Quote{}, errors.NewQuoteError(symbol, 0, "http do", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Quote{}, errors.NewQuoteError(symbol, resp.StatusCode, "unexpected status", nil)
	}

	var payload brapiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Quote{}, errors.NewQuoteError(symbol, 0, "decode response", err)
	}
	if len(payload.Results) == 0 || !payload.Results[0].RegularMarketPrice.Valid {
		return Quote{}, errors.NewQuoteError(symbol, 0, "no price in response", errors.ErrEmptyResults)
	}
	r := payload.Results[0]
	return Quote{
		Symbol:    r.Symbol,
		ShortName: r.ShortName,
		Currency:  r.Currency,
		Price:     r.RegularMarketPrice.Decimal,
	}, nil
}

func (c *BrapiClient) endpoint(symbol string) string {
	u := c.baseURL.JoinPath("api", "quote", symbol)
	q := url.Values{}
	q.Set("range", "1d")
	q.Set("interval", "1d")
	u.RawQuery = q.Encode()
	return u.String()
}

// isOutage decides which failures count against the circuit breaker. A
// well-formed answer without a price, or a client-side rejection, says
// nothing about API health.
func isOutage(err error) bool {
	if errors.Is(err, errors.ErrEmptyResults) || errors.Is(err, errors.ErrTokenRequired) || errors.Is(err, context.Canceled) {
		return false
	}
	var qe *errors.QuoteError
	if errors.As(err, &qe) && qe.Status != 0 {
		return qe.Status >= 500 || qe.Status == http.StatusTooManyRequests
	}
	return true
}
