package quote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockquote-alert/internal/errors"
	"stockquote-alert/internal/resilience"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, cfg Config) *BrapiClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg.BaseURL = srv.URL
	c, err := NewBrapiClient(cfg, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestFetchPriceValidResponse(t *testing.T) {
	var gotPath, gotQuery, gotUA, gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotUA = r.Header.Get("User-Agent")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"symbol":"PETR4","shortName":"PETROBRAS PN","currency":"BRL","regularMarketPrice":38.45}]}`))
	}, Config{Token: "secret"})

	sample, err := c.FetchPrice(context.Background(), "PETR4")
	require.NoError(t, err)
	assert.True(t, sample.Present)
	assert.Equal(t, "38.45", sample.Price.String())

	assert.Equal(t, "/api/quote/PETR4", gotPath)
	assert.Equal(t, "interval=1d&range=1d", gotQuery)
	assert.Equal(t, "StockQuoteAlert-App", gotUA)
	assert.Equal(t, "Bearer secret", gotAuth)
}

func TestQuoteKeepsDecimalPrecision(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"symbol":"VALE3","shortName":"VALE ON","currency":"BRL","regularMarketPrice":61.1}]}`))
	}, Config{})

	q, err := c.Quote(context.Background(), "VALE3")
	require.NoError(t, err)
	assert.Equal(t, "VALE ON", q.ShortName)
	assert.Equal(t, "BRL", q.Currency)
	assert.Equal(t, "61.10", q.Price.StringFixed(2))
}

func TestFetchPriceEmptyResults(t *testing.T) {
	for name, body := range map[string]string{
		"no results":    `{"results":[]}`,
		"null price":    `{"results":[{"symbol":"PETR4","regularMarketPrice":null}]}`,
		"missing price": `{"results":[{"symbol":"PETR4"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}, Config{})

			sample, err := c.FetchPrice(context.Background(), "PETR4")
			assert.False(t, sample.Present)
			assert.True(t, errors.Is(err, errors.ErrEmptyResults), "got %v", err)
		})
	}
}

func TestFetchPriceServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, Config{})

	sample, err := c.FetchPrice(context.Background(), "PETR4")
	assert.False(t, sample.Present)

	var qe *errors.QuoteError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, http.StatusInternalServerError, qe.Status)
	assert.Equal(t, "bad_status", errors.Reason(err))
}

func TestFetchPriceMalformedJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":`))
	}, Config{})

	sample, err := c.FetchPrice(context.Background(), "PETR4")
	assert.False(t, sample.Present)
	assert.Error(t, err)
}

func TestFetchPriceTokenRequiredSkipsNetwork(t *testing.T) {
	var hits int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}, Config{})

	sample, err := c.FetchPrice(context.Background(), "AAPL34")
	assert.False(t, sample.Present)
	assert.True(t, errors.Is(err, errors.ErrTokenRequired))
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestFetchPriceCustomFreeSymbols(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"symbol":"BBAS3","regularMarketPrice":27.9}]}`))
	}, Config{FreeSymbols: []string{"bbas3"}})

	assert.False(t, c.RequiresToken("BBAS3"))
	assert.True(t, c.RequiresToken("PETR4"))

	_, err := c.FetchPrice(context.Background(), "BBAS3")
	require.NoError(t, err)
}

func TestFetchPriceTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	sample, err := c.FetchPrice(ctx, "PETR4")
	assert.False(t, sample.Present)
	assert.Equal(t, "timeout", errors.Reason(err))
}

func TestCircuitOpensAfterRepeatedOutages(t *testing.T) {
	var hits int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}, Config{Breaker: resilience.CircuitBreakerConfig{FailureThreshold: 2, Timeout: time.Hour}})

	ctx := context.Background()
	_, _ = c.FetchPrice(ctx, "PETR4")
	_, _ = c.FetchPrice(ctx, "PETR4")
	_, err := c.FetchPrice(ctx, "PETR4")

	assert.True(t, errors.Is(err, errors.ErrCircuitOpen), "got %v", err)
	assert.Equal(t, "circuit_open", errors.Reason(err))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.Equal(t, resilience.CircuitOpen, c.Breaker().State())
}

func TestNotFoundDoesNotTripCircuit(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, Config{Breaker: resilience.CircuitBreakerConfig{FailureThreshold: 1}})

	_, _ = c.FetchPrice(context.Background(), "PETR4")
	_, err := c.FetchPrice(context.Background(), "PETR4")

	assert.False(t, errors.Is(err, errors.ErrCircuitOpen))
	assert.Equal(t, resilience.CircuitClosed, c.Breaker().State())
}

func TestNewBrapiClientRejectsRelativeURL(t *testing.T) {
	_, err := NewBrapiClient(Config{BaseURL: "brapi.dev"}, zerolog.Nop())
	assert.True(t, errors.Is(err, errors.ErrConfigInvalid))
}
