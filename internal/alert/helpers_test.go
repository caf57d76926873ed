package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"stockquote-alert/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingRenderer struct {
	mu    sync.Mutex
	calls []models.Action
	empty bool
}

func (r *recordingRenderer) Render(action models.Action, asset models.TrackedAsset, price decimal.Decimal) (string, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, action)
	if r.empty {
		return "", ""
	}
	return fmt.Sprintf("%s %s at %s", action, asset.Symbol, price.StringFixed(2)), "body"
}

func (r *recordingRenderer) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type sentMessage struct {
	Subject string
	Body    string
}

type recordingDispatcher struct {
	mu           sync.Mutex
	sent         []sentMessage
	err          error
	unconfigured bool
	panicOnSend  bool
}

func (d *recordingDispatcher) Send(ctx context.Context, subject, body string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.panicOnSend {
		panic("smtp exploded")
	}
	d.sent = append(d.sent, sentMessage{Subject: subject, Body: body})
	return d.err
}

func (d *recordingDispatcher) Configured() bool {
	return !d.unconfigured
}

func (d *recordingDispatcher) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

type recordingJournal struct {
	mu      sync.Mutex
	records []models.AlertRecord
}

func (j *recordingJournal) RecordAlert(ctx context.Context, rec *models.AlertRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, *rec)
	return nil
}

var errFetch = errors.New("connection refused")

// step is one scripted response of a scriptedSource. An empty price means
// the fetch fails.
type step struct {
	price string
	panic bool
}

type scriptedSource struct {
	mu      sync.Mutex
	steps   []step
	calls   int
	fetched chan struct{}
}

func newScriptedSource(steps ...step) *scriptedSource {
	return &scriptedSource{steps: steps, fetched: make(chan struct{}, 64)}
}

func prices(values ...string) []step {
	out := make([]step, len(values))
	for i, v := range values {
		out[i] = step{price: v}
	}
	return out
}

func (s *scriptedSource) FetchPrice(ctx context.Context, symbol string) (models.Sample, error) {
	s.mu.Lock()
	idx := s.calls
	s.calls++
	s.mu.Unlock()

	defer func() {
		select {
		case s.fetched <- struct{}{}:
		default:
		}
	}()

	if idx >= len(s.steps) {
		return models.AbsentSample(symbol), errFetch
	}
	st := s.steps[idx]
	if st.panic {
		panic("decoder blew up")
	}
	if st.price == "" {
		return models.AbsentSample(symbol), errFetch
	}
	return models.NewSample(symbol, decimal.RequireFromString(st.price), time.Now()), nil
}

func (s *scriptedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testAsset() models.TrackedAsset {
	return models.TrackedAsset{
		Symbol:        "APPL34",
		BuyThreshold:  decimal.RequireFromString("10.00"),
		SellThreshold: decimal.RequireFromString("12.00"),
	}
}

func sampleOf(price string) models.Sample {
	return models.NewSample("APPL34", decimal.RequireFromString(price), time.Now())
}
