package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stockquote-alert/internal/logging"
	"stockquote-alert/internal/metrics"
	"stockquote-alert/internal/models"
)

// Renderer turns an alert action into a message. It is never called with
// models.ActionNone by the engine.
type Renderer interface {
	Render(action models.Action, asset models.TrackedAsset, price decimal.Decimal) (subject, body string)
}

// Dispatcher delivers a rendered message. An unconfigured dispatcher must
// treat Send as a safe no-op.
type Dispatcher interface {
	Send(ctx context.Context, subject, body string) error
	Configured() bool
}

// Journal persists dispatched alerts. Optional.
type Journal interface {
	RecordAlert(ctx context.Context, rec *models.AlertRecord) error
}

// Clock returns the current time.
type Clock func() time.Time

// DispatchPolicy controls whether Send is attempted when the dispatcher
// reports it is not configured.
type DispatchPolicy int

const (
	// DispatchAlways calls Send regardless of configuration.
	DispatchAlways DispatchPolicy = iota
	// DispatchWhenConfigured skips Send (and the cooldown record) when the
	// dispatcher is not configured.
	DispatchWhenConfigured
)

// EngineConfig holds the engine's read-only settings.
type EngineConfig struct {
	Asset           models.TrackedAsset
	CooldownEnabled bool
	Cooldown        time.Duration
	DispatchPolicy  DispatchPolicy
	// SendTimeout bounds a single Send call. Zero means no extra bound.
	SendTimeout time.Duration
}

// EngineOption configures optional engine collaborators.
type EngineOption func(*Engine)

// WithClock overrides the time source.
func WithClock(clock Clock) EngineOption {
	return func(e *Engine) {
		if clock != nil {
			e.now = clock
		}
	}
}

// WithJournal records every attempted dispatch.
func WithJournal(j Journal) EngineOption {
	return func(e *Engine) {
		e.journal = j
	}
}

// Engine evaluates samples for one tracked asset and decides whether to
// notify. The decision state lives entirely in the ledger.
type Engine struct {
	cfg        EngineConfig
	ledger     *Ledger
	renderer   Renderer
	dispatcher Dispatcher
	journal    Journal
	now        Clock
	log        zerolog.Logger

	// serializes Evaluate so suppression check and record are atomic
	mu sync.Mutex
}

// NewEngine creates an engine. A nil ledger gets a fresh one.
func NewEngine(cfg EngineConfig, ledger *Ledger, renderer Renderer, dispatcher Dispatcher, log zerolog.Logger, opts ...EngineOption) *Engine {
	if ledger == nil {
		ledger = NewLedger()
	}
	e := &Engine{
		cfg:        cfg,
		ledger:     ledger,
		renderer:   renderer,
		dispatcher: dispatcher,
		now:        time.Now,
		log:        logging.WithSymbol(logging.WithComponent(log, "engine"), cfg.Asset.Symbol),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Asset returns the tracked asset.
func (e *Engine) Asset() models.TrackedAsset {
	return e.cfg.Asset
}

// Ledger returns the engine's cooldown ledger.
func (e *Engine) Ledger() *Ledger {
	return e.ledger
}

// Evaluate runs one tick of the state machine for sample.
func (e *Engine) Evaluate(ctx context.Context, sample models.Sample) models.AlertDecision {
	if !sample.Present {
		return models.AlertDecision{Action: models.ActionNone, SuppressedReason: models.ReasonAbsentSample}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	asset := e.cfg.Asset
	symbol := asset.Symbol
	now := e.now()

	action := ClassifyAsset(asset, sample.Price)
	if action == models.ActionNone {
		e.ledger.ResetAsset(symbol)
		e.log.Info().Str("price", sample.Price.String()).Msg("Maintained (neutral range)")
		return models.AlertDecision{Action: action, SuppressedReason: models.ReasonNeutral}
	}

	if e.ledger.IsSuppressed(symbol, action, now, e.cfg.CooldownEnabled, e.cfg.Cooldown) {
		e.suppressed(action, models.ReasonCooldown)
		e.log.Debug().
			Str("action", action.String()).
			Str("price", sample.Price.String()).
			Dur("cooldown", e.cfg.Cooldown).
			Msg("Alert suppressed by cooldown")
		return models.AlertDecision{Action: action, SuppressedReason: models.ReasonCooldown}
	}

	subject, body := e.renderer.Render(action, asset, sample.Price)
	if subject == "" {
		e.suppressed(action, models.ReasonEmptySubject)
		e.log.Warn().Str("action", action.String()).Msg("Renderer returned empty subject, skipping dispatch")
		return models.AlertDecision{Action: action, SuppressedReason: models.ReasonEmptySubject}
	}

	if e.cfg.DispatchPolicy == DispatchWhenConfigured && !e.dispatcher.Configured() {
		e.suppressed(action, models.ReasonNotConfigured)
		e.log.Warn().Str("action", action.String()).Str("subject", subject).Msg("Dispatcher not configured, alert logged only")
		return models.AlertDecision{Action: action, SuppressedReason: models.ReasonNotConfigured}
	}

	target := asset.SellThreshold
	if action == models.ActionBuy {
		target = asset.BuyThreshold
	}
	e.log.Warn().
		Str("action", action.String()).
		Str("price", sample.Price.String()).
		Str("target", target.String()).
		Msgf("%s ALERT!", action)

	// The cooldown starts at the attempt so a broken transport cannot cause
	// a notification storm.
	e.ledger.Record(symbol, action, now)
	err := e.send(ctx, subject, body)

	status := "sent"
	if err != nil {
		status = "failed"
		e.log.Error().Err(err).Str("action", action.String()).Msg("Alert dispatch failed")
	} else {
		e.log.Info().Str("action", action.String()).Str("subject", subject).Msg("Alert dispatched")
	}
	metrics.AlertsDispatchedTotal.WithLabelValues(symbol, action.String(), status).Inc()

	e.journalAlert(ctx, action, sample.Price, subject, now, err)

	return models.AlertDecision{
		Action:       action,
		ShouldNotify: true,
		Dispatched:   true,
		Err:          err,
	}
}

func (e *Engine) send(ctx context.Context, subject, body string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.PanicsRecovered.WithLabelValues("dispatcher").Inc()
			err = fmt.Errorf("dispatcher panicked: %v", r)
		}
	}()
	if e.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.SendTimeout)
		defer cancel()
	}
	return e.dispatcher.Send(ctx, subject, body)
}

func (e *Engine) suppressed(action models.Action, reason string) {
	metrics.AlertsSuppressedTotal.WithLabelValues(e.cfg.Asset.Symbol, action.String(), reason).Inc()
}

func (e *Engine) journalAlert(ctx context.Context, action models.Action, price decimal.Decimal, subject string, firedAt time.Time, sendErr error) {
	if e.journal == nil {
		return
	}
	rec := &models.AlertRecord{
		Symbol:        e.cfg.Asset.Symbol,
		Action:        action,
		Price:         price,
		BuyThreshold:  e.cfg.Asset.BuyThreshold,
		SellThreshold: e.cfg.Asset.SellThreshold,
		Subject:       subject,
		Delivered:     sendErr == nil,
		FiredAt:       firedAt,
	}
	if sendErr != nil {
		rec.Error = sendErr.Error()
	}
	if err := e.journal.RecordAlert(ctx, rec); err != nil {
		e.log.Warn().Err(err).Msg("Failed to journal alert")
	}
}
