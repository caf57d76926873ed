package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"stockquote-alert/internal/errors"
	"stockquote-alert/internal/logging"
	"stockquote-alert/internal/metrics"
	"stockquote-alert/internal/models"
)

// PriceSource supplies the latest price for a symbol. Any failure yields an
// absent sample together with an error describing why.
type PriceSource interface {
	FetchPrice(ctx context.Context, symbol string) (models.Sample, error)
}

// SchedulerConfig holds scheduler timing.
type SchedulerConfig struct {
	Interval     time.Duration
	FetchTimeout time.Duration
}

// DefaultSchedulerConfig returns the defaults used by the watch command.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:     time.Minute,
		FetchTimeout: 10 * time.Second,
	}
}

// Scheduler drives an engine at a fixed interval until its context is done.
type Scheduler struct {
	source PriceSource
	engine *Engine
	cfg    SchedulerConfig
	log    zerolog.Logger
}

// NewScheduler creates a scheduler for engine's asset.
func NewScheduler(source PriceSource, engine *Engine, cfg SchedulerConfig, log zerolog.Logger) *Scheduler {
	def := DefaultSchedulerConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	return &Scheduler{
		source: source,
		engine: engine,
		cfg:    cfg,
		log:    logging.WithSymbol(logging.WithComponent(log, "scheduler"), engine.Asset().Symbol),
	}
}

// Run ticks immediately and then every interval. It returns ctx.Err() once
// the context is cancelled; no single tick can stop it.
func (s *Scheduler) Run(ctx context.Context) error {
	asset := s.engine.Asset()
	s.log.Info().
		Str("buy_threshold", asset.BuyThreshold.String()).
		Str("sell_threshold", asset.SellThreshold.String()).
		Dur("interval", s.cfg.Interval).
		Msg("Starting stock monitor")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Stock monitor stopped")
			return ctx.Err()
		case <-timer.C:
		}

		s.Tick(ctx)
		timer.Reset(s.cfg.Interval)
	}
}

// Tick performs a single fetch and evaluation. Panics are recovered and
// reported on the returned decision.
func (s *Scheduler) Tick(ctx context.Context) (decision models.AlertDecision) {
	symbol := s.engine.Asset().Symbol
	stage := "fetch"

	defer func() {
		if r := recover(); r != nil {
			metrics.PanicsRecovered.WithLabelValues(stage).Inc()
			s.log.Error().
				Str("stage", stage).
				Str("action", decision.Action.String()).
				Interface("panic", r).
				Msg("Recovered from panic while monitoring")
			decision.Err = fmt.Errorf("panic during %s: %v", stage, r)
		}
	}()

	metrics.TicksTotal.WithLabelValues(symbol).Inc()

	sample, err := s.fetch(ctx, symbol)
	if err != nil || !sample.Present {
		if ctx.Err() != nil {
			return models.AlertDecision{Action: models.ActionNone, SuppressedReason: models.ReasonAbsentSample}
		}
		if err == nil {
			err = errors.ErrPriceUnavailable
		}
		metrics.FetchFailuresTotal.WithLabelValues(symbol, errors.Reason(err)).Inc()
		s.log.Warn().Err(err).Msg("No price available this tick")
		sample = models.AbsentSample(symbol)
	} else {
		metrics.LastPrice.WithLabelValues(symbol).Set(sample.Price.InexactFloat64())
	}

	stage = "evaluate"
	decision = s.engine.Evaluate(ctx, sample)
	return decision
}

func (s *Scheduler) fetch(ctx context.Context, symbol string) (models.Sample, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()
	return s.source.FetchPrice(fetchCtx, symbol)
}
