// Package models provides domain models for the stock quote alert application.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Action represents the outcome of classifying a price against thresholds.
type Action string

const (
	ActionNone Action = "NONE"
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// String returns the action name.
func (a Action) String() string {
	if a == "" {
		return string(ActionNone)
	}
	return string(a)
}

// IsAlert reports whether the action should produce a notification.
func (a Action) IsAlert() bool {
	return a == ActionBuy || a == ActionSell
}

// TrackedAsset is the instrument being monitored along with its thresholds.
// BuyThreshold is an exclusive lower bound, SellThreshold an exclusive upper bound.
type TrackedAsset struct {
	Symbol        string
	BuyThreshold  decimal.Decimal
	SellThreshold decimal.Decimal
}

// HasNeutralZone reports whether buy < sell.
func (a TrackedAsset) HasNeutralZone() bool {
	return a.BuyThreshold.LessThan(a.SellThreshold)
}

// Sample is a price observed for a symbol during one tick.
// A zero Sample (Present == false) means no price was available.
type Sample struct {
	Symbol     string
	Price      decimal.Decimal
	ObservedAt time.Time
	Present    bool
}

// NewSample creates a present sample.
func NewSample(symbol string, price decimal.Decimal, observedAt time.Time) Sample {
	return Sample{
		Symbol:     symbol,
		Price:      price,
		ObservedAt: observedAt,
		Present:    true,
	}
}

// AbsentSample creates a sample that carries no price.
func AbsentSample(symbol string) Sample {
	return Sample{Symbol: symbol}
}

// Suppression reasons reported on an AlertDecision.
const (
	ReasonAbsentSample  = "absent_sample"
	ReasonNeutral       = "neutral"
	ReasonCooldown      = "cooldown"
	ReasonEmptySubject  = "empty_subject"
	ReasonNotConfigured = "dispatcher_not_configured"
)

// AlertDecision is the outcome of one tick.
type AlertDecision struct {
	Action           Action
	ShouldNotify     bool
	SuppressedReason string
	// Dispatched is true when Send was attempted.
	Dispatched bool
	// Err holds the dispatch error, if any.
	Err error
}
