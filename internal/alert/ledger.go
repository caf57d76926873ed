package alert

import (
	"sync"
	"time"

	"stockquote-alert/internal/models"
)

type ledgerKey struct {
	symbol string
	action models.Action
}

// Ledger records when an action last fired for an asset and decides whether
// a new firing is still inside its cooldown window. It is safe for
// concurrent use.
type Ledger struct {
	mu       sync.Mutex
	lastFire map[ledgerKey]time.Time
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		lastFire: make(map[ledgerKey]time.Time),
	}
}

// IsSuppressed reports whether action for symbol fired less than cooldown ago.
// A pair that never fired is never suppressed.
func (l *Ledger) IsSuppressed(symbol string, action models.Action, now time.Time, enabled bool, cooldown time.Duration) bool {
	if !enabled || cooldown <= 0 {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	last, ok := l.lastFire[ledgerKey{symbol, action}]
	if !ok {
		return false
	}
	return now.Sub(last) < cooldown
}

// Record stores now as the last firing time of action for symbol.
func (l *Ledger) Record(symbol string, action models.Action, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastFire[ledgerKey{symbol, action}] = now
}

// ResetAsset clears the buy and sell entries for symbol.
func (l *Ledger) ResetAsset(symbol string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.lastFire, ledgerKey{symbol, models.ActionBuy})
	delete(l.lastFire, ledgerKey{symbol, models.ActionSell})
}

// LastFired returns the last firing time of action for symbol.
func (l *Ledger) LastFired(symbol string, action models.Action) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.lastFire[ledgerKey{symbol, action}]
	return t, ok
}

// Len returns the number of active entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lastFire)
}
