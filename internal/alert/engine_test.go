package alert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"stockquote-alert/internal/models"
)

type engineFixture struct {
	engine     *Engine
	clock      *fakeClock
	renderer   *recordingRenderer
	dispatcher *recordingDispatcher
	journal    *recordingJournal
}

func newEngineFixture(cooldownEnabled bool, cooldown time.Duration) *engineFixture {
	f := &engineFixture{
		clock:      newFakeClock(),
		renderer:   &recordingRenderer{},
		dispatcher: &recordingDispatcher{},
		journal:    &recordingJournal{},
	}
	f.engine = NewEngine(EngineConfig{
		Asset:           testAsset(),
		CooldownEnabled: cooldownEnabled,
		Cooldown:        cooldown,
	}, NewLedger(), f.renderer, f.dispatcher, zerolog.Nop(),
		WithClock(f.clock.Now), WithJournal(f.journal))
	return f
}

// run feeds prices one tick apart and returns the decisions.
func (f *engineFixture) run(t *testing.T, values ...string) []models.AlertDecision {
	t.Helper()
	var out []models.AlertDecision
	for _, v := range values {
		out = append(out, f.engine.Evaluate(context.Background(), sampleOf(v)))
		f.clock.Advance(time.Minute)
	}
	return out
}

func TestEngineScenarioCooldownDisabled(t *testing.T) {
	f := newEngineFixture(false, time.Hour)
	f.run(t, "12.50", "12.60", "11.00", "12.50")

	if got := f.dispatcher.Count(); got != 3 {
		t.Fatalf("expected 3 dispatches, got %d", got)
	}
}

func TestEngineScenarioCooldownEnabled(t *testing.T) {
	f := newEngineFixture(true, time.Hour)
	decisions := f.run(t, "12.50", "12.60", "11.00", "12.50")

	if got := f.dispatcher.Count(); got != 2 {
		t.Fatalf("expected 2 dispatches, got %d", got)
	}
	if decisions[1].SuppressedReason != models.ReasonCooldown {
		t.Fatalf("tick 2 should be suppressed by cooldown, got %+v", decisions[1])
	}
	if !decisions[3].Dispatched {
		t.Fatalf("tick 4 should fire after the neutral reset, got %+v", decisions[3])
	}
}

func TestEngineAlwaysNeutralNeverRenders(t *testing.T) {
	f := newEngineFixture(true, time.Hour)
	f.run(t, "11.00", "11.00")

	if f.dispatcher.Count() != 0 {
		t.Fatalf("expected no dispatch, got %d", f.dispatcher.Count())
	}
	if f.renderer.Calls() != 0 {
		t.Fatalf("renderer must not be invoked for neutral prices, got %d calls", f.renderer.Calls())
	}
}

func TestEngineAbsentSampleIsNoop(t *testing.T) {
	f := newEngineFixture(true, time.Hour)
	f.engine.Ledger().Record("APPL34", models.ActionSell, f.clock.Now())

	d := f.engine.Evaluate(context.Background(), models.AbsentSample("APPL34"))

	if d.SuppressedReason != models.ReasonAbsentSample || d.ShouldNotify {
		t.Fatalf("unexpected decision %+v", d)
	}
	if f.renderer.Calls() != 0 || f.dispatcher.Count() != 0 {
		t.Fatal("absent sample must not render or dispatch")
	}
	if f.engine.Ledger().Len() != 1 {
		t.Fatal("absent sample must not mutate the ledger")
	}
}

func TestEngineNoDoubleFireWithinWindow(t *testing.T) {
	f := newEngineFixture(true, 30*time.Minute)
	f.run(t, "13.00", "13.10")

	if got := f.dispatcher.Count(); got != 1 {
		t.Fatalf("expected exactly one dispatch, got %d", got)
	}
}

func TestEngineFiresAgainAfterCooldownExpires(t *testing.T) {
	f := newEngineFixture(true, 5*time.Minute)
	f.engine.Evaluate(context.Background(), sampleOf("13.00"))
	f.clock.Advance(5*time.Minute + time.Second)
	d := f.engine.Evaluate(context.Background(), sampleOf("13.00"))

	if !d.Dispatched || f.dispatcher.Count() != 2 {
		t.Fatalf("expected second dispatch after cooldown, got %+v (count %d)", d, f.dispatcher.Count())
	}
}

func TestEngineNeutralResetClearsBothActions(t *testing.T) {
	f := newEngineFixture(true, 24*time.Hour)
	f.run(t, "9.00", "13.00", "11.00")

	if f.engine.Ledger().Len() != 0 {
		t.Fatalf("neutral tick should clear the ledger, %d entries left", f.engine.Ledger().Len())
	}

	f.run(t, "9.00", "13.00")
	if got := f.dispatcher.Count(); got != 4 {
		t.Fatalf("expected buy and sell to fire again immediately, got %d dispatches", got)
	}
}

func TestEngineBuyAndSellCooldownsAreIndependent(t *testing.T) {
	f := newEngineFixture(true, time.Hour)
	decisions := f.run(t, "9.00", "13.00")

	for i, d := range decisions {
		if !d.Dispatched {
			t.Fatalf("tick %d should dispatch, got %+v", i+1, d)
		}
	}
}

func TestEngineDispatchFailureStillRecordsCooldown(t *testing.T) {
	f := newEngineFixture(true, time.Hour)
	f.dispatcher.err = errors.New("smtp: 451 try later")

	first := f.engine.Evaluate(context.Background(), sampleOf("12.50"))
	f.clock.Advance(time.Minute)
	second := f.engine.Evaluate(context.Background(), sampleOf("12.50"))

	if first.Err == nil || !first.Dispatched {
		t.Fatalf("first tick should report the dispatch error, got %+v", first)
	}
	if second.SuppressedReason != models.ReasonCooldown {
		t.Fatalf("failed dispatch must still start the cooldown, got %+v", second)
	}
	if len(f.journal.records) != 1 || f.journal.records[0].Delivered {
		t.Fatalf("expected one undelivered journal record, got %+v", f.journal.records)
	}
}

func TestEngineDispatcherPanicIsContained(t *testing.T) {
	f := newEngineFixture(true, time.Hour)
	f.dispatcher.panicOnSend = true

	d := f.engine.Evaluate(context.Background(), sampleOf("12.50"))

	if d.Err == nil {
		t.Fatal("expected panic to surface as an error")
	}
	if _, ok := f.engine.Ledger().LastFired("APPL34", models.ActionSell); !ok {
		t.Fatal("attempted dispatch must record the cooldown")
	}
}

func TestEngineEmptySubjectSkipsDispatch(t *testing.T) {
	f := newEngineFixture(true, time.Hour)
	f.renderer.empty = true

	d := f.engine.Evaluate(context.Background(), sampleOf("12.50"))

	if d.SuppressedReason != models.ReasonEmptySubject || f.dispatcher.Count() != 0 {
		t.Fatalf("expected empty subject guard, got %+v", d)
	}
	if f.engine.Ledger().Len() != 0 {
		t.Fatal("nothing was attempted, so nothing should be recorded")
	}
}

func TestEngineDispatchPolicy(t *testing.T) {
	t.Run("when configured skips unconfigured dispatcher", func(t *testing.T) {
		disp := &recordingDispatcher{unconfigured: true}
		e := NewEngine(EngineConfig{
			Asset:           testAsset(),
			CooldownEnabled: true,
			Cooldown:        time.Hour,
			DispatchPolicy:  DispatchWhenConfigured,
		}, nil, &recordingRenderer{}, disp, zerolog.Nop())

		d := e.Evaluate(context.Background(), sampleOf("12.50"))
		if d.SuppressedReason != models.ReasonNotConfigured || disp.Count() != 0 {
			t.Fatalf("expected log-only decision, got %+v", d)
		}
		if e.Ledger().Len() != 0 {
			t.Fatal("skipped dispatch must not record a cooldown")
		}
	})

	t.Run("always attempts unconfigured dispatcher", func(t *testing.T) {
		disp := &recordingDispatcher{unconfigured: true}
		e := NewEngine(EngineConfig{
			Asset:           testAsset(),
			CooldownEnabled: true,
			Cooldown:        time.Hour,
		}, nil, &recordingRenderer{}, disp, zerolog.Nop())

		d := e.Evaluate(context.Background(), sampleOf("12.50"))
		if !d.Dispatched || disp.Count() != 1 {
			t.Fatalf("expected send attempt, got %+v", d)
		}
	})
}

func TestEngineSendTimeoutBoundsContext(t *testing.T) {
	var deadline time.Time
	disp := &deadlineDispatcher{seen: &deadline}
	e := NewEngine(EngineConfig{
		Asset:       testAsset(),
		SendTimeout: 2 * time.Second,
	}, nil, &recordingRenderer{}, disp, zerolog.Nop())

	e.Evaluate(context.Background(), sampleOf("12.50"))

	if deadline.IsZero() {
		t.Fatal("expected dispatcher context to carry a deadline")
	}
	if time.Until(deadline) > 2*time.Second {
		t.Fatalf("deadline too far in the future: %v", deadline)
	}
}

type deadlineDispatcher struct {
	seen *time.Time
}

func (d *deadlineDispatcher) Send(ctx context.Context, subject, body string) error {
	if dl, ok := ctx.Deadline(); ok {
		*d.seen = dl
	}
	return nil
}

func (d *deadlineDispatcher) Configured() bool { return true }

func TestEngineJournalRecordsAlertDetails(t *testing.T) {
	f := newEngineFixture(true, time.Hour)
	f.run(t, "9.50")

	if len(f.journal.records) != 1 {
		t.Fatalf("expected one journal record, got %d", len(f.journal.records))
	}
	rec := f.journal.records[0]
	if rec.Action != models.ActionBuy || rec.Symbol != "APPL34" || !rec.Delivered {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.Price.String() != "9.5" {
		t.Fatalf("unexpected price %s", rec.Price)
	}
}

func TestEngineConcurrentEvaluateFiresOnce(t *testing.T) {
	f := newEngineFixture(true, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.engine.Evaluate(context.Background(), sampleOf("12.50"))
		}()
	}
	wg.Wait()

	if got := f.dispatcher.Count(); got != 1 {
		t.Fatalf("expected a single dispatch under concurrency, got %d", got)
	}
}
