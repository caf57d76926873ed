package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockquote-alert/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "journal", "alerts.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func record(symbol string, action models.Action, price string, firedAt time.Time) *models.AlertRecord {
	return &models.AlertRecord{
		Symbol:        symbol,
		Action:        action,
		Price:         decimal.RequireFromString(price),
		BuyThreshold:  decimal.RequireFromString("30.00"),
		SellThreshold: decimal.RequireFromString("40.00"),
		Subject:       symbol + " alert",
		Delivered:     true,
		FiredAt:       firedAt,
	}
}

func TestRecordAlertAssignsIDAndPreservesPrice(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	rec := record("PETR4", models.ActionSell, "41.2500", at)
	rec.Delivered = false
	rec.Error = "smtp: 451 try later"
	require.NoError(t, s.RecordAlert(ctx, rec))
	assert.NotEmpty(t, rec.ID)

	got, err := s.RecentAlerts(ctx, AlertFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)

	a := got[0]
	assert.Equal(t, rec.ID, a.ID)
	assert.Equal(t, models.ActionSell, a.Action)
	assert.True(t, a.Price.Equal(decimal.RequireFromString("41.25")))
	assert.True(t, a.SellThreshold.Equal(decimal.RequireFromString("40")))
	assert.False(t, a.Delivered)
	assert.Equal(t, "smtp: 451 try later", a.Error)
	assert.True(t, a.FiredAt.Equal(at), "fired_at %v", a.FiredAt)
}

func TestRecentAlertsFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordAlert(ctx, record("PETR4", models.ActionSell, "41", base)))
	require.NoError(t, s.RecordAlert(ctx, record("PETR4", models.ActionBuy, "29", base.Add(time.Minute))))
	require.NoError(t, s.RecordAlert(ctx, record("VALE3", models.ActionBuy, "55", base.Add(2*time.Minute))))

	bySymbol, err := s.RecentAlerts(ctx, AlertFilter{Symbol: "petr4"})
	require.NoError(t, err)
	require.Len(t, bySymbol, 2)
	assert.Equal(t, models.ActionBuy, bySymbol[0].Action, "newest first")

	buys, err := s.RecentAlerts(ctx, AlertFilter{Action: models.ActionBuy})
	require.NoError(t, err)
	assert.Len(t, buys, 2)

	limited, err := s.RecentAlerts(ctx, AlertFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "VALE3", limited[0].Symbol)
}

func TestRecordAlertDuplicateID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := record("PETR4", models.ActionSell, "41", time.Now())
	require.NoError(t, s.RecordAlert(ctx, rec))

	dup := record("PETR4", models.ActionSell, "42", time.Now())
	dup.ID = rec.ID
	assert.Error(t, s.RecordAlert(ctx, dup))
}

func TestProperty_RecentAlertsNewestFirstWithinLimit(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 25
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("history is ordered newest first and never exceeds the limit", prop.ForAll(
		func(offsets []int, limit int) bool {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "alerts.db"), zerolog.Nop())
			if err != nil {
				return false
			}
			defer s.Close()

			ctx := context.Background()
			base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			for _, off := range offsets {
				if err := s.RecordAlert(ctx, record("ITUB4", models.ActionSell, "41", base.Add(time.Duration(off)*time.Minute))); err != nil {
					return false
				}
			}

			got, err := s.RecentAlerts(ctx, AlertFilter{Limit: limit})
			if err != nil {
				return false
			}
			want := len(offsets)
			if want > limit {
				want = limit
			}
			if len(got) != want {
				return false
			}
			for i := 1; i < len(got); i++ {
				if got[i].FiredAt.After(got[i-1].FiredAt) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 10000)),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t)
}
