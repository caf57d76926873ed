// Package store provides the alert journal.
package store

import (
	"context"

	"stockquote-alert/internal/models"
)

// AlertJournal persists dispatched alerts.
type AlertJournal interface {
	RecordAlert(ctx context.Context, rec *models.AlertRecord) error
	RecentAlerts(ctx context.Context, filter AlertFilter) ([]models.AlertRecord, error)
	Close() error
}

// AlertFilter narrows RecentAlerts.
type AlertFilter struct {
	Symbol string
	Action models.Action
	Limit  int
}

// DefaultHistoryLimit is used when AlertFilter.Limit is not positive.
const DefaultHistoryLimit = 20
