package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlertRecord captures a dispatched alert for the journal.
type AlertRecord struct {
	ID            string          `json:"id"`
	Symbol        string          `json:"symbol"`
	Action        Action          `json:"action"`
	Price         decimal.Decimal `json:"price"`
	BuyThreshold  decimal.Decimal `json:"buy_threshold"`
	SellThreshold decimal.Decimal `json:"sell_threshold"`
	Subject       string          `json:"subject"`
	Delivered     bool            `json:"delivered"`
	Error         string          `json:"error,omitempty"`
	FiredAt       time.Time       `json:"fired_at"`
}
