// Package alert implements the threshold alert engine: classification of
// price samples, per-action cooldown suppression and the polling scheduler.
package alert

import (
	"github.com/shopspring/decimal"

	"stockquote-alert/internal/models"
)

// Classify maps a price to an action given the buy and sell thresholds.
// Sell is checked first, so with inverted thresholds a price above the sell
// threshold is always a sell.
func Classify(price, buyThreshold, sellThreshold decimal.Decimal) models.Action {
	if price.GreaterThan(sellThreshold) {
		return models.ActionSell
	}
	if price.LessThan(buyThreshold) {
		return models.ActionBuy
	}
	return models.ActionNone
}

// ClassifyAsset classifies price against the asset's thresholds.
func ClassifyAsset(asset models.TrackedAsset, price decimal.Decimal) models.Action {
	return Classify(price, asset.BuyThreshold, asset.SellThreshold)
}
