// Package alerts is the read-only inventory sweep behind the manager's
// notification view.
package alerts

import (
	"time"

	"pharmadesk/m/domain"
)

// Reason an item was flagged.
type Reason string

const (
	ReasonExpired  Reason = "Expired"
	ReasonLowStock Reason = "LowStock"
)

// Alert pairs an inventory item with the reason it was flagged. An item
// that is both expired and low on stock appears once per reason.
type Alert struct {
	Item   domain.InventoryItem `json:"item"`
	Reason Reason               `json:"reason"`
}

// Scan flags items whose expiration date is strictly before today (at day
// precision) and items whose quantity is below lowStockThreshold. Pure
// function: no side effects, safe to call repeatedly.
func Scan(items []domain.InventoryItem, now time.Time, lowStockThreshold int64) []Alert {
	today := domain.DateOf(now)
	var out []Alert
	for _, item := range items {
		if item.Expired(today) {
			out = append(out, Alert{Item: item, Reason: ReasonExpired})
		}
		if item.Quantity < lowStockThreshold {
			out = append(out, Alert{Item: item, Reason: ReasonLowStock})
		}
	}
	return out
}
