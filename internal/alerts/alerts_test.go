package alerts_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pharmadesk/m/domain"
	"pharmadesk/m/internal/alerts"
)

func item(name string, quantity int64, expires *domain.Date) domain.InventoryItem {
	return domain.InventoryItem{ID: name, Name: name, Quantity: quantity, Expiration: expires}
}

func datePtr(d domain.Date) *domain.Date { return &d }

func TestScan(t *testing.T) {
	now := time.Date(2026, time.March, 10, 23, 59, 0, 0, time.UTC)
	const threshold = 30

	items := []domain.InventoryItem{
		item("fresh and stocked", 100, datePtr(domain.NewDate(2027, time.January, 1))),
		item("expired", 100, datePtr(domain.NewDate(2026, time.March, 9))),
		item("expires today", 100, datePtr(domain.NewDate(2026, time.March, 10))),
		item("low stock", 29, nil),
		item("at threshold", 30, nil),
		item("expired and low", 5, datePtr(domain.NewDate(2025, time.December, 31))),
		item("no expiry date", 100, nil),
	}

	found := alerts.Scan(items, now, threshold)

	assert.Equal(t, []alerts.Alert{
		{Item: items[1], Reason: alerts.ReasonExpired},
		{Item: items[3], Reason: alerts.ReasonLowStock},
		{Item: items[5], Reason: alerts.ReasonExpired},
		{Item: items[5], Reason: alerts.ReasonLowStock},
	}, found)
}

func TestScanEmpty(t *testing.T) {
	assert.Empty(t, alerts.Scan(nil, time.Now(), 30))
}
