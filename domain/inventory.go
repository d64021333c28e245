package domain

// InventoryItem is a stocked product. Quantity never goes negative: every
// sale decrement clamps at zero.
type InventoryItem struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Quantity   int64   `json:"quantity"`
	Supplier   string  `json:"supplier"`
	UnitPrice  float64 `json:"unit_price"`
	Expiration *Date   `json:"expiration_date,omitempty"`
}

func (i InventoryItem) RecordID() string { return i.ID }

// Expired reports whether the item's expiration date is strictly before
// the given day. Items without an expiration date never expire.
func (i InventoryItem) Expired(today Date) bool {
	return i.Expiration != nil && !i.Expiration.IsZero() && i.Expiration.Before(today)
}
