package domain

import "time"

// PaymentMethod accepted at checkout.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "Cash"
	PaymentCredit PaymentMethod = "Credit"
	PaymentDebit  PaymentMethod = "Debit"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCredit, PaymentDebit:
		return true
	}
	return false
}

// FiscalEntry records the pharmacy restocking from a supplier. The fiscal
// ledger is append-only and distinct from the sales ledger.
type FiscalEntry struct {
	ID                string  `json:"id"`
	ItemID            string  `json:"item_id"`
	ItemName          string  `json:"item_name"`
	QuantityPurchased int64   `json:"quantity_purchased"`
	Supplier          string  `json:"supplier"`
	PricePerUnit      float64 `json:"price_per_unit"`
}

func (e FiscalEntry) RecordID() string { return e.ID }

// PurchaseLine is one sold line inside a purchase record.
type PurchaseLine struct {
	ItemID    string  `json:"item_id"`
	Name      string  `json:"name"`
	Quantity  int64   `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	LineTotal float64 `json:"line_total"`
}

// PurchaseRecord is one committed checkout on the append-only sales ledger.
type PurchaseRecord struct {
	ID            string         `json:"id"`
	Date          time.Time      `json:"date"`
	PaymentMethod PaymentMethod  `json:"payment_method"`
	Items         []PurchaseLine `json:"items"`
	TotalCost     float64        `json:"total_cost"`
}

func (p PurchaseRecord) RecordID() string { return p.ID }
