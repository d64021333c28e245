// Package checkout implements the cashier's cart: building a mix of
// prescription and over-the-counter lines, validating them against stock
// and expiry, and committing the sale across inventory, the patient's
// prescription flags, and the sales ledger.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pharmadesk/m/domain"
	"pharmadesk/m/internal/store"
)

// State of a checkout session. Committed and Aborted are terminal.
type State string

const (
	StateBuilding  State = "building"
	StateCommitted State = "committed"
	StateAborted   State = "aborted"
)

// Line is one cart entry: a snapshot of the item at add time plus the
// requested quantity. The authoritative stock count stays in the store.
type Line struct {
	Item     domain.InventoryItem
	Quantity int64
}

func (l Line) total() decimal.Decimal {
	return decimal.NewFromFloat(l.Item.UnitPrice).
		Mul(decimal.NewFromInt(l.Quantity)).
		Round(2)
}

// Engine creates checkout sessions bound to the backing collections.
type Engine struct {
	inventory store.Collection[domain.InventoryItem]
	patients  store.Collection[domain.Patient]
	purchases store.Collection[domain.PurchaseRecord]

	// Now is swappable for tests.
	Now func() time.Time
}

func NewEngine(
	inventory store.Collection[domain.InventoryItem],
	patients store.Collection[domain.Patient],
	purchases store.Collection[domain.PurchaseRecord],
) *Engine {
	return &Engine{inventory: inventory, patients: patients, purchases: purchases, Now: time.Now}
}

// NewSession opens a cart. patientID may be empty for a walk-in sale with
// only over-the-counter lines.
func (e *Engine) NewSession(patientID string) *Session {
	return &Session{engine: e, patientID: patientID, state: StateBuilding}
}

// Session is one cashier cart. It is not safe for concurrent use.
type Session struct {
	engine    *Engine
	patientID string
	state     State
	lines     []Line
}

func (s *Session) State() State      { return s.state }
func (s *Session) PatientID() string { return s.patientID }

// Lines returns a copy of the cart.
func (s *Session) Lines() []Line {
	out := make([]Line, len(s.lines))
	copy(out, s.lines)
	return out
}

// Total is the running cart total in whole cents precision.
func (s *Session) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range s.lines {
		total = total.Add(line.total())
	}
	return total
}

// AddPrescriptionLine adds the patient's unfilled prescription for drug to
// the cart. The quantity is the prescribed amount; it is not independently
// choosable. The returned warning is advisory: it flags requests that
// exceed current stock but does not block the add.
func (s *Session) AddPrescriptionLine(ctx context.Context, drug string) (warning string, err error) {
	if s.state != StateBuilding {
		return "", ErrSessionClosed
	}
	if s.patientID == "" {
		return "", &ValidationError{Reason: "no patient selected for prescription line"}
	}
	patient, err := s.engine.patients.Get(ctx, s.patientID)
	if err != nil {
		return "", err
	}
	prescription := patient.UnfilledPrescription(drug)
	if prescription == nil {
		return "", &ValidationError{Reason: fmt.Sprintf("patient has no unfilled prescription for %s", drug)}
	}

	item, err := s.engine.findItemByName(ctx, drug)
	if err != nil {
		return "", err
	}

	requested := s.mergeLine(item, prescription.Amount)
	if requested > item.Quantity {
		warning = fmt.Sprintf("only %d units of %s are available", item.Quantity, item.Name)
	}
	return warning, nil
}

// AddOTCLine adds an ad-hoc non-prescription line. The item does not need
// to exist in inventory: a transient record is synthesized with supplier
// "Unknown" and no expiration date.
func (s *Session) AddOTCLine(name string, quantity int64, unitPrice float64) error {
	if s.state != StateBuilding {
		return ErrSessionClosed
	}
	if name == "" {
		return &ValidationError{Reason: "item name is required"}
	}
	if quantity <= 0 {
		return &ValidationError{Reason: "quantity must be a positive number"}
	}
	if unitPrice <= 0 {
		return &ValidationError{Reason: "price per item must be a positive number"}
	}

	// Merge with an existing line for the same name before synthesizing a
	// new transient item.
	for i := range s.lines {
		if s.lines[i].Item.Name == name {
			s.lines[i].Quantity += quantity
			return nil
		}
	}
	s.lines = append(s.lines, Line{
		Item: domain.InventoryItem{
			ID:        uuid.NewString(),
			Name:      name,
			Quantity:  quantity,
			Supplier:  "Unknown",
			UnitPrice: unitPrice,
		},
		Quantity: quantity,
	})
	return nil
}

// RemoveLine deletes the whole line for the item id; there is no partial
// decrement.
func (s *Session) RemoveLine(itemID string) {
	if s.state != StateBuilding {
		return
	}
	kept := s.lines[:0]
	for _, line := range s.lines {
		if line.Item.ID != itemID {
			kept = append(kept, line)
		}
	}
	s.lines = kept
}

// Abandon discards the cart. The session becomes terminal.
func (s *Session) Abandon() {
	if s.state != StateBuilding {
		return
	}
	s.lines = nil
	s.state = StateAborted
}

// Receipt is the result of a committed checkout.
type Receipt struct {
	PurchaseID string  `json:"purchase_id"`
	Total      float64 `json:"total"`
	Text       string  `json:"text"`
}

// Commit validates the cart and applies the sale. Validation failures
// (expired items, bad payment method, empty cart) leave the session in
// Building with nothing written. On success the steps run best-effort
// sequentially with the irreversible ledger append last: prescription
// flags, then stock decrements clamped at zero, then the purchase record.
// A storage failure part-way through is surfaced to the caller; steps
// already applied are not rolled back.
func (s *Session) Commit(ctx context.Context, payment domain.PaymentMethod) (*Receipt, error) {
	if s.state != StateBuilding {
		return nil, ErrSessionClosed
	}
	if len(s.lines) == 0 {
		return nil, &ValidationError{Reason: "cart is empty"}
	}
	if !payment.Valid() {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown payment method %q", payment)}
	}

	now := s.engine.Now()
	today := domain.DateOf(now)
	var expired []string
	for _, line := range s.lines {
		if line.Item.Expired(today) {
			expired = append(expired, line.Item.Name)
		}
	}
	if len(expired) > 0 {
		return nil, &ExpiredItemsError{Items: expired}
	}

	total := s.Total()

	if err := s.fillPrescriptions(ctx); err != nil {
		return nil, err
	}
	if err := s.decrementStock(ctx); err != nil {
		return nil, err
	}

	record := domain.PurchaseRecord{
		ID:            uuid.NewString(),
		Date:          now,
		PaymentMethod: payment,
		TotalCost:     total.InexactFloat64(),
	}
	for _, line := range s.lines {
		record.Items = append(record.Items, domain.PurchaseLine{
			ItemID:    line.Item.ID,
			Name:      line.Item.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.Item.UnitPrice,
			LineTotal: line.total().InexactFloat64(),
		})
	}
	if _, err := s.engine.purchases.Append(ctx, record); err != nil {
		return nil, err
	}

	receipt := &Receipt{
		PurchaseID: record.ID,
		Total:      record.TotalCost,
		Text:       renderReceipt(record),
	}
	s.lines = nil
	s.state = StateCommitted
	return receipt, nil
}

// fillPrescriptions marks the session patient's unfilled prescriptions
// whose drug name matches a cart line as filled.
func (s *Session) fillPrescriptions(ctx context.Context) error {
	if s.patientID == "" {
		return nil
	}
	_, err := s.engine.patients.Update(ctx, s.patientID, func(p *domain.Patient) error {
		for i := range p.Prescriptions {
			if p.Prescriptions[i].Filled {
				continue
			}
			for _, line := range s.lines {
				if line.Item.Name == p.Prescriptions[i].Name {
					p.Prescriptions[i].Filled = true
					break
				}
			}
		}
		return nil
	})
	return err
}

// decrementStock reduces each sold item's quantity, floored at zero. Lines
// for transient over-the-counter items have no inventory record and are
// skipped.
func (s *Session) decrementStock(ctx context.Context) error {
	for _, line := range s.lines {
		quantity := line.Quantity
		_, err := s.engine.inventory.Update(ctx, line.Item.ID, func(item *domain.InventoryItem) error {
			item.Quantity -= quantity
			if item.Quantity < 0 {
				item.Quantity = 0
			}
			return nil
		})
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// mergeLine adds quantity for item to the cart, merging with an existing
// line for the same item id, and returns the line's new total quantity.
func (s *Session) mergeLine(item domain.InventoryItem, quantity int64) int64 {
	for i := range s.lines {
		if s.lines[i].Item.ID == item.ID {
			s.lines[i].Quantity += quantity
			return s.lines[i].Quantity
		}
	}
	s.lines = append(s.lines, Line{Item: item, Quantity: quantity})
	return quantity
}

func (e *Engine) findItemByName(ctx context.Context, name string) (domain.InventoryItem, error) {
	items, err := e.inventory.List(ctx)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	for _, item := range items {
		if item.Name == name {
			return item, nil
		}
	}
	return domain.InventoryItem{}, &ItemNotInInventoryError{Name: name}
}
