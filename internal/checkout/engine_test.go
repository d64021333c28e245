package checkout_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmadesk/m/domain"
	"pharmadesk/m/internal/checkout"
	"pharmadesk/m/internal/store/jsonstore"
)

func newEngine(t *testing.T) (*checkout.Engine, *jsonstore.Store) {
	t.Helper()
	st, err := jsonstore.Open(t.TempDir())
	require.NoError(t, err)
	engine := checkout.NewEngine(st.Inventory(), st.Patients(), st.Purchases())
	engine.Now = func() time.Time { return time.Date(2026, time.March, 10, 14, 30, 0, 0, time.UTC) }
	return engine, st
}

func seedItem(t *testing.T, st *jsonstore.Store, name string, quantity int64, price float64, expires *domain.Date) domain.InventoryItem {
	t.Helper()
	item, err := st.Inventory().Append(context.Background(), domain.InventoryItem{
		ID:         uuid.NewString(),
		Name:       name,
		Quantity:   quantity,
		Supplier:   "MedSupply Co",
		UnitPrice:  price,
		Expiration: expires,
	})
	require.NoError(t, err)
	return item
}

func seedPatient(t *testing.T, st *jsonstore.Store, prescriptions ...domain.Prescription) domain.Patient {
	t.Helper()
	patient, err := st.Patients().Append(context.Background(), domain.Patient{
		ID:            "1",
		Name:          "Alex Rivera",
		DateOfBirth:   "1985-07-12",
		Prescriptions: prescriptions,
	})
	require.NoError(t, err)
	return patient
}

func datePtr(d domain.Date) *domain.Date { return &d }

func TestPrescriptionCheckout(t *testing.T) {
	engine, st := newEngine(t)
	ctx := context.Background()
	item := seedItem(t, st, "Amoxicillin 500mg", 10, 0.45, datePtr(domain.NewDate(2027, time.March, 15)))
	patient := seedPatient(t, st, domain.Prescription{Name: "Amoxicillin 500mg", Amount: 2})

	session := engine.NewSession(patient.ID)
	warning, err := session.AddPrescriptionLine(ctx, "Amoxicillin 500mg")
	require.NoError(t, err)
	assert.Empty(t, warning)

	receipt, err := session.Commit(ctx, domain.PaymentCash)
	require.NoError(t, err)
	assert.InDelta(t, 0.90, receipt.Total, 1e-9)
	assert.NotEmpty(t, receipt.PurchaseID)
	assert.Contains(t, receipt.Text, "Amoxicillin 500mg")
	assert.Equal(t, checkout.StateCommitted, session.State())

	got, err := st.Inventory().Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8), got.Quantity)

	updated, err := st.Patients().Get(ctx, patient.ID)
	require.NoError(t, err)
	assert.True(t, updated.Prescriptions[0].Filled)

	purchases, err := st.Purchases().List(ctx)
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	assert.Equal(t, receipt.PurchaseID, purchases[0].ID)
	require.Len(t, purchases[0].Items, 1)
	assert.Equal(t, int64(2), purchases[0].Items[0].Quantity)
	assert.Equal(t, domain.PaymentCash, purchases[0].PaymentMethod)
}

func TestPrescriptionLineMergesAndWarns(t *testing.T) {
	engine, st := newEngine(t)
	ctx := context.Background()
	seedItem(t, st, "Amoxicillin 500mg", 10, 0.45, nil)
	patient := seedPatient(t, st,
		domain.Prescription{Name: "Amoxicillin 500mg", Amount: 6},
		domain.Prescription{Name: "Amoxicillin 500mg", Amount: 6},
	)

	session := engine.NewSession(patient.ID)
	warning, err := session.AddPrescriptionLine(ctx, "Amoxicillin 500mg")
	require.NoError(t, err)
	assert.Empty(t, warning)

	// Second add merges into the same line; the total of 12 exceeds the
	// stock of 10 and only warns, it does not block.
	warning, err = session.AddPrescriptionLine(ctx, "Amoxicillin 500mg")
	require.NoError(t, err)
	assert.Equal(t, "only 10 units of Amoxicillin 500mg are available", warning)

	lines := session.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, int64(12), lines[0].Quantity)
}

func TestPrescriptionLineRejections(t *testing.T) {
	engine, st := newEngine(t)
	ctx := context.Background()
	seedItem(t, st, "Amoxicillin 500mg", 10, 0.45, nil)
	patient := seedPatient(t,
		st,
		domain.Prescription{Name: "Amoxicillin 500mg", Amount: 2, Filled: true},
		domain.Prescription{Name: "Ghost Drug", Amount: 1},
	)

	session := engine.NewSession(patient.ID)

	var validationErr *checkout.ValidationError
	_, err := session.AddPrescriptionLine(ctx, "Amoxicillin 500mg")
	assert.ErrorAs(t, err, &validationErr, "already-filled prescription must be rejected")

	var notInInv *checkout.ItemNotInInventoryError
	_, err = session.AddPrescriptionLine(ctx, "Ghost Drug")
	require.ErrorAs(t, err, &notInInv)
	assert.Equal(t, "Ghost Drug", notInInv.Name)

	walkIn := engine.NewSession("")
	_, err = walkIn.AddPrescriptionLine(ctx, "Amoxicillin 500mg")
	assert.ErrorAs(t, err, &validationErr, "prescription lines need a patient")
}

func TestOTCLineValidation(t *testing.T) {
	engine, _ := newEngine(t)
	session := engine.NewSession("")

	tests := []struct {
		name     string
		itemName string
		quantity int64
		price    float64
	}{
		{"empty name", "", 1, 1.50},
		{"zero quantity", "Bandages", 0, 1.50},
		{"negative quantity", "Bandages", -2, 1.50},
		{"zero price", "Bandages", 1, 0},
		{"negative price", "Bandages", 1, -0.10},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var validationErr *checkout.ValidationError
			err := session.AddOTCLine(tc.itemName, tc.quantity, tc.price)
			assert.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestWalkInOTCCheckout(t *testing.T) {
	engine, st := newEngine(t)
	ctx := context.Background()

	session := engine.NewSession("")
	require.NoError(t, session.AddOTCLine("Bandages", 2, 1.50))
	require.NoError(t, session.AddOTCLine("Bandages", 3, 1.50))
	require.NoError(t, session.AddOTCLine("Cough Drops", 1, 2.25))

	lines := session.Lines()
	require.Len(t, lines, 2, "same-name lines merge")
	assert.Equal(t, int64(5), lines[0].Quantity)
	assert.Equal(t, "Unknown", lines[0].Item.Supplier)
	assert.True(t, session.Total().Equal(decimal.NewFromFloat(9.75)))

	receipt, err := session.Commit(ctx, domain.PaymentCredit)
	require.NoError(t, err)
	assert.InDelta(t, 9.75, receipt.Total, 1e-9)

	// Transient items have no inventory record to decrement.
	items, err := st.Inventory().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	purchases, err := st.Purchases().List(ctx)
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	assert.Len(t, purchases[0].Items, 2)
}

func TestCommitExpiredItemsBlocksEverything(t *testing.T) {
	engine, st := newEngine(t)
	ctx := context.Background()
	item := seedItem(t, st, "Lisinopril 10mg", 50, 0.30, datePtr(domain.NewDate(2026, time.March, 9)))
	patient := seedPatient(t, st, domain.Prescription{Name: "Lisinopril 10mg", Amount: 3})

	session := engine.NewSession(patient.ID)
	_, err := session.AddPrescriptionLine(ctx, "Lisinopril 10mg")
	require.NoError(t, err)

	var expiredErr *checkout.ExpiredItemsError
	_, err = session.Commit(ctx, domain.PaymentCash)
	require.ErrorAs(t, err, &expiredErr)
	assert.Equal(t, []string{"Lisinopril 10mg"}, expiredErr.Items)
	assert.Equal(t, checkout.StateBuilding, session.State(), "session stays open after a validation failure")

	// Nothing was written.
	got, err := st.Inventory().Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), got.Quantity)
	updated, err := st.Patients().Get(ctx, patient.ID)
	require.NoError(t, err)
	assert.False(t, updated.Prescriptions[0].Filled)
	purchases, err := st.Purchases().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, purchases)

	// Removing the offending line lets the cart proceed.
	session.RemoveLine(item.ID)
	require.NoError(t, session.AddOTCLine("Vitamin C", 1, 4.99))
	_, err = session.Commit(ctx, domain.PaymentCash)
	assert.NoError(t, err)
}

func TestCommitExpiryBoundary(t *testing.T) {
	engine, st := newEngine(t)
	ctx := context.Background()
	// Expires today: still sellable. Expiry is strictly before today.
	seedItem(t, st, "Metformin 850mg", 20, 0.22, datePtr(domain.NewDate(2026, time.March, 10)))
	patient := seedPatient(t, st, domain.Prescription{Name: "Metformin 850mg", Amount: 1})

	session := engine.NewSession(patient.ID)
	_, err := session.AddPrescriptionLine(ctx, "Metformin 850mg")
	require.NoError(t, err)
	_, err = session.Commit(ctx, domain.PaymentDebit)
	assert.NoError(t, err)
}

func TestCommitClampsStockAtZero(t *testing.T) {
	engine, st := newEngine(t)
	ctx := context.Background()
	item := seedItem(t, st, "Atorvastatin 20mg", 4, 0.55, nil)
	patient := seedPatient(t, st, domain.Prescription{Name: "Atorvastatin 20mg", Amount: 6})

	session := engine.NewSession(patient.ID)
	warning, err := session.AddPrescriptionLine(ctx, "Atorvastatin 20mg")
	require.NoError(t, err)
	assert.Equal(t, "only 4 units of Atorvastatin 20mg are available", warning)

	receipt, err := session.Commit(ctx, domain.PaymentCash)
	require.NoError(t, err)
	// The full prescribed amount is charged even when stock runs short.
	assert.InDelta(t, 3.30, receipt.Total, 1e-9)

	got, err := st.Inventory().Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Quantity)
}

func TestCommitValidation(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	var validationErr *checkout.ValidationError

	empty := engine.NewSession("")
	_, err := empty.Commit(ctx, domain.PaymentCash)
	assert.ErrorAs(t, err, &validationErr, "empty cart")

	session := engine.NewSession("")
	require.NoError(t, session.AddOTCLine("Bandages", 1, 1.50))
	_, err = session.Commit(ctx, domain.PaymentMethod("Barter"))
	assert.ErrorAs(t, err, &validationErr, "unknown payment method")
	assert.Equal(t, checkout.StateBuilding, session.State())
}

func TestClosedSessionRejectsEverything(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	session := engine.NewSession("")
	require.NoError(t, session.AddOTCLine("Bandages", 1, 1.50))
	_, err := session.Commit(ctx, domain.PaymentCash)
	require.NoError(t, err)

	assert.ErrorIs(t, session.AddOTCLine("More", 1, 1.00), checkout.ErrSessionClosed)
	_, err = session.Commit(ctx, domain.PaymentCash)
	assert.ErrorIs(t, err, checkout.ErrSessionClosed)

	abandoned := engine.NewSession("")
	require.NoError(t, abandoned.AddOTCLine("Bandages", 1, 1.50))
	abandoned.Abandon()
	assert.Equal(t, checkout.StateAborted, abandoned.State())
	assert.Empty(t, abandoned.Lines())
	_, err = abandoned.Commit(ctx, domain.PaymentCash)
	assert.ErrorIs(t, err, checkout.ErrSessionClosed)
}

func TestTotalRoundsPerLine(t *testing.T) {
	engine, _ := newEngine(t)

	session := engine.NewSession("")
	require.NoError(t, session.AddOTCLine("Gauze", 3, 0.10))
	require.NoError(t, session.AddOTCLine("Tape", 1, 0.07))

	assert.True(t, session.Total().Equal(decimal.NewFromFloat(0.37)),
		"got %s", session.Total())
}
