package jsonstore_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmadesk/m/domain"
	"pharmadesk/m/internal/store"
	"pharmadesk/m/internal/store/jsonstore"
)

func TestCollectionCRUD(t *testing.T) {
	st, err := jsonstore.Open(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	inventory := st.Inventory()

	items, err := inventory.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items, "missing file reads as an empty collection")

	created, err := inventory.Append(ctx, domain.InventoryItem{
		ID: "a1", Name: "Ibuprofen 200mg", Quantity: 340, Supplier: "HealthWholesale", UnitPrice: 0.10,
	})
	require.NoError(t, err)
	assert.Equal(t, "a1", created.ID)

	got, err := inventory.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, created, got)

	_, err = inventory.Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	updated, err := inventory.Update(ctx, "a1", func(i *domain.InventoryItem) error {
		i.Quantity = 300
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(300), updated.Quantity)
	assert.Equal(t, "HealthWholesale", updated.Supplier, "untouched fields survive an update")

	_, err = inventory.Update(ctx, "missing", func(i *domain.InventoryItem) error { return nil })
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, inventory.Delete(ctx, "a1"))
	assert.ErrorIs(t, inventory.Delete(ctx, "a1"), store.ErrNotFound)

	items, err = inventory.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestReplaceAll(t *testing.T) {
	st, err := jsonstore.Open(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	staff := st.Staff()

	_, err = staff.Append(ctx, domain.StaffAccount{ID: "s1", Username: "old"})
	require.NoError(t, err)

	require.NoError(t, staff.ReplaceAll(ctx, []domain.StaffAccount{
		{ID: "s2", Username: "alpha"},
		{ID: "s3", Username: "beta"},
	}))

	accounts, err := staff.List(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "alpha", accounts[0].Username)

	_, err = staff.Get(ctx, "s1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, staff.ReplaceAll(ctx, nil))
	accounts, err = staff.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	st, err := jsonstore.Open(dir)
	require.NoError(t, err)
	_, err = st.Patients().Append(ctx, domain.Patient{ID: "1", Name: "Alex Rivera"})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	reopened, err := jsonstore.Open(dir)
	require.NoError(t, err)
	patient, err := reopened.Patients().Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Alex Rivera", patient.Name)
}

func TestFilesArePrettyPrintedArrays(t *testing.T) {
	dir := t.TempDir()
	st, err := jsonstore.Open(dir)
	require.NoError(t, err)

	_, err = st.Patients().Append(context.Background(), domain.Patient{ID: "1", Name: "Alex Rivera"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "patients.json"))
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "["))
	assert.Contains(t, text, "\n  ", "collections are written indented")
}

func TestReadsLegacyExpirationPlaceholders(t *testing.T) {
	dir := t.TempDir()
	legacy := `[
  {"id": "a1", "name": "Gauze", "quantity": 10, "supplier": "Unknown", "unit_price": 1.5, "expiration_date": "N/A"}
]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "inventory.json"), []byte(legacy), 0o644))

	st, err := jsonstore.Open(dir)
	require.NoError(t, err)
	item, err := st.Inventory().Get(context.Background(), "a1")
	require.NoError(t, err)
	require.NotNil(t, item.Expiration)
	assert.True(t, item.Expiration.IsZero())
	assert.False(t, item.Expired(domain.NewDate(2026, 3, 10)), "placeholder dates never count as expired")
}

func TestPharmacyObject(t *testing.T) {
	st, err := jsonstore.Open(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	empty, err := st.Pharmacy().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PharmacyDetails{}, empty, "missing file reads as the zero value")

	details := domain.PharmacyDetails{Name: "Corner Pharmacy", Owner: "J. Smith", PhoneNumber: "555-0100"}
	require.NoError(t, st.Pharmacy().Put(ctx, details))

	got, err := st.Pharmacy().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, details, got)
}
