// Package store defines the persistence contract the rest of the backend
// programs against. Two backends implement it: jsonstore (one JSON array
// file per collection, the legacy on-disk layout) and sqlstore (sqlite
// document tables). There are no cross-collection transactions in either.
package store

import (
	"context"
	"errors"
	"fmt"

	"pharmadesk/m/domain"
)

// ErrNotFound is returned when a record id is absent from its collection.
var ErrNotFound = errors.New("record not found")

// StorageError wraps an underlying read or write failure. Callers treat
// these as fatal for the in-flight operation; there are no retries.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// Record is anything addressable by an opaque identifier.
type Record interface {
	RecordID() string
}

// Collection is a named set of records. Update applies a read-modify-write
// mutation under the collection's write lock, which is how partial updates
// (shallow merges) are expressed without losing untouched fields.
type Collection[T Record] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	Append(ctx context.Context, rec T) (T, error)
	Update(ctx context.Context, id string, mutate func(*T) error) (T, error)
	Delete(ctx context.Context, id string) error
	ReplaceAll(ctx context.Context, recs []T) error
}

// Object holds a single document with full-overwrite semantics.
type Object[T any] interface {
	Get(ctx context.Context) (T, error)
	Put(ctx context.Context, val T) error
}

// Store bundles every collection the backend persists.
type Store interface {
	Staff() Collection[domain.StaffAccount]
	Inventory() Collection[domain.InventoryItem]
	Patients() Collection[domain.Patient]
	Fiscal() Collection[domain.FiscalEntry]
	Purchases() Collection[domain.PurchaseRecord]
	AuthEvents() Collection[domain.AuthEvent]
	Pharmacy() Object[domain.PharmacyDetails]
	Close() error
}
