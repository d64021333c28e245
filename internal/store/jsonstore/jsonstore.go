// Package jsonstore persists each collection as a single pretty-printed
// JSON array file, the same on-disk layout the original flat-file backend
// used. Every operation is a full read-modify-write of the file, guarded
// by a per-collection mutex; writes go through a temp file and rename so a
// crash never leaves a half-written collection behind.
package jsonstore

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"pharmadesk/m/domain"
	"pharmadesk/m/internal/store"
)

// Store is a directory of collection files.
type Store struct {
	dir        string
	staff      *collection[domain.StaffAccount]
	inventory  *collection[domain.InventoryItem]
	patients   *collection[domain.Patient]
	fiscal     *collection[domain.FiscalEntry]
	purchases  *collection[domain.PurchaseRecord]
	authEvents *collection[domain.AuthEvent]
	pharmacy   *object[domain.PharmacyDetails]
}

// Open prepares the data directory and binds the collection files.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &store.StorageError{Op: "create data dir", Err: err}
	}
	return &Store{
		dir:        dir,
		staff:      &collection[domain.StaffAccount]{path: filepath.Join(dir, "staff.json")},
		inventory:  &collection[domain.InventoryItem]{path: filepath.Join(dir, "inventory.json")},
		patients:   &collection[domain.Patient]{path: filepath.Join(dir, "patients.json")},
		fiscal:     &collection[domain.FiscalEntry]{path: filepath.Join(dir, "fiscal.json")},
		purchases:  &collection[domain.PurchaseRecord]{path: filepath.Join(dir, "purchases.json")},
		authEvents: &collection[domain.AuthEvent]{path: filepath.Join(dir, "auth_events.json")},
		pharmacy:   &object[domain.PharmacyDetails]{path: filepath.Join(dir, "pharmacy.json")},
	}, nil
}

func (s *Store) Staff() store.Collection[domain.StaffAccount]       { return s.staff }
func (s *Store) Inventory() store.Collection[domain.InventoryItem]  { return s.inventory }
func (s *Store) Patients() store.Collection[domain.Patient]         { return s.patients }
func (s *Store) Fiscal() store.Collection[domain.FiscalEntry]       { return s.fiscal }
func (s *Store) Purchases() store.Collection[domain.PurchaseRecord] { return s.purchases }
func (s *Store) AuthEvents() store.Collection[domain.AuthEvent]     { return s.authEvents }
func (s *Store) Pharmacy() store.Object[domain.PharmacyDetails]     { return s.pharmacy }

func (s *Store) Close() error { return nil }

type collection[T store.Record] struct {
	mu   sync.Mutex
	path string
}

// load reads the whole collection. A missing file is an empty collection.
func (c *collection[T]) load() ([]T, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []T{}, nil
	}
	if err != nil {
		return nil, &store.StorageError{Op: "read " + filepath.Base(c.path), Err: err}
	}
	var recs []T
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, &store.StorageError{Op: "decode " + filepath.Base(c.path), Err: err}
	}
	return recs, nil
}

func (c *collection[T]) save(recs []T) error {
	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return &store.StorageError{Op: "encode " + filepath.Base(c.path), Err: err}
	}
	return writeAtomic(c.path, data)
}

func (c *collection[T]) List(_ context.Context) ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load()
}

func (c *collection[T]) Get(_ context.Context, id string) (T, error) {
	var zero T
	c.mu.Lock()
	defer c.mu.Unlock()
	recs, err := c.load()
	if err != nil {
		return zero, err
	}
	for _, rec := range recs {
		if rec.RecordID() == id {
			return rec, nil
		}
	}
	return zero, store.ErrNotFound
}

func (c *collection[T]) Append(_ context.Context, rec T) (T, error) {
	var zero T
	c.mu.Lock()
	defer c.mu.Unlock()
	recs, err := c.load()
	if err != nil {
		return zero, err
	}
	recs = append(recs, rec)
	if err := c.save(recs); err != nil {
		return zero, err
	}
	return rec, nil
}

func (c *collection[T]) Update(_ context.Context, id string, mutate func(*T) error) (T, error) {
	var zero T
	c.mu.Lock()
	defer c.mu.Unlock()
	recs, err := c.load()
	if err != nil {
		return zero, err
	}
	for i := range recs {
		if recs[i].RecordID() != id {
			continue
		}
		if err := mutate(&recs[i]); err != nil {
			return zero, err
		}
		if err := c.save(recs); err != nil {
			return zero, err
		}
		return recs[i], nil
	}
	return zero, store.ErrNotFound
}

func (c *collection[T]) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	recs, err := c.load()
	if err != nil {
		return err
	}
	kept := recs[:0]
	found := false
	for _, rec := range recs {
		if rec.RecordID() == id {
			found = true
			continue
		}
		kept = append(kept, rec)
	}
	if !found {
		return store.ErrNotFound
	}
	return c.save(kept)
}

func (c *collection[T]) ReplaceAll(_ context.Context, recs []T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if recs == nil {
		recs = []T{}
	}
	return c.save(recs)
}

type object[T any] struct {
	mu   sync.Mutex
	path string
}

func (o *object[T]) Get(_ context.Context) (T, error) {
	var val T
	o.mu.Lock()
	defer o.mu.Unlock()
	data, err := os.ReadFile(o.path)
	if errors.Is(err, fs.ErrNotExist) {
		return val, nil
	}
	if err != nil {
		return val, &store.StorageError{Op: "read " + filepath.Base(o.path), Err: err}
	}
	if err := json.Unmarshal(data, &val); err != nil {
		return val, &store.StorageError{Op: "decode " + filepath.Base(o.path), Err: err}
	}
	return val, nil
}

func (o *object[T]) Put(_ context.Context, val T) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	data, err := json.MarshalIndent(val, "", "  ")
	if err != nil {
		return &store.StorageError{Op: "encode " + filepath.Base(o.path), Err: err}
	}
	return writeAtomic(o.path, data)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return &store.StorageError{Op: "write " + filepath.Base(path), Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &store.StorageError{Op: "write " + filepath.Base(path), Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &store.StorageError{Op: "write " + filepath.Base(path), Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &store.StorageError{Op: "write " + filepath.Base(path), Err: err}
	}
	return nil
}
