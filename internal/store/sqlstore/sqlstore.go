// Package sqlstore implements the store contract on sqlite. Each
// collection is a two-column document table (id, doc); the sqlite file
// replaces the JSON data directory without changing any component
// contract.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"pharmadesk/m/domain"
	"pharmadesk/m/internal/migrations"
	"pharmadesk/m/internal/store"
)

// Store wraps a sqlite database.
type Store struct {
	db *sqlx.DB
}

// Open connects to the sqlite database at dsn and ensures the schema
// exists. Use ":memory:" for an ephemeral store.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, &store.StorageError{Op: "open database", Err: err}
	}
	// modernc sqlite allows one writer; serialize through a single conn.
	db.SetMaxOpenConns(1)
	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, &store.StorageError{Op: "migrate", Err: err}
	}
	return &Store{db: db}, nil
}

func (s *Store) Staff() store.Collection[domain.StaffAccount] {
	return &collection[domain.StaffAccount]{db: s.db, table: "staff"}
}

func (s *Store) Inventory() store.Collection[domain.InventoryItem] {
	return &collection[domain.InventoryItem]{db: s.db, table: "inventory"}
}

func (s *Store) Patients() store.Collection[domain.Patient] {
	return &collection[domain.Patient]{db: s.db, table: "patients"}
}

func (s *Store) Fiscal() store.Collection[domain.FiscalEntry] {
	return &collection[domain.FiscalEntry]{db: s.db, table: "fiscal"}
}

func (s *Store) Purchases() store.Collection[domain.PurchaseRecord] {
	return &collection[domain.PurchaseRecord]{db: s.db, table: "purchases"}
}

func (s *Store) AuthEvents() store.Collection[domain.AuthEvent] {
	return &collection[domain.AuthEvent]{db: s.db, table: "auth_events"}
}

func (s *Store) Pharmacy() store.Object[domain.PharmacyDetails] {
	return &object[domain.PharmacyDetails]{db: s.db}
}

func (s *Store) Close() error { return s.db.Close() }

type collection[T store.Record] struct {
	db    *sqlx.DB
	table string
}

func (c *collection[T]) List(ctx context.Context) ([]T, error) {
	var docs []string
	query := fmt.Sprintf(`SELECT doc FROM %s ORDER BY rowid`, c.table)
	if err := c.db.SelectContext(ctx, &docs, query); err != nil {
		return nil, &store.StorageError{Op: "list " + c.table, Err: err}
	}
	recs := make([]T, 0, len(docs))
	for _, doc := range docs {
		var rec T
		if err := json.Unmarshal([]byte(doc), &rec); err != nil {
			return nil, &store.StorageError{Op: "decode " + c.table, Err: err}
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (c *collection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	var doc string
	query := fmt.Sprintf(`SELECT doc FROM %s WHERE id = ?`, c.table)
	if err := c.db.GetContext(ctx, &doc, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, store.ErrNotFound
		}
		return zero, &store.StorageError{Op: "get " + c.table, Err: err}
	}
	var rec T
	if err := json.Unmarshal([]byte(doc), &rec); err != nil {
		return zero, &store.StorageError{Op: "decode " + c.table, Err: err}
	}
	return rec, nil
}

func (c *collection[T]) Append(ctx context.Context, rec T) (T, error) {
	var zero T
	doc, err := json.Marshal(rec)
	if err != nil {
		return zero, &store.StorageError{Op: "encode " + c.table, Err: err}
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES (?, ?)`, c.table)
	if _, err := c.db.ExecContext(ctx, query, rec.RecordID(), string(doc)); err != nil {
		return zero, &store.StorageError{Op: "append " + c.table, Err: err}
	}
	return rec, nil
}

func (c *collection[T]) Update(ctx context.Context, id string, mutate func(*T) error) (T, error) {
	var zero T
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return zero, &store.StorageError{Op: "update " + c.table, Err: err}
	}
	defer tx.Rollback()

	var doc string
	query := fmt.Sprintf(`SELECT doc FROM %s WHERE id = ?`, c.table)
	if err := tx.GetContext(ctx, &doc, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, store.ErrNotFound
		}
		return zero, &store.StorageError{Op: "update " + c.table, Err: err}
	}
	var rec T
	if err := json.Unmarshal([]byte(doc), &rec); err != nil {
		return zero, &store.StorageError{Op: "decode " + c.table, Err: err}
	}
	if err := mutate(&rec); err != nil {
		return zero, err
	}
	updated, err := json.Marshal(rec)
	if err != nil {
		return zero, &store.StorageError{Op: "encode " + c.table, Err: err}
	}
	query = fmt.Sprintf(`UPDATE %s SET doc = ? WHERE id = ?`, c.table)
	if _, err := tx.ExecContext(ctx, query, string(updated), id); err != nil {
		return zero, &store.StorageError{Op: "update " + c.table, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return zero, &store.StorageError{Op: "update " + c.table, Err: err}
	}
	return rec, nil
}

func (c *collection[T]) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, c.table)
	res, err := c.db.ExecContext(ctx, query, id)
	if err != nil {
		return &store.StorageError{Op: "delete " + c.table, Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return &store.StorageError{Op: "delete " + c.table, Err: err}
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (c *collection[T]) ReplaceAll(ctx context.Context, recs []T) error {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return &store.StorageError{Op: "replace " + c.table, Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, c.table)); err != nil {
		return &store.StorageError{Op: "replace " + c.table, Err: err}
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES (?, ?)`, c.table)
	for _, rec := range recs {
		doc, err := json.Marshal(rec)
		if err != nil {
			return &store.StorageError{Op: "encode " + c.table, Err: err}
		}
		if _, err := tx.ExecContext(ctx, query, rec.RecordID(), string(doc)); err != nil {
			return &store.StorageError{Op: "replace " + c.table, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &store.StorageError{Op: "replace " + c.table, Err: err}
	}
	return nil
}

type object[T any] struct {
	db *sqlx.DB
}

func (o *object[T]) Get(ctx context.Context) (T, error) {
	var val T
	var doc string
	if err := o.db.GetContext(ctx, &doc, `SELECT doc FROM pharmacy WHERE id = 1`); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return val, nil
		}
		return val, &store.StorageError{Op: "get pharmacy", Err: err}
	}
	if err := json.Unmarshal([]byte(doc), &val); err != nil {
		return val, &store.StorageError{Op: "decode pharmacy", Err: err}
	}
	return val, nil
}

func (o *object[T]) Put(ctx context.Context, val T) error {
	doc, err := json.Marshal(val)
	if err != nil {
		return &store.StorageError{Op: "encode pharmacy", Err: err}
	}
	if _, err := o.db.ExecContext(ctx, `INSERT OR REPLACE INTO pharmacy (id, doc) VALUES (1, ?)`, string(doc)); err != nil {
		return &store.StorageError{Op: "put pharmacy", Err: err}
	}
	return nil
}
