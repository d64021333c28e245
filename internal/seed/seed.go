// Package seed bootstraps first-run data so a fresh install is reachable.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log"
	"os"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"pharmadesk/m/domain"
	"pharmadesk/m/internal/store"
)

// EnsureAdmin creates a default Admin account when the staff collection is
// empty. The password comes from SEED_ADMIN_PASSWORD; an empty value falls
// back to a dev default with a warning. The account carries the
// first-time-login flag so the caller forces a password change.
func EnsureAdmin(ctx context.Context, staff store.Collection[domain.StaffAccount], password string) error {
	accounts, err := staff.List(ctx)
	if err != nil {
		return err
	}
	if len(accounts) > 0 {
		return nil
	}

	if password == "" {
		password = "admin123"
		log.Println("WARNING: using default admin credentials. Set SEED_ADMIN_PASSWORD to override.")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = staff.Append(ctx, domain.StaffAccount{
		ID:             uuid.NewString(),
		Role:           domain.RoleAdmin,
		Name:           "System Administrator",
		Username:       "admin",
		Password:       string(hashed),
		FirstTimeLogin: true,
	})
	if err == nil {
		log.Printf("seeded default admin account")
	}
	return err
}

// LoadInventory ingests a JSON array of inventory items into an empty
// inventory collection. A missing file is not an error; a populated
// collection is left alone.
func LoadInventory(ctx context.Context, inventory store.Collection[domain.InventoryItem], path string) error {
	existing, err := inventory.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var items []domain.InventoryItem
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}

	rows := 0
	for _, item := range items {
		if item.Name == "" {
			continue
		}
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		if _, err := inventory.Append(ctx, item); err != nil {
			log.Printf("unable to seed inventory item %s: %v", item.Name, err)
			continue
		}
		rows++
	}
	if rows > 0 {
		log.Printf("seeded inventory with %d items", rows)
	}
	return nil
}
