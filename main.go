package main

import (
	"context"
	"log"
	"net/http"
	"path/filepath"

	"github.com/joho/godotenv"

	"pharmadesk/m/internal/api"
	"pharmadesk/m/internal/config"
	"pharmadesk/m/internal/seed"
	"pharmadesk/m/internal/store"
	"pharmadesk/m/internal/store/jsonstore"
	"pharmadesk/m/internal/store/sqlstore"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	var (
		st  store.Store
		err error
	)
	switch cfg.Storage {
	case "sqlite":
		st, err = sqlstore.Open(cfg.DatabaseDSN)
	default:
		st, err = jsonstore.Open(cfg.DataDir)
	}
	if err != nil {
		log.Fatalf("storage error: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := seed.EnsureAdmin(ctx, st.Staff(), cfg.AdminPassword); err != nil {
		log.Fatalf("seed error: %v", err)
	}
	if err := seed.LoadInventory(ctx, st.Inventory(), filepath.Join("assets", "inventory.json")); err != nil {
		log.Fatalf("seed error: %v", err)
	}

	handler := api.New(st, cfg.Secret, cfg.LowStockThreshold)

	log.Printf("PharmaDesk server starting on :%s (%s storage)", cfg.HTTPPort, cfg.Storage)
	if err := http.ListenAndServe(":"+cfg.HTTPPort, handler.Router()); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
