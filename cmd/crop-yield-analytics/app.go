package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/i474232898/crop-yield-analytics/internal/config"
	"github.com/i474232898/crop-yield-analytics/internal/crop"
	"github.com/i474232898/crop-yield-analytics/internal/store"
)

// openStore builds the configured record store. The returned close function
// is never nil.
func openStore(cfg *config.AppConfig, log *zap.Logger) (crop.Store, func() error, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres, config.StoreSQLite:
		s, err := store.OpenSQL(cfg.StoreDriver, cfg.DatabaseDSN, log)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
		}
		return s, s.Close, nil
	default:
		return store.NewMemoryStore(cfg.StoreMaxRecords), func() error { return nil }, nil
	}
}
