package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/i474232898/crop-yield-analytics/internal/config"
	"github.com/i474232898/crop-yield-analytics/internal/crop"
	"github.com/i474232898/crop-yield-analytics/internal/logging"
	"github.com/i474232898/crop-yield-analytics/internal/seed"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load sample predictions into the configured store",
	Long: `Loads the bundled sample dataset, or a YAML file given with --file,
into the configured store. Only useful with a persistent STORE_DRIVER.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "YAML seed file (defaults to the bundled sample)")
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.StoreDriver == config.StoreMemory {
		log.Warn("seeding the memory store has no lasting effect")
	}

	recordStore, closeStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	records, err := loadSeed(seedFile)
	if err != nil {
		return err
	}

	service := crop.NewService(recordStore, nil, crop.WithLogger(log))
	n, err := service.Import(cmd.Context(), records)
	if err != nil {
		return err
	}
	log.Info("seed complete", zap.Int("records", n), zap.String("driver", cfg.StoreDriver))
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d predictions\n", n)
	return nil
}

func loadSeed(path string) ([]crop.Record, error) {
	if path == "" {
		return seed.Sample()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return seed.Parse(data)
}
