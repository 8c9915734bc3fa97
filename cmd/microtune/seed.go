package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/microtune/microtune/pkg/loadgen"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fetch the browse corpus from the storefront",
	Long: `Pull category, product, and user identifiers from the storefront's
persistence REST API and save them under <data-dir>/corpus. The load
generator browses these entities during the sweep. Existing corpus
files are kept.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := newHTTPClient(30 * time.Second)
	if err != nil {
		return err
	}

	seeder := &loadgen.Seeder{
		PersistenceURL: cfg.PersistenceURL(),
		Dir:            filepath.Join(cfg.DataDir, "corpus"),
		HTTPClient:     client,
		Logger:         logger,
	}

	corpus, err := seeder.Seed(cmd.Context())
	if err != nil {
		return fmt.Errorf("seed corpus: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "corpus seeded: %d categories, %d products, %d users\n",
		len(corpus.Categories), len(corpus.Products), len(corpus.Users))
	return nil
}
