package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neonvoidvibes/align/internal/config"
	"github.com/neonvoidvibes/align/internal/scoring"
	"github.com/neonvoidvibes/align/internal/store"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "align",
	Short: "Daily alignment score from free-text check-ins",
	Long: "Align turns free-text check-ins into per-category values, carries them " +
		"forward with daily decay, and scores the last seven days against your targets.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.align/align.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(categoriesCmd)
}

// loadConfig reads --config, or the default path when unset.
func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return config.Config{}, err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// setup loads config, validates the category registry, and opens the store.
// Callers close the returned DB.
func setup() (config.Config, *scoring.Registry, *store.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cfg, nil, nil, err
	}
	reg, err := scoring.NewRegistry(cfg.Scoring)
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("invalid scoring config: %w", err)
	}
	db, err := openDB(cfg)
	if err != nil {
		return cfg, nil, nil, err
	}
	return cfg, reg, db, nil
}

func openDB(cfg config.Config) (*store.DB, error) {
	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}
