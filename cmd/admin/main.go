// Command admin provides account and demo-data maintenance for Chronicle.
package main

import (
	"fmt"
	"os"

	"chronicle/internal/config"
	"chronicle/internal/database"

	"gorm.io/gorm"
)

func main() {
	if err := newRootCmd(openDatabase).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openDatabase() (*gorm.DB, *config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	return db, cfg, nil
}
