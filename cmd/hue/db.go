package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/huebot/internal/config"
	"github.com/zulandar/huebot/internal/db"
	"github.com/zulandar/huebot/internal/models"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Local store management commands",
	}

	cmd.AddCommand(newDBMigrateCmd())
	return cmd
}

func newDBMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the local store tables",
		Long:  "Connects to the configured sqlite file or MySQL database and migrates credentials, transcripts and share deliveries.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBMigrate(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to huebot config file")
	return cmd
}

func runDBMigrate(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Store)
	if err != nil {
		return err
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		defer sqlDB.Close()
	}

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	var sessions, entries, deliveries int64
	gormDB.Model(&models.ChatSession{}).Count(&sessions)
	gormDB.Model(&models.TranscriptEntry{}).Count(&entries)
	gormDB.Model(&models.Delivery{}).Count(&deliveries)

	fmt.Fprintf(out, "Migrated %d tables (%s)\n", len(db.AllModels()), cfg.Store.Driver)
	fmt.Fprintf(out, "  chat sessions:      %d\n", sessions)
	fmt.Fprintf(out, "  transcript entries: %d\n", entries)
	fmt.Fprintf(out, "  share deliveries:   %d\n", deliveries)
	return nil
}
