package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"climalog/internal/config"
	"climalog/internal/db"
	"climalog/internal/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Long: `Open the SQLite database the server uses and apply any embedded
migrations that have not run yet. Safe to run repeatedly.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().String("driver", db.DriverCGO, "database driver (sqlite3, sqlite)")
	migrateCmd.Flags().String("path", "data/climalog.db", "SQLite database file")
	migrateCmd.Flags().String("dsn", "", "full DSN; overrides --path")

	_ = viper.BindPFlag("db.driver", migrateCmd.Flags().Lookup("driver"))
	_ = viper.BindPFlag("db.path", migrateCmd.Flags().Lookup("path"))
	_ = viper.BindPFlag("db.dsn", migrateCmd.Flags().Lookup("dsn"))
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	logger := GetLogger()

	cfg := config.Config{
		DBDriver:          viper.GetString("db.driver"),
		DBDSN:             viper.GetString("db.dsn"),
		SQLitePath:        viper.GetString("db.path"),
		DBMaxOpenConns:    1,
		DBMaxIdleConns:    1,
		DBConnMaxLifetime: time.Minute,
	}

	conn, err := db.Open(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(conn) }()

	applied, err := migrate.Run(cmd.Context(), conn)
	if err != nil {
		return err
	}

	logger.Info("migrations complete", "path", cfg.SQLitePath, "applied", len(applied))
	for _, v := range applied {
		fmt.Fprintln(cmd.OutOrStdout(), v)
	}
	return nil
}
