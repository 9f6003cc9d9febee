package cmd

import (
	"fmt"
	"log"

	"stemboard/db"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Database: %s@%s:%s/%s\n", cfg.DBUser, cfg.DBHost, cfg.DBPort, cfg.DBName)

		if err := db.ConnectDB(cfg); err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.CloseDB()
		if err := db.InitDB(); err != nil {
			log.Fatalf("Failed to create users table: %v", err)
		}

		if err := db.ConnectGormDB(cfg); err != nil {
			log.Fatalf("Failed to connect GORM: %v", err)
		}
		defer db.CloseGormDB()
		if err := db.AutoMigrateModels(); err != nil {
			log.Fatalf("Failed to migrate models: %v", err)
		}
		fmt.Println("Schema is up to date.")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
