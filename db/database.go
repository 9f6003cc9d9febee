package db

import (
	"database/sql"
	"fmt"
	"time"

	"stemboard/config"
	"stemboard/logger"

	"github.com/go-sql-driver/mysql"
)

// DB is the raw connection used by the user repository.
var DB *sql.DB

// mysqlConfig builds the driver config shared by database/sql and GORM.
func mysqlConfig(cfg *config.Config) *mysql.Config {
	mc := mysql.NewConfig()
	mc.User = cfg.DBUser
	mc.Passwd = cfg.DBPassword
	mc.Net = "tcp"
	mc.Addr = cfg.DBHost + ":" + cfg.DBPort
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc
}

// ConnectDB establishes a connection to the database.
func ConnectDB(cfg *config.Config) error {
	connector, err := mysql.NewConnector(mysqlConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to build mysql connector: %w", err)
	}
	DB = sql.OpenDB(connector)

	if err = DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Successfully connected to the database.")
	return nil
}

// InitDB creates the tables that are managed with plain SQL.
func InitDB() error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	);
	`
	if _, err := DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	logger.Info("Users table initialized successfully (or already exists).")
	return nil
}

// CloseDB closes the raw connection if it was opened.
func CloseDB() error {
	if DB == nil {
		return nil
	}
	return DB.Close()
}
