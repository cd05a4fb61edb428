package database

import (
	"database/sql"
	"fmt"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS books (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		author TEXT NOT NULL,
		description TEXT NOT NULL,
		cover_image TEXT,
		sample_pdf TEXT,
		purchase_link TEXT,
		published BOOLEAN NOT NULL DEFAULT 0,
		featured BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_books_created_at ON books(created_at);`,
	`CREATE TABLE IF NOT EXISTS settings (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS books (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		author VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		cover_image VARCHAR(512) NULL,
		sample_pdf VARCHAR(512) NULL,
		purchase_link VARCHAR(1024) NULL,
		published TINYINT(1) NOT NULL DEFAULT 0,
		featured TINYINT(1) NOT NULL DEFAULT 0,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		INDEX idx_books_created_at (created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,
	`CREATE TABLE IF NOT EXISTS settings (
		name VARCHAR(64) NOT NULL PRIMARY KEY,
		value MEDIUMTEXT NOT NULL,
		updated_at DATETIME(6) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,
}

// Migrate creates the schema for the given driver. Safe to run on every start.
func Migrate(db *sql.DB, driver string) error {
	stmts := sqliteSchema
	if driver == DriverMySQL {
		stmts = mysqlSchema
	}

	for i, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("migrate stmt %d: %w", i, err)
		}
	}
	return nil
}
