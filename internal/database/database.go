package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"time"

	"ecom_ops_backend/pkg/utils"

	_ "github.com/lib/pq" // PostgreSQL driver
)

//go:embed schema.sql
var embeddedSchema string

// Options describes the connection and pool settings.
type Options struct {
	Host        string
	Port        string
	User        string
	Password    string
	Name        string
	SSLMode     string
	SchemaPath  string
	ApplySchema bool
}

// Open connects to Postgres, pings it and optionally applies the schema.
func Open(ctx context.Context, opts Options) (*sql.DB, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		opts.Host, opts.Port, opts.User, opts.Password, opts.Name, opts.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	utils.LogInfo("Successfully connected to the database", map[string]interface{}{"host": opts.Host, "db": opts.Name})

	if opts.ApplySchema {
		if err := applySchema(ctx, db, opts.SchemaPath); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

// applySchema executes the schema file at schemaPath, or the embedded schema when the path is empty.
func applySchema(ctx context.Context, db *sql.DB, schemaPath string) error {
	content := embeddedSchema
	if schemaPath != "" {
		raw, err := os.ReadFile(schemaPath)
		if err != nil {
			return fmt.Errorf("could not read schema file %s: %w", schemaPath, err)
		}
		content = string(raw)
	}

	if _, err := db.ExecContext(ctx, content); err != nil {
		return fmt.Errorf("could not execute schema script: %w", err)
	}
	utils.LogInfo("Database schema applied", map[string]interface{}{"path": schemaPath})
	return nil
}
