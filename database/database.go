package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/apex/log"
	_ "github.com/go-sql-driver/mysql"

	"audit-dashboard/config"
	"audit-dashboard/models"
)

// Database stores the audit run history.
type Database struct {
	db *sql.DB
}

// NewDatabase opens the MySQL connection and verifies it.
func NewDatabase(cfg *config.Config) (*Database, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	log.Infof("database connected to %s:%s/%s", cfg.DBHost, cfg.DBPort, cfg.DBName)

	return &Database{db: db}, nil
}

// NewWithDB wraps an existing connection, used by tests.
func NewWithDB(db *sql.DB) *Database {
	return &Database{db: db}
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// EnsureTables creates the audit_runs table if it doesn't exist.
func (d *Database) EnsureTables(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS audit_runs (
			id INT NOT NULL AUTO_INCREMENT,
			day INT NOT NULL,
			month INT NOT NULL,
			year INT NOT NULL,
			records INT NOT NULL,
			companies INT NOT NULL,
			divergences INT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (id),
			INDEX period_index (year, month, day)
		)
	`

	_, err := d.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create audit_runs table: %w", err)
	}

	log.Info("audit runs table ensured")
	return nil
}

// RecordRun appends one completed audit run to the history.
func (d *Database) RecordRun(ctx context.Context, day, month, year, records, companies, divergences int) error {
	query := `
		INSERT INTO audit_runs (day, month, year, records, companies, divergences)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := d.db.ExecContext(ctx, query, day, month, year, records, companies, divergences)
	if err != nil {
		return fmt.Errorf("failed to record audit run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent audit runs, newest first.
func (d *Database) ListRuns(ctx context.Context, limit int) ([]models.AuditRun, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, day, month, year, records, companies, divergences, created_at
		FROM audit_runs
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := d.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit runs: %w", err)
	}
	defer rows.Close()

	var runs []models.AuditRun
	for rows.Next() {
		var run models.AuditRun
		if err := rows.Scan(&run.ID, &run.Day, &run.Month, &run.Year,
			&run.Records, &run.Companies, &run.Divergences, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit runs: %w", err)
	}

	return runs, nil
}
