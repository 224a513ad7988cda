package migrate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Executor executes and tracks database migrations.
type Executor struct {
	pool     *pgxpool.Pool
	lockID   int64         // PostgreSQL advisory lock ID
	lockConn *pgxpool.Conn // connection holding the advisory lock
}

// NewExecutor creates a new migration executor.
func NewExecutor(pool *pgxpool.Pool) *Executor {
	return &Executor{
		pool:   pool,
		lockID: 8256301124, // default lock ID
	}
}

// WithLockID sets a custom advisory lock ID.
func (e *Executor) WithLockID(lockID int64) *Executor {
	e.lockID = lockID
	return e
}

// Initialize creates the schema_migrations table if it doesn't exist.
func (e *Executor) Initialize(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(14) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			applied_at TIMESTAMP,
			error TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_schema_migrations_status
		ON schema_migrations(status);
	`

	_, err := e.pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	return nil
}

// Lock acquires an advisory lock to prevent concurrent migrations.
// Advisory locks are session scoped, so the lock is taken on a
// dedicated connection that is held until Unlock.
func (e *Executor) Lock(ctx context.Context) error {
	if e.lockConn != nil {
		return fmt.Errorf("migration lock already held")
	}

	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", e.lockID); err != nil {
		conn.Release()
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}

	e.lockConn = conn
	return nil
}

// Unlock releases the advisory lock and its connection.
func (e *Executor) Unlock(ctx context.Context) error {
	if e.lockConn == nil {
		return fmt.Errorf("lock was not held")
	}

	var released bool
	err := e.lockConn.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", e.lockID).Scan(&released)
	e.lockConn.Release()
	e.lockConn = nil

	if err != nil {
		return fmt.Errorf("failed to release migration lock: %w", err)
	}
	if !released {
		return fmt.Errorf("lock was not held")
	}
	return nil
}

// TryLock attempts to acquire an advisory lock without blocking.
func (e *Executor) TryLock(ctx context.Context) (bool, error) {
	if e.lockConn != nil {
		return true, nil
	}

	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to try migration lock: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", e.lockID).Scan(&acquired); err != nil {
		conn.Release()
		return false, fmt.Errorf("failed to try migration lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return false, nil
	}

	e.lockConn = conn
	return true, nil
}

// GetAppliedMigrations returns all migrations that have been applied.
func (e *Executor) GetAppliedMigrations(ctx context.Context) ([]Record, error) {
	query := `
		SELECT version, name, status, applied_at, error
		FROM schema_migrations
		WHERE status = 'applied'
		ORDER BY version ASC
	`
	return e.queryRecords(ctx, query)
}

// GetAllMigrations returns all migration records.
func (e *Executor) GetAllMigrations(ctx context.Context) ([]Record, error) {
	query := `
		SELECT version, name, status, applied_at, error
		FROM schema_migrations
		ORDER BY version ASC
	`
	return e.queryRecords(ctx, query)
}

func (e *Executor) queryRecords(ctx context.Context, query string) ([]Record, error) {
	rows, err := e.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var record Record
		err := rows.Scan(&record.Version, &record.Name, &record.Status, &record.AppliedAt, &record.Error)
		if err != nil {
			return nil, fmt.Errorf("failed to scan migration record: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// IsMigrationApplied checks if a specific migration has been applied.
func (e *Executor) IsMigrationApplied(ctx context.Context, version string) (bool, error) {
	var count int
	err := e.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM schema_migrations WHERE version = $1 AND status = 'applied'",
		version,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check migration status: %w", err)
	}
	return count > 0, nil
}

// Apply executes a migration's up SQL.
func (e *Executor) Apply(ctx context.Context, migration Migration, dryRun bool) error {
	applied, err := e.IsMigrationApplied(ctx, migration.Version)
	if err != nil {
		return err
	}
	if applied {
		return fmt.Errorf("migration %s is already applied", migration.Version)
	}

	if dryRun {
		return nil
	}

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Record migration as pending
	_, err = tx.Exec(ctx,
		"INSERT INTO schema_migrations (version, name, status) VALUES ($1, $2, 'pending') ON CONFLICT (version) DO UPDATE SET status = 'pending'",
		migration.Version, migration.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	statements := splitSQL(migration.UpSQL)
	for i, stmt := range statements {
		_, err = tx.Exec(ctx, stmt)
		if err != nil {
			// Record the failure outside the aborted transaction
			_ = tx.Rollback(ctx)
			now := time.Now()
			errMsg := fmt.Sprintf("Statement %d failed: %v", i+1, err)
			_, _ = e.pool.Exec(ctx,
				"INSERT INTO schema_migrations (version, name, status, error, applied_at) VALUES ($1, $2, 'failed', $3, $4) ON CONFLICT (version) DO UPDATE SET status = 'failed', error = $3, applied_at = $4",
				migration.Version, migration.Name, errMsg, now,
			)
			return &Error{Version: migration.Version, Message: fmt.Sprintf("statement %d failed", i+1), Err: err}
		}
	}

	now := time.Now()
	_, err = tx.Exec(ctx,
		"UPDATE schema_migrations SET status = 'applied', applied_at = $1, error = NULL WHERE version = $2",
		now, migration.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update migration status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	return nil
}

// Rollback executes a migration's down SQL.
func (e *Executor) Rollback(ctx context.Context, migration Migration, dryRun bool) error {
	applied, err := e.IsMigrationApplied(ctx, migration.Version)
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("migration %s is not applied", migration.Version)
	}

	if dryRun {
		return nil
	}

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	statements := splitSQL(migration.DownSQL)
	for i, stmt := range statements {
		_, err = tx.Exec(ctx, stmt)
		if err != nil {
			return &Error{Version: migration.Version, Message: fmt.Sprintf("rollback statement %d failed", i+1), Err: err}
		}
	}

	_, err = tx.Exec(ctx, "DELETE FROM schema_migrations WHERE version = $1", migration.Version)
	if err != nil {
		return fmt.Errorf("failed to delete migration record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit rollback: %w", err)
	}

	return nil
}

// ApplyAll applies all pending migrations in version order. Migrations
// already recorded as applied are skipped, so re-running is a no-op.
func (e *Executor) ApplyAll(ctx context.Context, migrations []Migration, dryRun bool) error {
	appliedMap := make(map[string]bool)
	applied, err := e.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}
	for _, m := range applied {
		appliedMap[m.Version] = true
	}

	for _, migration := range migrations {
		if appliedMap[migration.Version] {
			continue
		}

		if err := e.Apply(ctx, migration, dryRun); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}
	}

	return nil
}

// GetStatus returns the status of the given migrations, pending rows
// included.
func (e *Executor) GetStatus(ctx context.Context, migrations []Migration) ([]Record, error) {
	appliedMap := make(map[string]Record)
	all, err := e.GetAllMigrations(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range all {
		appliedMap[m.Version] = m
	}

	var records []Record
	for _, migration := range migrations {
		if record, exists := appliedMap[migration.Version]; exists {
			records = append(records, record)
		} else {
			records = append(records, Record{
				Version: migration.Version,
				Name:    migration.Name,
				Status:  StatusPending,
			})
		}
	}

	return records, nil
}

// splitSQL splits a migration script into individual statements.
func splitSQL(sql string) []string {
	// Remove comment lines
	lines := strings.Split(sql, "\n")
	var cleanedLines []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "--") {
			continue
		}
		cleanedLines = append(cleanedLines, line)
	}

	cleaned := strings.Join(cleanedLines, "\n")

	statements := strings.Split(cleaned, ";")

	var result []string
	for _, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			result = append(result, stmt)
		}
	}

	return result
}
