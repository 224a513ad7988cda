// Package migrate applies and tracks the landing-zone schema bootstrap
// and any additional SQL migration files.
package migrate

import "time"

// Migration represents a database migration.
type Migration struct {
	Version string // version/timestamp (e.g. "20240101120000")
	Name    string // migration name (e.g. "create_landing_tables")
	UpSQL   string // SQL for applying the migration
	DownSQL string // SQL for rolling back the migration
}

// File represents a migration file pair on disk.
type File struct {
	Version  string
	Name     string
	UpPath   string // path to the .up.sql file
	DownPath string // path to the .down.sql file
}

// Status represents the state of a migration in the tracking table.
type Status string

const (
	// StatusPending means the migration has not been applied.
	StatusPending Status = "pending"
	// StatusApplied means the migration has been applied.
	StatusApplied Status = "applied"
	// StatusFailed means the migration failed to apply.
	StatusFailed Status = "failed"
)

// Record represents a migration row in the tracking table.
type Record struct {
	Version   string
	Name      string
	Status    Status
	AppliedAt *time.Time
	Error     *string
}

// Error represents a migration failure.
type Error struct {
	Version string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return "migration error (version " + e.Version + "): " + e.Message + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}
