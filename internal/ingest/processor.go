package ingest

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/marshallshelly/gravel/internal/catalog"
	"github.com/marshallshelly/gravel/internal/database"
)

// Result describes the outcome of processing one file.
type Result struct {
	Entity     string `json:"entity"`
	File       string `json:"file"`
	Digest     string `json:"digest"`
	RowsCopied int64  `json:"rows_copied"`
	RowsMerged int64  `json:"rows_merged"`
	Skipped    bool   `json:"skipped"` // digest already in the manifest
}

// Processor ingests files for a single entity. Each file is handled in
// one transaction: staging truncate, COPY, manifest insert, and the
// merge into the landing table either all commit or all roll back, so a
// file that violates a landing constraint leaves no trace.
type Processor struct {
	entity *catalog.Entity
	db     *database.DB
	log    *zap.Logger
}

// NewProcessor creates a processor for an entity.
func NewProcessor(entity *catalog.Entity, db *database.DB, log *zap.Logger) *Processor {
	return &Processor{
		entity: entity,
		db:     db,
		log:    log.With(zap.String("entity", entity.Name)),
	}
}

// SetupTables drops and recreates the staging table and makes sure the
// manifest table exists. Run once before processing begins.
func (p *Processor) SetupTables(ctx context.Context) error {
	p.log.Info("recreating staging table", zap.String("table", p.entity.Staging.QualifiedName()))

	stmts := []string{
		catalog.CreateSchemaSQL(catalog.RawSchema),
		catalog.DropTableSQL(p.entity.Staging),
		catalog.CreateTableSQL(p.entity.Staging),
		catalog.CreateTableSQL(p.entity.Manifest),
	}
	for _, stmt := range stmts {
		if _, err := p.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to set up %s tables: %w", p.entity.Name, err)
		}
	}

	return nil
}

// ProcessFile ingests one CSV file. A file whose digest is already in
// the manifest is skipped without touching the database.
func (p *Processor) ProcessFile(ctx context.Context, path string) (*Result, error) {
	log := p.log.With(zap.String("file", path))

	manifest, err := BuildManifest(path)
	if err != nil {
		return nil, err
	}
	log.Debug("computed digest", zap.String("digest", manifest.Digest))

	seen, err := p.digestSeen(ctx, manifest.Digest)
	if err != nil {
		return nil, err
	}
	if seen {
		log.Info("batch already processed", zap.String("digest", manifest.Digest))
		return &Result{
			Entity:  p.entity.Name,
			File:    path,
			Digest:  manifest.Digest,
			Skipped: true,
		}, nil
	}

	log.Info("processing new batch",
		zap.String("digest", manifest.Digest),
		zap.Int64("file_size", manifest.FileSize))

	result, err := p.ingest(ctx, path, manifest)
	if err != nil {
		log.Error("ingest failed", zap.Error(err))
		return nil, err
	}

	log.Info("batch processed",
		zap.Int64("rows_copied", result.RowsCopied),
		zap.Int64("rows_merged", result.RowsMerged))

	return result, nil
}

// digestSeen checks the manifest table for a digest.
func (p *Processor) digestSeen(ctx context.Context, digest string) (bool, error) {
	query := fmt.Sprintf(
		"SELECT EXISTS (SELECT 1 FROM %s WHERE digest = $1)",
		p.entity.Manifest.QualifiedName(),
	)

	var seen bool
	if err := p.db.QueryRow(ctx, query, digest).Scan(&seen); err != nil {
		return false, database.Classify(fmt.Errorf("failed to check manifest: %w", err))
	}
	return seen, nil
}

// ingest runs the copy-manifest-merge sequence in one transaction on a
// dedicated connection, which COPY requires.
func (p *Processor) ingest(ctx context.Context, path string, manifest *Manifest) (*Result, error) {
	conn, err := p.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Staging holds exactly one file's rows at a time.
	if _, err := tx.Exec(ctx, "TRUNCATE "+p.entity.Staging.QualifiedName()); err != nil {
		return nil, database.Classify(fmt.Errorf("failed to truncate staging: %w", err))
	}

	rowsCopied, err := p.copyFile(ctx, conn, path)
	if err != nil {
		return nil, err
	}

	insertManifest := fmt.Sprintf(
		"INSERT INTO %s (file_name, digest, file_size, processed_at) VALUES ($1, $2, $3, $4)",
		p.entity.Manifest.QualifiedName(),
	)
	if _, err := tx.Exec(ctx, insertManifest,
		manifest.FileName, manifest.Digest, manifest.FileSize, manifest.ProcessedAt); err != nil {
		return nil, database.Classify(fmt.Errorf("failed to insert manifest row: %w", err))
	}

	tag, err := tx.Exec(ctx, MergeSQL(p.entity))
	if err != nil {
		return nil, database.Classify(fmt.Errorf("failed to merge into %s: %w", p.entity.Landing.QualifiedName(), err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	return &Result{
		Entity:     p.entity.Name,
		File:       path,
		Digest:     manifest.Digest,
		RowsCopied: rowsCopied,
		RowsMerged: tag.RowsAffected(),
	}, nil
}

// copyFile streams the CSV file into the staging table. The COPY runs
// on the same connection as the surrounding transaction, so it rolls
// back with it.
func (p *Processor) copyFile(ctx context.Context, conn *pgxpool.Conn, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	tag, err := conn.Conn().PgConn().CopyFrom(ctx, f, CopySQL(p.entity))
	if err != nil {
		return 0, &database.CopyError{
			Table: p.entity.Staging.QualifiedName(),
			File:  path,
			Err:   database.Classify(err),
		}
	}

	return tag.RowsAffected(), nil
}

// CopySQL renders the COPY statement for an entity's staging table.
// The column list excludes processed_at, which the server fills in, and
// literal NULL strings in the file become SQL NULLs.
func CopySQL(e *catalog.Entity) string {
	cols := catalog.QuoteIdents(e.Staging.CopyColumns())
	return fmt.Sprintf(
		"COPY %s (%s) FROM STDIN WITH (FORMAT csv, HEADER true, NULL 'NULL')",
		e.Staging.QualifiedName(), strings.Join(cols, ", "),
	)
}

// MergeSQL renders the staged-to-landing upsert for an entity. Existing
// rows are only replaced when the staged row is newer: a re-delivered
// old file never overwrites fresher data.
func MergeSQL(e *catalog.Entity) string {
	cols := catalog.QuoteIdents(e.Landing.ColumnNames())
	pk := catalog.QuoteIdent(e.PrimaryKeyColumn())

	var setClauses []string
	for _, c := range e.Landing.Columns {
		if c.PrimaryKey {
			continue
		}
		q := catalog.QuoteIdent(c.Name)
		setClauses = append(setClauses, q+" = EXCLUDED."+q)
	}

	return fmt.Sprintf(
		"INSERT INTO %s AS landing (%s)\nSELECT %s FROM %s\nON CONFLICT (%s) DO UPDATE SET %s\nWHERE EXCLUDED.processed_at > landing.processed_at",
		e.Landing.QualifiedName(),
		strings.Join(cols, ", "),
		strings.Join(cols, ", "),
		e.Staging.QualifiedName(),
		pk,
		strings.Join(setClauses, ", "),
	)
}
