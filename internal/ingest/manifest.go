// Package ingest implements the landing-zone pipeline: files are
// deduplicated against a per-entity manifest, bulk-copied into a
// staging table, and merged into the landing table.
package ingest

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marshallshelly/gravel/internal/catalog"
	"github.com/marshallshelly/gravel/internal/database"
)

// Manifest records metadata about a processed file. The digest is the
// deduplication key: a file with a digest already present in the
// manifest table is never processed again.
type Manifest struct {
	FileName    string `json:"file_name"`
	Digest      string `json:"digest"`
	FileSize    int64  `json:"file_size"`
	ProcessedAt int64  `json:"processed_at"` // unix seconds
}

// Digest computes the MD5 hex digest of a file.
func Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// FileStem returns the file name without directory and extension, with
// spaces replaced by underscores.
func FileStem(path string) string {
	base := strings.ReplaceAll(filepath.Base(path), " ", "_")
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// BuildManifest builds a manifest entry for a file.
func BuildManifest(path string) (*Manifest, error) {
	digest, err := Digest(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return &Manifest{
		FileName:    FileStem(path),
		Digest:      digest,
		FileSize:    info.Size(),
		ProcessedAt: time.Now().Unix(),
	}, nil
}

// ListManifest returns the manifest rows for an entity, most recent
// first.
func ListManifest(ctx context.Context, db *database.DB, entity *catalog.Entity) ([]Manifest, error) {
	query := fmt.Sprintf(
		"SELECT file_name, digest, file_size, processed_at FROM %s ORDER BY processed_at DESC, file_name",
		entity.Manifest.QualifiedName(),
	)

	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var manifests []Manifest
	for rows.Next() {
		var m Manifest
		if err := rows.Scan(&m.FileName, &m.Digest, &m.FileSize, &m.ProcessedAt); err != nil {
			return nil, fmt.Errorf("failed to scan manifest row: %w", err)
		}
		manifests = append(manifests, m)
	}

	return manifests, rows.Err()
}
