package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Source reads migration files from a directory. Files are named
// {version}_{name}.{up|down}.sql; only pairs with both directions are
// considered.
type Source struct {
	dir string
}

// NewSource creates a migration file source for a directory.
func NewSource(dir string) *Source {
	return &Source{dir: dir}
}

// List lists all migration file pairs in the directory, sorted by
// version. A missing directory yields an empty list, not an error.
func (s *Source) List() ([]File, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []File{}, nil
		}
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	fileMap := make(map[string]*File)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		fileName := entry.Name()

		// Parse filename: {version}_{name}.{direction}.sql
		parts := strings.SplitN(fileName, "_", 2)
		if len(parts) != 2 {
			continue
		}

		version := parts[0]
		rest := parts[1]

		if name, ok := strings.CutSuffix(rest, ".up.sql"); ok {
			if _, exists := fileMap[version]; !exists {
				fileMap[version] = &File{Version: version, Name: name}
			}
			fileMap[version].UpPath = filepath.Join(s.dir, fileName)
		} else if name, ok := strings.CutSuffix(rest, ".down.sql"); ok {
			if _, exists := fileMap[version]; !exists {
				fileMap[version] = &File{Version: version, Name: name}
			}
			fileMap[version].DownPath = filepath.Join(s.dir, fileName)
		}
	}

	var files []File
	for _, f := range fileMap {
		if f.UpPath != "" && f.DownPath != "" {
			files = append(files, *f)
		}
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Version < files[j].Version
	})

	return files, nil
}

// Read reads the SQL content of a migration file pair.
func (s *Source) Read(file File) (*Migration, error) {
	upSQL, err := os.ReadFile(file.UpPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read up migration: %w", err)
	}

	downSQL, err := os.ReadFile(file.DownPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read down migration: %w", err)
	}

	return &Migration{
		Version: file.Version,
		Name:    file.Name,
		UpSQL:   string(upSQL),
		DownSQL: string(downSQL),
	}, nil
}

// Load returns the bootstrap migration followed by every migration file
// in the directory, in version order. The bootstrap version sorts
// before any timestamp, so it always applies first.
func Load(dir string) ([]Migration, error) {
	migrations := []Migration{Bootstrap()}

	if dir == "" {
		return migrations, nil
	}

	source := NewSource(dir)
	files, err := source.List()
	if err != nil {
		return nil, err
	}

	for _, file := range files {
		mig, err := source.Read(file)
		if err != nil {
			return nil, err
		}
		migrations = append(migrations, *mig)
	}

	return migrations, nil
}
