package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/marshallshelly/gravel/internal/catalog"
	"github.com/marshallshelly/gravel/internal/config"
	"github.com/marshallshelly/gravel/internal/database"
	"github.com/marshallshelly/gravel/internal/watcher"
)

// Event reports a processed (or failed) file to an observer, typically
// the interactive dashboard.
type Event struct {
	Entity string
	File   string
	Result *Result
	Err    error
	Time   time.Time
}

// Service runs one watcher and one processor per configured entity.
type Service struct {
	db     *database.DB
	cfg    *config.Config
	log    *zap.Logger
	events chan<- Event
	runID  string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithEvents attaches an event channel. Sends never block; if the
// observer falls behind, events are dropped.
func WithEvents(ch chan<- Event) ServiceOption {
	return func(s *Service) { s.events = ch }
}

// NewService creates a Service from configuration. Every run gets a
// fresh run ID for log correlation.
func NewService(db *database.DB, cfg *config.Config, log *zap.Logger, opts ...ServiceOption) *Service {
	runID := uuid.NewString()
	s := &Service{
		db:    db,
		cfg:   cfg,
		log:   log.With(zap.String("run_id", runID)),
		runID: runID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunID returns the service's run identifier.
func (s *Service) RunID() string {
	return s.runID
}

// Run sets up staging tables, starts a watcher per entity, and blocks
// until the context is cancelled. Already-present files in the watch
// directories are ingested on startup before watching begins.
func (s *Service) Run(ctx context.Context) error {
	procs := make(map[string]*Processor, len(s.cfg.Entities))

	g, setupCtx := errgroup.WithContext(ctx)
	for _, ec := range s.cfg.Entities {
		entity, err := catalog.Lookup(ec.Name)
		if err != nil {
			return err
		}
		proc := NewProcessor(entity, s.db, s.log)
		procs[ec.Name] = proc
		g.Go(func() error {
			return proc.SetupTables(setupCtx)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var watchers []*watcher.Watcher
	defer func() {
		for _, w := range watchers {
			w.Stop()
		}
	}()

	for _, ec := range s.cfg.Entities {
		proc := procs[ec.Name]

		// Catch up on files dropped while the service was down.
		if err := s.processExisting(ctx, proc, ec); err != nil {
			return err
		}

		handler := func(ctx context.Context, path string) {
			s.handleFile(ctx, proc, path)
		}

		opts := []watcher.Option{}
		if ec.Recursive {
			opts = append(opts, watcher.WithRecursive())
		}

		w, err := watcher.New(ec.WatchDir, ec.Patterns, handler, s.log, opts...)
		if err != nil {
			return fmt.Errorf("failed to create watcher for %s: %w", ec.Name, err)
		}
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("failed to start watcher for %s: %w", ec.Name, err)
		}
		watchers = append(watchers, w)
	}

	s.log.Info("ingestion running", zap.Int("entities", len(s.cfg.Entities)))
	<-ctx.Done()
	s.log.Info("shutting down")

	return nil
}

// LoadPaths ingests the given files or directories for one entity and
// returns per-file results. Used by the one-shot load command.
func (s *Service) LoadPaths(ctx context.Context, entityName string, paths []string) ([]Result, error) {
	entity, err := catalog.Lookup(entityName)
	if err != nil {
		return nil, err
	}

	proc := NewProcessor(entity, s.db, s.log)
	if err := proc.SetupTables(ctx); err != nil {
		return nil, err
	}

	files, err := expandPaths(paths)
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, file := range files {
		result, err := proc.ProcessFile(ctx, file)
		if err != nil {
			return results, fmt.Errorf("failed to process %s: %w", file, err)
		}
		results = append(results, *result)
	}

	return results, nil
}

func (s *Service) processExisting(ctx context.Context, proc *Processor, ec config.EntityConfig) error {
	entries, err := os.ReadDir(ec.WatchDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", ec.WatchDir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(ec.WatchDir, entry.Name())
		if !matchesAny(ec.Patterns, entry.Name()) {
			continue
		}
		s.handleFile(ctx, proc, path)
	}

	return nil
}

// handleFile processes one file and emits an event. Processing errors
// are logged and reported, not propagated: one bad file must not take
// the daemon down.
func (s *Service) handleFile(ctx context.Context, proc *Processor, path string) {
	result, err := proc.ProcessFile(ctx, path)
	if err != nil {
		s.log.Error("failed to process file", zap.String("file", path), zap.Error(err))
	}
	s.emit(Event{
		Entity: proc.entity.Name,
		File:   path,
		Result: result,
		Err:    err,
		Time:   time.Now(),
	})
}

func (s *Service) emit(ev Event) {
	if s.events == nil {
		return
	}
	select {
	case s.events <- ev:
	default:
	}
}

func expandPaths(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}

		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if matchesAny([]string{"*.csv"}, entry.Name()) {
				files = append(files, filepath.Join(path, entry.Name()))
			}
		}
	}
	return files, nil
}

func matchesAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if ok, err := filepath.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}
