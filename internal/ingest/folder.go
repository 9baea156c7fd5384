// Package ingest feeds telemetry batch files from a drop folder through
// the triage pipeline. Sensors that cannot speak HTTP just write files;
// the ingestor picks them up one-shot or in watch mode.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Ashfaaq98/incident-triage/internal/pipeline"
	"github.com/Ashfaaq98/incident-triage/internal/store"
	"github.com/Ashfaaq98/incident-triage/internal/telemetry"
)

// FolderOptions controls drop-folder behavior.
type FolderOptions struct {
	// Dir is the watched directory.
	Dir string
	// Watch keeps the ingestor running on fsnotify events after the
	// initial scan; false means one-shot.
	Watch bool
	// Patterns filters file names, e.g. "*.csv". Defaults to the three
	// supported batch formats.
	Patterns []string
	// SettleDelay waits for a file to stop growing before reading it.
	// Defaults to 500ms.
	SettleDelay time.Duration
	// Logger for progress (optional).
	Logger *log.Logger
}

// FolderIngestor processes telemetry files landing in a directory.
type FolderIngestor struct {
	pipe *pipeline.Pipeline
	st   *store.Store
	opts FolderOptions

	mu        sync.Mutex
	processed map[string]struct{}

	ingested int
	failed   int
}

// NewFolderIngestor constructs a folder ingestor.
func NewFolderIngestor(pipe *pipeline.Pipeline, st *store.Store, opts FolderOptions) *FolderIngestor {
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "[ingest-folder] ", log.LstdFlags)
	}
	if len(opts.Patterns) == 0 {
		opts.Patterns = []string{"*.csv", "*.json", "*.jsonl"}
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = 500 * time.Millisecond
	}
	return &FolderIngestor{
		pipe:      pipe,
		st:        st,
		opts:      opts,
		processed: make(map[string]struct{}),
	}
}

// Run executes the ingestion per options (one-shot or watch).
func (fi *FolderIngestor) Run(ctx context.Context) error {
	if err := fi.scanOnce(ctx); err != nil {
		return err
	}
	if !fi.opts.Watch {
		fi.opts.Logger.Printf("completed one-shot ingest: ingested=%d failed=%d", fi.ingested, fi.failed)
		return nil
	}
	return fi.watchLoop(ctx)
}

func (fi *FolderIngestor) scanOnce(ctx context.Context) error {
	entries, err := os.ReadDir(fi.opts.Dir)
	if err != nil {
		return fmt.Errorf("read drop dir %s: %w", fi.opts.Dir, err)
	}
	for _, entry := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() || !fi.matches(entry.Name()) {
			continue
		}
		fi.processFile(ctx, filepath.Join(fi.opts.Dir, entry.Name()))
	}
	return nil
}

func (fi *FolderIngestor) watchLoop(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(fi.opts.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", fi.opts.Dir, err)
	}
	fi.opts.Logger.Printf("watching %s for telemetry batches", fi.opts.Dir)

	for {
		select {
		case <-ctx.Done():
			fi.opts.Logger.Printf("stopping watch: ingested=%d failed=%d", fi.ingested, fi.failed)
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !fi.matches(filepath.Base(event.Name)) {
				continue
			}
			// Writers are still appending right after the event fires.
			time.Sleep(fi.opts.SettleDelay)
			fi.processFile(ctx, event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fi.opts.Logger.Printf("watch error: %v", err)
		}
	}
}

func (fi *FolderIngestor) matches(name string) bool {
	lower := strings.ToLower(name)
	for _, pat := range fi.opts.Patterns {
		if ok, _ := filepath.Match(strings.ToLower(strings.TrimSpace(pat)), lower); ok {
			return true
		}
	}
	return false
}

// processFile runs one batch file through the pipeline and persists the
// report. Files are processed at most once per ingestor lifetime.
func (fi *FolderIngestor) processFile(ctx context.Context, path string) {
	fi.mu.Lock()
	if _, done := fi.processed[path]; done {
		fi.mu.Unlock()
		return
	}
	fi.processed[path] = struct{}{}
	fi.mu.Unlock()

	body, err := os.ReadFile(path)
	if err != nil {
		fi.fail(path, err)
		return
	}
	format, err := telemetry.DetectFormat(path, body)
	if err != nil {
		if errors.Is(err, telemetry.ErrUnsupportedFormat) {
			fi.opts.Logger.Printf("skipping %s: %v", path, err)
			return
		}
		fi.fail(path, err)
		return
	}
	rows, err := telemetry.ReadBatch(format, strings.NewReader(string(body)))
	if err != nil {
		fi.fail(path, err)
		return
	}

	rep, err := fi.pipe.Run(ctx, rows)
	if err != nil {
		fi.fail(path, err)
		return
	}
	id, err := fi.st.SaveReport(ctx, filepath.Base(path), rep)
	if err != nil {
		fi.fail(path, err)
		return
	}
	fi.ingested++
	fi.opts.Logger.Printf("ingested %s: report=%s incidents=%d", filepath.Base(path), id, rep.Summary.TotalIncidents)
}

func (fi *FolderIngestor) fail(path string, err error) {
	fi.failed++
	fi.opts.Logger.Printf("failed to ingest %s: %v", path, err)
}
