// Package watch uploads CSV files as they appear in a directory.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	intconfig "github.com/leapstack-labs/eqviz/internal/config"
	"github.com/leapstack-labs/eqviz/internal/session"
	"github.com/leapstack-labs/eqviz/pkg/core"
	"golang.org/x/sync/errgroup"
)

// Uploader is the part of the orchestrator the watcher drives.
type Uploader interface {
	UploadFile(ctx context.Context, name string, data []byte) (*core.DatasetDetail, error)
	Pending() session.Pending
}

// Result describes what happened to one settled file.
type Result struct {
	Path    string
	Detail  *core.DatasetDetail
	Err     error
	Skipped bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long a file must stay quiet before it is uploaded.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithResultHandler registers fn to receive every Result. fn runs on the
// upload goroutine.
func WithResultHandler(fn func(Result)) Option {
	return func(w *Watcher) {
		w.onResult = fn
	}
}

// Watcher uploads new or modified .csv files of one directory. Files are
// uploaded one at a time; a file that settles while the session is busy is
// skipped, not queued.
type Watcher struct {
	dir      string
	uploader Uploader
	debounce time.Duration
	logger   *slog.Logger
	onResult func(Result)

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New creates a watcher for dir.
func New(dir string, uploader Uploader, opts ...Option) *Watcher {
	w := &Watcher{
		dir:      dir,
		uploader: uploader,
		debounce: intconfig.DefaultWatchDebounce,
		logger:   slog.New(slog.DiscardHandler),
		timers:   make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string { return w.dir }

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	info, err := os.Stat(w.dir)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("failed to watch %s: not a directory", w.dir)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching for csv files", "dir", w.dir, "debounce", w.debounce)

	settled := make(chan string, 16)
	defer w.stopTimers()

	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		for {
			select {
			case <-egctx.Done():
				return nil
			case event, ok := <-fw.Events:
				if !ok {
					return nil
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !IsCSV(event.Name) {
					continue
				}
				w.schedule(egctx, event.Name, settled)
			case err, ok := <-fw.Errors:
				if !ok {
					return nil
				}
				w.logger.Error("watcher error", "error", err)
			}
		}
	})
	eg.Go(func() error {
		for {
			select {
			case <-egctx.Done():
				return nil
			case path := <-settled:
				w.report(w.Process(egctx, path))
			}
		}
	})
	return eg.Wait()
}

// schedule (re)starts the debounce timer of path.
func (w *Watcher) schedule(ctx context.Context, path string, settled chan<- string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		select {
		case settled <- path:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

// Process uploads path unless an upload is already running.
func (w *Watcher) Process(ctx context.Context, path string) Result {
	res := Result{Path: path}

	if w.uploader.Pending() != session.PendingIdle {
		w.logger.Info("upload in progress, skipping file", "file", path)
		res.Skipped = true
		return res
	}

	data, err := os.ReadFile(path)
	if err != nil {
		res.Err = fmt.Errorf("failed to read %s: %w", path, err)
		w.logger.Warn("skipping unreadable file", "file", path, "error", err)
		return res
	}

	res.Detail, res.Err = w.uploader.UploadFile(ctx, filepath.Base(path), data)
	if core.IsKind(res.Err, core.KindBusy) {
		w.logger.Info("upload in progress, skipping file", "file", path)
		res.Skipped = true
		res.Err = nil
		return res
	}
	if res.Err != nil {
		w.logger.Warn("upload failed", "file", path, "error", res.Err)
		return res
	}
	w.logger.Info("uploaded", "file", path, "dataset_id", res.Detail.ID)
	return res
}

func (w *Watcher) report(r Result) {
	if w.onResult != nil {
		w.onResult(r)
	}
}

// IsCSV reports whether name has a .csv extension (any case). Hidden and
// editor temp files are ignored.
func IsCSV(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~") {
		return false
	}
	return strings.EqualFold(filepath.Ext(base), ".csv")
}
