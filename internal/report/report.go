// Package report fetches dataset reports from the analytics service and hands
// them to a Saver, which decides where the bytes end up (a file, an HTTP
// response, a buffer).
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/eqviz/pkg/core"
)

// FailureMessage is the user-facing text for every export failure.
const FailureMessage = "Error generating PDF"

// Fetcher downloads a report by dataset id.
type Fetcher interface {
	FetchReport(ctx context.Context, id int64) ([]byte, error)
}

// Saver persists a report and returns where it went.
type Saver interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, name string, data []byte) (string, error)

// Save calls f.
func (f SaverFunc) Save(ctx context.Context, name string, data []byte) (string, error) {
	return f(ctx, name, data)
}

// Exporter fetches reports and saves them.
type Exporter struct {
	fetcher Fetcher
	logger  *slog.Logger
}

// NewExporter creates an exporter. A nil logger discards logs.
func NewExporter(fetcher Fetcher, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Exporter{fetcher: fetcher, logger: logger}
}

// Export downloads the report of dataset id and saves it under the name
// equipment_report_<id>.pdf. Every failure is a *core.Error carrying
// FailureMessage and the kind of the underlying cause.
func (e *Exporter) Export(ctx context.Context, id int64, saver Saver) (string, error) {
	name := core.ReportFilename(id)

	data, err := e.fetcher.FetchReport(ctx, id)
	if err != nil {
		e.logger.Debug("report download failed", "dataset_id", id, "error", err)
		return "", exportError(err, core.KindNetwork)
	}

	path, err := saver.Save(ctx, name, data)
	if err != nil {
		e.logger.Debug("report save failed", "dataset_id", id, "error", err)
		return "", exportError(err, core.KindValidation)
	}

	e.logger.Info("report saved", "dataset_id", id, "path", path, "bytes", len(data))
	return path, nil
}

// exportError wraps err under FailureMessage, keeping the kind and status of
// a typed cause. Untyped causes get kind.
func exportError(err error, kind core.ErrorKind) *core.Error {
	e := &core.Error{Kind: kind, Op: "exportReport", Message: FailureMessage, Err: err}
	var cause *core.Error
	if errors.As(err, &cause) {
		e.Kind = cause.Kind
		e.Status = cause.Status
	}
	return e
}

// FileSaver writes reports to the local file system.
type FileSaver struct {
	// Dir receives reports under their default name.
	Dir string
	// Path, when set, overrides the destination. An existing directory is
	// treated like Dir.
	Path string
}

// Save writes data atomically (temp file + rename).
func (s FileSaver) Save(_ context.Context, name string, data []byte) (string, error) {
	dest := s.destination(name)

	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".report-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return "", fmt.Errorf("failed to move report into place: %w", err)
	}
	return dest, nil
}

func (s FileSaver) destination(name string) string {
	name = filepath.Base(name)
	if s.Path != "" {
		if info, err := os.Stat(s.Path); err == nil && info.IsDir() {
			return filepath.Join(s.Path, name)
		}
		return s.Path
	}
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, name)
}

// WriterSaver streams the report to W and reports the name as its location.
type WriterSaver struct {
	W io.Writer
}

// Save writes data to W.
func (s WriterSaver) Save(_ context.Context, name string, data []byte) (string, error) {
	if _, err := s.W.Write(data); err != nil {
		return "", err
	}
	return name, nil
}
