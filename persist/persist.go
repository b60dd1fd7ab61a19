// Package persist saves document changes. Every commit first attempts an
// incremental save, which appends to the original file, and falls back to a
// full rewrite when the document refuses incremental writes. The full path
// writes to a temporary file in the same directory, renames it over the
// original and reopens the document so later incremental saves work again.
package persist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wudi/pdfview/document"
	"github.com/wudi/pdfview/observability"
)

// Stage identifies which save strategy produced an error.
type Stage int

const (
	StageIncremental Stage = iota
	StageFull
)

func (s Stage) String() string {
	switch s {
	case StageIncremental:
		return "incremental"
	case StageFull:
		return "full"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// SaveError reports a failed save with the stage that failed. A StageFull
// error means the incremental attempt already failed too; its Err chain
// carries both causes and the file on disk is unchanged.
type SaveError struct {
	Stage Stage
	Path  string
	Err   error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("%s save of %s: %v", e.Stage, e.Path, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// Manager persists the handle's document. It is used from the interactive
// goroutine; the handle serializes the underlying document access.
type Manager struct {
	handle   *document.Handle
	provider document.Provider
	logger   observability.Logger
}

// NewManager builds a Manager. The provider reopens the file after a full
// save. A nil logger gets the nop logger.
func NewManager(handle *document.Handle, provider document.Provider, logger observability.Logger) *Manager {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &Manager{handle: handle, provider: provider, logger: logger}
}

// Commit saves the current document state. Incremental first; on any
// incremental failure the full rewrite runs. Only when both fail does the
// caller see an error, and the original file is left untouched in that case.
func (m *Manager) Commit() error {
	start := time.Now()
	incErr := m.handle.SaveIncremental()
	if incErr == nil {
		m.logger.Debug("incremental save",
			observability.String("path", m.handle.Path()),
			observability.Int64(observability.MetricSaveTime, time.Since(start).Milliseconds()))
		return nil
	}
	m.logger.Warn("incremental save failed, rewriting file",
		observability.String("path", m.handle.Path()),
		observability.Error("err", incErr))

	if err := m.fullSave(); err != nil {
		return &SaveError{Stage: StageFull, Path: m.handle.Path(), Err: errors.Join(incErr, err)}
	}
	m.logger.Info("full save",
		observability.String("path", m.handle.Path()),
		observability.Int64(observability.MetricSaveTime, time.Since(start).Milliseconds()))
	return nil
}

// fullSave writes a consolidated copy next to the original, renames it into
// place and swaps the handle to a fresh document. The rename is the commit
// point: a failure before it leaves the original file intact.
func (m *Manager) fullSave() error {
	path := m.handle.Path()
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".pdfview-save-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := m.handle.WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write document: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}

	fresh, err := m.provider.Open(path)
	if err != nil {
		return fmt.Errorf("reopen after full save: %w", err)
	}
	if err := m.handle.Replace(fresh); err != nil {
		m.logger.Warn("closing previous document", observability.Error("err", err))
	}
	return nil
}
