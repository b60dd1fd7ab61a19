// Package session persists the last viewing position as a small JSON record,
// written after every navigation change and read once at startup. A missing or
// unparsable record means "no prior session"; it never fails the engine.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/wudi/pdfview/observability"
	"github.com/wudi/pdfview/view"
)

// State is the stored session record.
type State struct {
	File           string    `json:"file"`
	Page           int       `json:"page"`
	Zoom           float64   `json:"zoom"`
	Rotation       int       `json:"rotation"`
	FitMode        string    `json:"fit_mode"`
	ViewMode       string    `json:"view_mode"`
	SidebarVisible bool      `json:"sidebar_visible"`
	Timestamp      time.Time `json:"timestamp"`
}

// FromView snapshots a view state for storage.
func FromView(file string, v view.State) State {
	return State{
		File:           file,
		Page:           v.Page,
		Zoom:           v.Zoom,
		Rotation:       v.Rotation,
		FitMode:        v.Fit.String(),
		ViewMode:       v.Mode.String(),
		SidebarVisible: v.SidebarVisible,
	}
}

// ApplyTo restores the stored position onto a view state. Unknown mode names
// keep the current values; the page still needs clamping against the reopened
// document by the caller.
func (s State) ApplyTo(v *view.State) {
	v.Page = s.Page
	if s.Zoom >= view.MinZoom && s.Zoom <= view.MaxZoom {
		v.Zoom = s.Zoom
	}
	if s.Rotation%90 == 0 {
		v.Rotation = ((s.Rotation % 360) + 360) % 360
	}
	if fit, ok := parseFit(s.FitMode); ok {
		v.Fit = fit
	}
	if mode, ok := parseMode(s.ViewMode); ok {
		v.Mode = mode
	}
	v.SidebarVisible = s.SidebarVisible
}

func parseFit(name string) (view.FitMode, bool) {
	for _, fit := range []view.FitMode{view.FitPage, view.FitWidth, view.FitHeight, view.ActualSize} {
		if fit.String() == name {
			return fit, true
		}
	}
	return 0, false
}

func parseMode(name string) (view.Mode, bool) {
	for _, mode := range []view.Mode{view.SinglePage, view.ContinuousScroll} {
		if mode.String() == name {
			return mode, true
		}
	}
	return 0, false
}

// Store reads and writes the session file.
type Store struct {
	path   string
	logger observability.Logger
}

// NewStore builds a store at path. A nil logger gets the nop logger.
func NewStore(path string, logger observability.Logger) *Store {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &Store{path: path, logger: logger}
}

// Load reads the stored session. ok is false when there is none, including
// every malformed-file case.
func (s *Store) Load() (State, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return State{}, false
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		s.logger.Warn("discarding malformed session file",
			observability.String("path", s.path),
			observability.Error("err", err))
		return State{}, false
	}
	return st, true
}

// Save writes the session record, stamping the current time.
func (s *Store) Save(st State) error {
	st.Timestamp = time.Now().UTC()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.WriteFile(s.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// License is the optional license/trial record kept next to the session file.
type License struct {
	StartDate  string `json:"start_date"`
	LicenseKey string `json:"license_key"`
}

// ReadLicense reads the license record. Absence or corruption is not an
// error; ok is false and the caller treats the install as unlicensed.
func ReadLicense(path string) (License, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return License{}, false
	}
	var lic License
	if err := json.Unmarshal(data, &lic); err != nil {
		return License{}, false
	}
	return lic, true
}
