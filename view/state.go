// Package view holds the navigable view state of an open document and the
// coordinate transform between canvas pixels and document-space points. State
// mutations are plain clamping functions; rendering reacts to them elsewhere.
package view

import "math"

// FitMode selects how the display scale is derived from the canvas size.
type FitMode int

const (
	FitPage FitMode = iota
	FitWidth
	FitHeight
	ActualSize
)

func (m FitMode) String() string {
	switch m {
	case FitPage:
		return "fit-page"
	case FitWidth:
		return "fit-width"
	case FitHeight:
		return "fit-height"
	case ActualSize:
		return "actual-size"
	default:
		return "unknown"
	}
}

// Mode selects between showing one page and a continuous scroll of pages.
type Mode int

const (
	SinglePage Mode = iota
	ContinuousScroll
)

func (m Mode) String() string {
	if m == ContinuousScroll {
		return "continuous"
	}
	return "single"
}

// Zoom limits and the step factors the original reader uses.
const (
	MinZoom = 0.1
	MaxZoom = 10.0

	ZoomInStep   = 1.25
	ZoomOutStep  = 0.8
	WheelInStep  = 1.1
	WheelOutStep = 0.9
)

// State is the current view of a document. The engine's interactive
// goroutine owns it exclusively.
type State struct {
	Page     int
	Zoom     float64
	Rotation int // clockwise degrees, multiple of 90, mod 360
	Fit      FitMode
	Mode     Mode
	CanvasW  int
	CanvasH  int

	SidebarVisible bool
}

// NewState returns the state used right after opening a document: first page,
// 100% zoom, no rotation, fit-page, single-page mode.
func NewState() State {
	return State{Zoom: 1, Fit: FitPage, SidebarVisible: true}
}

// ClampPage forces the page index into [0, pageCount).
func (s *State) ClampPage(pageCount int) {
	if s.Page < 0 {
		s.Page = 0
	}
	if pageCount > 0 && s.Page >= pageCount {
		s.Page = pageCount - 1
	}
}

// SetPage navigates to page, clamped to the document.
func (s *State) SetPage(page, pageCount int) {
	s.Page = page
	s.ClampPage(pageCount)
}

func (s *State) NextPage(pageCount int) { s.SetPage(s.Page+1, pageCount) }
func (s *State) PrevPage(pageCount int) { s.SetPage(s.Page-1, pageCount) }

// ZoomBy multiplies the zoom factor and clamps it. Zooming leaves any fit
// mode for actual-size, matching the toggle behavior of the original reader.
func (s *State) ZoomBy(factor float64) {
	s.Fit = ActualSize
	s.Zoom = math.Max(MinZoom, math.Min(MaxZoom, s.Zoom*factor))
}

// SetZoom sets an absolute zoom factor, clamped.
func (s *State) SetZoom(zoom float64) {
	s.Fit = ActualSize
	s.Zoom = math.Max(MinZoom, math.Min(MaxZoom, zoom))
}

// Rotate advances the rotation a quarter turn clockwise.
func (s *State) Rotate() { s.Rotation = (s.Rotation + 90) % 360 }

// Resize records a new canvas size.
func (s *State) Resize(w, h int) {
	s.CanvasW, s.CanvasH = w, h
}

// RotatedPageSize swaps page dimensions for quarter-turn rotations.
func (s State) RotatedPageSize(pageW, pageH float64) (float64, float64) {
	if s.Rotation == 90 || s.Rotation == 270 {
		return pageH, pageW
	}
	return pageW, pageH
}

// FitScale derives the render scale the state asks for, before any aspect
// correction against the actual bitmap. Non-positive canvas or page
// dimensions fall back to the user zoom.
func (s State) FitScale(pageW, pageH float64) float64 {
	rw, rh := s.RotatedPageSize(pageW, pageH)
	cw, ch := float64(s.CanvasW), float64(s.CanvasH)
	if rw <= 0 || rh <= 0 || cw <= 0 || ch <= 0 {
		return s.Zoom
	}
	switch s.Fit {
	case FitPage:
		return math.Min(cw/rw, ch/rh)
	case FitWidth:
		return cw / rw
	case FitHeight:
		return ch / rh
	default:
		return s.Zoom
	}
}
