package board

import (
	"errors"
	"math"

	"github.com/google/uuid"
)

var (
	// ErrUnknownKind rejects payloads whose type is not in the closed kind set.
	ErrUnknownKind = errors.New("unknown element kind")
	// ErrBadGeometry rejects payloads whose kind-specific shape is invalid.
	ErrBadGeometry = errors.New("invalid element geometry")
)

// Validate coerces a raw inbound element into its canonical shape or rejects it.
//
// Every ingress path (REST draw, websocket events, rows loaded from storage)
// funnels through here, so the store only ever holds canonical elements no
// matter where a payload came from. Rules, in order:
//
//  1. the kind must be known;
//  2. missing fields are coerced (color to DefaultColor, stroke width to the
//     kind default, id to a fresh uuid — peers may legitimately omit the id,
//     though a client that retries a send without one can mint a duplicate
//     logical element, so well-behaved clients assign ids locally);
//  3. kind-specific geometry must hold: lines and arrows need at least two
//     points as an even-length flat (x,y) list, rectangles and circles need
//     positive dimensions once committed, text needs a text value.
//
// Validate is idempotent: feeding a canonical element back in returns it
// unchanged, which keeps re-validation on receipt safe.
func Validate(raw Element) (Element, error) {
	if !raw.Type.IsValid() {
		return Element{}, ErrUnknownKind
	}

	e := raw.Clone()

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Color == "" {
		e.Color = DefaultColor
	}
	if e.StrokeWidth <= 0 {
		e.StrokeWidth = defaultStrokeWidth(e.Type)
	}
	if !isFinite(e.X) {
		e.X = 0
	}
	if !isFinite(e.Y) {
		e.Y = 0
	}

	switch e.Type {
	case KindLine, KindArrow:
		if len(e.Points) < 4 || len(e.Points)%2 != 0 {
			return Element{}, ErrBadGeometry
		}
		for _, p := range e.Points {
			if !isFinite(p) {
				return Element{}, ErrBadGeometry
			}
		}
		e.Width, e.Height = 0, 0
		e.Text = nil

	case KindRectangle, KindCircle:
		// A drag that moved up/left produces negative dimensions; normalize by
		// flipping the origin. Zero-size shapes only exist in a client's local
		// draft state and must never be committed.
		if e.Width < 0 {
			e.X += e.Width
			e.Width = -e.Width
		}
		if e.Height < 0 {
			e.Y += e.Height
			e.Height = -e.Height
		}
		if e.Width <= 0 || e.Height <= 0 || !isFinite(e.Width) || !isFinite(e.Height) {
			return Element{}, ErrBadGeometry
		}
		e.Points = nil
		e.Text = nil

	case KindText:
		if e.Text == nil {
			empty := ""
			e.Text = &empty
		}
		e.Points = nil
		e.Width, e.Height = 0, 0
	}

	return e, nil
}

// ValidateAll runs each element through the gate, dropping rejected ones.
// Used when admitting a whole document (initial load, full save).
func ValidateAll(raws []Element) []Element {
	out := make([]Element, 0, len(raws))
	seen := make(map[string]bool, len(raws))
	for _, raw := range raws {
		e, err := Validate(raw)
		if err != nil {
			continue
		}
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		out = append(out, e)
	}
	return out
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
