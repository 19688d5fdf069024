package board

// Kind identifies the drawable primitive an element represents.
// The set is closed: payloads with any other kind are rejected at the gate.
type Kind string

const (
	KindLine      Kind = "line"
	KindRectangle Kind = "rectangle"
	KindCircle    Kind = "circle"
	KindText      Kind = "text"
	KindArrow     Kind = "arrow"
)

// IsValid reports whether k is one of the known element kinds.
func (k Kind) IsValid() bool {
	switch k {
	case KindLine, KindRectangle, KindCircle, KindText, KindArrow:
		return true
	}
	return false
}

// DefaultColor is applied when an inbound payload carries no color.
const DefaultColor = "#000000"

// Element is a single drawable primitive on a board.
// Geometry is kind-dependent: Points for line/arrow, Width/Height for
// rectangle/circle, Text for text. Wire shape matches the client payloads.
type Element struct {
	ID          string    `json:"id"`
	Type        Kind      `json:"type"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
	Width       float64   `json:"width,omitempty"`
	Height      float64   `json:"height,omitempty"`
	Points      []float64 `json:"points,omitempty"`
	Text        *string   `json:"text,omitempty"`
	Color       string    `json:"color"`
	StrokeWidth float64   `json:"strokeWidth,omitempty"`
}

// Clone returns a deep copy (Points and Text are not shared).
func (e Element) Clone() Element {
	out := e
	if e.Points != nil {
		out.Points = make([]float64, len(e.Points))
		copy(out.Points, e.Points)
	}
	if e.Text != nil {
		t := *e.Text
		out.Text = &t
	}
	return out
}

// CloneElements deep-copies a slice of elements, preserving order.
func CloneElements(elements []Element) []Element {
	out := make([]Element, len(elements))
	for i, e := range elements {
		out[i] = e.Clone()
	}
	return out
}

// defaultStrokeWidth returns the stroke width applied when a payload omits it.
func defaultStrokeWidth(k Kind) float64 {
	switch k {
	case KindText:
		return 1
	default:
		return 2
	}
}
