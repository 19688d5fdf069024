package board

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lineElement(id string) Element {
	return Element{
		ID:     id,
		Type:   KindLine,
		Points: []float64{0, 0, 10, 10},
		Color:  "#ff0000",
	}
}

func rectElement(id string) Element {
	return Element{
		ID:     id,
		Type:   KindRectangle,
		X:      5,
		Y:      5,
		Width:  20,
		Height: 10,
		Color:  "#00ff00",
	}
}

func TestValidateRejectsUnknownKind(t *testing.T) {
	_, err := Validate(Element{ID: "e1", Type: "triangle"})
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = Validate(Element{ID: "e2"})
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestValidateCoercesMissingFields(t *testing.T) {
	e, err := Validate(Element{Type: KindLine, Points: []float64{0, 0, 1, 1}})
	require.NoError(t, err)

	assert.NotEmpty(t, e.ID, "missing id must be minted")
	assert.Equal(t, DefaultColor, e.Color)
	assert.Equal(t, 2.0, e.StrokeWidth)

	text := "hello"
	te, err := Validate(Element{Type: KindText, Text: &text})
	require.NoError(t, err)
	assert.Equal(t, 1.0, te.StrokeWidth, "text uses a thinner default stroke")
}

func TestValidateZeroesNonFiniteCoordinates(t *testing.T) {
	e, err := Validate(Element{
		Type:   KindLine,
		X:      math.NaN(),
		Y:      math.Inf(1),
		Points: []float64{0, 0, 1, 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, e.X)
	assert.Equal(t, 0.0, e.Y)
}

func TestValidateLineGeometry(t *testing.T) {
	// Too few points.
	_, err := Validate(Element{Type: KindLine, Points: []float64{1, 2}})
	assert.ErrorIs(t, err, ErrBadGeometry)

	// Odd-length flat list is not a coordinate sequence.
	_, err = Validate(Element{Type: KindLine, Points: []float64{0, 0, 1, 1, 2}})
	assert.ErrorIs(t, err, ErrBadGeometry)

	// Non-finite point.
	_, err = Validate(Element{Type: KindArrow, Points: []float64{0, 0, math.NaN(), 1}})
	assert.ErrorIs(t, err, ErrBadGeometry)

	// Valid line keeps its points and drops foreign geometry fields.
	text := "stray"
	e, err := Validate(Element{
		Type:   KindLine,
		Points: []float64{0, 0, 5, 5, 10, 0},
		Width:  99,
		Height: 99,
		Text:   &text,
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 5, 5, 10, 0}, e.Points)
	assert.Zero(t, e.Width)
	assert.Zero(t, e.Height)
	assert.Nil(t, e.Text)
}

func TestValidateRectangleGeometry(t *testing.T) {
	// Negative dimensions come from an up/left drag: flip the origin.
	e, err := Validate(Element{Type: KindRectangle, X: 10, Y: 10, Width: -4, Height: -6})
	require.NoError(t, err)
	assert.Equal(t, 6.0, e.X)
	assert.Equal(t, 4.0, e.Y)
	assert.Equal(t, 4.0, e.Width)
	assert.Equal(t, 6.0, e.Height)

	// Zero-size shapes are draft-only and never committed.
	_, err = Validate(Element{Type: KindRectangle, Width: 0, Height: 10})
	assert.ErrorIs(t, err, ErrBadGeometry)

	_, err = Validate(Element{Type: KindCircle, Width: 10, Height: 0})
	assert.ErrorIs(t, err, ErrBadGeometry)
}

func TestValidateTextGeometry(t *testing.T) {
	e, err := Validate(Element{Type: KindText, X: 1, Y: 2})
	require.NoError(t, err)
	require.NotNil(t, e.Text)
	assert.Equal(t, "", *e.Text, "missing text coerces to empty string")

	text := "note"
	e, err = Validate(Element{Type: KindText, Text: &text, Points: []float64{1, 2, 3, 4}, Width: 7})
	require.NoError(t, err)
	assert.Equal(t, "note", *e.Text)
	assert.Nil(t, e.Points)
	assert.Zero(t, e.Width)
}

func TestValidateIsIdempotent(t *testing.T) {
	first, err := Validate(Element{Type: KindRectangle, X: 10, Y: 10, Width: -4, Height: 6})
	require.NoError(t, err)

	second, err := Validate(first)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestValidateDoesNotMutateInput(t *testing.T) {
	raw := Element{Type: KindRectangle, X: 10, Y: 10, Width: -4, Height: -6}
	_, err := Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, -4.0, raw.Width, "caller's payload must stay untouched")
}

func TestValidateAllDropsRejectedAndDuplicates(t *testing.T) {
	raws := []Element{
		lineElement("a"),
		{ID: "bad", Type: "scribble"},
		rectElement("b"),
		lineElement("a"), // duplicate id
		{ID: "short", Type: KindLine, Points: []float64{1, 2}},
	}

	out := ValidateAll(raws)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "b", out[1].ID)
}
