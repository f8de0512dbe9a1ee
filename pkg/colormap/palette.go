package colormap

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

var (
	// ErrInvalidColorFormat is returned for hex strings that are not exactly
	// six hex digits after an optional leading '#'.
	ErrInvalidColorFormat = errors.New("invalid color format")
	// ErrInsufficientStops is returned when a palette would have fewer than two stops.
	ErrInsufficientStops = errors.New("palette needs at least two color stops")
	// ErrDuplicateStop is returned when two stops share a position.
	ErrDuplicateStop = errors.New("duplicate color stop position")
)

// RGBA is a color with each channel normalized to [0, 1].
type RGBA struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

// RGBA implements color.Color. Channels outside [0, 1] are clamped.
func (c RGBA) RGBA() (r, g, b, a uint32) {
	return color.NRGBA{
		R: to8(c.R),
		G: to8(c.G),
		B: to8(c.B),
		A: to8(c.A),
	}.RGBA()
}

// Hex formats the color channels as "#rrggbb" (alpha is dropped).
func (c RGBA) Hex() string {
	return colorful.Color{R: c.R, G: c.G, B: c.B}.Clamped().Hex()
}

func (c RGBA) colorful() colorful.Color {
	return colorful.Color{R: c.R, G: c.G, B: c.B}
}

func to8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

// ColorStop pins a color to a position along a gradient.
type ColorStop struct {
	Position float64 `json:"position"`
	Color    RGBA    `json:"rgba"`
}

// Palette is an immutable, position-sorted sequence of color stops. Build one
// with BuildPalette or NewPalette; the zero Palette has no stops and samples
// as transparent black.
type Palette struct {
	stops []ColorStop
}

// HexToRGBA converts "#RRGGBB" or "RRGGBB" to normalized channels with the given alpha.
func HexToRGBA(hex string, alpha float64) (RGBA, error) {
	s := strings.TrimPrefix(hex, "#")
	if len(s) != 6 {
		return RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColorFormat, hex)
	}

	var ch [3]float64
	for i := range ch {
		v, err := strconv.ParseUint(s[2*i:2*i+2], 16, 8)
		if err != nil {
			return RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColorFormat, hex)
		}
		ch[i] = float64(v) / 255
	}

	return RGBA{R: ch[0], G: ch[1], B: ch[2], A: alpha}, nil
}

// BuildPalette creates a palette with one opaque stop per hex color, evenly
// spaced over [0, 1].
func BuildPalette(hexColors []string) (*Palette, error) {
	if len(hexColors) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInsufficientStops, len(hexColors))
	}

	last := len(hexColors) - 1
	stops := make([]ColorStop, len(hexColors))
	for i, h := range hexColors {
		c, err := HexToRGBA(h, 1.0)
		if err != nil {
			return nil, fmt.Errorf("stop %d: %w", i, err)
		}
		stops[i] = ColorStop{
			Position: float64(i) / float64(last),
			Color:    c,
		}
	}
	return &Palette{stops: stops}, nil
}

// NewPalette creates a palette from explicit stops. Stops are sorted by
// position; positions outside [0, 1] are allowed.
func NewPalette(stops []ColorStop) (*Palette, error) {
	if len(stops) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInsufficientStops, len(stops))
	}

	sorted := make([]ColorStop, len(stops))
	copy(sorted, stops)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Position < sorted[j].Position
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Position == sorted[i-1].Position {
			return nil, fmt.Errorf("%w: %g", ErrDuplicateStop, sorted[i].Position)
		}
	}
	return &Palette{stops: sorted}, nil
}

// MustBuildPalette is like BuildPalette but panics on error. It is meant for
// package-level palette literals.
func MustBuildPalette(hexColors ...string) *Palette {
	p, err := BuildPalette(hexColors)
	if err != nil {
		panic("MustBuildPalette: " + err.Error())
	}
	return p
}

// Stops returns a copy of the palette's stops.
func (p *Palette) Stops() []ColorStop {
	out := make([]ColorStop, len(p.stops))
	copy(out, p.stops)
	return out
}

// Len returns the number of stops.
func (p *Palette) Len() int {
	return len(p.stops)
}

// Sample returns the color at position t.
func Sample(p *Palette, t float64) RGBA {
	return p.Sample(t)
}

// Sample linearly interpolates between the two stops bracketing t. Values at
// or beyond the end stops return the end colors; NaN returns the first stop.
func (p *Palette) Sample(t float64) RGBA {
	if len(p.stops) == 0 {
		return RGBA{}
	}
	first, last := p.stops[0], p.stops[len(p.stops)-1]
	if t <= first.Position || math.IsNaN(t) {
		return first.Color
	}
	if t >= last.Position {
		return last.Color
	}

	// First stop strictly above t; t is above stops[0] so hi >= 1.
	hi := sort.Search(len(p.stops), func(i int) bool {
		return p.stops[i].Position > t
	})
	lo := p.stops[hi-1]
	up := p.stops[hi]

	frac := (t - lo.Position) / (up.Position - lo.Position)
	rgb := lo.Color.colorful().BlendRgb(up.Color.colorful(), frac)
	return RGBA{
		R: rgb.R,
		G: rgb.G,
		B: rgb.B,
		A: lo.Color.A + frac*(up.Color.A-lo.Color.A),
	}
}

// At implements Colormap.
func (p *Palette) At(t float64) color.Color {
	return p.Sample(t)
}

// AtIndex returns the color of stop i (wraps around).
func (p *Palette) AtIndex(i int) color.Color {
	n := len(p.stops)
	if n == 0 {
		return RGBA{}
	}
	return p.stops[((i%n)+n)%n].Color
}

// HexStops returns the stop colors formatted as "#rrggbb".
func (p *Palette) HexStops() []string {
	out := make([]string, len(p.stops))
	for i, s := range p.stops {
		out[i] = s.Color.Hex()
	}
	return out
}
