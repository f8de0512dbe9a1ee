// Package colormap provides color palettes for scene shading and visualization.
package colormap

import (
	"fmt"
	"image/color"
	"sort"
	"sync"
)

// Colormap maps normalized values [0, 1] to colors.
type Colormap interface {
	At(t float64) color.Color
	AtIndex(i int) color.Color
}

// Tricycle is the eight-stop palette used by the circular gradient ring.
var Tricycle = MustBuildPalette(
	"#2E22EA", "#9E3DFB", "#F86BE2", "#FCCE7B",
	"#C4E416", "#4BBA0F", "#447D87", "#2C24E9",
)

// Viridis colormap (matplotlib viridis)
var Viridis = MustBuildPalette(
	"#440154", "#482374", "#404387", "#345E8D", "#29788E", "#20908C",
	"#22A784", "#44BE70", "#79D151", "#BDDE26", "#FDE725",
)

// Plasma colormap
var Plasma = MustBuildPalette(
	"#0D0887", "#4B03A1", "#7D03A8", "#A82296", "#CB4679",
	"#E56B5D", "#F89441", "#FDC328", "#F0F921",
)

// Inferno colormap
var Inferno = MustBuildPalette(
	"#000004", "#280B54", "#65156E", "#9F2A63",
	"#D44842", "#F57D15", "#FAC127", "#FCFFA4",
)

// Magma colormap
var Magma = MustBuildPalette(
	"#000004", "#1C1044", "#4F127B", "#812581", "#B5367A",
	"#E55064", "#FB8761", "#FEC287", "#FCFDBF",
)

// Seurat is the light grey to red feature-plot gradient.
var Seurat = MustBuildPalette("#D3D3D3", "#FF0000")

// CategoricalColormap provides distinct colors for categories.
type CategoricalColormap struct {
	colors []RGBA
}

// At returns color at position t.
func (c CategoricalColormap) At(t float64) color.Color {
	idx := int(t * float64(len(c.colors)))
	if idx >= len(c.colors) {
		idx = len(c.colors) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return c.colors[idx]
}

// AtIndex returns color at index.
func (c CategoricalColormap) AtIndex(i int) color.Color {
	return c.Index(i)
}

// Index returns the color of category i, wrapping past the last color.
func (c CategoricalColormap) Index(i int) RGBA {
	return c.colors[i%len(c.colors)]
}

// Categorical colormap with 20 distinct colors. It is not a gradient, so it
// is kept out of the palette registry.
var Categorical = newCategorical(
	"#1F77B4", "#FF7F0E", "#2CA02C", "#D62728", "#9467BD", // blue, orange, green, red, purple
	"#8C564B", "#E377C2", "#7F7F7F", "#BCBD22", "#17BECF", // brown, pink, gray, olive, cyan
	"#AEC7E8", "#FFBB78", "#98DF8A", "#FF9896", "#C5B0D5", // light variants
	"#C49C94", "#F7B6D2", "#C7C7C7", "#DBDB8D", "#9EDAE5",
)

func newCategorical(hex ...string) CategoricalColormap {
	colors := make([]RGBA, len(hex))
	for i, h := range hex {
		c, err := HexToRGBA(h, 1.0)
		if err != nil {
			panic("newCategorical: " + err.Error())
		}
		colors[i] = c
	}
	return CategoricalColormap{colors: colors}
}

var (
	registryMu sync.RWMutex
	registry   = map[string]*Palette{
		"tricycle": Tricycle,
		"viridis":  Viridis,
		"plasma":   Plasma,
		"inferno":  Inferno,
		"magma":    Magma,
		"seurat":   Seurat,
	}
)

// Lookup returns a named palette.
func Lookup(name string) (*Palette, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	p, ok := registry[name]
	return p, ok
}

// Register builds a palette from hex colors and makes it available by name,
// replacing any palette already registered under that name.
func Register(name string, hexColors []string) (*Palette, error) {
	p, err := BuildPalette(hexColors)
	if err != nil {
		return nil, fmt.Errorf("palette %q: %w", name, err)
	}
	registryMu.Lock()
	registry[name] = p
	registryMu.Unlock()
	return p, nil
}

// Names returns the registered palette names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
