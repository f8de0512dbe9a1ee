// Package embedding loads precomputed 3D embeddings and colors their points
// by a feature column.
package embedding

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/atlasmap-sc/orbitscene/pkg/colormap"
)

// Errors
var (
	ErrUnknownFeature = errors.New("unknown feature")
	ErrInvalidFile    = errors.New("invalid embedding file")
	ErrNotCategorical = errors.New("feature is not categorical")
)

// Embedding is a set of 3D points with per-point feature columns.
type Embedding struct {
	Points   [][3]float64         `json:"points"`
	Features map[string][]float64 `json:"features"`
}

// Load reads an embedding from a JSON file, zstd-compressed when the path
// ends in .zst.
func Load(path string) (*Embedding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedding: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		defer dec.Close()
		r = dec
	}
	return Decode(r)
}

// Decode parses and validates an embedding.
func Decode(r io.Reader) (*Embedding, error) {
	var e Embedding
	if err := json.NewDecoder(r).Decode(&e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	for name, values := range e.Features {
		if len(values) != len(e.Points) {
			return nil, fmt.Errorf("%w: feature %q has %d values for %d points",
				ErrInvalidFile, name, len(values), len(e.Points))
		}
	}
	return &e, nil
}

// FeatureNames returns the feature names in sorted order.
func (e *Embedding) FeatureNames() []string {
	names := make([]string, 0, len(e.Features))
	for name := range e.Features {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultFeature is the first feature by name, or "" if there are none.
func (e *Embedding) DefaultFeature() string {
	names := e.FeatureNames()
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// Normalize rescales a feature column to [0, 1] by its min and max. A
// constant column maps to 0. NaN values stay NaN.
func (e *Embedding) Normalize(feature string) ([]float64, error) {
	values, ok := e.Features[feature]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFeature, feature)
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	out := make([]float64, len(values))
	span := hi - lo
	for i, v := range values {
		switch {
		case math.IsNaN(v):
			out[i] = v
		case span > 0:
			out[i] = (v - lo) / span
		}
	}
	return out, nil
}

// ColorBy maps feature through palette, one color per point. An empty
// feature selects DefaultFeature; a nil palette selects viridis.
func (e *Embedding) ColorBy(feature string, palette *colormap.Palette) ([]colormap.RGBA, error) {
	if feature == "" {
		feature = e.DefaultFeature()
	}
	if palette == nil {
		palette = colormap.Viridis
	}
	norm, err := e.Normalize(feature)
	if err != nil {
		return nil, err
	}
	colors := make([]colormap.RGBA, len(norm))
	for i, t := range norm {
		colors[i] = palette.Sample(t)
	}
	return colors, nil
}

// ColorByCategory colors an integer-valued feature with one categorical
// color per distinct value, in ascending value order.
func (e *Embedding) ColorByCategory(feature string, cmap colormap.CategoricalColormap) ([]colormap.RGBA, error) {
	if feature == "" {
		feature = e.DefaultFeature()
	}
	values, ok := e.Features[feature]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFeature, feature)
	}

	var levels []float64
	seen := make(map[float64]bool)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return nil, fmt.Errorf("%w: %q has value %g", ErrNotCategorical, feature, v)
		}
		if !seen[v] {
			seen[v] = true
			levels = append(levels, v)
		}
	}
	sort.Float64s(levels)
	index := make(map[float64]int, len(levels))
	for i, v := range levels {
		index[v] = i
	}

	colors := make([]colormap.RGBA, len(values))
	for i, v := range values {
		colors[i] = cmap.Index(index[v])
	}
	return colors, nil
}
