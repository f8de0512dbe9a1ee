package service

import (
	"fmt"
	"sync"

	"github.com/atlasmap-sc/orbitscene/internal/cache"
	"github.com/atlasmap-sc/orbitscene/internal/embedding"
	"github.com/atlasmap-sc/orbitscene/internal/render"
	"github.com/atlasmap-sc/orbitscene/pkg/colormap"
)

// EmbeddingServiceConfig contains embedding service configuration.
type EmbeddingServiceConfig struct {
	EmbeddingID string
	Path        string
	Feature     string
	Palette     string
	Cache       *cache.Manager
	Renderer    *render.ScatterRenderer
}

// EmbeddingService colors and draws one precomputed embedding. The file is
// loaded on first use.
type EmbeddingService struct {
	id       string
	path     string
	feature  string
	palette  string
	cache    *cache.Manager
	renderer *render.ScatterRenderer

	loadOnce sync.Once
	emb      *embedding.Embedding
	loadErr  error
}

// NewEmbeddingService creates a new embedding service.
func NewEmbeddingService(cfg EmbeddingServiceConfig) *EmbeddingService {
	if cfg.Palette == "" {
		cfg.Palette = "viridis"
	}
	if cfg.Renderer == nil {
		cfg.Renderer = render.NewScatterRenderer(512)
	}
	return &EmbeddingService{
		id:       cfg.EmbeddingID,
		path:     cfg.Path,
		feature:  cfg.Feature,
		palette:  cfg.Palette,
		cache:    cfg.Cache,
		renderer: cfg.Renderer,
	}
}

// ID returns the embedding ID.
func (s *EmbeddingService) ID() string {
	return s.id
}

// Embedding loads the embedding file once and returns it.
func (s *EmbeddingService) Embedding() (*embedding.Embedding, error) {
	s.loadOnce.Do(func() {
		s.emb, s.loadErr = embedding.Load(s.path)
	})
	return s.emb, s.loadErr
}

// CategoricalPalette selects one distinct color per value of an
// integer-valued feature instead of a gradient.
const CategoricalPalette = "categorical"

// ColorResult is the per-point coloring of an embedding.
type ColorResult struct {
	Feature string          `json:"feature"`
	Palette string          `json:"palette"`
	Colors  []colormap.RGBA `json:"colors"`
}

// Colors maps a feature through a palette. Empty names select the
// configured defaults.
func (s *EmbeddingService) Colors(feature, paletteName string) (*ColorResult, error) {
	e, err := s.Embedding()
	if err != nil {
		return nil, err
	}
	if feature == "" {
		feature = s.feature
	}
	if feature == "" {
		feature = e.DefaultFeature()
	}

	name := paletteName
	if name == "" {
		name = s.palette
	}
	var colors []colormap.RGBA
	if name == CategoricalPalette {
		colors, err = e.ColorByCategory(feature, colormap.Categorical)
	} else {
		var palette *colormap.Palette
		palette, name, err = ResolvePalette(name, s.palette)
		if err != nil {
			return nil, err
		}
		colors, err = e.ColorBy(feature, palette)
	}
	if err != nil {
		return nil, err
	}
	return &ColorResult{Feature: feature, Palette: name, Colors: colors}, nil
}

// Scatter renders the colored XY projection as a PNG.
func (s *EmbeddingService) Scatter(feature, paletteName string) ([]byte, error) {
	res, err := s.Colors(feature, paletteName)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("scatter:%s:%s:%s", s.id, res.Feature, res.Palette)
	if s.cache != nil {
		if data, ok := s.cache.GetFrame(key); ok {
			return data, nil
		}
	}

	e, _ := s.Embedding()
	data, err := s.renderer.RenderScatter(e.Points, res.Colors, 0)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetFrame(key, data)
	}
	return data, nil
}
