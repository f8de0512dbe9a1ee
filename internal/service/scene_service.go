// Package service provides business logic for the scene server.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/atlasmap-sc/orbitscene/internal/animator"
	"github.com/atlasmap-sc/orbitscene/internal/cache"
	"github.com/atlasmap-sc/orbitscene/internal/render"
	"github.com/atlasmap-sc/orbitscene/internal/scene"
	"github.com/atlasmap-sc/orbitscene/internal/tracefile"
	"github.com/atlasmap-sc/orbitscene/pkg/colormap"
)

// Errors
var (
	ErrFrameOutOfRange = errors.New("frame out of range")
	ErrUnknownPalette  = errors.New("unknown palette")
)

// ResolvePalette looks up name, falling back to fallback when name is empty.
func ResolvePalette(name, fallback string) (*colormap.Palette, string, error) {
	if name == "" {
		name = fallback
	}
	p, ok := colormap.Lookup(name)
	if !ok {
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownPalette, name)
	}
	return p, name, nil
}

// SceneServiceConfig contains scene service configuration.
type SceneServiceConfig struct {
	SceneID  string
	Params   animator.Params
	Palette  string
	Layout   scene.Layout
	Cache    *cache.Manager
	Renderer *render.FrameRenderer
}

// SceneService serves the timeline, renders and exports of one scene.
type SceneService struct {
	sceneID  string
	params   animator.Params
	palette  string
	layout   scene.Layout
	cache    *cache.Manager
	renderer *render.FrameRenderer
}

// NewSceneService creates a new scene service. It fails when the scene's
// parameters or palette are invalid.
func NewSceneService(cfg SceneServiceConfig) (*SceneService, error) {
	if err := cfg.Params.Validate(); err != nil {
		return nil, fmt.Errorf("scene %q: %w", cfg.SceneID, err)
	}
	if cfg.Palette == "" {
		cfg.Palette = "tricycle"
	}
	ring, _, err := ResolvePalette(cfg.Palette, "")
	if err != nil {
		return nil, fmt.Errorf("scene %q: %w", cfg.SceneID, err)
	}
	if cfg.Layout.CameraScale <= 0 {
		cfg.Layout = scene.DefaultLayout()
	}
	cfg.Layout.RingPalette = ring
	if cfg.Renderer == nil {
		cfg.Renderer = render.NewFrameRenderer(render.Config{Layout: cfg.Layout})
	}

	return &SceneService{
		sceneID:  cfg.SceneID,
		params:   cfg.Params,
		palette:  cfg.Palette,
		layout:   cfg.Layout,
		cache:    cfg.Cache,
		renderer: cfg.Renderer,
	}, nil
}

// ID returns the scene ID.
func (s *SceneService) ID() string {
	return s.sceneID
}

// Params returns the scene's animation parameters.
func (s *SceneService) Params() animator.Params {
	return s.params
}

// Palette returns the name of the scene's ring palette.
func (s *SceneService) Palette() string {
	return s.palette
}

// Frames returns the whole timeline. The result is shared and must not be
// modified.
func (s *SceneService) Frames() ([]animator.Frame, error) {
	key := cache.RunKey(s.params)
	if s.cache != nil {
		if frames, ok := s.cache.GetRun(key); ok {
			return frames, nil
		}
	}
	frames, err := animator.Frames(s.params)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetRun(key, frames)
	}
	return frames, nil
}

// Frame returns one frame of the timeline.
func (s *SceneService) Frame(i int) (animator.Frame, error) {
	if !s.params.Contains(i) {
		return animator.Frame{}, fmt.Errorf("%w: %d not in %d..%d",
			ErrFrameOutOfRange, i, s.params.FrameStart, s.params.FrameEnd)
	}
	frames, err := s.Frames()
	if err != nil {
		return animator.Frame{}, err
	}
	return frames[i-s.params.FrameStart], nil
}

// Trail returns the trail as it stands after frame upto. Values past the end
// of the timeline return the full trail, values before its start an empty one.
func (s *SceneService) Trail(upto int) ([]animator.TrailPoint, error) {
	return animator.TrailUpTo(s.params, upto)
}

// RenderFrame returns frame i as a PNG, drawing the ring with the named
// palette or the scene's own when paletteName is empty.
func (s *SceneService) RenderFrame(i int, paletteName string) ([]byte, error) {
	palette, name, err := ResolvePalette(paletteName, s.palette)
	if err != nil {
		return nil, err
	}
	f, err := s.Frame(i)
	if err != nil {
		return nil, err
	}

	w, h := s.renderer.Size()
	key := cache.FrameKey(s.sceneID, s.params, i, name, w, h)
	if s.cache != nil {
		if data, ok := s.cache.GetFrame(key); ok {
			return data, nil
		}
	}

	trail, err := s.Trail(i)
	if err != nil {
		return nil, err
	}
	data, err := s.renderer.RenderFrame(f, trail, palette)
	if err != nil {
		return nil, fmt.Errorf("render frame %d: %w", i, err)
	}
	if s.cache != nil {
		s.cache.SetFrame(key, data)
	}
	return data, nil
}

// KeyframeDump is the scene as a host would see it after a full playback.
type KeyframeDump struct {
	SceneID  string          `json:"scene_id"`
	Params   animator.Params `json:"params"`
	Objects  scene.Objects   `json:"objects"`
	Frames   int             `json:"frames"`
	Document *scene.Document `json:"document"`
}

// Keyframes builds the scene on a Recorder and plays the timeline through it.
func (s *SceneService) Keyframes(ctx context.Context) (*KeyframeDump, error) {
	rec := scene.NewRecorder()
	objs, err := scene.Build(rec, s.layout, s.params)
	if err != nil {
		return nil, err
	}
	n, err := scene.Play(ctx, rec, objs, s.params)
	if err != nil {
		return nil, err
	}
	return &KeyframeDump{
		SceneID:  s.sceneID,
		Params:   s.params,
		Objects:  objs,
		Frames:   n,
		Document: rec.Document(),
	}, nil
}

// WriteTrace writes the scene's timeline as a compressed trace.
func (s *SceneService) WriteTrace(w io.Writer) error {
	return tracefile.Write(w, s.sceneID, s.params)
}
