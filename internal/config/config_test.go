package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/atlasmap-sc/orbitscene/internal/animator"
)

func TestLoad_MultiSceneFormat(t *testing.T) {
	content := `
server:
  port: 9000
scenes:
  slow:
    frame_end: 720
    rate_of_progression: 2
    palette: viridis
  orbit:
    frame_start: 1
    frame_end: 360
    rate_of_progression: 4
    major_radius: 0.6
`
	cfg := loadFromString(t, content)

	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}

	// First scene in YAML order should be default
	if cfg.Scenes.DefaultScene != "slow" {
		t.Errorf("expected default scene 'slow', got %q", cfg.Scenes.DefaultScene)
	}

	slow, ok := cfg.Scenes.Scenes["slow"]
	if !ok {
		t.Fatal("expected 'slow' scene")
	}
	want := animator.Params{FrameStart: 1, FrameEnd: 720, RateOfProgression: 2, MajorRadius: 0.6}
	if slow.Params != want {
		t.Errorf("unexpected slow params: %+v", slow.Params)
	}
	if slow.Palette != "viridis" {
		t.Errorf("unexpected slow palette: %q", slow.Palette)
	}

	orbit := cfg.Scenes.Scenes["orbit"]
	if orbit.Params != animator.DefaultParams() {
		t.Errorf("unexpected orbit params: %+v", orbit.Params)
	}

	// Check order preserved
	ids := cfg.Scenes.SceneIDs()
	if len(ids) != 2 || ids[0] != "slow" || ids[1] != "orbit" {
		t.Errorf("unexpected scene order: %v", ids)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	content := `
server:
  port: 0
render:
  width: 1280
`
	cfg := loadFromString(t, content)

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Cache.FrameSizeMB != 256 {
		t.Errorf("expected default cache size 256, got %d", cfg.Cache.FrameSizeMB)
	}
	if cfg.Render.Width != 1280 || cfg.Render.Height != 360 {
		t.Errorf("unexpected render size %dx%d", cfg.Render.Width, cfg.Render.Height)
	}
	if cfg.Render.DefaultPalette != "tricycle" {
		t.Errorf("expected default palette tricycle, got %q", cfg.Render.DefaultPalette)
	}
	if cfg.Bake.MaxConcurrent != 2 {
		t.Errorf("expected default max_concurrent 2, got %d", cfg.Bake.MaxConcurrent)
	}
}

func TestLoad_NoScenesSection(t *testing.T) {
	cfg := loadFromString(t, "server:\n  port: 8080\n")

	if cfg.Scenes.DefaultScene != DefaultSceneID {
		t.Errorf("expected default scene, got %q", cfg.Scenes.DefaultScene)
	}
	if len(cfg.Scenes.Scenes) != 1 {
		t.Errorf("expected 1 default scene, got %d", len(cfg.Scenes.Scenes))
	}
	if cfg.Scenes.Scenes[DefaultSceneID].Params != animator.DefaultParams() {
		t.Errorf("unexpected default params: %+v", cfg.Scenes.Scenes[DefaultSceneID].Params)
	}
}

func TestLoad_InvalidScene(t *testing.T) {
	path := writeConfig(t, `
scenes:
  broken:
    frame_start: 10
    frame_end: 5
`)
	_, err := Load(path)
	if !errors.Is(err, animator.ErrInvalidParameters) {
		t.Fatalf("expected ErrInvalidParameters, got %v", err)
	}
}

func TestLoad_EmbeddingsAndPalettes(t *testing.T) {
	content := `
palettes:
  mono: ["#000000", "#FFFFFF"]
embeddings:
  pbmc:
    path: /data/pbmc_umap.json.zst
    feature: phase
  liver:
    path: /data/liver_umap.json
`
	cfg := loadFromString(t, content)

	if got := cfg.Palettes["mono"]; len(got) != 2 || got[1] != "#FFFFFF" {
		t.Errorf("unexpected palette: %v", got)
	}
	ids := cfg.Embeddings.EmbeddingIDs()
	if len(ids) != 2 || ids[0] != "pbmc" || ids[1] != "liver" {
		t.Errorf("unexpected embedding order: %v", ids)
	}
	if cfg.Embeddings.Embeddings["pbmc"].Feature != "phase" {
		t.Errorf("unexpected embedding: %+v", cfg.Embeddings.Embeddings["pbmc"])
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 || cfg.Scenes.DefaultScene != DefaultSceneID {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func loadFromString(t *testing.T, content string) *Config {
	t.Helper()

	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	return cfg
}
