// Package config handles configuration loading for the orbitscene server.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/atlasmap-sc/orbitscene/internal/animator"
)

// DefaultSceneID is the scene configured when the file has no scenes section.
const DefaultSceneID = "orbit"

// Config represents the server configuration.
type Config struct {
	Server     ServerConfig        `yaml:"server"`
	Cache      CacheConfig         `yaml:"cache"`
	Render     RenderConfig        `yaml:"render"`
	Bake       BakeConfig          `yaml:"bake"`
	Palettes   map[string][]string `yaml:"palettes"`
	Scenes     ScenesConfig        `yaml:"scenes"`
	Embeddings EmbeddingsConfig    `yaml:"embeddings"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
	Title       string   `yaml:"title"`
}

// CacheConfig contains caching settings.
type CacheConfig struct {
	FrameSizeMB     int `yaml:"frame_size_mb"`
	FrameTTLMinutes int `yaml:"frame_ttl_minutes"`
	RunCacheSize    int `yaml:"run_cache_size"`
}

// FrameTTL returns the frame cache lifetime.
func (c CacheConfig) FrameTTL() time.Duration {
	return time.Duration(c.FrameTTLMinutes) * time.Minute
}

// RenderConfig contains rendering settings.
type RenderConfig struct {
	Width          int    `yaml:"width"`
	Height         int    `yaml:"height"`
	DefaultPalette string `yaml:"default_palette"`
}

// BakeConfig contains bake job settings.
type BakeConfig struct {
	MaxConcurrent int    `yaml:"max_concurrent"`
	SQLitePath    string `yaml:"sqlite_path"`
	RetentionDays int    `yaml:"retention_days"`
	TraceDir      string `yaml:"trace_dir"`
}

// SceneConfig describes one animated scene.
type SceneConfig struct {
	animator.Params `yaml:",inline"`
	Palette         string `yaml:"palette"`
}

// ScenesConfig holds scenes in the order they appear in the file. The first
// scene is the default.
type ScenesConfig struct {
	Scenes       map[string]SceneConfig
	DefaultScene string
	order        []string
}

// UnmarshalYAML decodes the scenes mapping, keeping key order.
func (s *ScenesConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("scenes: expected mapping, got line %d", node.Line)
	}
	s.Scenes = make(map[string]SceneConfig, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		id := node.Content[i].Value
		sc := SceneConfig{Params: animator.DefaultParams()}
		if err := node.Content[i+1].Decode(&sc); err != nil {
			return fmt.Errorf("scene %q: %w", id, err)
		}
		if _, dup := s.Scenes[id]; dup {
			return fmt.Errorf("scene %q defined twice", id)
		}
		s.Scenes[id] = sc
		s.order = append(s.order, id)
	}
	if len(s.order) > 0 {
		s.DefaultScene = s.order[0]
	}
	return nil
}

// SceneIDs returns scene IDs in configuration order.
func (s ScenesConfig) SceneIDs() []string {
	return append([]string(nil), s.order...)
}

// EmbeddingConfig points at a precomputed embedding file.
type EmbeddingConfig struct {
	Path    string `yaml:"path"`
	Feature string `yaml:"feature"`
	Palette string `yaml:"palette"`
}

// EmbeddingsConfig holds embeddings in file order.
type EmbeddingsConfig struct {
	Embeddings map[string]EmbeddingConfig
	order      []string
}

// UnmarshalYAML decodes the embeddings mapping, keeping key order.
func (e *EmbeddingsConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("embeddings: expected mapping, got line %d", node.Line)
	}
	e.Embeddings = make(map[string]EmbeddingConfig, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		id := node.Content[i].Value
		var ec EmbeddingConfig
		if err := node.Content[i+1].Decode(&ec); err != nil {
			return fmt.Errorf("embedding %q: %w", id, err)
		}
		e.Embeddings[id] = ec
		e.order = append(e.order, id)
	}
	return nil
}

// EmbeddingIDs returns embedding IDs in configuration order.
func (e EmbeddingsConfig) EmbeddingIDs() []string {
	return append([]string(nil), e.order...)
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Return default config if file doesn't exist
		return DefaultConfig(), nil
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Apply defaults for missing values
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every scene's animation parameters.
func (c *Config) Validate() error {
	for _, id := range c.Scenes.order {
		if err := c.Scenes.Scenes[id].Params.Validate(); err != nil {
			return fmt.Errorf("scene %q: %w", id, err)
		}
	}
	for _, id := range c.Embeddings.order {
		if c.Embeddings.Embeddings[id].Path == "" {
			return fmt.Errorf("embedding %q: path is required", id)
		}
	}
	return nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			Title:       "orbitscene",
		},
		Cache: CacheConfig{
			FrameSizeMB:     256,
			FrameTTLMinutes: 10,
			RunCacheSize:    64,
		},
		Render: RenderConfig{
			Width:          640,
			Height:         360,
			DefaultPalette: "tricycle",
		},
		Bake: BakeConfig{
			MaxConcurrent: 2,
			SQLitePath:    "./data/bake/bake.db",
			RetentionDays: 7,
			TraceDir:      "./data/bake/traces",
		},
		Scenes: defaultScenes(),
	}
}

func defaultScenes() ScenesConfig {
	return ScenesConfig{
		Scenes:       map[string]SceneConfig{DefaultSceneID: {Params: animator.DefaultParams()}},
		DefaultScene: DefaultSceneID,
		order:        []string{DefaultSceneID},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = defaults.Server.CORSOrigins
	}
	if cfg.Server.Title == "" {
		cfg.Server.Title = defaults.Server.Title
	}
	if cfg.Cache.FrameSizeMB == 0 {
		cfg.Cache.FrameSizeMB = defaults.Cache.FrameSizeMB
	}
	if cfg.Cache.FrameTTLMinutes == 0 {
		cfg.Cache.FrameTTLMinutes = defaults.Cache.FrameTTLMinutes
	}
	if cfg.Cache.RunCacheSize == 0 {
		cfg.Cache.RunCacheSize = defaults.Cache.RunCacheSize
	}
	if cfg.Render.Width == 0 {
		cfg.Render.Width = defaults.Render.Width
	}
	if cfg.Render.Height == 0 {
		cfg.Render.Height = defaults.Render.Height
	}
	if cfg.Render.DefaultPalette == "" {
		cfg.Render.DefaultPalette = defaults.Render.DefaultPalette
	}
	if cfg.Bake.MaxConcurrent == 0 {
		cfg.Bake.MaxConcurrent = defaults.Bake.MaxConcurrent
	}
	if cfg.Bake.SQLitePath == "" {
		cfg.Bake.SQLitePath = defaults.Bake.SQLitePath
	}
	if cfg.Bake.RetentionDays == 0 {
		cfg.Bake.RetentionDays = defaults.Bake.RetentionDays
	}
	if cfg.Bake.TraceDir == "" {
		cfg.Bake.TraceDir = defaults.Bake.TraceDir
	}
	if len(cfg.Scenes.order) == 0 {
		cfg.Scenes = defaults.Scenes
	}
}
