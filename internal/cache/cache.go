// Package cache provides caching for rendered frames and computed runs.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/atlasmap-sc/orbitscene/internal/animator"
)

// Config contains cache configuration.
type Config struct {
	FrameCacheSizeMB int
	FrameTTL         time.Duration
	RunCacheSize     int
}

// Manager manages the rendered-frame and computed-run caches.
type Manager struct {
	frameCache *bigcache.BigCache
	runCache   *lru.Cache[string, []animator.Frame]
}

// NewManager creates a new cache manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.RunCacheSize <= 0 {
		cfg.RunCacheSize = 64
	}
	if cfg.FrameTTL <= 0 {
		cfg.FrameTTL = 10 * time.Minute
	}

	frameCacheConfig := bigcache.Config{
		Shards:             256,
		LifeWindow:         cfg.FrameTTL,
		CleanWindow:        cfg.FrameTTL / 2,
		MaxEntriesInWindow: 10000,
		MaxEntrySize:       256 * 1024, // 256KB per frame
		HardMaxCacheSize:   cfg.FrameCacheSizeMB,
		Verbose:            false,
	}

	frameCache, err := bigcache.New(context.Background(), frameCacheConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create frame cache: %w", err)
	}

	runCache, err := lru.New[string, []animator.Frame](cfg.RunCacheSize)
	if err != nil {
		frameCache.Close()
		return nil, fmt.Errorf("failed to create run cache: %w", err)
	}

	return &Manager{
		frameCache: frameCache,
		runCache:   runCache,
	}, nil
}

// GetFrame retrieves a rendered frame from cache.
func (m *Manager) GetFrame(key string) ([]byte, bool) {
	data, err := m.frameCache.Get(key)
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetFrame stores a rendered frame in cache.
func (m *Manager) SetFrame(key string, data []byte) error {
	return m.frameCache.Set(key, data)
}

// GetRun retrieves a computed timeline. Callers must not modify the slice.
func (m *Manager) GetRun(key string) ([]animator.Frame, bool) {
	return m.runCache.Get(key)
}

// SetRun stores a computed timeline.
func (m *Manager) SetRun(key string, frames []animator.Frame) {
	m.runCache.Add(key, frames)
}

// RunKey generates a cache key for a timeline. Floats are keyed by their
// exact bit patterns so nearly equal parameters never share an entry.
func RunKey(p animator.Params) string {
	return fmt.Sprintf("run:%d-%d:%x:%x", p.FrameStart, p.FrameEnd, p.RateOfProgression, p.MajorRadius)
}

// FrameKey generates a cache key for a rendered frame.
func FrameKey(scene string, p animator.Params, frame int, palette string, width, height int) string {
	return fmt.Sprintf("frame:%s:%s:%d:%s:%dx%d", scene, RunKey(p), frame, palette, width, height)
}

// Stats returns cache statistics.
func (m *Manager) Stats() map[string]interface{} {
	return map[string]interface{}{
		"frame_cache_len": m.frameCache.Len(),
		"frame_cache_cap": m.frameCache.Capacity(),
		"run_cache_len":   m.runCache.Len(),
	}
}

// Close closes the cache manager.
func (m *Manager) Close() error {
	return m.frameCache.Close()
}
