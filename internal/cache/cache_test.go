package cache

import (
	"testing"
	"time"

	"github.com/atlasmap-sc/orbitscene/internal/animator"
)

func TestRunKey(t *testing.T) {
	base := animator.DefaultParams()

	t.Run("stable", func(t *testing.T) {
		if RunKey(base) != RunKey(animator.DefaultParams()) {
			t.Fatal("expected identical params to share a key")
		}
	})

	t.Run("rateDiffers", func(t *testing.T) {
		other := base
		other.RateOfProgression = 4.000000001
		if RunKey(base) == RunKey(other) {
			t.Fatalf("expected distinct keys, got %q", RunKey(base))
		}
	})

	t.Run("frameKeyIncludesPalette", func(t *testing.T) {
		a := FrameKey("orbit", base, 10, "tricycle", 640, 360)
		b := FrameKey("orbit", base, 10, "viridis", 640, 360)
		if a == b {
			t.Fatalf("expected palette to change the key, got %q", a)
		}
	})
}

func TestManagerRoundTrip(t *testing.T) {
	m, err := NewManager(Config{FrameCacheSizeMB: 8, FrameTTL: time.Minute, RunCacheSize: 2})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	defer m.Close()

	if _, ok := m.GetFrame("missing"); ok {
		t.Fatal("expected miss")
	}
	if err := m.SetFrame("k", []byte("png")); err != nil {
		t.Fatalf("set frame: %v", err)
	}
	if got, ok := m.GetFrame("k"); !ok || string(got) != "png" {
		t.Fatalf("unexpected frame cache result: %q %v", got, ok)
	}

	frames, _ := animator.Frames(animator.DefaultParams())
	m.SetRun("a", frames)
	m.SetRun("b", frames[:1])
	m.SetRun("c", frames[:2])
	if _, ok := m.GetRun("a"); ok {
		t.Fatal("expected oldest run to be evicted")
	}
	if got, ok := m.GetRun("c"); !ok || len(got) != 2 {
		t.Fatalf("unexpected run cache result: %d %v", len(got), ok)
	}

	if stats := m.Stats(); stats["run_cache_len"] != 2 {
		t.Fatalf("unexpected stats: %v", stats)
	}
}
