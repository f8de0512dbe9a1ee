package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/atlasmap-sc/orbitscene/internal/animator"
	"github.com/atlasmap-sc/orbitscene/internal/cache"
	"github.com/atlasmap-sc/orbitscene/internal/render"
	"github.com/atlasmap-sc/orbitscene/internal/service"
)

// newNoListenRouter builds a router without a job manager or embeddings.
func newNoListenRouter(t *testing.T) http.Handler {
	t.Helper()

	cacheManager, err := cache.NewManager(cache.Config{
		FrameCacheSizeMB: 16,
		FrameTTL:         1 * time.Minute,
		RunCacheSize:     4,
	})
	if err != nil {
		t.Fatalf("Failed to initialize cache: %v", err)
	}
	t.Cleanup(func() { cacheManager.Close() })

	sceneService, err := service.NewSceneService(service.SceneServiceConfig{
		SceneID:  "default",
		Params:   animator.Params{FrameStart: 1, FrameEnd: 24, RateOfProgression: 1, MajorRadius: 0.6},
		Palette:  "viridis",
		Cache:    cacheManager,
		Renderer: render.NewFrameRenderer(render.Config{Width: 64, Height: 36}),
	})
	if err != nil {
		t.Fatalf("Failed to initialize scene service: %v", err)
	}

	// Create registry with single scene
	registry := NewSceneRegistry("default", []string{"default"}, "")
	registry.Register("default", sceneService)

	return NewRouter(RouterConfig{
		Registry:    registry,
		CORSOrigins: []string{"http://localhost:3000"},
	})
}

func serve(router http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestFrameEndpoint_NoListen(t *testing.T) {
	router := newNoListenRouter(t)

	rec := serve(router, http.MethodGet, "/s/default/api/frames/24", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var payload animator.Frame
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if payload.Index != 24 {
		t.Fatalf("unexpected frame: got %d want 24", payload.Index)
	}
	if payload.Traveler.Position.X != animator.TravelSpan {
		t.Fatalf("expected traveler at x=%v on the last frame, got %v", animator.TravelSpan, payload.Traveler.Position.X)
	}
}

func TestParamsEndpoint_NoListen(t *testing.T) {
	router := newNoListenRouter(t)

	rec := serve(router, http.MethodGet, "/s/default/api/params", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, rec.Code)
	}
	var payload struct {
		Scene   string          `json:"scene"`
		Params  animator.Params `json:"params"`
		Palette string          `json:"palette"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if payload.Scene != "default" || payload.Palette != "viridis" || payload.Params.FrameEnd != 24 {
		t.Fatalf("unexpected params payload: %+v", payload)
	}
}

func TestBakeRoutesNeedJobManager_NoListen(t *testing.T) {
	router := newNoListenRouter(t)

	rec := serve(router, http.MethodPost, "/s/default/api/bake/jobs", []byte(`{}`))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected %d without a job manager, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestUnknownEmbedding_NoListen(t *testing.T) {
	router := newNoListenRouter(t)

	rec := serve(router, http.MethodGet, "/e/umap/api/colors", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected %d, got %d", http.StatusNotFound, rec.Code)
	}
}
