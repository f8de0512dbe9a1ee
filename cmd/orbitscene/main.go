// Package main is the entry point for the orbitscene server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atlasmap-sc/orbitscene/internal/api"
	"github.com/atlasmap-sc/orbitscene/internal/cache"
	"github.com/atlasmap-sc/orbitscene/internal/config"
	"github.com/atlasmap-sc/orbitscene/internal/render"
	"github.com/atlasmap-sc/orbitscene/internal/scene"
	"github.com/atlasmap-sc/orbitscene/internal/service"
	"github.com/atlasmap-sc/orbitscene/pkg/colormap"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config/orbitscene.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting orbitscene server on port %d", cfg.Server.Port)

	ctx := context.Background()

	// Custom palettes become available to every scene and request.
	for name, colors := range cfg.Palettes {
		if _, err := colormap.Register(name, colors); err != nil {
			log.Fatalf("Failed to register palette %q: %v", name, err)
		}
		log.Printf("Registered palette %q (%d stops)", name, len(colors))
	}

	// Initialize cache manager (shared across all scenes)
	cacheManager, err := cache.NewManager(cache.Config{
		FrameCacheSizeMB: cfg.Cache.FrameSizeMB,
		FrameTTL:         cfg.Cache.FrameTTL(),
		RunCacheSize:     cfg.Cache.RunCacheSize,
	})
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}
	defer cacheManager.Close()

	// Initialize frame renderer (shared across all scenes)
	layout := scene.DefaultLayout()
	frameRenderer := render.NewFrameRenderer(render.Config{
		Width:  cfg.Render.Width,
		Height: cfg.Render.Height,
		Layout: layout,
	})

	sceneIDs := cfg.Scenes.SceneIDs()
	registry := api.NewSceneRegistry(cfg.Scenes.DefaultScene, sceneIDs, cfg.Server.Title)

	log.Printf("Initializing %d scene(s), default: %s", len(sceneIDs), cfg.Scenes.DefaultScene)

	for _, sceneID := range sceneIDs {
		sc := cfg.Scenes.Scenes[sceneID]
		palette := sc.Palette
		if palette == "" {
			palette = cfg.Render.DefaultPalette
		}

		svc, err := service.NewSceneService(service.SceneServiceConfig{
			SceneID:  sceneID,
			Params:   sc.Params,
			Palette:  palette,
			Layout:   layout,
			Cache:    cacheManager,
			Renderer: frameRenderer,
		})
		if err != nil {
			log.Fatalf("Failed to initialize scene %q: %v", sceneID, err)
		}
		registry.Register(sceneID, svc)
		log.Printf("  [%s] frames %d..%d, rate %g, radius %g, palette %s",
			sceneID, sc.FrameStart, sc.FrameEnd, sc.RateOfProgression, sc.MajorRadius, palette)
	}

	scatterRenderer := render.NewScatterRenderer(cfg.Render.Height)
	for _, id := range cfg.Embeddings.EmbeddingIDs() {
		ec := cfg.Embeddings.Embeddings[id]
		registry.RegisterEmbedding(id, service.NewEmbeddingService(service.EmbeddingServiceConfig{
			EmbeddingID: id,
			Path:        ec.Path,
			Feature:     ec.Feature,
			Palette:     ec.Palette,
			Cache:       cacheManager,
			Renderer:    scatterRenderer,
		}))
		log.Printf("  [%s] embedding: %s", id, ec.Path)
	}

	// Initialize job manager for bake jobs (SQLite persistence)
	jobManager, err := api.NewJobManager(api.JobManagerConfig{
		MaxConcurrent: cfg.Bake.MaxConcurrent,
		SQLitePath:    cfg.Bake.SQLitePath,
		RetentionDays: cfg.Bake.RetentionDays,
		CleanupPeriod: 1 * time.Hour,
	})
	if err != nil {
		log.Fatalf("Failed to initialize job manager: %v", err)
	}
	log.Printf("Bake job manager: max_concurrent=%d, retention_days=%d, sqlite=%s",
		cfg.Bake.MaxConcurrent, cfg.Bake.RetentionDays, cfg.Bake.SQLitePath)

	// Wire up bake service as job executor
	bakeService := service.NewBakeService(registry, cfg.Bake.TraceDir)
	jobManager.Executor = bakeService.ExecuteBakeJob

	jobManager.Start()
	defer jobManager.Stop()

	// Set up HTTP router
	router := api.NewRouter(api.RouterConfig{
		Registry:    registry,
		CORSOrigins: cfg.Server.CORSOrigins,
		JobManager:  jobManager,
		Cache:       cacheManager,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on http://localhost:%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
