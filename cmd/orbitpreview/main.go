// Package main plays an orbit scene in the terminal.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"

	"github.com/atlasmap-sc/orbitscene/internal/animator"
	"github.com/atlasmap-sc/orbitscene/internal/config"
	"github.com/atlasmap-sc/orbitscene/internal/preview"
	"github.com/atlasmap-sc/orbitscene/pkg/colormap"
)

func main() {
	configPath := flag.String("config", "", "Optional configuration file to take the scene from")
	sceneID := flag.String("scene", "", "Scene ID in the configuration file (default: first scene)")
	frameStart := flag.Int("frame-start", 0, "First frame (overrides the scene)")
	frameEnd := flag.Int("frame-end", 0, "Last frame (overrides the scene)")
	rate := flag.Float64("rate", 0, "Revolutions over the timeline (overrides the scene)")
	radius := flag.Float64("radius", 0, "Orbit radius (overrides the scene)")
	paletteName := flag.String("palette", "", "Ring palette name")
	fps := flag.Int("fps", 30, "Frames per second")
	loop := flag.Bool("loop", true, "Restart at the end of the timeline")
	flag.Parse()

	params := animator.DefaultParams()
	palette := "tricycle"

	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		for name, colors := range cfg.Palettes {
			if _, err := colormap.Register(name, colors); err != nil {
				log.Fatalf("Failed to register palette %q: %v", name, err)
			}
		}
		id := *sceneID
		if id == "" {
			id = cfg.Scenes.DefaultScene
		}
		sc, ok := cfg.Scenes.Scenes[id]
		if !ok {
			log.Fatalf("Unknown scene %q", id)
		}
		params = sc.Params
		palette = cfg.Render.DefaultPalette
		if sc.Palette != "" {
			palette = sc.Palette
		}
	}

	if *frameStart != 0 {
		params.FrameStart = *frameStart
	}
	if *frameEnd != 0 {
		params.FrameEnd = *frameEnd
	}
	if *rate != 0 {
		params.RateOfProgression = *rate
	}
	if *radius != 0 {
		params.MajorRadius = *radius
	}
	if *paletteName != "" {
		palette = *paletteName
	}

	pal, ok := colormap.Lookup(palette)
	if !ok {
		log.Fatalf("Unknown palette %q (available: %v)", palette, colormap.Names())
	}
	if err := params.Validate(); err != nil {
		log.Fatalf("Invalid parameters: %v", err)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		log.Fatalf("Failed to create screen: %v", err)
	}
	if err := screen.Init(); err != nil {
		log.Fatalf("Failed to initialize screen: %v", err)
	}

	p, err := preview.New(screen, preview.Config{
		Params:  params,
		Palette: pal,
		FPS:     *fps,
		Loop:    *loop,
	})
	if err != nil {
		screen.Fini()
		log.Fatalf("Failed to start preview: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = p.Run(ctx)
	screen.Fini()
	if err != nil && err != context.Canceled {
		log.Fatalf("Preview failed: %v", err)
	}
}
