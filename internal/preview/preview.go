// Package preview plays an animation in the terminal using tcell.
package preview

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/atlasmap-sc/orbitscene/internal/animator"
	"github.com/atlasmap-sc/orbitscene/internal/scene"
	"github.com/atlasmap-sc/orbitscene/pkg/colormap"
)

const (
	particleRune = '●'
	arrowRune    = '◆'
	ringRune     = '•'
	trailRune    = '·'
)

// View bounds in scene units: the ring around the origin and the full
// traveler span to its right.
const (
	viewMinX = -1.3
	viewMaxX = animator.TravelSpan + 0.3
	viewMinY = -1.3
	viewMaxY = 1.3
)

// Config contains preview configuration.
type Config struct {
	Params  animator.Params
	Layout  scene.Layout
	Palette *colormap.Palette
	FPS     int
	Loop    bool
}

// Preview draws one frame per tick onto a tcell screen.
type Preview struct {
	screen tcell.Screen
	cfg    Config

	run    *animator.Run
	frame  animator.Frame
	paused bool
}

// New creates a preview on an initialised screen.
func New(screen tcell.Screen, cfg Config) (*Preview, error) {
	run, err := animator.NewRun(cfg.Params)
	if err != nil {
		return nil, err
	}
	if cfg.Layout.CameraScale <= 0 {
		cfg.Layout = scene.DefaultLayout()
	}
	if cfg.Palette == nil {
		cfg.Palette = cfg.Layout.RingPalette
	}
	if cfg.Palette == nil {
		cfg.Palette = colormap.Tricycle
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}

	p := &Preview{screen: screen, cfg: cfg, run: run}
	p.Step()
	return p, nil
}

// Frame returns the frame currently shown.
func (p *Preview) Frame() animator.Frame {
	return p.frame
}

// Paused reports whether playback is paused.
func (p *Preview) Paused() bool {
	return p.paused
}

// Step advances one frame. At the end of the timeline it restarts when
// looping and otherwise returns false.
func (p *Preview) Step() bool {
	f, ok := p.run.Next()
	if !ok {
		if !p.cfg.Loop {
			return false
		}
		p.restart()
		f, _ = p.run.Next()
	}
	p.frame = f
	return true
}

func (p *Preview) restart() {
	// Params were validated by New.
	p.run, _ = animator.NewRun(p.cfg.Params)
}

// cell maps a scene point to a screen cell inside the drawing area.
func (p *Preview) cell(x, y float64) (int, int) {
	w, h := p.screen.Size()
	rows := h - 1 // last row is the status line
	cx := (x - viewMinX) / (viewMaxX - viewMinX) * float64(w-1)
	cy := (viewMaxY - y) / (viewMaxY - viewMinY) * float64(rows-1)
	return int(math.Round(cx)), int(math.Round(cy))
}

// Cell returns the screen cell of scene point (x, y).
func (p *Preview) Cell(x, y float64) (int, int) {
	return p.cell(x, y)
}

func rgb(c colormap.RGBA) tcell.Color {
	return tcell.NewRGBColor(int32(to255(c.R)), int32(to255(c.G)), int32(to255(c.B)))
}

func to255(v float64) int {
	return int(math.Round(math.Max(0, math.Min(1, v)) * 255))
}

// Draw renders the current frame and the status line.
func (p *Preview) Draw() {
	p.screen.Clear()
	w, h := p.screen.Size()
	layout := p.cfg.Layout

	// Ring
	r := layout.RingMajorRadius
	extent := r + layout.RingMinorRadius
	steps := max(4*w, 64)
	for i := 0; i < steps; i++ {
		a := 2 * math.Pi * float64(i) / float64(steps)
		x, y := r*math.Cos(a), r*math.Sin(a)
		u := scene.GeneratedCoord(x, -extent, extent)
		c := p.cfg.Palette.Sample(scene.GradientFactor(u))
		cx, cy := p.cell(x, y)
		p.screen.SetContent(cx, cy, ringRune, nil, tcell.StyleDefault.Foreground(rgb(c)))
	}

	// Trail
	trailStyle := tcell.StyleDefault.Foreground(rgb(layout.CurveColor))
	for _, pt := range p.run.Trail() {
		cx, cy := p.cell(pt.X, pt.Y)
		p.screen.SetContent(cx, cy, trailRune, nil, trailStyle)
	}

	// Arrow: shaft dots towards the head.
	arrowStyle := tcell.StyleDefault.Foreground(rgb(layout.ArrowColor))
	o := p.frame.Orbiter
	dx, dy := math.Cos(o.RotationZ), math.Sin(o.RotationZ)
	for _, d := range []float64{0, 0.35, 0.7} {
		cx, cy := p.cell(o.Position.X+dx*d, o.Position.Y+dy*d)
		p.screen.SetContent(cx, cy, trailRune, nil, arrowStyle)
	}
	hx, hy := p.cell(o.Position.X+dx*1.1, o.Position.Y+dy*1.1)
	p.screen.SetContent(hx, hy, arrowRune, nil, arrowStyle)

	// Particle
	t := p.frame.Traveler.Position
	px, py := p.cell(t.X, t.Y)
	p.screen.SetContent(px, py, particleRune, nil, tcell.StyleDefault.Foreground(rgb(layout.ParticleColor)))

	status := fmt.Sprintf(" frame %d/%d  angle %.2f  [space] pause  [r] restart  [q] quit",
		p.frame.Index, p.cfg.Params.FrameEnd, p.frame.Angle)
	if p.paused {
		status += "  (paused)"
	}
	statusStyle := tcell.StyleDefault.Reverse(true)
	for i := 0; i < w; i++ {
		ch := ' '
		if i < len(status) {
			ch = rune(status[i])
		}
		p.screen.SetContent(i, h-1, ch, nil, statusStyle)
	}
}

// HandleEvent applies one input event. It returns false when the preview
// should exit.
func (p *Preview) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch {
		case ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC:
			return false
		case ev.Key() == tcell.KeyRune && ev.Rune() == 'q':
			return false
		case ev.Key() == tcell.KeyRune && ev.Rune() == ' ':
			p.paused = !p.paused
		case ev.Key() == tcell.KeyRune && ev.Rune() == 'r':
			p.restart()
			p.Step()
		case ev.Key() == tcell.KeyRight:
			p.Step()
		}
	case *tcell.EventResize:
		p.screen.Sync()
	}
	return true
}

// Run plays the animation until ctx is done, the user quits, or a
// non-looping timeline ends.
func (p *Preview) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(p.cfg.FPS))
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	quit := make(chan struct{})
	defer close(quit)
	go func() {
		for {
			ev := p.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case eventChan <- ev:
			case <-quit:
				return
			}
		}
	}()

	p.Draw()
	p.screen.Show()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev := <-eventChan:
			if !p.HandleEvent(ev) {
				return nil
			}
			p.Draw()
			p.screen.Show()

		case <-ticker.C:
			if p.paused {
				continue
			}
			if !p.Step() {
				return nil
			}
			p.Draw()
			p.screen.Show()
		}
	}
}
