package preview

import (
	"context"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasmap-sc/orbitscene/internal/animator"
	"github.com/atlasmap-sc/orbitscene/pkg/colormap"
)

func newScreen(t *testing.T) tcell.SimulationScreen {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	screen.SetSize(80, 24)
	t.Cleanup(screen.Fini)
	return screen
}

func shortParams() animator.Params {
	return animator.Params{FrameStart: 1, FrameEnd: 8, RateOfProgression: 1, MajorRadius: 0.6}
}

func TestNewRejectsInvalidParams(t *testing.T) {
	_, err := New(newScreen(t), Config{Params: animator.Params{FrameStart: 0, FrameEnd: 10}})
	assert.ErrorIs(t, err, animator.ErrInvalidParameters)
}

func TestStepLoopsAndStops(t *testing.T) {
	screen := newScreen(t)

	p, err := New(screen, Config{Params: shortParams()})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Frame().Index)
	for i := 2; i <= 8; i++ {
		require.True(t, p.Step())
		assert.Equal(t, i, p.Frame().Index)
	}
	assert.False(t, p.Step(), "non-looping preview should stop at the last frame")

	looping, err := New(screen, Config{Params: shortParams(), Loop: true})
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		looping.Step()
	}
	assert.Equal(t, 1, looping.Frame().Index)
}

func TestDrawPlacesParticleAndTrail(t *testing.T) {
	screen := newScreen(t)
	p, err := New(screen, Config{Params: shortParams()})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		p.Step()
	}
	p.Draw()

	pos := p.Frame().Traveler.Position
	x, y := p.Cell(pos.X, pos.Y)
	r, _, style, _ := screen.GetContent(x, y)
	assert.Equal(t, particleRune, r)
	fg, _, _ := style.Decompose()
	assert.Equal(t, tcell.NewRGBColor(51, 51, 230), fg)

	first := animator.ComputeFrame(1, shortParams()).Trail
	x, y = p.Cell(first.X, first.Y)
	r, _, _, _ = screen.GetContent(x, y)
	assert.Equal(t, trailRune, r)

	_, h := screen.Size()
	r, _, _, _ = screen.GetContent(1, h-1)
	assert.Equal(t, 'f', r)
}

func TestDrawRingUsesPalette(t *testing.T) {
	screen := newScreen(t)
	red := colormap.MustBuildPalette("#FF0000", "#FF0000")
	p, err := New(screen, Config{Params: shortParams(), Palette: red})
	require.NoError(t, err)
	p.Draw()

	// Leftmost point of the ring is never covered by the trail or arrow.
	x, y := p.Cell(-1, 0)
	r, _, style, _ := screen.GetContent(x, y)
	assert.Equal(t, ringRune, r)
	fg, _, _ := style.Decompose()
	assert.Equal(t, tcell.NewRGBColor(255, 0, 0), fg)
}

func TestHandleEvent(t *testing.T) {
	p, err := New(newScreen(t), Config{Params: shortParams()})
	require.NoError(t, err)

	assert.True(t, p.HandleEvent(tcell.NewEventKey(tcell.KeyRune, ' ', tcell.ModNone)))
	assert.True(t, p.Paused())
	assert.True(t, p.HandleEvent(tcell.NewEventKey(tcell.KeyRight, 0, tcell.ModNone)))
	assert.Equal(t, 2, p.Frame().Index)
	assert.True(t, p.HandleEvent(tcell.NewEventKey(tcell.KeyRune, 'r', tcell.ModNone)))
	assert.Equal(t, 1, p.Frame().Index)

	assert.False(t, p.HandleEvent(tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)))
	assert.False(t, p.HandleEvent(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)))
	assert.False(t, p.HandleEvent(tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModNone)))
}

func TestRunQuitsOnKey(t *testing.T) {
	screen := newScreen(t)
	p, err := New(screen, Config{Params: animator.DefaultParams(), Loop: true, FPS: 60})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()
	screen.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("preview did not quit")
	}
}

func TestRunEndsWithTimeline(t *testing.T) {
	p, err := New(newScreen(t), Config{Params: shortParams(), FPS: 200})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Run(ctx))
	assert.Equal(t, 8, p.Frame().Index)
}
