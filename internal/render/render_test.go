package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/atlasmap-sc/orbitscene/internal/animator"
	"github.com/atlasmap-sc/orbitscene/internal/scene"
	"github.com/atlasmap-sc/orbitscene/pkg/colormap"
)

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("invalid PNG: %v", err)
	}
	return img
}

func nrgbaAt(img image.Image, x, y int) color.NRGBA {
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}

func TestRenderFrame(t *testing.T) {
	r := NewFrameRenderer(Config{Width: 320, Height: 180, Layout: scene.DefaultLayout()})
	p := animator.DefaultParams()
	f := animator.ComputeFrame(180, p)
	trail, err := animator.TrailUpTo(p, 180)
	if err != nil {
		t.Fatal(err)
	}

	data, err := r.RenderFrame(f, trail, nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	img := decode(t, data)
	if b := img.Bounds(); b.Dx() != 320 || b.Dy() != 180 {
		t.Fatalf("unexpected size %v", b)
	}

	// A corner far from every object keeps the black background.
	if c := nrgbaAt(img, 0, 0); c != (color.NRGBA{A: 255}) {
		t.Errorf("expected black background, got %#v", c)
	}

	// The particle is drawn at the traveler's projected position.
	px, py := r.Project(f.Traveler.Position.X, f.Traveler.Position.Y)
	c := nrgbaAt(img, int(px), int(py))
	if c.B < 150 || c.R > 120 {
		t.Errorf("expected particle blue at (%v,%v), got %#v", px, py, c)
	}
}

func TestRenderFrameRingUsesPalette(t *testing.T) {
	r := NewFrameRenderer(Config{Width: 400, Height: 400, Layout: scene.DefaultLayout()})
	f := animator.ComputeFrame(1, animator.DefaultParams())

	red := colormap.MustBuildPalette("#FF0000", "#FF0000")
	data, err := r.RenderFrame(f, nil, red)
	if err != nil {
		t.Fatal(err)
	}
	img := decode(t, data)

	// Bottom of the ring, away from the arrow which starts near angle 0.
	x, y := r.Project(0, -1)
	c := nrgbaAt(img, int(x), int(y))
	if c.R < 200 || c.G > 50 || c.B > 50 {
		t.Errorf("expected red ring pixel, got %#v", c)
	}
}

func TestCreateEmptyImage(t *testing.T) {
	r := NewFrameRenderer(Config{Width: 16, Height: 8})
	data, err := r.CreateEmptyImage()
	if err != nil {
		t.Fatal(err)
	}
	img := decode(t, data)
	if c := nrgbaAt(img, 3, 3); c != (color.NRGBA{A: 255}) {
		t.Errorf("expected opaque black, got %#v", c)
	}
}

func TestRenderScatter(t *testing.T) {
	r := NewScatterRenderer(64)
	red := colormap.RGBA{R: 1, A: 1}
	points := [][3]float64{{0, 0, 0}, {1, 1, 5}}

	data, err := r.RenderScatter(points, []colormap.RGBA{red, red}, 3)
	if err != nil {
		t.Fatal(err)
	}
	img := decode(t, data)

	// Lower-left point lands at the margin.
	margin := 64 * 0.05
	m := int(margin)
	if c := nrgbaAt(img, m, 64-m-1); c.R != 255 || c.G > 60 {
		t.Errorf("expected red point near lower-left, got %#v", c)
	}
	if c := nrgbaAt(img, 32, 5); c != (color.NRGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Errorf("expected white background, got %#v", c)
	}

	if _, err := r.RenderScatter(points, []colormap.RGBA{red}, 1); err != ErrColorCount {
		t.Errorf("expected ErrColorCount, got %v", err)
	}
}
