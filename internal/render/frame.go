// Package render provides frame and scatter rendering using fogleman/gg.
package render

import (
	"bytes"
	"image"
	"image/png"
	"math"
	"sync"

	"github.com/atlasmap-sc/orbitscene/internal/animator"
	"github.com/atlasmap-sc/orbitscene/internal/scene"
	"github.com/atlasmap-sc/orbitscene/pkg/colormap"
	"github.com/fogleman/gg"
)

// ringSegments is the number of arcs used to draw the gradient ring.
const ringSegments = 180

// Config contains renderer configuration.
type Config struct {
	Width  int
	Height int
	Layout scene.Layout
}

// FrameRenderer draws the camera's top-down view of a frame.
type FrameRenderer struct {
	config      Config
	contextPool sync.Pool
	bufferPool  sync.Pool
}

// NewFrameRenderer creates a new frame renderer.
func NewFrameRenderer(cfg Config) *FrameRenderer {
	if cfg.Width <= 0 {
		cfg.Width = 640
	}
	if cfg.Height <= 0 {
		cfg.Height = 360
	}
	if cfg.Layout.CameraScale <= 0 {
		cfg.Layout = scene.DefaultLayout()
	}
	return &FrameRenderer{
		config: cfg,
		contextPool: sync.Pool{
			New: func() interface{} {
				return gg.NewContext(cfg.Width, cfg.Height)
			},
		},
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 32*1024))
			},
		},
	}
}

// Size returns the output image size in pixels.
func (r *FrameRenderer) Size() (int, int) {
	return r.config.Width, r.config.Height
}

// projection maps scene XY onto the orthographic camera's image plane.
type projection struct {
	cx, cy float64
	upp    float64 // scene units per pixel
	w, h   float64
}

func (r *FrameRenderer) projection() projection {
	w, h := float64(r.config.Width), float64(r.config.Height)
	cam := r.config.Layout.CameraLocation()
	return projection{
		cx:  cam.X,
		cy:  cam.Y,
		upp: r.config.Layout.CameraScale / math.Max(w, h),
		w:   w,
		h:   h,
	}
}

// Project returns the pixel position of scene point (x, y).
func (r *FrameRenderer) Project(x, y float64) (float64, float64) {
	return r.projection().point(x, y)
}

func (p projection) point(x, y float64) (float64, float64) {
	return p.w/2 + (x-p.cx)/p.upp, p.h/2 - (y-p.cy)/p.upp
}

func (p projection) pixels(d, min float64) float64 {
	return math.Max(d/p.upp, min)
}

// RenderFrame renders one frame with the trail accumulated up to it. palette
// overrides the layout's ring palette when non-nil.
func (r *FrameRenderer) RenderFrame(f animator.Frame, trail []animator.TrailPoint, palette *colormap.Palette) ([]byte, error) {
	dc := r.contextPool.Get().(*gg.Context)
	defer r.contextPool.Put(dc)

	layout := r.config.Layout
	if palette == nil {
		palette = layout.RingPalette
	}
	if palette == nil {
		palette = colormap.Tricycle
	}
	proj := r.projection()

	dc.SetColor(layout.Background)
	dc.Clear()

	r.drawRing(dc, proj, palette)
	r.drawTrail(dc, proj, trail)
	r.drawArrow(dc, proj, f.Orbiter)
	r.drawParticle(dc, proj, f.Traveler)

	return r.encodeContext(dc)
}

func (r *FrameRenderer) drawRing(dc *gg.Context, proj projection, palette *colormap.Palette) {
	layout := r.config.Layout
	R, minor := layout.RingMajorRadius, layout.RingMinorRadius
	extent := R + minor

	dc.SetLineWidth(proj.pixels(2*minor, 1))
	dc.SetLineCap(gg.LineCapButt)
	step := 2 * math.Pi / ringSegments
	for i := 0; i < ringSegments; i++ {
		a0 := float64(i) * step
		a1 := a0 + step
		mid := (a0 + a1) / 2

		u := scene.GeneratedCoord(R*math.Cos(mid), -extent, extent)
		dc.SetColor(palette.Sample(scene.GradientFactor(u)))

		x0, y0 := proj.point(R*math.Cos(a0), R*math.Sin(a0))
		x1, y1 := proj.point(R*math.Cos(a1), R*math.Sin(a1))
		dc.DrawLine(x0, y0, x1, y1)
		dc.Stroke()
	}
}

func (r *FrameRenderer) drawTrail(dc *gg.Context, proj projection, trail []animator.TrailPoint) {
	if len(trail) < 2 {
		return
	}
	dc.SetColor(r.config.Layout.CurveColor)
	dc.SetLineWidth(proj.pixels(2*r.config.Layout.CurveBevelDepth, 1))
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)
	for i, pt := range trail {
		x, y := proj.point(pt.X, pt.Y)
		if i == 0 {
			dc.MoveTo(x, y)
		} else {
			dc.LineTo(x, y)
		}
	}
	dc.Stroke()
}

func (r *FrameRenderer) drawArrow(dc *gg.Context, proj projection, pose animator.Pose) {
	dirX, dirY := math.Cos(pose.RotationZ), math.Sin(pose.RotationZ)
	px, py := pose.Position.X, pose.Position.Y

	dc.SetColor(r.config.Layout.ArrowColor)
	dc.SetLineWidth(proj.pixels(0.04, 1))
	dc.SetLineCap(gg.LineCapButt)
	x0, y0 := proj.point(px, py)
	x1, y1 := proj.point(px+dirX*0.9, py+dirY*0.9)
	dc.DrawLine(x0, y0, x1, y1)
	dc.Stroke()

	// Cone head from 0.9 to 1.1 along the arrow, 0.05 radius at its base.
	nx, ny := -dirY, dirX
	bx, by := px+dirX*0.9, py+dirY*0.9
	tx, ty := proj.point(px+dirX*1.1, py+dirY*1.1)
	lx, ly := proj.point(bx+nx*0.05, by+ny*0.05)
	rx, ry := proj.point(bx-nx*0.05, by-ny*0.05)
	dc.MoveTo(tx, ty)
	dc.LineTo(lx, ly)
	dc.LineTo(rx, ry)
	dc.ClosePath()
	dc.Fill()
}

func (r *FrameRenderer) drawParticle(dc *gg.Context, proj projection, pose animator.Pose) {
	x, y := proj.point(pose.Position.X, pose.Position.Y)
	dc.SetColor(r.config.Layout.ParticleColor)
	dc.DrawCircle(x, y, proj.pixels(0.05, 2))
	dc.Fill()
}

func (r *FrameRenderer) encodeContext(dc *gg.Context) ([]byte, error) {
	return encodePNG(&r.bufferPool, dc.Image())
}

func encodePNG(pool *sync.Pool, img image.Image) ([]byte, error) {
	buf := pool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		pool.Put(buf)
	}()

	// Use fast PNG encoder
	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(buf, img); err != nil {
		return nil, err
	}

	// Copy buffer contents (buffer will be reused)
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}

// CreateEmptyImage creates a black image of the renderer's size.
func (r *FrameRenderer) CreateEmptyImage() ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, r.config.Width, r.config.Height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+3] = 255
	}
	return encodePNG(&r.bufferPool, img)
}
