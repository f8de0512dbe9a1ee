package render

import (
	"bytes"
	"errors"
	"image/color"
	"math"
	"sync"

	"github.com/atlasmap-sc/orbitscene/pkg/colormap"
	"github.com/fogleman/gg"
)

// ErrColorCount is returned when points and colors differ in length.
var ErrColorCount = errors.New("point and color counts differ")

// ScatterRenderer draws the XY projection of 3D embeddings.
type ScatterRenderer struct {
	size       int
	margin     float64
	bufferPool sync.Pool
}

// NewScatterRenderer creates a renderer producing size×size images.
func NewScatterRenderer(size int) *ScatterRenderer {
	if size <= 0 {
		size = 512
	}
	return &ScatterRenderer{
		size:   size,
		margin: float64(size) * 0.05,
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 64*1024))
			},
		},
	}
}

// RenderScatter draws points (only X and Y are used) scaled to fit the image,
// each filled with its color.
func (r *ScatterRenderer) RenderScatter(points [][3]float64, colors []colormap.RGBA, pointSize float64) ([]byte, error) {
	if len(points) != len(colors) {
		return nil, ErrColorCount
	}
	if pointSize <= 0 {
		pointSize = 1.5
	}

	dc := gg.NewContext(r.size, r.size)
	dc.SetColor(color.White)
	dc.Clear()

	if len(points) == 0 {
		return encodePNG(&r.bufferPool, dc.Image())
	}

	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		minX, maxX = math.Min(minX, p[0]), math.Max(maxX, p[0])
		minY, maxY = math.Min(minY, p[1]), math.Max(maxY, p[1])
	}
	span := math.Max(maxX-minX, maxY-minY)
	if span == 0 {
		span = 1
	}
	scale := (float64(r.size) - 2*r.margin) / span

	for i, p := range points {
		x := r.margin + (p[0]-minX)*scale
		y := float64(r.size) - r.margin - (p[1]-minY)*scale
		dc.SetColor(colors[i])
		dc.DrawCircle(x, y, pointSize)
		dc.Fill()
	}

	return encodePNG(&r.bufferPool, dc.Image())
}
