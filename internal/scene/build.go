package scene

import (
	"context"
	"fmt"
	"math"

	"github.com/atlasmap-sc/orbitscene/internal/animator"
	"github.com/atlasmap-sc/orbitscene/pkg/colormap"
)

// Layout holds the static dimensions and colors of the scene.
type Layout struct {
	RingMajorRadius float64
	RingMinorRadius float64
	RingPalette     *colormap.Palette

	ArrowColor    colormap.RGBA
	ParticleColor colormap.RGBA
	CurveColor    colormap.RGBA
	Background    colormap.RGBA

	CurveBevelDepth float64

	CameraHeight float64
	CameraScale  float64

	LightLocation animator.Vec3
	LightEnergy   float64
	LightColor    colormap.RGBA
	LightSize     float64
}

// DefaultLayout returns the reference scene: unit ring, blue arrow and
// particle, white path, camera 15 units above the timeline.
func DefaultLayout() Layout {
	return Layout{
		RingMajorRadius: 1,
		RingMinorRadius: 0.1,
		RingPalette:     colormap.Tricycle,
		ArrowColor:      colormap.RGBA{R: 0.1, G: 0.2, B: 0.8, A: 1},
		ParticleColor:   colormap.RGBA{R: 0.2, G: 0.2, B: 0.9, A: 1},
		CurveColor:      colormap.RGBA{R: 1, G: 1, B: 1, A: 1},
		Background:      colormap.RGBA{A: 1},
		CurveBevelDepth: 0.01,
		CameraHeight:    15,
		CameraScale:     15,
		LightLocation:   animator.Vec3{Z: 5},
		LightEnergy:     1000,
		LightColor:      colormap.RGBA{R: 0.8, G: 0.9, B: 1, A: 1},
		LightSize:       4,
	}
}

// CameraLocation is where the orthographic camera sits: above x=4 so the
// ring and the start of the timeline are both in view.
func (l Layout) CameraLocation() animator.Vec3 {
	return animator.Vec3{X: 4, Z: l.CameraHeight}
}

// Objects are the host handles created by Build.
type Objects struct {
	Ring     Handle `json:"ring"`
	Arrow    Handle `json:"arrow"`
	Particle Handle `json:"particle"`
	Path     Handle `json:"path"`
	Camera   Handle `json:"camera"`
	Light    Handle `json:"light"`
}

// Build assembles the scene on host. params sets the length of the path's
// build modifier.
func Build(host SceneHost, layout Layout, params animator.Params) (Objects, error) {
	var objs Objects
	if err := params.Validate(); err != nil {
		return objs, err
	}
	if layout.RingPalette == nil {
		layout.RingPalette = colormap.Tricycle
	}

	if err := host.SetBackground(layout.Background); err != nil {
		return objs, fmt.Errorf("set background: %w", err)
	}

	ring, err := buildRing(host, layout)
	if err != nil {
		return objs, fmt.Errorf("ring: %w", err)
	}
	objs.Ring = ring

	arrow, err := buildArrow(host, layout)
	if err != nil {
		return objs, fmt.Errorf("arrow: %w", err)
	}
	objs.Arrow = arrow

	particle, path, err := buildParticle(host, layout, params)
	if err != nil {
		return objs, fmt.Errorf("particle: %w", err)
	}
	objs.Particle, objs.Path = particle, path

	objs.Camera, err = host.CreateMeshPrimitive(KindCamera, PrimitiveParams{
		Name:     "Camera",
		Location: layout.CameraLocation(),
		Size:     map[string]float64{"ortho_scale": layout.CameraScale},
	})
	if err != nil {
		return objs, fmt.Errorf("camera: %w", err)
	}

	objs.Light, err = host.CreateMeshPrimitive(KindAreaLight, PrimitiveParams{
		Name:     "Studio_Light",
		Location: layout.LightLocation,
		Rotation: TrackRotation(layout.LightLocation, animator.Vec3{}),
		Size: map[string]float64{
			"energy": layout.LightEnergy,
			"size":   layout.LightSize,
			"r":      layout.LightColor.R,
			"g":      layout.LightColor.G,
			"b":      layout.LightColor.B,
		},
	})
	if err != nil {
		return objs, fmt.Errorf("light: %w", err)
	}

	return objs, nil
}

func buildRing(host SceneHost, layout Layout) (Handle, error) {
	ring, err := host.CreateMeshPrimitive(KindTorus, PrimitiveParams{
		Name: "Ring",
		Size: map[string]float64{
			"major_radius": layout.RingMajorRadius,
			"minor_radius": layout.RingMinorRadius,
		},
		Smooth: true,
	})
	if err != nil {
		return "", err
	}
	mat, err := host.CreateMaterial("CircularGradientMaterial", layout.RingPalette.Sample(0))
	if err != nil {
		return "", err
	}
	if err := host.SetMaterialColorStops(mat, layout.RingPalette); err != nil {
		return "", err
	}
	return ring, host.AssignMaterial(ring, mat)
}

func buildArrow(host SceneHost, layout Layout) (Handle, error) {
	// Shaft and head lie along +X so rotation_z points the arrow along the orbit angle.
	alongX := Euler{Y: math.Pi / 2}
	shaft, err := host.CreateMeshPrimitive(KindCylinder, PrimitiveParams{
		Name:     "Arrow",
		Location: animator.Vec3{X: 0.5},
		Rotation: alongX,
		Size:     map[string]float64{"radius": 0.02, "depth": 1},
	})
	if err != nil {
		return "", err
	}
	head, err := host.CreateMeshPrimitive(KindCone, PrimitiveParams{
		Name:     "ArrowHead",
		Location: animator.Vec3{X: 1},
		Rotation: alongX,
		Size:     map[string]float64{"radius1": 0.05, "depth": 0.2},
	})
	if err != nil {
		return "", err
	}
	arrow, err := host.Join(shaft, head)
	if err != nil {
		return "", err
	}
	mat, err := host.CreateMaterial("Arrow_Material", layout.ArrowColor)
	if err != nil {
		return "", err
	}
	return arrow, host.AssignMaterial(arrow, mat)
}

func buildParticle(host SceneHost, layout Layout, params animator.Params) (Handle, Handle, error) {
	particle, err := host.CreateMeshPrimitive(KindIcoSphere, PrimitiveParams{
		Name:   "Particle",
		Size:   map[string]float64{"subdivisions": 2, "radius": 0.05},
		Smooth: true,
	})
	if err != nil {
		return "", "", err
	}
	mat, err := host.CreateMaterial("Particle_Material", layout.ParticleColor)
	if err != nil {
		return "", "", err
	}
	if err := host.AssignMaterial(particle, mat); err != nil {
		return "", "", err
	}

	path, err := host.CreateMeshPrimitive(KindCurve, PrimitiveParams{
		Name: "particle_path",
		Size: map[string]float64{
			"bevel_depth":          layout.CurveBevelDepth,
			"build_frame_start":    float64(params.FrameStart),
			"build_frame_duration": float64(params.FrameCount()),
		},
		Smooth: true,
	})
	if err != nil {
		return "", "", err
	}
	curveMat, err := host.CreateMaterial("Curve_Material", layout.CurveColor)
	if err != nil {
		return "", "", err
	}
	return particle, path, host.AssignMaterial(path, curveMat)
}

// Play drives the animator through the whole timeline, keyframing the arrow
// and particle and extending the path once per frame. It stops between frames
// when ctx is done and returns the number of frames applied.
func Play(ctx context.Context, host Host, objs Objects, params animator.Params) (int, error) {
	seq, err := animator.Animate(params)
	if err != nil {
		return 0, err
	}

	n := 0
	for f := range seq {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if err := host.ApplyPose(objs.Arrow, f.Orbiter, f.Index); err != nil {
			return n, fmt.Errorf("frame %d: arrow pose: %w", f.Index, err)
		}
		if err := host.ApplyPose(objs.Particle, f.Traveler, f.Index); err != nil {
			return n, fmt.Errorf("frame %d: particle pose: %w", f.Index, err)
		}
		if err := host.AppendTrailPoint(objs.Path, f.Trail); err != nil {
			return n, fmt.Errorf("frame %d: trail point: %w", f.Index, err)
		}
		n++
	}
	return n, nil
}
