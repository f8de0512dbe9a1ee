// Package scene drives a 3D host application through a small capability
// interface: it assembles the ring, arrow, particle, path, camera and light,
// then plays the animator's frames into the host's keyframe system.
package scene

import (
	"github.com/atlasmap-sc/orbitscene/internal/animator"
	"github.com/atlasmap-sc/orbitscene/pkg/colormap"
)

// Handle identifies an object, curve or material owned by the host.
type Handle string

// Kind names a host primitive.
type Kind string

const (
	KindTorus     Kind = "torus"
	KindCylinder  Kind = "cylinder"
	KindCone      Kind = "cone"
	KindIcoSphere Kind = "ico_sphere"
	KindCurve     Kind = "curve"
	KindCamera    Kind = "camera"
	KindAreaLight Kind = "area_light"
)

// Euler is an XYZ rotation in radians.
type Euler struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// PrimitiveParams describes a primitive to create. Size holds the
// kind-specific dimensions (radius, depth, major_radius, ...).
type PrimitiveParams struct {
	Name     string             `json:"name"`
	Location animator.Vec3      `json:"location"`
	Rotation Euler              `json:"rotation"`
	Size     map[string]float64 `json:"size,omitempty"`
	Smooth   bool               `json:"smooth,omitempty"`
}

// Host is the capability a host application must provide to play an animation.
type Host interface {
	CreateMeshPrimitive(kind Kind, params PrimitiveParams) (Handle, error)
	// ApplyPose records a location/rotation keyframe for object at frame.
	ApplyPose(object Handle, pose animator.Pose, frame int) error
	// SetMaterialColorStops hands the ordered stops to the host's own gradient shading.
	SetMaterialColorStops(material Handle, palette *colormap.Palette) error
	AppendTrailPoint(curve Handle, point animator.TrailPoint) error
}

// SceneHost extends Host with what is needed to assemble the full scene.
type SceneHost interface {
	Host
	CreateMaterial(name string, base colormap.RGBA) (Handle, error)
	AssignMaterial(object, material Handle) error
	// Join merges parts into the first part and returns its handle.
	Join(parts ...Handle) (Handle, error)
	SetBackground(c colormap.RGBA) error
}
