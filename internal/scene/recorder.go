package scene

import (
	"errors"
	"fmt"

	"github.com/atlasmap-sc/orbitscene/internal/animator"
	"github.com/atlasmap-sc/orbitscene/pkg/colormap"
)

// ErrUnknownHandle is returned by Recorder for handles it did not create.
var ErrUnknownHandle = errors.New("unknown handle")

// RecordedObject is one primitive created on a Recorder.
type RecordedObject struct {
	Handle   Handle          `json:"handle"`
	Kind     Kind            `json:"kind"`
	Params   PrimitiveParams `json:"params"`
	Material Handle          `json:"material,omitempty"`
	JoinedTo Handle          `json:"joined_to,omitempty"`
}

// RecordedMaterial is one material created on a Recorder.
type RecordedMaterial struct {
	Handle Handle               `json:"handle"`
	Name   string               `json:"name"`
	Base   colormap.RGBA        `json:"base"`
	Stops  []colormap.ColorStop `json:"stops,omitempty"`
}

// Keyframe is one recorded ApplyPose call.
type Keyframe struct {
	Object Handle        `json:"object"`
	Frame  int           `json:"frame"`
	Pose   animator.Pose `json:"pose"`
}

// Document is the full record of a scene build and playback.
type Document struct {
	Background colormap.RGBA                    `json:"background"`
	Objects    []RecordedObject                 `json:"objects"`
	Materials  []RecordedMaterial               `json:"materials"`
	Keyframes  []Keyframe                       `json:"keyframes"`
	Curves     map[Handle][]animator.TrailPoint `json:"curves"`
}

// Recorder is an in-memory SceneHost that records every call. It is not safe
// for concurrent use.
type Recorder struct {
	doc       Document
	objects   map[Handle]int
	materials map[Handle]int
	seq       int
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		doc: Document{
			Objects:   []RecordedObject{},
			Materials: []RecordedMaterial{},
			Keyframes: []Keyframe{},
			Curves:    make(map[Handle][]animator.TrailPoint),
		},
		objects:   make(map[Handle]int),
		materials: make(map[Handle]int),
	}
}

func (r *Recorder) nextHandle(prefix string) Handle {
	r.seq++
	return Handle(fmt.Sprintf("%s.%03d", prefix, r.seq))
}

// CreateMeshPrimitive implements Host.
func (r *Recorder) CreateMeshPrimitive(kind Kind, params PrimitiveParams) (Handle, error) {
	h := r.nextHandle(string(kind))
	r.objects[h] = len(r.doc.Objects)
	r.doc.Objects = append(r.doc.Objects, RecordedObject{Handle: h, Kind: kind, Params: params})
	if kind == KindCurve {
		r.doc.Curves[h] = []animator.TrailPoint{}
	}
	return h, nil
}

// ApplyPose implements Host.
func (r *Recorder) ApplyPose(object Handle, pose animator.Pose, frame int) error {
	if _, ok := r.objects[object]; !ok {
		return fmt.Errorf("apply pose: %w: %s", ErrUnknownHandle, object)
	}
	r.doc.Keyframes = append(r.doc.Keyframes, Keyframe{Object: object, Frame: frame, Pose: pose})
	return nil
}

// SetMaterialColorStops implements Host.
func (r *Recorder) SetMaterialColorStops(material Handle, palette *colormap.Palette) error {
	i, ok := r.materials[material]
	if !ok {
		return fmt.Errorf("set color stops: %w: %s", ErrUnknownHandle, material)
	}
	r.doc.Materials[i].Stops = palette.Stops()
	return nil
}

// AppendTrailPoint implements Host.
func (r *Recorder) AppendTrailPoint(curve Handle, point animator.TrailPoint) error {
	pts, ok := r.doc.Curves[curve]
	if !ok {
		return fmt.Errorf("append trail point: %w: %s", ErrUnknownHandle, curve)
	}
	r.doc.Curves[curve] = append(pts, point)
	return nil
}

// CreateMaterial implements SceneHost.
func (r *Recorder) CreateMaterial(name string, base colormap.RGBA) (Handle, error) {
	h := r.nextHandle("material")
	r.materials[h] = len(r.doc.Materials)
	r.doc.Materials = append(r.doc.Materials, RecordedMaterial{Handle: h, Name: name, Base: base})
	return h, nil
}

// AssignMaterial implements SceneHost.
func (r *Recorder) AssignMaterial(object, material Handle) error {
	i, ok := r.objects[object]
	if !ok {
		return fmt.Errorf("assign material: %w: %s", ErrUnknownHandle, object)
	}
	if _, ok := r.materials[material]; !ok {
		return fmt.Errorf("assign material: %w: %s", ErrUnknownHandle, material)
	}
	r.doc.Objects[i].Material = material
	return nil
}

// Join implements SceneHost.
func (r *Recorder) Join(parts ...Handle) (Handle, error) {
	if len(parts) == 0 {
		return "", errors.New("join: no parts")
	}
	for _, p := range parts {
		if _, ok := r.objects[p]; !ok {
			return "", fmt.Errorf("join: %w: %s", ErrUnknownHandle, p)
		}
	}
	for _, p := range parts[1:] {
		r.doc.Objects[r.objects[p]].JoinedTo = parts[0]
	}
	return parts[0], nil
}

// SetBackground implements SceneHost.
func (r *Recorder) SetBackground(c colormap.RGBA) error {
	r.doc.Background = c
	return nil
}

// Document returns the recorded calls.
func (r *Recorder) Document() *Document {
	return &r.doc
}

// Keyframes returns the keyframes recorded for object, in frame order.
func (r *Recorder) Keyframes(object Handle) []Keyframe {
	var out []Keyframe
	for _, k := range r.doc.Keyframes {
		if k.Object == object {
			out = append(out, k)
		}
	}
	return out
}

// Curve returns the points appended to curve.
func (r *Recorder) Curve(curve Handle) []animator.TrailPoint {
	return r.doc.Curves[curve]
}
