// Package animator computes the per-frame poses of the orbiting arrow and the
// traveling particle, and accumulates the particle's trail.
//
// Everything here is a pure function of the frame index and Params; the only
// state is the trail held by a Run.
package animator

import (
	"errors"
	"fmt"
	"iter"
	"math"
)

// TravelSpan is the horizontal distance the traveler covers over the timeline.
const TravelSpan = 10.0

// ErrInvalidParameters is returned for an empty or inverted timeline or a
// non-positive radius.
var ErrInvalidParameters = errors.New("invalid animation parameters")

// Params are the inputs of one animation run. They are never mutated during a run.
type Params struct {
	FrameStart        int     `json:"frame_start" yaml:"frame_start"`
	FrameEnd          int     `json:"frame_end" yaml:"frame_end"`
	RateOfProgression float64 `json:"rate_of_progression" yaml:"rate_of_progression"`
	MajorRadius       float64 `json:"major_radius" yaml:"major_radius"`
}

// DefaultParams returns the reference timeline: 360 frames, four revolutions
// on a 0.6 radius.
func DefaultParams() Params {
	return Params{
		FrameStart:        1,
		FrameEnd:          360,
		RateOfProgression: 4,
		MajorRadius:       0.6,
	}
}

// Validate reports whether p describes a usable timeline.
func (p Params) Validate() error {
	switch {
	case p.FrameEnd == 0:
		return fmt.Errorf("%w: frame_end must be non-zero", ErrInvalidParameters)
	case p.FrameStart < 1:
		return fmt.Errorf("%w: frame_start %d must be >= 1", ErrInvalidParameters, p.FrameStart)
	case p.FrameEnd <= p.FrameStart:
		return fmt.Errorf("%w: frame_end %d must be greater than frame_start %d",
			ErrInvalidParameters, p.FrameEnd, p.FrameStart)
	case !(p.MajorRadius > 0) || math.IsInf(p.MajorRadius, 0):
		return fmt.Errorf("%w: major_radius %g must be positive and finite", ErrInvalidParameters, p.MajorRadius)
	case math.IsNaN(p.RateOfProgression) || math.IsInf(p.RateOfProgression, 0):
		return fmt.Errorf("%w: rate_of_progression must be finite", ErrInvalidParameters)
	}
	return nil
}

// FrameCount returns the number of frames in the timeline.
func (p Params) FrameCount() int {
	return p.FrameEnd - p.FrameStart + 1
}

// prealloc bounds slice capacity hints; long timelines grow on append.
func (p Params) prealloc() int {
	return min(p.FrameCount(), 4096)
}

// Contains reports whether frame lies inside the timeline.
func (p Params) Contains(frame int) bool {
	return frame >= p.FrameStart && frame <= p.FrameEnd
}

// Vec3 is a point in scene space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Pose is the transform of an object at one frame.
type Pose struct {
	Position  Vec3    `json:"position"`
	RotationZ float64 `json:"rotation_z"`
}

// TrailPoint is one homogeneous polyline vertex; W is always 1.
type TrailPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Frame is everything computed for one frame index.
type Frame struct {
	Index    int        `json:"frame"`
	Angle    float64    `json:"angle"`
	Orbiter  Pose       `json:"orbiter"`
	Traveler Pose       `json:"traveler"`
	Trail    TrailPoint `json:"trail"`
}

// Angle returns the orbit angle in radians at frame. At FrameEnd it equals
// 2π·RateOfProgression, so the orbiter completes exactly RateOfProgression
// revolutions over the run.
func Angle(frame int, p Params) float64 {
	return 2 * math.Pi * float64(frame) / float64(p.FrameEnd) * p.RateOfProgression
}

// ComputeFrame returns the poses and trail point for frame. It does not
// validate p; callers that accept external input should call Validate first.
func ComputeFrame(frame int, p Params) Frame {
	angle := Angle(frame, p)
	sin, cos := math.Sin(angle), math.Cos(angle)

	tx := float64(frame) / float64(p.FrameEnd) * TravelSpan
	return Frame{
		Index: frame,
		Angle: angle,
		Orbiter: Pose{
			Position:  Vec3{X: cos * p.MajorRadius, Y: sin * p.MajorRadius},
			RotationZ: angle,
		},
		Traveler: Pose{
			Position: Vec3{X: tx, Y: sin},
		},
		Trail: TrailPoint{X: tx, Y: sin, Z: 0, W: 1},
	}
}

// Animate returns the lazy sequence of frames from FrameStart to FrameEnd
// inclusive. The sequence holds no state and may be ranged over any number of
// times; stopping early simply abandons it.
func Animate(p Params) (iter.Seq[Frame], error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return func(yield func(Frame) bool) {
		for i := range p.FrameCount() {
			if !yield(ComputeFrame(p.FrameStart+i, p)) {
				return
			}
		}
	}, nil
}

// Frames eagerly collects the whole timeline.
func Frames(p Params) ([]Frame, error) {
	seq, err := Animate(p)
	if err != nil {
		return nil, err
	}
	frames := make([]Frame, 0, p.prealloc())
	for f := range seq {
		frames = append(frames, f)
	}
	return frames, nil
}
