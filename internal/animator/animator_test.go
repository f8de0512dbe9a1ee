package animator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = 1e-9

func TestComputeFrameEndOfTimeline(t *testing.T) {
	p := DefaultParams()
	f := ComputeFrame(360, p)

	assert.InDelta(t, 8*math.Pi, f.Angle, tol)
	assert.InDelta(t, 0.6, f.Orbiter.Position.X, tol)
	assert.InDelta(t, 0.0, f.Orbiter.Position.Y, tol)
	assert.Equal(t, f.Angle, f.Orbiter.RotationZ)
	assert.Equal(t, 10.0, f.Traveler.Position.X)
	assert.Equal(t, TrailPoint{X: f.Traveler.Position.X, Y: f.Traveler.Position.Y, Z: 0, W: 1}, f.Trail)
}

func TestComputeFrameQuarterTimeline(t *testing.T) {
	f := ComputeFrame(90, DefaultParams())

	assert.InDelta(t, 2*math.Pi, f.Angle, tol)
	assert.InDelta(t, 0.6, f.Orbiter.Position.X, tol)
	assert.InDelta(t, 0.0, f.Orbiter.Position.Y, tol)
	assert.InDelta(t, 2.5, f.Traveler.Position.X, tol)
	assert.InDelta(t, 0.0, f.Traveler.Position.Y, tol)
}

func TestComputeFrameEighthOfRevolution(t *testing.T) {
	// Frame 45 of 360 at rate 4 is a half revolution.
	f := ComputeFrame(45, DefaultParams())
	assert.InDelta(t, -0.6, f.Orbiter.Position.X, tol)
	assert.InDelta(t, 0.0, f.Orbiter.Position.Y, tol)
}

func TestComputeFrameDeterministic(t *testing.T) {
	p := Params{FrameStart: 1, FrameEnd: 97, RateOfProgression: 2.7, MajorRadius: 1.3}
	for frame := p.FrameStart; frame <= p.FrameEnd; frame++ {
		assert.Equal(t, ComputeFrame(frame, p), ComputeFrame(frame, p))
	}
}

func TestRateOfProgressionCountsRevolutions(t *testing.T) {
	for _, rate := range []float64{1, 2, 4, 0.5} {
		p := Params{FrameStart: 1, FrameEnd: 120, RateOfProgression: rate, MajorRadius: 1}
		assert.InDelta(t, 2*math.Pi*rate, Angle(p.FrameEnd, p), tol)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]Params{
		"zero end":        {FrameStart: 1, FrameEnd: 0, RateOfProgression: 1, MajorRadius: 1},
		"end before":      {FrameStart: 10, FrameEnd: 5, RateOfProgression: 1, MajorRadius: 1},
		"end equal":       {FrameStart: 5, FrameEnd: 5, RateOfProgression: 1, MajorRadius: 1},
		"zero start":      {FrameStart: 0, FrameEnd: 5, RateOfProgression: 1, MajorRadius: 1},
		"zero radius":     {FrameStart: 1, FrameEnd: 5, RateOfProgression: 1, MajorRadius: 0},
		"negative radius": {FrameStart: 1, FrameEnd: 5, RateOfProgression: 1, MajorRadius: -2},
		"nan radius":      {FrameStart: 1, FrameEnd: 5, RateOfProgression: 1, MajorRadius: math.NaN()},
		"inf rate":        {FrameStart: 1, FrameEnd: 5, RateOfProgression: math.Inf(1), MajorRadius: 1},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Animate(p)
			assert.ErrorIs(t, err, ErrInvalidParameters)
			_, err = NewRun(p)
			assert.ErrorIs(t, err, ErrInvalidParameters)
		})
	}

	assert.NoError(t, DefaultParams().Validate())
	assert.NoError(t, Params{FrameStart: 1, FrameEnd: 2, RateOfProgression: -3, MajorRadius: 0.1}.Validate())
}

func TestAnimateRestartable(t *testing.T) {
	p := DefaultParams()

	first, err := Frames(p)
	require.NoError(t, err)
	second, err := Frames(p)
	require.NoError(t, err)

	require.Len(t, first, p.FrameEnd-p.FrameStart+1)
	assert.Equal(t, first, second)
	assert.Equal(t, p.FrameStart, first[0].Index)
	assert.Equal(t, p.FrameEnd, first[len(first)-1].Index)

	seq, err := Animate(p)
	require.NoError(t, err)
	var a, b []Frame
	for f := range seq {
		a = append(a, f)
	}
	for f := range seq {
		b = append(b, f)
	}
	assert.Equal(t, a, b)
	assert.Equal(t, first, a)
}

func TestAnimateStopsEarly(t *testing.T) {
	seq, err := Animate(DefaultParams())
	require.NoError(t, err)

	n := 0
	for f := range seq {
		n++
		if f.Index == 10 {
			break
		}
	}
	assert.Equal(t, 10, n)
}

func TestAnimateMonotonic(t *testing.T) {
	p := Params{FrameStart: 3, FrameEnd: 50, RateOfProgression: 1, MajorRadius: 2}
	frames, err := Frames(p)
	require.NoError(t, err)
	for i := 1; i < len(frames); i++ {
		assert.Equal(t, frames[i-1].Index+1, frames[i].Index)
		assert.Greater(t, frames[i].Traveler.Position.X, frames[i-1].Traveler.Position.X)
	}
}

func TestAnimateEndsAtMaxIntFrameEnd(t *testing.T) {
	p := Params{FrameStart: math.MaxInt - 2, FrameEnd: math.MaxInt, RateOfProgression: 1, MajorRadius: 1}
	seq, err := Animate(p)
	require.NoError(t, err)

	var got []int
	for f := range seq {
		got = append(got, f.Index)
		require.LessOrEqual(t, len(got), 3, "sequence must end at frame_end")
	}
	assert.Equal(t, []int{math.MaxInt - 2, math.MaxInt - 1, math.MaxInt}, got)

	frames, err := Frames(p)
	require.NoError(t, err)
	assert.Len(t, frames, 3)
}
