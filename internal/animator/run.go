package animator

// Run steps through one timeline and owns its trail. A Run must not be shared
// between goroutines; animate independent objects with one Run each.
type Run struct {
	params Params
	next   int
	done   bool
	trail  []TrailPoint
}

// NewRun validates p and returns a Run positioned before FrameStart.
func NewRun(p Params) (*Run, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Run{
		params: p,
		next:   p.FrameStart,
		trail:  make([]TrailPoint, 0, p.prealloc()),
	}, nil
}

// Params returns the run's parameters.
func (r *Run) Params() Params {
	return r.params
}

// Next computes the next frame and appends its trail point. It returns false
// once FrameEnd has been produced.
func (r *Run) Next() (Frame, bool) {
	if r.done {
		return Frame{}, false
	}
	f := ComputeFrame(r.next, r.params)
	r.trail = append(r.trail, f.Trail)
	if r.next == r.params.FrameEnd {
		r.done = true
	} else {
		r.next++
	}
	return f, true
}

// Done reports whether the terminal frame has been produced.
func (r *Run) Done() bool {
	return r.done
}

// Len returns the number of frames animated so far, which is also the trail length.
func (r *Run) Len() int {
	return len(r.trail)
}

// Trail returns a copy of the polyline accumulated so far.
func (r *Run) Trail() []TrailPoint {
	out := make([]TrailPoint, len(r.trail))
	copy(out, r.trail)
	return out
}

// TrailUpTo returns the trail as it stands after frame has been animated,
// computed without a Run. Frames before FrameStart yield an empty trail and
// frames past FrameEnd yield the full one.
func TrailUpTo(p Params, frame int) ([]TrailPoint, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if frame > p.FrameEnd {
		frame = p.FrameEnd
	}
	if frame < p.FrameStart {
		return []TrailPoint{}, nil
	}
	n := frame - p.FrameStart + 1
	out := make([]TrailPoint, 0, min(n, p.prealloc()))
	for i := range n {
		out = append(out, ComputeFrame(p.FrameStart+i, p).Trail)
	}
	return out, nil
}
