// Package tracefile reads and writes baked timelines as zstd-compressed
// newline-delimited JSON: one header line, then one frame per line.
package tracefile

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/atlasmap-sc/orbitscene/internal/animator"
)

// FormatVersion is written into every header.
const FormatVersion = 1

// Errors
var (
	ErrBadHeader     = errors.New("invalid trace header")
	ErrFrameMismatch = errors.New("trace frames do not match header")
)

// Header is the first line of a trace file.
type Header struct {
	Version int             `json:"version"`
	Scene   string          `json:"scene,omitempty"`
	Params  animator.Params `json:"params"`
	Frames  int             `json:"frames"`
}

// Trace is a decoded trace file.
type Trace struct {
	Header Header
	Frames []animator.Frame
}

// Write encodes a full timeline for params to w.
func Write(w io.Writer, scene string, params animator.Params) error {
	frames, err := animator.Animate(params)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("failed to create zstd encoder: %w", err)
	}

	jw := json.NewEncoder(enc)
	header := Header{
		Version: FormatVersion,
		Scene:   scene,
		Params:  params,
		Frames:  params.FrameCount(),
	}
	if err := jw.Encode(header); err != nil {
		enc.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}
	for f := range frames {
		if err := jw.Encode(f); err != nil {
			enc.Close()
			return fmt.Errorf("failed to write frame %d: %w", f.Index, err)
		}
	}
	return enc.Close()
}

// Read decodes a trace file, checking the header parameters and that the
// frames cover FrameStart..FrameEnd in order.
func Read(r io.Reader) (*Trace, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer dec.Close()

	scanner := bufio.NewScanner(dec)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadHeader, err)
		}
		return nil, fmt.Errorf("%w: empty trace", ErrBadHeader)
	}
	var header Header
	if err := json.Unmarshal(scanner.Bytes(), &header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadHeader, header.Version)
	}
	if err := header.Params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadHeader, err)
	}
	if header.Frames != header.Params.FrameCount() {
		return nil, fmt.Errorf("%w: header declares %d frames for %d..%d",
			ErrFrameMismatch, header.Frames, header.Params.FrameStart, header.Params.FrameEnd)
	}

	trace := &Trace{
		Header: header,
		Frames: make([]animator.Frame, 0, header.Frames),
	}
	want := header.Params.FrameStart
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var f animator.Frame
		if err := json.Unmarshal(line, &f); err != nil {
			return nil, fmt.Errorf("failed to decode frame %d: %w", want, err)
		}
		if f.Index != want {
			return nil, fmt.Errorf("%w: expected frame %d, got %d", ErrFrameMismatch, want, f.Index)
		}
		trace.Frames = append(trace.Frames, f)
		want++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("zstd decompress failed: %w", err)
	}
	if len(trace.Frames) != header.Frames {
		return nil, fmt.Errorf("%w: got %d of %d frames", ErrFrameMismatch, len(trace.Frames), header.Frames)
	}
	return trace, nil
}

// Trail returns the polyline recorded in the trace.
func (t *Trace) Trail() []animator.TrailPoint {
	out := make([]animator.TrailPoint, len(t.Frames))
	for i, f := range t.Frames {
		out[i] = f.Trail
	}
	return out
}
