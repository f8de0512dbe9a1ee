package tracefile

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasmap-sc/orbitscene/internal/animator"
)

func compress(t *testing.T, lines ...any) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	jw := json.NewEncoder(enc)
	for _, l := range lines {
		require.NoError(t, jw.Encode(l))
	}
	require.NoError(t, enc.Close())
	return buf.Bytes()
}

func TestWriteRead(t *testing.T) {
	p := animator.Params{FrameStart: 1, FrameEnd: 48, RateOfProgression: 2.5, MajorRadius: 0.6}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "orbit", p))

	trace, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, "orbit", trace.Header.Scene)
	assert.Equal(t, p, trace.Header.Params)

	want, err := animator.Frames(p)
	require.NoError(t, err)
	assert.Equal(t, want, trace.Frames)

	trail := trace.Trail()
	require.Len(t, trail, 48)
	assert.Equal(t, want[47].Trail, trail[47])
}

func TestWriteRejectsInvalidParams(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, "", animator.Params{FrameStart: 5, FrameEnd: 5, MajorRadius: 1})
	assert.ErrorIs(t, err, animator.ErrInvalidParameters)
	assert.Zero(t, buf.Len())
}

func TestReadErrors(t *testing.T) {
	p := animator.Params{FrameStart: 1, FrameEnd: 3, RateOfProgression: 1, MajorRadius: 1}
	f1, f2, f3 := animator.ComputeFrame(1, p), animator.ComputeFrame(2, p), animator.ComputeFrame(3, p)
	header := Header{Version: FormatVersion, Params: p, Frames: 3}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", compress(t), ErrBadHeader},
		{"version", compress(t, Header{Version: 99, Params: p, Frames: 3}), ErrBadHeader},
		{"invalidParams", compress(t, Header{Version: FormatVersion, Frames: 1}), animator.ErrInvalidParameters},
		{"headerCount", compress(t, Header{Version: FormatVersion, Params: p, Frames: 2}), ErrFrameMismatch},
		{"truncated", compress(t, header, f1, f2), ErrFrameMismatch},
		{"outOfOrder", compress(t, header, f1, f3, f2), ErrFrameMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(bytes.NewReader(tt.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestReadRejectsUncompressed(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("{\"version\":1}\n")))
	assert.Error(t, err)
}
