// ABOUTME: Tests for FLAC frame interleaving
// ABOUTME: Tests sample layout and rejection of malformed frames
package decode

import (
	"encoding/binary"
	"testing"

	"github.com/mewkiz/flac/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrame(blockSize uint16, channels ...[]int32) *frame.Frame {
	f := &frame.Frame{Header: frame.Header{BlockSize: blockSize}}
	for _, samples := range channels {
		f.Subframes = append(f.Subframes, &frame.Subframe{Samples: samples})
	}
	return f
}

func TestInterleaveFrame(t *testing.T) {
	f := testFrame(2, []int32{1, 2}, []int32{-1, -2})

	out, err := interleaveFrame(f, 2, 16, nil)
	require.NoError(t, err)
	require.Len(t, out, 8)

	want := []int16{1, -1, 2, -2}
	for i, w := range want {
		assert.Equal(t, w, int16(binary.LittleEndian.Uint16(out[i*2:])))
	}
}

func TestInterleaveFrameMalformed(t *testing.T) {
	tests := []struct {
		name  string
		frame *frame.Frame
	}{
		{"missing subframe", testFrame(2, []int32{1, 2})},
		{"short subframe", testFrame(4, []int32{1, 2, 3, 4}, []int32{1})},
		{"nil subframe", &frame.Frame{Header: frame.Header{BlockSize: 1}, Subframes: []*frame.Subframe{{Samples: []int32{0}}, nil}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				_, err := interleaveFrame(tt.frame, 2, 16, nil)
				assert.Error(t, err)
			})
		})
	}
}
