// ABOUTME: Tests for Ogg Opus header parsing
// ABOUTME: Tests channel count extraction from the OpusHead packet
package decode

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/Resonate-Protocol/chime/pkg/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpusChannels(t *testing.T) {
	for _, channels := range []byte{1, 2, 6} {
		br := bufio.NewReader(bytes.NewReader(buildOggOpusHead(channels)))
		got, err := opusChannels(br)
		require.NoError(t, err)
		assert.Equal(t, int(channels), got)
	}
}

func TestOpusChannelsRejectsZero(t *testing.T) {
	br := bufio.NewReader(bytes.NewReader(buildOggOpusHead(0)))
	_, err := opusChannels(br)
	assert.ErrorIs(t, err, audio.ErrUnsupportedFormat)
}

func TestOpusChannelsTruncated(t *testing.T) {
	page := buildOggOpusHead(2)[:30]
	_, err := opusChannels(bufio.NewReader(bytes.NewReader(page)))
	assert.ErrorIs(t, err, audio.ErrUnsupportedFormat)
}

func TestOpusFormat(t *testing.T) {
	f := opusFormat(2)
	assert.Equal(t, 48000, f.SampleRate)
	assert.Equal(t, 19200, f.BufferSize())
}
