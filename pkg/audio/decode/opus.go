//go:build opus

// ABOUTME: Ogg Opus audio decoder
// ABOUTME: Decodes Ogg Opus files to 16-bit PCM using libopusfile via hraban/opus
package decode

import (
	"bufio"
	"io"

	"github.com/Resonate-Protocol/chime/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// OpusStream decodes an Ogg Opus file
type OpusStream struct {
	stream   *opus.Stream
	closer   io.Closer
	channels int
	pcm      []int16
	pending  []byte
	buf      []byte
}

func newOpus(br *bufio.Reader, closer io.Closer) (Stream, error) {
	channels, err := opusChannels(br)
	if err != nil {
		return nil, err
	}

	stream, err := opus.NewStream(br)
	if err != nil {
		return nil, &audio.UnsupportedFormatError{Reason: "opus: " + err.Error()}
	}

	// 120ms at 48kHz is the largest Opus packet
	frames := 5760
	return &OpusStream{
		stream:   stream,
		closer:   closer,
		channels: channels,
		pcm:      make([]int16, frames*channels),
		buf:      make([]byte, frames*channels*2),
	}, nil
}

// Read returns interleaved 16-bit samples
func (s *OpusStream) Read(p []byte) (int, error) {
	for len(s.pending) == 0 {
		n, err := s.stream.Read(s.pcm)
		if err != nil {
			return 0, err
		}
		samples := n * s.channels
		for i := 0; i < samples; i++ {
			putInt16LE(s.buf[i*2:], s.pcm[i])
		}
		s.pending = s.buf[:samples*2]
	}

	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// Format returns the output format
func (s *OpusStream) Format() audio.Format { return opusFormat(s.channels) }

// Close releases the decoder and the underlying resource
func (s *OpusStream) Close() error {
	s.stream.Close()
	return s.closer.Close()
}
