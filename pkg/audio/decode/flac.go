// ABOUTME: FLAC audio decoder
// ABOUTME: Interleaves FLAC frames into 16-bit little-endian PCM using mewkiz/flac
package decode

import (
	"fmt"
	"io"

	"github.com/Resonate-Protocol/chime/pkg/audio"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
)

// FLACStream decodes FLAC frame by frame
type FLACStream struct {
	stream   *flac.Stream
	closer   io.Closer
	format   audio.Format
	bitDepth int
	pending  []byte
	buf      []byte
}

func newFLAC(r io.Reader, closer io.Closer) (Stream, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, &audio.UnsupportedFormatError{Reason: "flac: " + err.Error()}
	}

	info := stream.Info
	if info.NChannels == 0 || info.SampleRate == 0 {
		return nil, &audio.UnsupportedFormatError{Reason: fmt.Sprintf("flac: invalid stream info (%d Hz, %d channels)", info.SampleRate, info.NChannels)}
	}

	return &FLACStream{
		stream:   stream,
		closer:   closer,
		bitDepth: int(info.BitsPerSample),
		format: audio.Format{
			Codec:      "flac",
			Encoding:   audio.EncodingPCMSigned,
			SampleRate: int(info.SampleRate),
			Channels:   int(info.NChannels),
			BitDepth:   16,
		},
	}, nil
}

// Read returns interleaved 16-bit samples, parsing frames as needed
func (s *FLACStream) Read(p []byte) (int, error) {
	for len(s.pending) == 0 {
		fr, err := s.stream.ParseNext()
		if err != nil {
			return 0, err
		}

		buf, err := interleaveFrame(fr, s.format.Channels, s.bitDepth, s.buf)
		if err != nil {
			return 0, err
		}
		s.buf = buf
		s.pending = s.buf
	}

	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// interleaveFrame writes a frame's subframes as interleaved 16-bit samples,
// reusing buf when it is large enough
func interleaveFrame(f *frame.Frame, channels, bitDepth int, buf []byte) ([]byte, error) {
	blockSize := int(f.BlockSize)
	if len(f.Subframes) < channels {
		return nil, fmt.Errorf("flac: frame has %d subframes, stream has %d channels", len(f.Subframes), channels)
	}
	for ch := 0; ch < channels; ch++ {
		if sub := f.Subframes[ch]; sub == nil || len(sub.Samples) < blockSize {
			return nil, fmt.Errorf("flac: subframe %d shorter than block size %d", ch, blockSize)
		}
	}

	need := blockSize * channels * 2
	if cap(buf) < need {
		buf = make([]byte, need)
	}
	buf = buf[:need]

	// FLAC stores samples as signed integers with the stream's bit depth
	for i := 0; i < blockSize; i++ {
		for ch := 0; ch < channels; ch++ {
			sample := audio.ScaleToInt16(f.Subframes[ch].Samples[i], bitDepth)
			putInt16LE(buf[(i*channels+ch)*2:], sample)
		}
	}
	return buf, nil
}

// Format returns the output format
func (s *FLACStream) Format() audio.Format { return s.format }

// Close releases the underlying resource
func (s *FLACStream) Close() error { return s.closer.Close() }
