// ABOUTME: Raw PCM stream plumbing shared by the container decoders
// ABOUTME: Passthrough streams and per-sample transcoding readers
package decode

import (
	"errors"
	"io"

	"github.com/Resonate-Protocol/chime/pkg/audio"
)

// pcmStream passes decoded bytes straight through
type pcmStream struct {
	r      io.Reader
	closer io.Closer
	format audio.Format
}

func (s *pcmStream) Read(p []byte) (int, error) { return s.r.Read(p) }
func (s *pcmStream) Format() audio.Format       { return s.format }
func (s *pcmStream) Close() error               { return s.closer.Close() }

// checked rejects streams whose header describes a format no line can carry
func checked(s *pcmStream) (Stream, error) {
	if err := s.format.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// transcoder converts fixed-size input samples into fixed-size output
// samples (byte-order swaps, G.711 expansion, sign flips)
type transcoder struct {
	r       io.Reader
	inSize  int
	outSize int
	conv    func(dst, src []byte)
	in      []byte
	out     []byte
	pending []byte
	err     error
}

const transcodeSamples = 2048

func newTranscoder(r io.Reader, inSize, outSize int, conv func(dst, src []byte)) *transcoder {
	return &transcoder{
		r:       r,
		inSize:  inSize,
		outSize: outSize,
		conv:    conv,
		in:      make([]byte, transcodeSamples*inSize),
		out:     make([]byte, transcodeSamples*outSize),
	}
}

func (t *transcoder) Read(p []byte) (int, error) {
	for len(t.pending) == 0 {
		if t.err != nil {
			return 0, t.err
		}
		t.fill()
	}
	n := copy(p, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

func (t *transcoder) fill() {
	n, err := io.ReadFull(t.r, t.in)
	samples := n / t.inSize
	for i := 0; i < samples; i++ {
		t.conv(t.out[i*t.outSize:], t.in[i*t.inSize:])
	}
	t.pending = t.out[:samples*t.outSize]

	if err != nil {
		// A trailing partial sample is dropped
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		t.err = err
	}
}

// Sample converters

func swap16(dst, src []byte) {
	dst[0], dst[1] = src[1], src[0]
}

func swap24(dst, src []byte) {
	dst[0], dst[1], dst[2] = src[2], src[1], src[0]
}

func swap32(dst, src []byte) {
	dst[0], dst[1], dst[2], dst[3] = src[3], src[2], src[1], src[0]
}

func signedToUnsigned8(dst, src []byte) {
	dst[0] = src[0] ^ 0x80
}

func ulawTo16(dst, src []byte) {
	putInt16LE(dst, audio.ULawToInt16(src[0]))
}

func alawTo16(dst, src []byte) {
	putInt16LE(dst, audio.ALawToInt16(src[0]))
}

func putInt16LE(dst []byte, v int16) {
	dst[0] = byte(v)
	dst[1] = byte(uint16(v) >> 8)
}

// g711Format is the format of a G.711 stream after expansion
func g711Format(codec string, sampleRate, channels int) audio.Format {
	return audio.Format{
		Codec:      codec,
		Encoding:   audio.EncodingPCMSigned,
		SampleRate: sampleRate,
		Channels:   channels,
		BitDepth:   16,
	}
}
