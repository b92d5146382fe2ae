// ABOUTME: AU (Sun/NeXT .snd) decoder
// ABOUTME: Normalizes big-endian and signed 8-bit samples for host output lines
package decode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/chime/pkg/audio"
)

// AU encodings
const (
	auULaw     = 1
	auLinear8  = 2
	auLinear16 = 3
	auLinear24 = 4
	auLinear32 = 5
	auFloat    = 6
	auALaw     = 27
)

const (
	auHeaderSize  = 24
	auUnknownSize = 0xFFFFFFFF
)

func newAU(r io.Reader, closer io.Closer) (Stream, error) {
	var hdr [auHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, headerError(err, "AU header")
	}

	offset := binary.BigEndian.Uint32(hdr[4:8])
	size := binary.BigEndian.Uint32(hdr[8:12])
	encoding := binary.BigEndian.Uint32(hdr[12:16])
	sampleRate := int(binary.BigEndian.Uint32(hdr[16:20]))
	channels := int(binary.BigEndian.Uint32(hdr[20:24]))

	if offset < auHeaderSize {
		return nil, &audio.UnsupportedFormatError{Reason: fmt.Sprintf("AU data offset %d inside header", offset)}
	}
	// Skip the annotation field
	if _, err := io.CopyN(io.Discard, r, int64(offset-auHeaderSize)); err != nil {
		return nil, headerError(err, "AU annotation")
	}

	var data io.Reader = r
	if size != auUnknownSize {
		data = io.LimitReader(r, int64(size))
	}

	format := audio.Format{
		Codec:      "au",
		Encoding:   audio.EncodingPCMSigned,
		SampleRate: sampleRate,
		Channels:   channels,
	}

	var conv io.Reader
	switch encoding {
	case auULaw:
		return checked(&pcmStream{r: newTranscoder(data, 1, 2, ulawTo16), closer: closer, format: g711Format("au", sampleRate, channels)})
	case auALaw:
		return checked(&pcmStream{r: newTranscoder(data, 1, 2, alawTo16), closer: closer, format: g711Format("au", sampleRate, channels)})
	case auLinear8:
		format.Encoding = audio.EncodingPCMUnsigned
		format.BitDepth = 8
		conv = newTranscoder(data, 1, 1, signedToUnsigned8)
	case auLinear16:
		format.BitDepth = 16
		conv = newTranscoder(data, 2, 2, swap16)
	case auLinear24:
		format.BitDepth = 24
		conv = newTranscoder(data, 3, 3, swap24)
	case auLinear32:
		format.BitDepth = 32
		conv = newTranscoder(data, 4, 4, swap32)
	case auFloat:
		format.Encoding = audio.EncodingPCMFloat
		format.BitDepth = 32
		conv = newTranscoder(data, 4, 4, swap32)
	default:
		return nil, &audio.UnsupportedFormatError{Reason: fmt.Sprintf("AU encoding %d", encoding)}
	}

	return checked(&pcmStream{r: conv, closer: closer, format: format})
}
