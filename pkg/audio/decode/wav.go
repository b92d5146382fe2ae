// ABOUTME: WAV (RIFF/WAVE) decoder
// ABOUTME: Parses fmt/data chunks and streams PCM, float or expanded G.711 data
package decode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/chime/pkg/audio"
)

// WAVE format tags
const (
	wavFormatPCM        = 0x0001
	wavFormatIEEEFloat  = 0x0003
	wavFormatALaw       = 0x0006
	wavFormatMULaw      = 0x0007
	wavFormatExtensible = 0xFFFE
)

// wavUnknownSize marks a data chunk written by a streaming encoder
const wavUnknownSize = 0xFFFFFFFF

type wavFmt struct {
	tag           uint16
	channels      uint16
	sampleRate    uint32
	bitsPerSample uint16
}

func newWAV(r io.Reader, closer io.Closer) (Stream, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, headerError(err, "RIFF header")
	}

	var format *wavFmt
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if format == nil {
				return nil, headerError(err, "WAV header: no fmt chunk")
			}
			return nil, headerError(err, "WAV header: no data chunk")
		}
		id := string(hdr[0:4])
		size := binary.LittleEndian.Uint32(hdr[4:8])

		switch id {
		case "fmt ":
			f, err := readWAVFmt(r, size)
			if err != nil {
				return nil, err
			}
			format = f

		case "data":
			if format == nil {
				return nil, &audio.UnsupportedFormatError{Reason: "WAV data chunk before fmt chunk"}
			}
			var data io.Reader = r
			if size != wavUnknownSize {
				data = io.LimitReader(r, int64(size))
			}
			return wavStream(format, data, closer)

		default:
			// Chunks are word aligned
			skip := int64(size) + int64(size&1)
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return nil, headerError(err, "WAV "+id+" chunk")
			}
		}
	}
}

func readWAVFmt(r io.Reader, size uint32) (*wavFmt, error) {
	if size < 16 {
		return nil, &audio.UnsupportedFormatError{Reason: fmt.Sprintf("WAV fmt chunk too small (%d bytes)", size)}
	}
	body := make([]byte, size+size&1)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, headerError(err, "WAV fmt chunk")
	}

	f := &wavFmt{
		tag:           binary.LittleEndian.Uint16(body[0:2]),
		channels:      binary.LittleEndian.Uint16(body[2:4]),
		sampleRate:    binary.LittleEndian.Uint32(body[4:8]),
		bitsPerSample: binary.LittleEndian.Uint16(body[14:16]),
	}

	// WAVE_FORMAT_EXTENSIBLE carries the real tag in the first two bytes
	// of the sub-format GUID
	if f.tag == wavFormatExtensible {
		if size < 40 {
			return nil, &audio.UnsupportedFormatError{Reason: "WAV extensible fmt chunk too small"}
		}
		f.tag = binary.LittleEndian.Uint16(body[24:26])
	}

	return f, nil
}

func wavStream(f *wavFmt, data io.Reader, closer io.Closer) (Stream, error) {
	format := audio.Format{
		Codec:      "wav",
		SampleRate: int(f.sampleRate),
		Channels:   int(f.channels),
		BitDepth:   int(f.bitsPerSample),
	}

	switch f.tag {
	case wavFormatPCM:
		format.Encoding = audio.EncodingPCMSigned
		if f.bitsPerSample <= 8 {
			format.Encoding = audio.EncodingPCMUnsigned
		}
		return checked(&pcmStream{r: data, closer: closer, format: format})

	case wavFormatIEEEFloat:
		format.Encoding = audio.EncodingPCMFloat
		return checked(&pcmStream{r: data, closer: closer, format: format})

	case wavFormatMULaw:
		return checked(&pcmStream{
			r:      newTranscoder(data, 1, 2, ulawTo16),
			closer: closer,
			format: g711Format("wav", int(f.sampleRate), int(f.channels)),
		})

	case wavFormatALaw:
		return checked(&pcmStream{
			r:      newTranscoder(data, 1, 2, alawTo16),
			closer: closer,
			format: g711Format("wav", int(f.sampleRate), int(f.channels)),
		})
	}

	return nil, &audio.UnsupportedFormatError{
		Format: format,
		Reason: fmt.Sprintf("WAV format tag 0x%04X", f.tag),
	}
}
