// ABOUTME: Test fixtures for decoder tests
// ABOUTME: Builds WAV, AU and Ogg Opus headers in memory
package decode

import (
	"bytes"
	"encoding/binary"
	"io"
)

type wavChunk struct {
	id   string
	body []byte
}

// buildWAV assembles a RIFF/WAVE file with a fmt chunk, optional extra
// chunks placed before the data chunk, and the data chunk
func buildWAV(tag uint16, channels uint16, sampleRate uint32, bits uint16, data []byte, extra ...wavChunk) []byte {
	fmtBody := new(bytes.Buffer)
	blockAlign := channels * ((bits + 7) / 8)
	binary.Write(fmtBody, binary.LittleEndian, tag)
	binary.Write(fmtBody, binary.LittleEndian, channels)
	binary.Write(fmtBody, binary.LittleEndian, sampleRate)
	binary.Write(fmtBody, binary.LittleEndian, sampleRate*uint32(blockAlign))
	binary.Write(fmtBody, binary.LittleEndian, blockAlign)
	binary.Write(fmtBody, binary.LittleEndian, bits)

	chunks := []wavChunk{{"fmt ", fmtBody.Bytes()}}
	chunks = append(chunks, extra...)
	chunks = append(chunks, wavChunk{"data", data})

	body := new(bytes.Buffer)
	body.WriteString("WAVE")
	for _, c := range chunks {
		body.WriteString(c.id)
		binary.Write(body, binary.LittleEndian, uint32(len(c.body)))
		body.Write(c.body)
		if len(c.body)%2 == 1 {
			body.WriteByte(0)
		}
	}

	out := new(bytes.Buffer)
	out.WriteString("RIFF")
	binary.Write(out, binary.LittleEndian, uint32(body.Len()))
	out.Write(body.Bytes())
	return out.Bytes()
}

// buildAU assembles a Sun .snd file with an optional annotation
func buildAU(encoding, sampleRate, channels uint32, annotation []byte, data []byte) []byte {
	out := new(bytes.Buffer)
	out.WriteString(".snd")
	binary.Write(out, binary.BigEndian, uint32(24+len(annotation)))
	binary.Write(out, binary.BigEndian, uint32(len(data)))
	binary.Write(out, binary.BigEndian, encoding)
	binary.Write(out, binary.BigEndian, sampleRate)
	binary.Write(out, binary.BigEndian, channels)
	out.Write(annotation)
	out.Write(data)
	return out.Bytes()
}

// buildOggOpusHead assembles the first Ogg page carrying an OpusHead packet
func buildOggOpusHead(channels byte) []byte {
	packet := new(bytes.Buffer)
	packet.WriteString("OpusHead")
	packet.WriteByte(1)        // version
	packet.WriteByte(channels) // channel count
	binary.Write(packet, binary.LittleEndian, uint16(312))   // pre-skip
	binary.Write(packet, binary.LittleEndian, uint32(48000)) // input rate
	binary.Write(packet, binary.LittleEndian, uint16(0))     // gain
	packet.WriteByte(0)                                      // mapping family
	return buildOggPage(packet.Bytes())
}

// buildOggPage wraps a single small packet in a beginning-of-stream page
func buildOggPage(packet []byte) []byte {
	page := new(bytes.Buffer)
	page.WriteString("OggS")
	page.WriteByte(0)    // version
	page.WriteByte(0x02) // beginning of stream
	page.Write(make([]byte, 8+4+4+4))
	page.WriteByte(1) // one segment
	page.WriteByte(byte(len(packet)))
	page.Write(packet)
	return page.Bytes()
}

// nopCloser tracks whether the decoder closed the resource
type nopCloser struct {
	io.Reader
	closed bool
}

func (c *nopCloser) Close() error {
	c.closed = true
	return nil
}

func newResource(data []byte) *nopCloser {
	return &nopCloser{Reader: bytes.NewReader(data)}
}

// failingReader returns err after yielding its prefix
type failingReader struct {
	prefix []byte
	err    error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.prefix) > 0 {
		n := copy(p, r.prefix)
		r.prefix = r.prefix[n:]
		return n, nil
	}
	return 0, r.err
}

func (r *failingReader) Close() error { return nil }
