// ABOUTME: Stream interface definition and container sniffing
// ABOUTME: Detects the container from header bytes and dispatches to a decoder
package decode

import (
	"bufio"
	"bytes"
	"errors"
	"io"

	"github.com/Resonate-Protocol/chime/pkg/audio"
)

// Stream is a decoded audio stream: interleaved frames described by Format
type Stream interface {
	io.Reader

	// Format describes the bytes returned by Read
	Format() audio.Format

	// Close releases the stream and the underlying resource
	Close() error
}

// Opener turns a resource reference into a decoded stream
type Opener func(resource string) (Stream, error)

const sniffLen = 12

// NewStream detects the container of rc and returns a decoded stream.
// On error rc is left open for the caller to close.
func NewStream(rc io.ReadCloser) (Stream, error) {
	br := bufio.NewReaderSize(rc, 64*1024)

	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, &audio.IOError{Op: "read", Err: err}
	}

	switch {
	case len(head) == 0:
		return nil, &audio.UnsupportedFormatError{Reason: "empty resource"}
	case len(head) >= 12 && bytes.Equal(head[0:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WAVE")):
		return newWAV(br, rc)
	case bytes.HasPrefix(head, []byte(".snd")):
		return newAU(br, rc)
	case bytes.HasPrefix(head, []byte("fLaC")):
		return newFLAC(br, rc)
	case bytes.HasPrefix(head, []byte("OggS")):
		return newOpus(br, rc)
	case bytes.HasPrefix(head, []byte("ID3")), isMPEGSync(head):
		return newMP3(br, rc)
	}

	return nil, &audio.UnsupportedFormatError{Reason: "unrecognized audio container"}
}

// isMPEGSync reports whether head starts with an MPEG audio frame header
func isMPEGSync(head []byte) bool {
	return len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0
}

// headerError classifies a failure while parsing a container header:
// running out of bytes means the header is malformed, anything else is I/O
func headerError(err error, what string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &audio.UnsupportedFormatError{Reason: "truncated " + what}
	}
	return &audio.IOError{Op: "read", Err: err}
}
