//go:build !opus

// ABOUTME: Ogg Opus stub when libopusfile is not available
// ABOUTME: Reports Opus resources as unsupported unless built with -tags opus
package decode

import (
	"bufio"
	"io"

	"github.com/Resonate-Protocol/chime/pkg/audio"
)

func newOpus(br *bufio.Reader, closer io.Closer) (Stream, error) {
	channels, err := opusChannels(br)
	if err != nil {
		return nil, err
	}
	return nil, &audio.UnsupportedFormatError{
		Format: opusFormat(channels),
		Reason: "Opus support not enabled (build with -tags opus)",
	}
}
