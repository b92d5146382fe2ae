// ABOUTME: Ogg Opus identification header parsing
// ABOUTME: Reads the channel count from the OpusHead packet on the first Ogg page
package decode

import (
	"bufio"
	"bytes"

	"github.com/Resonate-Protocol/chime/pkg/audio"
)

// Opus always decodes at 48kHz
const opusSampleRate = 48000

const oggPageHeaderSize = 27

// opusChannels peeks the first Ogg page and returns the OpusHead channel count
func opusChannels(br *bufio.Reader) (int, error) {
	hdr, err := br.Peek(oggPageHeaderSize)
	if err != nil {
		return 0, headerError(err, "Ogg page header")
	}
	segments := int(hdr[26])

	// OpusHead: magic(8) version(1) channels(1) ...
	packetStart := oggPageHeaderSize + segments
	page, err := br.Peek(packetStart + 10)
	if err != nil {
		return 0, headerError(err, "OpusHead packet")
	}
	packet := page[packetStart:]
	if !bytes.HasPrefix(packet, []byte("OpusHead")) {
		return 0, &audio.UnsupportedFormatError{Reason: "Ogg stream is not Opus"}
	}

	channels := int(packet[9])
	if channels == 0 {
		return 0, &audio.UnsupportedFormatError{Reason: "OpusHead with zero channels"}
	}
	return channels, nil
}

func opusFormat(channels int) audio.Format {
	return audio.Format{
		Codec:      "opus",
		Encoding:   audio.EncodingPCMSigned,
		SampleRate: opusSampleRate,
		Channels:   channels,
		BitDepth:   16,
	}
}
