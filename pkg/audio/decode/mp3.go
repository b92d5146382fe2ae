// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes MP3 to 16-bit little-endian stereo PCM using go-mp3
package decode

import (
	"io"

	"github.com/Resonate-Protocol/chime/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
)

// MP3 decoder always outputs 16-bit stereo
const (
	mp3Channels = 2
	mp3BitDepth = 16
)

func newMP3(r io.Reader, closer io.Closer) (Stream, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, &audio.UnsupportedFormatError{Reason: "mp3: " + err.Error()}
	}

	return &pcmStream{
		r:      decoder,
		closer: closer,
		format: audio.Format{
			Codec:      "mp3",
			Encoding:   audio.EncodingPCMSigned,
			SampleRate: decoder.SampleRate(),
			Channels:   mp3Channels,
			BitDepth:   mp3BitDepth,
		},
	}, nil
}
