// ABOUTME: Audio type definitions
// ABOUTME: Defines audio formats and the frame math used to size transfer buffers
package audio

import "fmt"

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// Limits on formats a line can be opened for. Headers beyond these are
// treated as malformed.
const (
	MaxSampleRate = 768000
	MaxChannels   = 32
	MaxBitDepth   = 64
	MaxBufferSize = 8 << 20
)

// Encoding identifies how samples are represented in the byte stream
type Encoding string

const (
	EncodingPCMSigned   Encoding = "pcm_signed"
	EncodingPCMUnsigned Encoding = "pcm_unsigned"
	EncodingPCMFloat    Encoding = "pcm_float"
	EncodingULaw        Encoding = "ulaw"
	EncodingALaw        Encoding = "alaw"
)

// Format describes a decoded audio stream
type Format struct {
	Codec      string // Container or codec the stream was decoded from (wav, au, mp3, flac, opus)
	Encoding   Encoding
	SampleRate int
	Channels   int
	BitDepth   int
	BigEndian  bool
}

// FrameSize returns the number of bytes in one frame (one sample per channel)
func (f Format) FrameSize() int {
	if f.Channels <= 0 || f.BitDepth <= 0 {
		return 0
	}
	return f.Channels * ((f.BitDepth + 7) / 8)
}

// FrameRate returns frames per second. For the PCM and G.711 encodings
// handled here one frame carries exactly one sample per channel.
func (f Format) FrameRate() int {
	return f.SampleRate
}

// BufferSize returns the transfer buffer size in bytes: ~100ms of audio
func (f Format) BufferSize() int {
	return f.FrameRate() * f.FrameSize() / 10
}

// String renders the format the way it shows up in logs and the TUI
func (f Format) String() string {
	order := "le"
	if f.BigEndian {
		order = "be"
	}
	return fmt.Sprintf("%s %s %dHz %dch %d-bit %s",
		f.Codec, f.Encoding, f.SampleRate, f.Channels, f.BitDepth, order)
}

// Validate checks the format describes something a line could be opened for
func (f Format) Validate() error {
	switch {
	case f.SampleRate <= 0:
		return &UnsupportedFormatError{Format: f, Reason: "sample rate not specified"}
	case f.Channels <= 0:
		return &UnsupportedFormatError{Format: f, Reason: "channel count not specified"}
	case f.BitDepth <= 0:
		return &UnsupportedFormatError{Format: f, Reason: "bit depth not specified"}
	case f.SampleRate > MaxSampleRate:
		return &UnsupportedFormatError{Format: f, Reason: fmt.Sprintf("sample rate above %d Hz", MaxSampleRate)}
	case f.Channels > MaxChannels:
		return &UnsupportedFormatError{Format: f, Reason: fmt.Sprintf("more than %d channels", MaxChannels)}
	case f.BitDepth > MaxBitDepth:
		return &UnsupportedFormatError{Format: f, Reason: fmt.Sprintf("bit depth above %d", MaxBitDepth)}
	case f.BufferSize() > MaxBufferSize:
		return &UnsupportedFormatError{Format: f, Reason: "transfer buffer too large"}
	case f.BufferSize() <= 0:
		return &UnsupportedFormatError{Format: f, Reason: "frame rate too low for a transfer buffer"}
	}
	return nil
}
