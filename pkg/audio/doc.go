// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, frame math, error types and sample conversions
// Package audio provides fundamental audio types shared by the decoders,
// the output devices and the sound player.
//
// This package defines:
//   - Format: Describes a decoded stream (codec, encoding, rate, channels, depth)
//   - UnsupportedFormatError / IOError: the two errors a play request can fail with
//
// It also provides sample conversions used while normalizing decoded data:
//   - 24-bit → 16-bit down-conversion
//   - G.711 µ-law / A-law expansion to 16-bit linear PCM
//
// Example:
//
//	format := audio.Format{
//	    Codec:      "wav",
//	    Encoding:   audio.EncodingPCMSigned,
//	    SampleRate: 44100,
//	    Channels:   2,
//	    BitDepth:   16,
//	}
//
//	// ~100ms of audio: 44100 * 4 / 10 = 17640 bytes
//	size := format.BufferSize()
package audio
