// ABOUTME: Audio decoder package for multiple container support
// ABOUTME: Provides the Stream interface and decoders for WAV, AU, MP3, FLAC, Opus
// Package decode opens audio resources and turns them into byte streams an
// output line can render.
//
// Supports: WAV (PCM, float, G.711), AU (Sun/NeXT), MP3, FLAC and, when
// built with -tags opus, Ogg Opus.
//
// The container is detected from the header bytes rather than the file
// extension. Every decoder exposes the same Stream interface: an io.Reader
// of interleaved little-endian frames described by Format().
//
// Example:
//
//	stream, err := decode.Open("/usr/share/sounds/alert.wav")
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//	fmt.Println(stream.Format().BufferSize())
package decode
