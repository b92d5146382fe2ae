// ABOUTME: Audio output interface definition
// ABOUTME: Common Device and Line interfaces for playback backends
package output

import (
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/chime/pkg/audio"
)

// ErrLineUnavailable is wrapped by OpenLine failures
var ErrLineUnavailable = errors.New("audio line unavailable")

// Device represents a host audio output device
type Device interface {
	// Supports reports whether a line can be opened for the format
	Supports(format audio.Format) bool

	// OpenLine acquires a line configured for format with a transfer
	// buffer of bufferSize bytes
	OpenLine(format audio.Format, bufferSize int) (Line, error)

	// Close releases device resources
	Close() error
}

// Reserver is implemented by devices whose lines must all share one format.
// Reserve commits the device to format before a line is opened for it and
// fails with an *audio.UnsupportedFormatError when another format holds it.
type Reserver interface {
	Reserve(format audio.Format) error
}

// Line represents an open output line owned by one playback session
type Line interface {
	// Start begins rendering written data
	Start() error

	// Write queues audio bytes (blocks while the line's buffer is full)
	Write(p []byte) (int, error)

	// Drain blocks until all written data has been rendered
	Drain() error

	// Stop halts rendering
	Stop() error

	// Close releases the line
	Close() error
}

// Options configure a device created by New
type Options struct {
	// Volume is the output volume (0-100, default 100)
	Volume int

	// Paced makes the null device consume audio in real time
	Paced bool
}

// New creates a device by backend name: "oto", "portaudio" or "null"
func New(name string, opts Options) (Device, error) {
	switch name {
	case "", "oto":
		return NewOto(OtoConfig{Volume: opts.Volume}), nil
	case "portaudio":
		return NewPortAudio()
	case "null":
		return NewNull(NullConfig{Paced: opts.Paced}), nil
	}
	return nil, fmt.Errorf("unknown output device %q (supported: oto, portaudio, null)", name)
}

// lineUnavailable wraps a backend failure so callers can match ErrLineUnavailable
func lineUnavailable(format audio.Format, err error) error {
	return fmt.Errorf("%w for %s: %v", ErrLineUnavailable, format, err)
}

var (
	errDeviceClosed   = errors.New("device closed")
	errFormatRejected = errors.New("format rejected")
)
