// ABOUTME: Null audio output that discards rendered audio
// ABOUTME: Used on headless hosts and in tests; optionally paced in real time
package output

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/chime/pkg/audio"
)

// NullConfig configures the null device
type NullConfig struct {
	// Accept decides which formats are supported (default: any valid format)
	Accept func(audio.Format) bool

	// Paced sleeps for the duration of each write, like real hardware
	Paced bool
}

// Null output implementation
type Null struct {
	config  NullConfig
	written atomic.Int64
	opened  atomic.Int64

	mu     sync.Mutex
	closed bool
}

// NewNull creates a null device
func NewNull(config NullConfig) *Null {
	return &Null{config: config}
}

// Supports consults Accept, falling back to format validation
func (n *Null) Supports(format audio.Format) bool {
	if n.config.Accept != nil {
		return n.config.Accept(format)
	}
	return format.Validate() == nil
}

// OpenLine returns a line that discards its input
func (n *Null) OpenLine(format audio.Format, bufferSize int) (Line, error) {
	n.mu.Lock()
	closed := n.closed
	n.mu.Unlock()

	if closed {
		return nil, lineUnavailable(format, errDeviceClosed)
	}
	if !n.Supports(format) {
		return nil, lineUnavailable(format, errFormatRejected)
	}

	n.opened.Add(1)
	bytesPerSecond := format.FrameRate() * format.FrameSize()
	return &nullLine{device: n, bytesPerSecond: bytesPerSecond}, nil
}

// Close marks the device closed; later OpenLine calls fail
func (n *Null) Close() error {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	return nil
}

// BytesWritten returns the total bytes written to every line
func (n *Null) BytesWritten() int64 {
	return n.written.Load()
}

// LinesOpened returns how many lines have been opened
func (n *Null) LinesOpened() int64 {
	return n.opened.Load()
}

type nullLine struct {
	device         *Null
	bytesPerSecond int
}

func (l *nullLine) Start() error { return nil }

func (l *nullLine) Write(p []byte) (int, error) {
	if l.device.config.Paced && l.bytesPerSecond > 0 {
		time.Sleep(time.Duration(len(p)) * time.Second / time.Duration(l.bytesPerSecond))
	}
	l.device.written.Add(int64(len(p)))
	return len(p), nil
}

func (l *nullLine) Drain() error { return nil }
func (l *nullLine) Stop() error  { return nil }
func (l *nullLine) Close() error { return nil }
