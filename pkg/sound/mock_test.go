// ABOUTME: Test doubles for the sound player
// ABOUTME: Recording output device and in-memory decoded streams
package sound

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/Resonate-Protocol/chime/pkg/audio"
	"github.com/Resonate-Protocol/chime/pkg/audio/output"
)

var cdFormat = audio.Format{
	Codec:      "wav",
	Encoding:   audio.EncodingPCMSigned,
	SampleRate: 44100,
	Channels:   2,
	BitDepth:   16,
}

// recorder keeps an ordered log of line operations
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) count(call string) int {
	n := 0
	for _, c := range r.snapshot() {
		if c == call {
			n++
		}
	}
	return n
}

// mockDevice supports formats accepted by supports and records every line call
type mockDevice struct {
	rec      *recorder
	supports func(audio.Format) bool
	openErr  error
	startErr error

	// writeGate, when set, blocks every Write until it is closed
	writeGate chan struct{}

	mu          sync.Mutex
	bufferSizes []int
	written     bytes.Buffer
	opened      atomic.Int32
}

func newMockDevice() *mockDevice {
	return &mockDevice{rec: &recorder{}}
}

func (d *mockDevice) Supports(format audio.Format) bool {
	if d.supports != nil {
		return d.supports(format)
	}
	return format.Encoding == audio.EncodingPCMSigned && format.BitDepth == 16
}

func (d *mockDevice) OpenLine(format audio.Format, bufferSize int) (output.Line, error) {
	d.rec.add("open")
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.opened.Add(1)
	d.mu.Lock()
	d.bufferSizes = append(d.bufferSizes, bufferSize)
	d.mu.Unlock()
	return &mockLine{device: d}, nil
}

func (d *mockDevice) Close() error { return nil }

func (d *mockDevice) bytesWritten() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.written.Len()
}

type mockLine struct {
	device *mockDevice
}

func (l *mockLine) Start() error {
	l.device.rec.add("start")
	return l.device.startErr
}

func (l *mockLine) Write(p []byte) (int, error) {
	if l.device.writeGate != nil {
		<-l.device.writeGate
	}
	l.device.rec.add("write")
	l.device.mu.Lock()
	l.device.written.Write(p)
	l.device.mu.Unlock()
	return len(p), nil
}

func (l *mockLine) Drain() error {
	l.device.rec.add("drain")
	return nil
}

func (l *mockLine) Stop() error {
	l.device.rec.add("stop")
	return nil
}

func (l *mockLine) Close() error {
	l.device.rec.add("close")
	return nil
}

// memStream is a decoded stream backed by a reader
type memStream struct {
	io.Reader
	format audio.Format
	closed atomic.Bool
}

func newMemStream(format audio.Format, data []byte) *memStream {
	return &memStream{Reader: bytes.NewReader(data), format: format}
}

func (s *memStream) Format() audio.Format { return s.format }

func (s *memStream) Close() error {
	s.closed.Store(true)
	return nil
}

// brokenReader returns data once and then fails
type brokenReader struct {
	data []byte
	done bool
}

var errDiskGone = errors.New("disk gone")

func (r *brokenReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, errDiskGone
	}
	r.done = true
	return copy(p, r.data), nil
}

// claimingDevice commits to the first reserved format, like a device whose
// lines share one hardware stream
type claimingDevice struct {
	*mockDevice

	claimMu sync.Mutex
	claimed *audio.Format
}

func (d *claimingDevice) Reserve(format audio.Format) error {
	d.claimMu.Lock()
	defer d.claimMu.Unlock()

	if d.claimed == nil {
		d.claimed = &format
		return nil
	}
	if d.claimed.SampleRate != format.SampleRate || d.claimed.Channels != format.Channels {
		return &audio.UnsupportedFormatError{Format: format, Reason: "device claimed for " + d.claimed.String()}
	}
	return nil
}
