//go:build portaudio

// ABOUTME: PortAudio output implementation
// ABOUTME: Cross-platform blocking output using PortAudio streams
package output

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/Resonate-Protocol/chime/pkg/audio"
	"github.com/gordonklaus/portaudio"
)

// PortAudio output implementation
type PortAudio struct {
	mu          sync.Mutex
	maxChannels int
	terminated  bool
}

// NewPortAudio initializes PortAudio and inspects the default output device
func NewPortAudio() (Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	dev, err := portaudio.DefaultOutputDevice()
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("no default output device: %w", err)
	}

	return &PortAudio{maxChannels: dev.MaxOutputChannels}, nil
}

// Supports accepts little-endian 16-bit PCM within the device's channel count
func (p *PortAudio) Supports(format audio.Format) bool {
	return format.Encoding == audio.EncodingPCMSigned &&
		format.BitDepth == 16 &&
		!format.BigEndian &&
		format.Channels >= 1 &&
		format.Channels <= p.maxChannels &&
		format.SampleRate > 0
}

// OpenLine opens a blocking default output stream sized to bufferSize
func (p *PortAudio) OpenLine(format audio.Format, bufferSize int) (Line, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.terminated {
		return nil, lineUnavailable(format, fmt.Errorf("portaudio terminated"))
	}
	if !p.Supports(format) {
		return nil, lineUnavailable(format, fmt.Errorf("format not supported by portaudio"))
	}

	framesPerBuffer := bufferSize / format.FrameSize()
	if framesPerBuffer <= 0 {
		framesPerBuffer = 1
	}
	buffer := make([]int16, framesPerBuffer*format.Channels)

	stream, err := portaudio.OpenDefaultStream(0, format.Channels, float64(format.SampleRate), framesPerBuffer, buffer)
	if err != nil {
		return nil, lineUnavailable(format, err)
	}

	return &portAudioLine{stream: stream, buffer: buffer}, nil
}

// Close terminates PortAudio
func (p *PortAudio) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.terminated {
		return nil
	}
	p.terminated = true
	return portaudio.Terminate()
}

// portAudioLine accumulates bytes until a full buffer can be written
type portAudioLine struct {
	stream  *portaudio.Stream
	buffer  []int16
	filled  int  // samples in buffer
	odd     byte // carried low byte of a split sample
	hasOdd  bool
	started bool
}

func (l *portAudioLine) Start() error {
	if err := l.stream.Start(); err != nil {
		return fmt.Errorf("failed to start stream: %w", err)
	}
	l.started = true
	return nil
}

func (l *portAudioLine) Write(p []byte) (int, error) {
	total := len(p)
	if l.hasOdd && len(p) > 0 {
		l.push(int16(binary.LittleEndian.Uint16([]byte{l.odd, p[0]})))
		l.hasOdd = false
		p = p[1:]
		if err := l.flushIfFull(); err != nil {
			return total - len(p), err
		}
	}
	for len(p) >= 2 {
		l.push(int16(binary.LittleEndian.Uint16(p)))
		p = p[2:]
		if err := l.flushIfFull(); err != nil {
			return total - len(p), err
		}
	}
	if len(p) == 1 {
		l.odd = p[0]
		l.hasOdd = true
	}
	return total, nil
}

func (l *portAudioLine) push(sample int16) {
	l.buffer[l.filled] = sample
	l.filled++
}

func (l *portAudioLine) flushIfFull() error {
	if l.filled < len(l.buffer) {
		return nil
	}
	l.filled = 0
	return l.stream.Write()
}

// Drain pads the last partial buffer with silence and writes it
func (l *portAudioLine) Drain() error {
	if l.filled == 0 {
		return nil
	}
	for i := l.filled; i < len(l.buffer); i++ {
		l.buffer[i] = 0
	}
	l.filled = 0
	return l.stream.Write()
}

// Stop waits for queued buffers to play out
func (l *portAudioLine) Stop() error {
	if !l.started {
		return nil
	}
	l.started = false
	return l.stream.Stop()
}

func (l *portAudioLine) Close() error {
	return l.stream.Close()
}
