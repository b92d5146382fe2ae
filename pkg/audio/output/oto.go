// ABOUTME: Oto-based audio output implementation
// ABOUTME: Feeds one oto player per line through a pipe, with software volume
package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Resonate-Protocol/chime/pkg/audio"
	"github.com/ebitengine/oto/v3"
	"github.com/sirupsen/logrus"
)

// drainPoll is how often Drain checks whether the player has gone quiet
const drainPoll = 10 * time.Millisecond

// OtoConfig configures the oto device
type OtoConfig struct {
	// Volume is the per-line volume (0-100, default 100)
	Volume int
}

// Oto output implementation using oto library.
//
// oto only allows one context per process, and the context fixes the
// sample rate, channel count and sample format for every player. The
// first reserved format claims the device; later formats must match it.
type Oto struct {
	config     OtoConfig
	newContext func(*oto.NewContextOptions) (*oto.Context, chan struct{}, error)

	mu        sync.Mutex
	otoCtx    *oto.Context
	claimed   bool
	format    audio.Format
	otoFmt    oto.Format
	suspended bool
}

// NewOto creates a new Oto output
func NewOto(config OtoConfig) *Oto {
	if config.Volume <= 0 || config.Volume > 100 {
		config.Volume = 100
	}
	return &Oto{config: config, newContext: oto.NewContext}
}

// otoFormat maps a stream format to an oto sample format
func otoFormat(f audio.Format) (oto.Format, bool) {
	if f.BigEndian || f.Channels < 1 || f.Channels > 2 || f.SampleRate <= 0 {
		return 0, false
	}
	switch {
	case f.Encoding == audio.EncodingPCMSigned && f.BitDepth == 16:
		return oto.FormatSignedInt16LE, true
	case f.Encoding == audio.EncodingPCMUnsigned && f.BitDepth == 8:
		return oto.FormatUnsignedInt8, true
	case f.Encoding == audio.EncodingPCMFloat && f.BitDepth == 32:
		return oto.FormatFloat32LE, true
	}
	return 0, false
}

// Supports reports whether oto can render the format
func (o *Oto) Supports(format audio.Format) bool {
	of, ok := otoFormat(format)
	if !ok {
		return false
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	return o.matches(format, of)
}

// Reserve claims the device for format. The first call fixes the format
// the context will be created with.
func (o *Oto) Reserve(format audio.Format) error {
	of, ok := otoFormat(format)
	if !ok {
		return &audio.UnsupportedFormatError{Format: format, Reason: "format not supported by oto"}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.matches(format, of) {
		return &audio.UnsupportedFormatError{Format: format, Reason: "oto output already claimed for " + o.format.String()}
	}
	o.claim(format, of)
	return nil
}

// matches reports whether a line for format can share the device. Callers hold mu.
func (o *Oto) matches(format audio.Format, of oto.Format) bool {
	if !o.claimed {
		return true
	}
	return of == o.otoFmt &&
		format.SampleRate == o.format.SampleRate &&
		format.Channels == o.format.Channels
}

func (o *Oto) claim(format audio.Format, of oto.Format) {
	if o.claimed {
		return
	}
	o.claimed = true
	o.format = format
	o.otoFmt = of
}

// ensureContext creates the process-wide oto context on first use
func (o *Oto) ensureContext(format audio.Format, of oto.Format) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.matches(format, of) {
		return fmt.Errorf("oto output already claimed for %s", o.format)
	}
	o.claim(format, of)

	if o.otoCtx != nil {
		if o.suspended {
			if err := o.otoCtx.Resume(); err != nil {
				return fmt.Errorf("failed to resume oto context: %w", err)
			}
			o.suspended = false
		}
		return nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   o.format.SampleRate,
		ChannelCount: o.format.Channels,
		Format:       o.otoFmt,
	}

	ctx, readyChan, err := o.newContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	o.otoCtx = ctx

	logrus.WithFields(logrus.Fields{
		"function":    "ensureContext",
		"sample_rate": o.format.SampleRate,
		"channels":    o.format.Channels,
	}).Info("Audio output initialized")

	return nil
}

// OpenLine creates an oto player fed by a pipe
func (o *Oto) OpenLine(format audio.Format, bufferSize int) (Line, error) {
	of, ok := otoFormat(format)
	if !ok {
		return nil, lineUnavailable(format, fmt.Errorf("format not supported by oto"))
	}
	if err := o.ensureContext(format, of); err != nil {
		return nil, lineUnavailable(format, err)
	}

	pr, pw := io.Pipe()

	o.mu.Lock()
	player := o.otoCtx.NewPlayer(pr)
	o.mu.Unlock()

	player.SetBufferSize(bufferSize)
	player.SetVolume(float64(o.config.Volume) / 100.0)

	return &otoLine{
		player: player,
		pr:     pr,
		pw:     pw,
	}, nil
}

// Close suspends the oto context (oto cannot tear it down)
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.otoCtx == nil || o.suspended {
		return nil
	}
	o.suspended = true
	return o.otoCtx.Suspend()
}

// otoLine is one oto player reading from a pipe
type otoLine struct {
	player    *oto.Player
	pr        *io.PipeReader
	pw        *io.PipeWriter
	closeOnce sync.Once
}

func (l *otoLine) Start() error {
	l.player.Play()
	return nil
}

// Write blocks until the player has pulled the bytes from the pipe
func (l *otoLine) Write(p []byte) (int, error) {
	n, err := l.pw.Write(p)
	if err != nil {
		return n, fmt.Errorf("pipe write failed: %w", err)
	}
	return n, nil
}

// Drain ends the input and waits for the player to finish its buffer
func (l *otoLine) Drain() error {
	l.pw.Close()
	for l.player.IsPlaying() {
		time.Sleep(drainPoll)
	}
	return l.player.Err()
}

func (l *otoLine) Stop() error {
	l.player.Pause()
	return nil
}

func (l *otoLine) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.pw.Close()
		err = l.player.Close()
		l.pr.Close()
	})
	return err
}
