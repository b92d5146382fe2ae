// ABOUTME: Sound player with serialized admission and background playback
// ABOUTME: Validates resources synchronously and streams them to output lines
package sound

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/Resonate-Protocol/chime/pkg/audio"
	"github.com/Resonate-Protocol/chime/pkg/audio/decode"
	"github.com/Resonate-Protocol/chime/pkg/audio/output"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrReadFailed wraps errors reading a stream after playback started
var ErrReadFailed = errors.New("problems fetching data to play a sound")

// Config holds player configuration
type Config struct {
	// Device renders admitted sessions (required)
	Device output.Device

	// Opener turns a resource into a decoded stream (default: decode.Open)
	Opener decode.Opener

	// Debug logs format diagnostics at admission
	Debug bool

	// Exclusive queues sessions so only one writes to a line at a time.
	// Play still returns as soon as a request is admitted.
	Exclusive bool

	// OnEvent receives session lifecycle events. It is called from the
	// admitting goroutine and from playback goroutines and must not block.
	OnEvent func(Event)

	// Logger receives diagnostics (default: logrus standard logger)
	Logger logrus.FieldLogger
}

// Player plays audio resources in the background
type Player struct {
	config Config
	log    logrus.FieldLogger

	admission sync.Mutex // held for decode, validation and spawn
	playback  sync.Mutex // held for a whole session in exclusive mode
	wg        sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*Session
}

// New creates a player
func New(config Config) (*Player, error) {
	if config.Device == nil {
		return nil, fmt.Errorf("output device is required")
	}
	if config.Opener == nil {
		config.Opener = decode.Open
	}

	log := config.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Player{
		config:   config,
		log:      log,
		sessions: make(map[string]*Session),
	}, nil
}

// Play opens resource, validates its format against the device and starts
// playing it in the background. It returns once the request is admitted;
// concurrent calls are admitted one at a time.
func (p *Player) Play(resource string) (*Session, error) {
	p.admission.Lock()
	defer p.admission.Unlock()

	stream, err := p.config.Opener(resource)
	if err != nil {
		return nil, classify(resource, err)
	}
	return p.admit(resource, stream)
}

// PlayStream plays an already opened stream with the same contract as Play.
// The player takes ownership of the stream and closes it.
func (p *Player) PlayStream(stream decode.Stream) (*Session, error) {
	p.admission.Lock()
	defer p.admission.Unlock()

	return p.admit("stream", stream)
}

// Wait blocks until every admitted session has ended
func (p *Player) Wait() {
	p.wg.Wait()
}

// Sessions returns the sessions that have not yet ended, oldest first
func (p *Player) Sessions() []SessionInfo {
	p.mu.Lock()
	infos := make([]SessionInfo, 0, len(p.sessions))
	for _, s := range p.sessions {
		infos = append(infos, s.Info())
	}
	p.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Admitted.Before(infos[j].Admitted)
	})
	return infos
}

// classify makes sure opener failures surface as one of the two play errors
func classify(resource string, err error) error {
	var unsupported *audio.UnsupportedFormatError
	var ioErr *audio.IOError
	if errors.As(err, &unsupported) || errors.As(err, &ioErr) {
		return err
	}
	return &audio.IOError{Resource: resource, Op: "open", Err: err}
}

// admit runs the validation phase. Callers hold the admission lock.
func (p *Player) admit(resource string, stream decode.Stream) (*Session, error) {
	format := stream.Format()

	if err := format.Validate(); err != nil {
		stream.Close()
		return nil, err
	}
	if !p.config.Device.Supports(format) {
		stream.Close()
		return nil, &audio.UnsupportedFormatError{Format: format, Reason: "no output line supports this format"}
	}
	if r, ok := p.config.Device.(output.Reserver); ok {
		if err := r.Reserve(format); err != nil {
			stream.Close()
			return nil, err
		}
	}

	bufferSize := format.BufferSize()

	if p.config.Debug {
		p.log.WithFields(logrus.Fields{
			"function":    "admit",
			"resource":    resource,
			"format":      format.String(),
			"frame_rate":  format.FrameRate(),
			"frame_size":  format.FrameSize(),
			"buffer_size": bufferSize,
		}).Debug("Admitting sound")
	}

	session := newSession(uuid.New().String(), resource, format, bufferSize)

	p.mu.Lock()
	p.sessions[session.ID] = session
	p.mu.Unlock()

	p.emit(session, EventAdmitted, nil)

	p.wg.Add(1)
	go p.run(session, stream)

	return session, nil
}

// run streams one session to a freshly opened line
func (p *Player) run(session *Session, stream decode.Stream) {
	defer p.wg.Done()

	if p.config.Exclusive {
		p.playback.Lock()
		defer p.playback.Unlock()
	}

	err := p.stream(session, stream)
	stream.Close()

	p.mu.Lock()
	delete(p.sessions, session.ID)
	p.mu.Unlock()

	session.finish(err)
	if err != nil {
		p.emit(session, EventFailed, err)
		return
	}
	p.emit(session, EventFinished, nil)
}

func (p *Player) stream(session *Session, stream decode.Stream) error {
	log := p.log.WithFields(logrus.Fields{
		"function": "stream",
		"session":  session.ID,
		"resource": session.Resource,
	})

	line, err := p.config.Device.OpenLine(session.Format, session.BufferSize)
	if err != nil {
		log.WithError(err).Error("line unavailable to play a sound")
		return err
	}

	if err := line.Start(); err != nil {
		log.WithError(err).Error("line unavailable to play a sound")
		line.Close()
		return fmt.Errorf("%w: %v", output.ErrLineUnavailable, err)
	}

	session.setState(StatePlaying)
	p.emit(session, EventStarted, nil)

	buf := make([]byte, session.BufferSize)
	for {
		n, readErr := stream.Read(buf)
		if n > 0 {
			if _, err := line.Write(buf[:n]); err != nil {
				log.WithError(err).Error("line unavailable to play a sound")
				line.Close()
				return fmt.Errorf("%w: %v", output.ErrLineUnavailable, err)
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			// The line is abandoned as is: no drain, stop or close
			log.WithError(readErr).Error("problems fetching data to play a sound")
			return fmt.Errorf("%w: %w", ErrReadFailed, readErr)
		}
	}

	drainErr := line.Drain()
	stopErr := line.Stop()
	closeErr := line.Close()

	if err := errors.Join(drainErr, stopErr, closeErr); err != nil {
		log.WithError(err).Error("line unavailable to play a sound")
		return fmt.Errorf("%w: %w", output.ErrLineUnavailable, err)
	}

	log.Debug("Sound finished")
	return nil
}

func (p *Player) emit(session *Session, kind EventKind, err error) {
	if p.config.OnEvent == nil {
		return
	}
	p.config.OnEvent(Event{
		Kind:      kind,
		SessionID: session.ID,
		Resource:  session.Resource,
		Format:    session.Format,
		Err:       err,
		At:        time.Now(),
	})
}
