// ABOUTME: Tests for the sound player
// ABOUTME: Covers synchronous failures, admission ordering and the line lifecycle
package sound

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Resonate-Protocol/chime/pkg/audio"
	"github.com/Resonate-Protocol/chime/pkg/audio/decode"
	"github.com/Resonate-Protocol/chime/pkg/audio/output"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openerFor(streams map[string]decode.Stream) decode.Opener {
	return func(resource string) (decode.Stream, error) {
		s, ok := streams[resource]
		if !ok {
			return nil, &audio.IOError{Resource: resource, Op: "open", Err: os.ErrNotExist}
		}
		return s, nil
	}
}

func newTestPlayer(t *testing.T, dev output.Device, config Config) *Player {
	t.Helper()
	config.Device = dev
	if config.Logger == nil {
		logger, _ := test.NewNullLogger()
		config.Logger = logger
	}
	p, err := New(config)
	require.NoError(t, err)
	return p
}

func TestNewRequiresDevice(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestPlayUnsupportedFormatOpensNoLine(t *testing.T) {
	dev := newMockDevice()
	format := audio.Format{Codec: "wav", Encoding: audio.EncodingPCMSigned, SampleRate: 96000, Channels: 2, BitDepth: 24}
	stream := newMemStream(format, make([]byte, 1024))

	var events []Event
	p := newTestPlayer(t, dev, Config{
		Opener:  openerFor(map[string]decode.Stream{"hires.wav": stream}),
		OnEvent: func(e Event) { events = append(events, e) },
	})

	session, err := p.Play("hires.wav")
	require.Error(t, err)
	assert.Nil(t, session)

	var unsupported *audio.UnsupportedFormatError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, format, unsupported.Format)
	assert.ErrorIs(t, err, audio.ErrUnsupportedFormat)

	p.Wait()
	assert.Empty(t, dev.rec.snapshot(), "no line may be opened")
	assert.Empty(t, events)
	assert.True(t, stream.closed.Load())
}

func TestPlayInvalidFormatIsUnsupported(t *testing.T) {
	dev := newMockDevice()
	dev.supports = func(audio.Format) bool { return true }
	stream := newMemStream(audio.Format{Encoding: audio.EncodingPCMSigned, SampleRate: 5, Channels: 1, BitDepth: 8}, nil)

	p := newTestPlayer(t, dev, Config{Opener: openerFor(map[string]decode.Stream{"tiny": stream})})

	_, err := p.Play("tiny")
	assert.ErrorIs(t, err, audio.ErrUnsupportedFormat)
	assert.Equal(t, int32(0), dev.opened.Load())
}

func TestPlayIOError(t *testing.T) {
	dev := newMockDevice()
	p := newTestPlayer(t, dev, Config{Opener: openerFor(nil)})

	_, err := p.Play("missing.wav")
	var ioErr *audio.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "missing.wav", ioErr.Resource)
	assert.Empty(t, dev.rec.snapshot())
}

func TestPlayWrapsUnclassifiedOpenerErrors(t *testing.T) {
	dev := newMockDevice()
	p := newTestPlayer(t, dev, Config{
		Opener: func(string) (decode.Stream, error) { return nil, errors.New("boom") },
	})

	_, err := p.Play("x")
	var ioErr *audio.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "open", ioErr.Op)
}

func TestPlayMissingFileWithDefaultOpener(t *testing.T) {
	dev := newMockDevice()
	p := newTestPlayer(t, dev, Config{})

	_, err := p.Play(filepath.Join(t.TempDir(), "nope.wav"))
	var ioErr *audio.IOError
	assert.ErrorAs(t, err, &ioErr)
}

func TestPlayReturnsBeforePlaybackFinishes(t *testing.T) {
	dev := newMockDevice()
	dev.writeGate = make(chan struct{})
	stream := newMemStream(cdFormat, make([]byte, 44100*4))

	p := newTestPlayer(t, dev, Config{Opener: openerFor(map[string]decode.Stream{"one-second.wav": stream})})

	start := time.Now()
	session, err := p.Play("one-second.wav")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	select {
	case <-session.Done():
		t.Fatal("session finished while the line was still blocked")
	default:
	}

	close(dev.writeGate)
	require.NoError(t, session.Wait())
	p.Wait()
}

func TestPlayLineLifecycle(t *testing.T) {
	dev := newMockDevice()
	data := bytes.Repeat([]byte{1, 2, 3, 4}, 10000) // 40000 bytes
	stream := newMemStream(cdFormat, data)

	var mu sync.Mutex
	var kinds []EventKind
	p := newTestPlayer(t, dev, Config{
		Opener: openerFor(map[string]decode.Stream{"chime.wav": stream}),
		OnEvent: func(e Event) {
			mu.Lock()
			kinds = append(kinds, e.Kind)
			mu.Unlock()
		},
	})

	session, err := p.Play("chime.wav")
	require.NoError(t, err)
	assert.Equal(t, 17640, session.BufferSize)

	require.NoError(t, session.Wait())
	p.Wait()

	assert.Equal(t, []string{"open", "start", "write", "write", "write", "drain", "stop", "close"}, dev.rec.snapshot())
	assert.Equal(t, []int{17640}, dev.bufferSizes)
	assert.Equal(t, len(data), dev.bytesWritten())
	assert.True(t, stream.closed.Load())
	assert.Equal(t, StateFinished, session.State())
	assert.Empty(t, p.Sessions())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []EventKind{EventAdmitted, EventStarted, EventFinished}, kinds)
}

func TestAdmissionIsSerialized(t *testing.T) {
	dev := newMockDevice()

	var mu sync.Mutex
	var order []string
	mark := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	entered := make(chan struct{})
	gate := make(chan struct{})
	opener := func(resource string) (decode.Stream, error) {
		mark(resource + ":enter")
		if resource == "first" {
			close(entered)
			<-gate
		}
		mark(resource + ":exit")
		return newMemStream(cdFormat, make([]byte, 100)), nil
	}

	p := newTestPlayer(t, dev, Config{Opener: opener})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := p.Play("first")
		assert.NoError(t, err)
	}()

	<-entered
	go func() {
		defer wg.Done()
		_, err := p.Play("second")
		assert.NoError(t, err)
	}()

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, []string{"first:enter"}, order)
	mu.Unlock()

	close(gate)
	wg.Wait()
	p.Wait()

	assert.Equal(t, []string{"first:enter", "first:exit", "second:enter", "second:exit"}, order)
}

func TestAdmissionDoesNotSerializePlayback(t *testing.T) {
	dev := newMockDevice()
	dev.writeGate = make(chan struct{})

	p := newTestPlayer(t, dev, Config{
		Opener: func(string) (decode.Stream, error) {
			return newMemStream(cdFormat, make([]byte, 100)), nil
		},
	})

	first, err := p.Play("a")
	require.NoError(t, err)
	second, err := p.Play("b")
	require.NoError(t, err)

	// Both sessions reach their lines while the first is still writing
	require.Eventually(t, func() bool { return dev.opened.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.Len(t, p.Sessions(), 2)

	close(dev.writeGate)
	require.NoError(t, first.Wait())
	require.NoError(t, second.Wait())
}

func TestExclusiveModeQueuesSessions(t *testing.T) {
	dev := newMockDevice()
	dev.writeGate = make(chan struct{})

	p := newTestPlayer(t, dev, Config{
		Exclusive: true,
		Opener: func(string) (decode.Stream, error) {
			return newMemStream(cdFormat, make([]byte, 100)), nil
		},
	})

	first, err := p.Play("a")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return dev.opened.Load() == 1 }, time.Second, 5*time.Millisecond)

	second, err := p.Play("b")
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), dev.opened.Load(), "second session must wait for the first")
	assert.Equal(t, StateQueued, second.State())

	close(dev.writeGate)
	require.NoError(t, first.Wait())
	require.NoError(t, second.Wait())

	assert.Equal(t, []string{
		"open", "start", "write", "drain", "stop", "close",
		"open", "start", "write", "drain", "stop", "close",
	}, dev.rec.snapshot())
}

func TestLineUnavailableIsReportedInBackground(t *testing.T) {
	dev := newMockDevice()
	dev.openErr = errors.Join(output.ErrLineUnavailable, errors.New("device unplugged"))
	stream := newMemStream(cdFormat, make([]byte, 100))

	logger, hook := test.NewNullLogger()
	failed := make(chan Event, 1)
	p := newTestPlayer(t, dev, Config{
		Logger: logger,
		Opener: openerFor(map[string]decode.Stream{"x.wav": stream}),
		OnEvent: func(e Event) {
			if e.Kind == EventFailed {
				failed <- e
			}
		},
	})

	session, err := p.Play("x.wav")
	require.NoError(t, err, "background failures never reach the caller")

	err = session.Wait()
	assert.ErrorIs(t, err, output.ErrLineUnavailable)
	assert.Equal(t, StateFailed, session.State())

	e := <-failed
	assert.Equal(t, session.ID, e.SessionID)
	assert.ErrorIs(t, e.Err, output.ErrLineUnavailable)

	p.Wait()
	assert.True(t, stream.closed.Load())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "line unavailable to play a sound", hook.LastEntry().Message)
}

func TestLineStartFailure(t *testing.T) {
	dev := newMockDevice()
	dev.startErr = errors.New("busy")

	p := newTestPlayer(t, dev, Config{
		Opener: func(string) (decode.Stream, error) {
			return newMemStream(cdFormat, make([]byte, 100)), nil
		},
	})

	session, err := p.Play("x")
	require.NoError(t, err)
	assert.ErrorIs(t, session.Wait(), output.ErrLineUnavailable)
	assert.Equal(t, []string{"open", "start", "close"}, dev.rec.snapshot())
}

func TestReadFailureLeavesLineUndrained(t *testing.T) {
	dev := newMockDevice()
	stream := &memStream{Reader: &brokenReader{data: make([]byte, 64)}, format: cdFormat}

	logger, hook := test.NewNullLogger()
	p := newTestPlayer(t, dev, Config{
		Logger: logger,
		Opener: openerFor(map[string]decode.Stream{"flaky.wav": stream}),
	})

	session, err := p.Play("flaky.wav")
	require.NoError(t, err)

	err = session.Wait()
	assert.ErrorIs(t, err, ErrReadFailed)
	assert.ErrorIs(t, err, errDiskGone)

	p.Wait()
	assert.Equal(t, []string{"open", "start", "write"}, dev.rec.snapshot())
	assert.Zero(t, dev.rec.count("drain"))
	assert.Zero(t, dev.rec.count("stop"))
	assert.Zero(t, dev.rec.count("close"))
	assert.True(t, stream.closed.Load())
	assert.Equal(t, "problems fetching data to play a sound", hook.LastEntry().Message)
}

func TestPlayRejectsImplausibleFormat(t *testing.T) {
	huge := audio.Format{Codec: "wav", Encoding: audio.EncodingPCMSigned, SampleRate: 4294967295, Channels: 65535, BitDepth: 65535}
	stream := newMemStream(huge, make([]byte, 64))

	dev := output.NewNull(output.NullConfig{})
	p := newTestPlayer(t, dev, Config{Opener: openerFor(map[string]decode.Stream{"huge.wav": stream})})

	session, err := p.Play("huge.wav")
	assert.Nil(t, session)
	assert.ErrorIs(t, err, audio.ErrUnsupportedFormat)
	assert.True(t, stream.closed.Load())

	// The same header read from disk is rejected by the decoder
	path := filepath.Join(t.TempDir(), "huge.wav")
	file := pcmWAV(8000, 1, 0)
	binary.LittleEndian.PutUint16(file[22:], 65535)      // channels
	binary.LittleEndian.PutUint32(file[24:], 4294967295) // sample rate
	binary.LittleEndian.PutUint16(file[34:], 65535)      // bits per sample
	require.NoError(t, os.WriteFile(path, file, 0o644))

	p = newTestPlayer(t, dev, Config{})
	_, err = p.Play(path)
	assert.ErrorIs(t, err, audio.ErrUnsupportedFormat)

	p.Wait()
	assert.Equal(t, int64(0), dev.LinesOpened())
}

func TestReservedFormatConflictFailsSynchronously(t *testing.T) {
	dev := &claimingDevice{mockDevice: newMockDevice()}
	dev.writeGate = make(chan struct{})

	low := cdFormat
	low.SampleRate = 22050
	p := newTestPlayer(t, dev, Config{
		Opener: openerFor(map[string]decode.Stream{
			"a.wav": newMemStream(low, make([]byte, 100)),
			"b.mp3": newMemStream(cdFormat, make([]byte, 100)),
			"c.wav": newMemStream(low, make([]byte, 100)),
		}),
	})

	first, err := p.Play("a.wav")
	require.NoError(t, err)

	// The format is taken at admission, whether or not the first line is open yet
	_, err = p.Play("b.mp3")
	var unsupported *audio.UnsupportedFormatError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, cdFormat, unsupported.Format)

	third, err := p.Play("c.wav")
	require.NoError(t, err)

	close(dev.writeGate)
	require.NoError(t, first.Wait())
	require.NoError(t, third.Wait())
	assert.Equal(t, int32(2), dev.opened.Load())
}

func TestPlayStream(t *testing.T) {
	dev := newMockDevice()
	p := newTestPlayer(t, dev, Config{})

	stream := newMemStream(cdFormat, make([]byte, 10))
	session, err := p.PlayStream(stream)
	require.NoError(t, err)
	assert.Equal(t, "stream", session.Resource)
	require.NoError(t, session.Wait())
	assert.True(t, stream.closed.Load())
}

func TestDebugLogsDiagnostics(t *testing.T) {
	dev := newMockDevice()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	p := newTestPlayer(t, dev, Config{
		Debug:  true,
		Logger: logger,
		Opener: func(string) (decode.Stream, error) {
			return newMemStream(cdFormat, nil), nil
		},
	})

	_, err := p.Play("x.wav")
	require.NoError(t, err)
	p.Wait()

	var admitted *logrus.Entry
	for _, entry := range hook.AllEntries() {
		if entry.Message == "Admitting sound" {
			admitted = entry
		}
	}
	require.NotNil(t, admitted)
	assert.Equal(t, 44100, admitted.Data["frame_rate"])
	assert.Equal(t, 4, admitted.Data["frame_size"])
	assert.Equal(t, 17640, admitted.Data["buffer_size"])
}

func TestPlayWAVFileOnNullDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beep.wav")
	require.NoError(t, os.WriteFile(path, pcmWAV(8000, 1, 1600), 0o644))

	dev := output.NewNull(output.NullConfig{})
	p := newTestPlayer(t, dev, Config{})

	session, err := p.Play(path)
	require.NoError(t, err)
	assert.Equal(t, 1600, session.BufferSize)
	require.NoError(t, session.Wait())

	assert.Equal(t, int64(3200), dev.BytesWritten())
}

// pcmWAV builds a 16-bit PCM WAV holding the given number of silent frames
func pcmWAV(rate, channels, frames int) []byte {
	dataLen := frames * channels * 2
	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(36+dataLen))
	b.WriteString("WAVEfmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, uint16(1))
	binary.Write(&b, binary.LittleEndian, uint16(channels))
	binary.Write(&b, binary.LittleEndian, uint32(rate))
	binary.Write(&b, binary.LittleEndian, uint32(rate*channels*2))
	binary.Write(&b, binary.LittleEndian, uint16(channels*2))
	binary.Write(&b, binary.LittleEndian, uint16(16))
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(dataLen))
	b.Write(make([]byte, dataLen))
	return b.Bytes()
}
