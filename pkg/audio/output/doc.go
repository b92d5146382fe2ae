// ABOUTME: Audio output package for rendering decoded streams
// ABOUTME: Provides Device and Line interfaces with oto, PortAudio and null backends
// Package output provides audio output devices.
//
// A Device answers whether it can render a format and hands out Lines.
// A Line is opened for one format and buffer size, started, written to,
// drained and closed again by a single playback session.
//
// Backends:
//   - Oto: cross-platform output via ebitengine/oto (default)
//   - PortAudio: blocking PortAudio stream (build with -tags portaudio)
//   - Null: discards audio, optionally in real time (headless hosts, tests)
//
// Example:
//
//	dev, err := output.New("oto", output.Options{Volume: 80})
//	line, err := dev.OpenLine(format, format.BufferSize())
//	err = line.Start()
//	_, err = line.Write(pcm)
//	err = line.Drain()
package output
