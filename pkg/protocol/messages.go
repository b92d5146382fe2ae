// ABOUTME: Chime protocol message type definitions
// ABOUTME: Defines structs for every message exchanged with the daemon
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/Resonate-Protocol/chime/pkg/audio"
)

const (
	// Version is the protocol version sent in hello messages
	Version = 1

	// Path is the WebSocket endpoint served by the daemon
	Path = "/chime"

	// ServiceType is the mDNS service type advertised by the daemon
	ServiceType = "_chime._tcp"
)

// Message types
const (
	TypeClientHello  = "client/hello"
	TypeServerHello  = "server/hello"
	TypePlayRequest  = "play/request"
	TypePlayResult   = "play/result"
	TypeSessionEvent = "session/event"
	TypeServerError  = "server/error"
)

// Error kinds carried by PlayResult
const (
	ErrorKindUnsupportedFormat = "unsupported_format"
	ErrorKindIO                = "io"
	ErrorKindInternal          = "internal"
)

// Message is the top-level wrapper for all protocol messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ClientHello is sent by clients to initiate the handshake
type ClientHello struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
}

// ServerHello is the server's response to client/hello
type ServerHello struct {
	ServerID       string `json:"server_id"`
	Name           string `json:"name"`
	Version        int    `json:"version"`
	ProductVersion string `json:"product_version,omitempty"`
}

// PlayRequest asks the daemon to play a resource
type PlayRequest struct {
	RequestID string `json:"request_id"`
	Resource  string `json:"resource"`
}

// PlayResult answers a PlayRequest. Error is empty when the request was admitted.
type PlayResult struct {
	RequestID  string       `json:"request_id"`
	SessionID  string       `json:"session_id,omitempty"`
	Format     *AudioFormat `json:"format,omitempty"`
	BufferSize int          `json:"buffer_size,omitempty"`
	Error      string       `json:"error,omitempty"`
	ErrorKind  string       `json:"error_kind,omitempty"`
}

// AudioFormat describes the decoded format of an admitted resource
type AudioFormat struct {
	Codec      string `json:"codec"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	BitDepth   int    `json:"bit_depth"`
}

// SessionEvent reports a playback session lifecycle change
type SessionEvent struct {
	SessionID string `json:"session_id"`
	Kind      string `json:"kind"` // "admitted", "started", "finished" or "failed"
	Resource  string `json:"resource"`
	Error     string `json:"error,omitempty"`
	At        int64  `json:"at"` // Unix milliseconds
}

// Ended reports whether the event is the last one for its session
func (e SessionEvent) Ended() bool {
	return e.Kind == "finished" || e.Kind == "failed"
}

// ServerError reports a protocol violation before the connection closes
type ServerError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewAudioFormat converts a decoded format for the wire
func NewAudioFormat(f audio.Format) *AudioFormat {
	return &AudioFormat{
		Codec:      f.Codec,
		Encoding:   string(f.Encoding),
		SampleRate: f.SampleRate,
		Channels:   f.Channels,
		BitDepth:   f.BitDepth,
	}
}

// Format converts the wire format back into an audio.Format
func (f *AudioFormat) Format() audio.Format {
	if f == nil {
		return audio.Format{}
	}
	return audio.Format{
		Codec:      f.Codec,
		Encoding:   audio.Encoding(f.Encoding),
		SampleRate: f.SampleRate,
		Channels:   f.Channels,
		BitDepth:   f.BitDepth,
	}
}

// DecodePayload unmarshals a message payload into v
func DecodePayload(msg Message, v interface{}) error {
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", msg.Type, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", msg.Type, err)
	}
	return nil
}
