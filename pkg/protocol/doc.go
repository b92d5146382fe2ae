// ABOUTME: Chime remote control protocol package
// ABOUTME: Defines the JSON messages exchanged with the chimed daemon
// Package protocol defines the chime remote control protocol.
//
// Every frame is a JSON text message wrapping a typed payload:
//
//	{"type": "play/request", "payload": {"request_id": "...", "resource": "..."}}
//
// A client opens a WebSocket to Path, sends client/hello and waits for
// server/hello. It can then send play/request messages; each is answered
// by a play/result carrying the same request id. Session lifecycle
// changes are broadcast to every client as session/event.
package protocol
