// ABOUTME: Session lifecycle events reported by the player
// ABOUTME: Delivered to Config.OnEvent from admission and from playback goroutines
package sound

import (
	"time"

	"github.com/Resonate-Protocol/chime/pkg/audio"
)

// EventKind identifies a session lifecycle transition
type EventKind string

const (
	EventAdmitted EventKind = "admitted"
	EventStarted  EventKind = "started"
	EventFinished EventKind = "finished"
	EventFailed   EventKind = "failed"
)

// Event describes a session lifecycle transition
type Event struct {
	Kind      EventKind
	SessionID string
	Resource  string
	Format    audio.Format
	Err       error // set for EventFailed
	At        time.Time
}
