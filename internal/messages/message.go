// Package messages implements the message taxonomy described in spec.md
// §4.2/§6: one Go type per wire kind, each carrying the header
// {TrialID, Closing} plus its own payload, and each able to `Process`
// itself synchronously against the study and the manager that owns its
// trial. The event loop dispatches by calling Process on each message it
// receives, see internal/eventloop.
//
// Every concrete message type is gob-registered in this file's init() so
// the queue-based IPC transport can serialize them with the standard
// library's binary codec; the in-process pipe passes them unencoded.
package messages

import (
	"context"
	"encoding/gob"
	"log/slog"
	"time"

	"github.com/trialmesh/trialmesh/internal/study"
	"github.com/trialmesh/trialmesh/pkg/types"
)

var log = slog.Default()

// Manager is the narrow slice of manager behavior a Message's Process
// method needs: posting a reply onto the trial's private channel, and
// recording that a trial has left the stream. Defined here (rather than
// imported from internal/manager) so messages stays a leaf package and the
// concrete managers depend on messages, not the other way around.
type Manager interface {
	// Respond enqueues msg (always a Response) on trial's private channel.
	Respond(trial types.TrialID, msg Message) error
	// RegisterExit records that trial has finished contributing to the
	// stream, successfully or not.
	RegisterExit(trial types.TrialID)
}

// Message is the sum type every wire kind implements.
type Message interface {
	TrialID() types.TrialID
	Closing() bool
	// Process dispatches the message against the study and manager. It
	// always runs on the event-loop goroutine, never concurrently with
	// another Process call.
	Process(ctx context.Context, st *study.Study, mgr Manager) error
}

// Header is embedded by every concrete message and satisfies the
// TrialID/Closing half of the Message interface.
type Header struct {
	Trial types.TrialID
	Close bool
}

func (h Header) TrialID() types.TrialID { return h.Trial }
func (h Header) Closing() bool          { return h.Close }

func init() {
	gob.Register(Suggest{})
	gob.Register(Response{})
	gob.Register(Report{})
	gob.Register(ShouldPrune{})
	gob.Register(SetAttribute{})
	gob.Register(TrialProperty{})
	gob.Register(Heartbeat{})
	gob.Register(Completed{})
	gob.Register(Pruned{})
	gob.Register(Failed{})

	// Concrete Response payload types. A payload type reachable from user
	// attributes but not listed here will fail to encode, the caller is
	// responsible for keeping attribute values to gob-friendly types, per
	// spec.md §6's serialization note.
	gob.Register(float64(0))
	gob.Register(int64(0))
	gob.Register(string(""))
	gob.Register(bool(false))
	gob.Register(map[string]any{})
	gob.Register(map[string]types.Distribution{})
	gob.Register(types.TrialSummary{})
	gob.Register(time.Time{})
}
