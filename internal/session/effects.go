package session

import (
	"log/slog"
	"time"

	"github.com/BioHazard786/roomview/internal/presence"
)

// Effect is work the machine asks its owner to carry out. Effects are
// executed in the order Handle returns them.
type Effect interface {
	effect()
}

type (
	// OpenSession creates a fresh transport, installs the event sink and
	// then fetches a token and connects with Metadata.
	OpenSession struct {
		Metadata string
	}

	SubscribeStream struct {
		Stream Stream
	}

	ReleaseMedia struct {
		Media MediaHandle
	}

	BroadcastPresence struct {
		Message presence.Message
	}

	// Relayout arranges the current remotes immediately.
	Relayout struct{}

	// ScheduleRelayout replaces any pending relayout with one due After.
	ScheduleRelayout struct {
		Seq   uint64
		After time.Duration
	}

	CancelRelayout struct{}

	ResizeContainer struct {
		Width  float64
		Height float64
	}

	ResetLayout struct{}

	ScheduleTeardown struct {
		After time.Duration
	}

	CancelTeardown struct{}

	// CloseSession disconnects the transport.
	CloseSession struct{}

	// Teardown ends the client. Err is set when it ends because of a failure.
	Teardown struct {
		Err error
	}

	Report struct {
		Level slog.Level
		Msg   string
		Err   error
	}
)

func (OpenSession) effect() {}
func (SubscribeStream) effect() {}
func (ReleaseMedia) effect() {}
func (BroadcastPresence) effect() {}
func (Relayout) effect() {}
func (ScheduleRelayout) effect() {}
func (CancelRelayout) effect() {}
func (ResizeContainer) effect() {}
func (ResetLayout) effect() {}
func (ScheduleTeardown) effect() {}
func (CancelTeardown) effect() {}
func (CloseSession) effect() {}
func (Teardown) effect() {}
func (Report) effect() {}
