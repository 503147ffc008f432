package session

// Stream destroy reasons reported by the transport.
const (
	ReasonDisconnect        = "disconnect"
	ReasonNetworkDisconnect = "networkDisconnect"
)

// Event is anything the machine reacts to: user intent, transport callbacks
// and timer expiries all arrive on the same queue.
type Event interface {
	event()
}

type (
	JoinRequested struct{}

	Connected struct {
		ConnectionID string
	}

	ConnectFailed struct {
		Err error
	}

	StreamCreated struct {
		Stream Stream
	}

	StreamDestroyed struct {
		Stream Stream
		Reason string
	}

	// MediaReady carries the subscription opened for a created stream.
	MediaReady struct {
		Stream Stream
		Media  MediaHandle
	}

	StreamSubscribeFailed struct {
		Stream Stream
		Err    error
	}

	SignalReceived struct {
		Type string
		From string
		Data string
	}

	// SessionDisconnected is the transport dropping the session on its own.
	SessionDisconnected struct {
		Reason string
	}

	// Disconnected confirms the transport closed after an exit.
	Disconnected struct{}

	Resized struct {
		Width  float64
		Height float64
	}

	RelayoutDue struct {
		Seq uint64
	}

	GraceElapsed struct{}

	ExitRequested struct{}
)

func (JoinRequested) event() {}
func (Connected) event() {}
func (ConnectFailed) event() {}
func (StreamCreated) event() {}
func (StreamDestroyed) event() {}
func (MediaReady) event() {}
func (StreamSubscribeFailed) event() {}
func (SignalReceived) event() {}
func (SessionDisconnected) event() {}
func (Disconnected) event() {}
func (Resized) event() {}
func (RelayoutDue) event() {}
func (GraceElapsed) event() {}
func (ExitRequested) event() {}
