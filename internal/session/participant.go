package session

type Role string

const (
	RoleLocal  Role = "local"
	RoleRemote Role = "remote"
)

// Stream is a media stream as the transport reports it. ID is the identity
// used to match a departing stream; ConnectionData is the raw join metadata
// of the connection that publishes it.
type Stream struct {
	ID             string
	ConnectionID   string
	ConnectionData string
}

// MediaHandle is a subscription to a remote stream. The participant holding
// it owns it and closes it when leaving.
type MediaHandle interface {
	Close() error
}

// Participant is a local or remote member of the joined session.
type Participant struct {
	ConnectionID string
	Nickname     string
	AvatarURL    string
	Role         Role

	// Main is set from the connection metadata of the publishing connection.
	Main bool

	Stream Stream
	Media  MediaHandle
}
