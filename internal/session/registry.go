package session

// DefaultMaxRemotes keeps one remote on screen; later remote streams are
// ignored rather than replacing it.
const DefaultMaxRemotes = 1

// Registry holds the participants of one joined session. It is owned by the
// orchestrator's event goroutine and does no locking of its own.
type Registry struct {
	limit   int
	local   *Participant
	remotes []*Participant
}

// NewRegistry returns an empty registry holding at most limit remotes.
// A limit of zero or less means no limit.
func NewRegistry(limit int) *Registry {
	return &Registry{limit: limit}
}

// SetLocal replaces the local participant.
func (r *Registry) SetLocal(p Participant) {
	p.Role = RoleLocal
	r.local = &p
}

// SetLocalConnection records the connection id the transport assigned.
func (r *Registry) SetLocalConnection(connectionID string) {
	if r.local != nil {
		r.local.ConnectionID = connectionID
	}
}

func (r *Registry) Local() (Participant, bool) {
	if r.local == nil {
		return Participant{}, false
	}
	return *r.local, true
}

func (r *Registry) RemoteCount() int {
	return len(r.remotes)
}

// Full reports whether another remote would exceed the limit.
func (r *Registry) Full() bool {
	return r.limit > 0 && len(r.remotes) >= r.limit
}

// Remotes returns copies of the remote participants in arrival order.
func (r *Registry) Remotes() []Participant {
	out := make([]Participant, len(r.remotes))
	for i, p := range r.remotes {
		out[i] = *p
	}
	return out
}

// AddRemote appends p as a remote participant.
func (r *Registry) AddRemote(p Participant) error {
	if r.Full() {
		return ErrRegistryFull
	}
	for _, existing := range r.remotes {
		if existing.ConnectionID == p.ConnectionID {
			return ErrDuplicateRemote
		}
	}
	p.Role = RoleRemote
	r.remotes = append(r.remotes, &p)
	return nil
}

// FindRemote looks a remote up by connection id.
func (r *Registry) FindRemote(connectionID string) (Participant, bool) {
	for _, p := range r.remotes {
		if p.ConnectionID == connectionID {
			return *p, true
		}
	}
	return Participant{}, false
}

// RemoveByStream removes the first remote created from the given stream.
func (r *Registry) RemoveByStream(streamID string) (Participant, bool) {
	for i, p := range r.remotes {
		if p.Stream.ID == streamID {
			r.remotes = append(r.remotes[:i], r.remotes[i+1:]...)
			return *p, true
		}
	}
	return Participant{}, false
}

// SetRemoteAvatar overwrites the avatar of a remote participant.
func (r *Registry) SetRemoteAvatar(connectionID, url string) bool {
	for _, p := range r.remotes {
		if p.ConnectionID == connectionID {
			p.AvatarURL = url
			return true
		}
	}
	return false
}

// AttachMedia hands the media handle for a stream to its participant.
func (r *Registry) AttachMedia(streamID string, media MediaHandle) bool {
	for _, p := range r.remotes {
		if p.Stream.ID == streamID {
			p.Media = media
			return true
		}
	}
	return false
}

// Clear drops every participant and returns the remotes that were held.
func (r *Registry) Clear() []Participant {
	removed := r.Remotes()
	r.remotes = nil
	r.local = nil
	return removed
}
