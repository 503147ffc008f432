package layout

// Engine keeps the container size and re-runs Arrange on demand. It is not
// safe for concurrent use; the session orchestrator drives it from its event
// goroutine.
type Engine struct {
	opts    Options
	width   float64
	height  float64
	mounted bool
	last    []Placement
}

// NewEngine validates opts and returns an engine with no container mounted.
func NewEngine(opts Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Engine{opts: opts}, nil
}

// Options returns the engine configuration.
func (e *Engine) Options() Options {
	return e.opts
}

// Mount sets the container size. A non-positive size unmounts it.
func (e *Engine) Mount(width, height float64) {
	if width <= 0 || height <= 0 {
		e.Unmount()
		return
	}
	e.width, e.height = width, height
	e.mounted = true
}

// Unmount forgets the container; Layout becomes a no-op until the next Mount.
func (e *Engine) Unmount() {
	e.width, e.height = 0, 0
	e.mounted = false
}

func (e *Engine) Mounted() bool {
	return e.mounted
}

// Size returns the mounted container size.
func (e *Engine) Size() (width, height float64) {
	return e.width, e.height
}

// Reset drops the last computed placements.
func (e *Engine) Reset() {
	e.last = nil
}

// Layout arranges tiles in the mounted container and applies each rectangle
// to the tile's surface. It returns ErrNotMounted without touching anything
// when there is no container.
func (e *Engine) Layout(tiles []Tile) ([]Placement, error) {
	if !e.mounted {
		return nil, ErrNotMounted
	}

	placements, err := Arrange(e.opts, e.width, e.height, tiles)
	if err != nil {
		return nil, err
	}

	for i, t := range tiles {
		if t.Surface != nil && i < len(placements) {
			t.Surface.Place(placements[i].Rect, e.opts.Animate)
		}
	}
	e.last = placements
	return placements, nil
}

// Last returns a copy of the most recent placements.
func (e *Engine) Last() []Placement {
	if e.last == nil {
		return nil
	}
	out := make([]Placement, len(e.last))
	copy(out, e.last)
	return out
}
