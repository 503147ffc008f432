package layout

import (
	"errors"
	"fmt"
	"math"
)

// DefaultVideoRatio is used for tiles whose video size is not known yet (4:3).
const DefaultVideoRatio = 3.0 / 4.0

var (
	ErrNotMounted  = errors.New("layout container not mounted")
	ErrMultipleBig = errors.New("more than one big tile")
)

// Rect is a tile's position and size inside the container.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Ratio returns height/width, the same orientation the options use.
func (r Rect) Ratio() float64 {
	if r.Width == 0 {
		return 0
	}
	return r.Height / r.Width
}

// Surface is the render target a tile's rectangle is applied to.
type Surface interface {
	Place(r Rect, animate bool)
}

// Tile is one rendered participant.
type Tile struct {
	ID string

	// Big tiles get BigPercentage of the container.
	Big bool

	// VideoRatio is height/width of the decoded video, 0 when unknown.
	VideoRatio float64

	Surface Surface
}

func (t Tile) ratio() float64 {
	if t.VideoRatio > 0 {
		return t.VideoRatio
	}
	return DefaultVideoRatio
}

// Placement is the computed rectangle for a tile.
type Placement struct {
	ID   string
	Big  bool
	Rect Rect
}

// Options bound the aspect ratios (height/width) the packer may produce.
type Options struct {
	// MaxRatio is the narrowest ratio used, MinRatio the widest.
	MinRatio   float64
	MaxRatio   float64
	FixedRatio bool

	// BigPercentage is the share of the container the big tile takes up.
	BigPercentage float64
	BigMinRatio   float64
	BigMaxRatio   float64
	BigFixedRatio bool

	// BigFirst places the big tile top/left instead of bottom/right.
	BigFirst bool
	Animate  bool
}

// DefaultOptions returns 16:9 to 2:3 bounds with an 82% big tile.
func DefaultOptions() Options {
	return Options{
		MinRatio:      9.0 / 16.0,
		MaxRatio:      3.0 / 2.0,
		BigPercentage: 0.82,
		BigMinRatio:   9.0 / 16.0,
		BigMaxRatio:   3.0 / 2.0,
	}
}

// Validate checks ratio bounds and the big percentage.
func (o Options) Validate() error {
	if o.MinRatio <= 0 || o.MaxRatio <= 0 || o.MinRatio > o.MaxRatio {
		return fmt.Errorf("invalid ratio bounds [%v, %v]", o.MinRatio, o.MaxRatio)
	}
	if o.BigMinRatio <= 0 || o.BigMaxRatio <= 0 || o.BigMinRatio > o.BigMaxRatio {
		return fmt.Errorf("invalid big ratio bounds [%v, %v]", o.BigMinRatio, o.BigMaxRatio)
	}
	if o.BigPercentage <= 0 || o.BigPercentage >= 1 {
		return fmt.Errorf("big percentage %v out of (0, 1)", o.BigPercentage)
	}
	return nil
}

// Arrange computes a placement for every tile inside a width x height
// container. Placements are returned in tile order.
func Arrange(opts Options, width, height float64, tiles []Tile) ([]Placement, error) {
	if len(tiles) == 0 || width <= 0 || height <= 0 {
		return nil, nil
	}

	var big, small []int
	for i, t := range tiles {
		if t.Big {
			big = append(big, i)
		} else {
			small = append(small, i)
		}
	}
	if len(big) > 1 {
		return nil, ErrMultipleBig
	}

	out := make([]Placement, len(tiles))

	switch {
	case len(big) > 0 && len(small) > 0:
		var bigWidth, bigHeight float64
		var offsetLeft, offsetTop, bigOffsetLeft, bigOffsetTop float64

		if height/width > tiles[big[0]].ratio() {
			// Tall container: big tile spans the width, small ones share the rest.
			bigWidth = width
			bigHeight = math.Floor(height * opts.BigPercentage)
			offsetTop = bigHeight
			bigOffsetTop = height - offsetTop
		} else {
			bigHeight = height
			bigWidth = math.Floor(width * opts.BigPercentage)
			offsetLeft = bigWidth
			bigOffsetLeft = width - offsetLeft
		}

		if opts.BigFirst {
			arrange(tiles, big, bigWidth, bigHeight, 0, 0, opts.BigFixedRatio, opts.BigMinRatio, opts.BigMaxRatio, out)
			arrange(tiles, small, width-offsetLeft, height-offsetTop, offsetLeft, offsetTop, opts.FixedRatio, opts.MinRatio, opts.MaxRatio, out)
		} else {
			arrange(tiles, small, width-offsetLeft, height-offsetTop, 0, 0, opts.FixedRatio, opts.MinRatio, opts.MaxRatio, out)
			arrange(tiles, big, bigWidth, bigHeight, bigOffsetLeft, bigOffsetTop, opts.BigFixedRatio, opts.BigMinRatio, opts.BigMaxRatio, out)
		}

	case len(big) > 0:
		arrange(tiles, big, width, height, 0, 0, opts.BigFixedRatio, opts.BigMinRatio, opts.BigMaxRatio, out)

	default:
		arrange(tiles, small, width, height, 0, 0, opts.FixedRatio, opts.MinRatio, opts.MaxRatio, out)
	}

	return out, nil
}

type dimensions struct {
	rows   int
	cols   int
	width  float64
	height float64
}

// bestDimensions tries every row count and keeps the even grid with the
// largest total tile area. Rows are tried in ascending order and only a
// strictly larger area replaces the current best, so ties keep fewer rows.
func bestDimensions(minRatio, maxRatio, width, height float64, count int) dimensions {
	best := dimensions{rows: 1, cols: count}
	maxArea := -1.0

	for rows := 1; rows <= count; rows++ {
		cols := (count + rows - 1) / rows
		if (count+cols-1)/cols != rows {
			// this grid would leave a whole row empty
			continue
		}

		tileHeight := math.Floor(height / float64(rows))
		tileWidth := math.Floor(width / float64(cols))
		if tileWidth <= 0 || tileHeight <= 0 {
			continue
		}

		ratio := tileHeight / tileWidth
		if ratio > maxRatio {
			tileHeight = tileWidth * maxRatio
		} else if ratio < minRatio {
			tileWidth = tileHeight / minRatio
		}

		area := tileWidth * tileHeight * float64(count)
		if area > maxArea {
			maxArea = area
			best = dimensions{rows: rows, cols: cols, width: tileWidth, height: tileHeight}
		}
	}
	return best
}

type row struct {
	members []int
	width   float64
	height  float64
}

func arrange(tiles []Tile, idx []int, width, height, offsetLeft, offsetTop float64, fixed bool, minRatio, maxRatio float64, out []Placement) {
	var dims dimensions
	if fixed {
		r := tiles[idx[0]].ratio()
		dims = bestDimensions(r, r, width, height, len(idx))
	} else {
		dims = bestDimensions(minRatio, maxRatio, width, height, len(idx))
	}

	var rows []*row
	for i, ti := range idx {
		if i%dims.cols == 0 {
			rows = append(rows, &row{})
		}
		r := rows[len(rows)-1]
		w := dims.width
		if fixed {
			w = dims.height / tiles[ti].ratio()
		}
		r.members = append(r.members, ti)
		r.width += w
		r.height = dims.height
	}

	// Shrink rows that went over the width, count the ones that can grow.
	var totalHeight float64
	shortRows := 0
	for _, r := range rows {
		if r.width > width {
			r.height = r.height * width / r.width
			r.width = width
		} else if r.width < width {
			shortRows++
		}
		totalHeight += r.height
	}

	if totalHeight < height && shortRows > 0 && dims.height > 0 {
		remaining := height - totalHeight
		totalHeight = 0
		for _, r := range rows {
			if r.width < width {
				extra := remaining / float64(shortRows)
				if extra/r.height > (width-r.width)/r.width {
					extra = (width - r.width) / r.width * r.height
				}
				r.width += extra / r.height * r.width
				r.height += extra
				remaining -= extra
				shortRows--
			}
			totalHeight += r.height
		}
	}

	y := (height - totalHeight) / 2
	for _, r := range rows {
		x := (width - r.width) / 2
		for _, ti := range r.members {
			var w float64
			switch {
			case fixed:
				w = r.height / tiles[ti].ratio()
			case dims.height > 0:
				w = dims.width * r.height / dims.height
			}
			out[ti] = Placement{
				ID:  tiles[ti].ID,
				Big: tiles[ti].Big,
				Rect: Rect{
					X:      x + offsetLeft,
					Y:      y + offsetTop,
					Width:  w,
					Height: r.height,
				},
			}
			x += w
		}
		y += r.height
	}
}
