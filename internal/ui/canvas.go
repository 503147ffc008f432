package ui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/BioHazard786/roomview/internal/layout"
	"github.com/BioHazard786/roomview/internal/utils"
)

// CellAspect is the height of a terminal cell in column widths. Containers
// handed to the layout engine are measured in column widths so tile ratios
// come out right on screen.
const CellAspect = 2.0

// TileView is one placement with the label drawn inside it.
type TileView struct {
	Placement layout.Placement
	Label     string
}

// Canvas draws tile placements onto a grid of terminal cells.
type Canvas struct {
	Cols int
	Rows int
}

// Size returns the container size to give the layout engine.
func (c Canvas) Size() (width, height float64) {
	if c.Cols <= 0 || c.Rows <= 0 {
		return 0, 0
	}
	return float64(c.Cols), float64(c.Rows) * CellAspect
}

type cellRect struct {
	x, y, w, h int
}

// cells scales r, computed for a width x height container, onto the grid.
func (c Canvas) cells(r layout.Rect, width, height float64) cellRect {
	if width <= 0 || height <= 0 {
		return cellRect{}
	}
	sx := float64(c.Cols) / width
	sy := float64(c.Rows) / height

	x0 := clamp(int(math.Round(r.X*sx)), 0, c.Cols)
	y0 := clamp(int(math.Round(r.Y*sy)), 0, c.Rows)
	x1 := clamp(int(math.Round((r.X+r.Width)*sx)), 0, c.Cols)
	y1 := clamp(int(math.Round((r.Y+r.Height)*sy)), 0, c.Rows)
	return cellRect{x: x0, y: y0, w: x1 - x0, h: y1 - y0}
}

type cellClass uint8

const (
	cellBlank cellClass = iota
	cellTile
	cellBig
	cellLabel
)

type box struct {
	tl, tr, bl, br, h, v rune
}

var (
	tileBox = box{'┌', '┐', '└', '┘', '─', '│'}
	bigBox  = box{'╔', '╗', '╚', '╝', '═', '║'}
)

// Render draws tiles whose placements were computed for a width x height
// container. The result always has Rows lines of Cols cells.
func (c Canvas) Render(width, height float64, tiles []TileView) string {
	if c.Cols <= 0 || c.Rows <= 0 {
		return ""
	}

	grid := make([][]rune, c.Rows)
	class := make([][]cellClass, c.Rows)
	for y := range grid {
		grid[y] = []rune(strings.Repeat(" ", c.Cols))
		class[y] = make([]cellClass, c.Cols)
	}

	set := func(x, y int, r rune, cl cellClass) {
		grid[y][x] = r
		class[y][x] = cl
	}

	for _, t := range tiles {
		cr := c.cells(t.Placement.Rect, width, height)
		if cr.w <= 0 || cr.h <= 0 {
			continue
		}

		b, cl := tileBox, cellTile
		if t.Placement.Big {
			b, cl = bigBox, cellBig
		}

		if cr.w < 2 || cr.h < 2 {
			set(cr.x, cr.y, '▪', cl)
			continue
		}

		right, bottom := cr.x+cr.w-1, cr.y+cr.h-1
		for x := cr.x + 1; x < right; x++ {
			set(x, cr.y, b.h, cl)
			set(x, bottom, b.h, cl)
		}
		for y := cr.y + 1; y < bottom; y++ {
			set(cr.x, y, b.v, cl)
			set(right, y, b.v, cl)
		}
		set(cr.x, cr.y, b.tl, cl)
		set(right, cr.y, b.tr, cl)
		set(cr.x, bottom, b.bl, cl)
		set(right, bottom, b.br, cl)

		inner := cr.w - 2
		if inner <= 0 || cr.h < 3 || t.Label == "" {
			continue
		}
		label := []rune(utils.Truncate(t.Label, inner))
		ly := cr.y + cr.h/2
		lx := cr.x + 1 + (inner-len(label))/2
		for i, r := range label {
			set(lx+i, ly, r, cellLabel)
		}
	}

	lines := make([]string, c.Rows)
	for y := range grid {
		lines[y] = renderRow(grid[y], class[y])
	}
	return strings.Join(lines, "\n")
}

func renderRow(cells []rune, class []cellClass) string {
	var b strings.Builder
	start := 0
	for i := 1; i <= len(cells); i++ {
		if i < len(cells) && class[i] == class[start] {
			continue
		}
		b.WriteString(styleFor(class[start]).Render(string(cells[start:i])))
		start = i
	}
	return b.String()
}

func styleFor(cl cellClass) lipgloss.Style {
	switch cl {
	case cellTile:
		return TileBorderStyle
	case cellBig:
		return BigTileBorderStyle
	case cellLabel:
		return BoldStyle
	default:
		return lipgloss.NewStyle()
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
