package layout

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const epsilon = 1e-9

type fakeSurface struct {
	placed  []Rect
	animate []bool
}

func (s *fakeSurface) Place(r Rect, animate bool) {
	s.placed = append(s.placed, r)
	s.animate = append(s.animate, animate)
}

func tiles(n int) []Tile {
	out := make([]Tile, n)
	for i := range out {
		out[i] = Tile{ID: fmt.Sprintf("t%d", i)}
	}
	return out
}

func TestArrange(t *testing.T) {
	tests := []struct {
		name   string
		opts   Options
		width  float64
		height float64
		tiles  []Tile
		want   []Rect
	}{
		{
			name:   "single tile fills a 16:9 container",
			opts:   DefaultOptions(),
			width:  1280,
			height: 720,
			tiles:  tiles(1),
			want:   []Rect{{X: 0, Y: 0, Width: 1280, Height: 720}},
		},
		{
			name:   "two tiles side by side",
			opts:   DefaultOptions(),
			width:  1280,
			height: 720,
			tiles:  tiles(2),
			want: []Rect{
				{X: 0, Y: 0, Width: 640, Height: 720},
				{X: 640, Y: 0, Width: 640, Height: 720},
			},
		},
		{
			name:   "equal area prefers fewer rows",
			opts:   Options{MinRatio: 0.5, MaxRatio: 2, BigPercentage: 0.8, BigMinRatio: 0.5, BigMaxRatio: 2},
			width:  1000,
			height: 1000,
			tiles:  tiles(2),
			want: []Rect{
				{X: 0, Y: 0, Width: 500, Height: 1000},
				{X: 500, Y: 0, Width: 500, Height: 1000},
			},
		},
		{
			name:   "big tile last on a wide container",
			opts:   DefaultOptions(),
			width:  1280,
			height: 720,
			tiles:  []Tile{{ID: "main", Big: true}, {ID: "side"}},
			want: []Rect{
				{X: 231, Y: 0, Width: 1049, Height: 720},
				{X: 0, Y: 186.75, Width: 231, Height: 346.5},
			},
		},
		{
			name: "big tile first on a wide container",
			opts: func() Options {
				o := DefaultOptions()
				o.BigFirst = true
				return o
			}(),
			width:  1280,
			height: 720,
			tiles:  []Tile{{ID: "main", Big: true}, {ID: "side"}},
			want: []Rect{
				{X: 0, Y: 0, Width: 1049, Height: 720},
				{X: 1049, Y: 186.75, Width: 231, Height: 346.5},
			},
		},
		{
			name: "fixed ratio keeps the video ratio",
			opts: func() Options {
				o := DefaultOptions()
				o.FixedRatio = true
				return o
			}(),
			width:  800,
			height: 800,
			tiles:  []Tile{{ID: "cam", VideoRatio: 0.75}},
			want:   []Rect{{X: 0, Y: 100, Width: 800, Height: 600}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Arrange(tt.opts, tt.width, tt.height, tt.tiles)
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))

			for i, want := range tt.want {
				assert.Equal(t, tt.tiles[i].ID, got[i].ID)
				assert.InDelta(t, want.X, got[i].Rect.X, epsilon, "x of %s", got[i].ID)
				assert.InDelta(t, want.Y, got[i].Rect.Y, epsilon, "y of %s", got[i].ID)
				assert.InDelta(t, want.Width, got[i].Rect.Width, epsilon, "width of %s", got[i].ID)
				assert.InDelta(t, want.Height, got[i].Rect.Height, epsilon, "height of %s", got[i].ID)
			}
		})
	}
}

func TestArrange_Empty(t *testing.T) {
	got, err := Arrange(DefaultOptions(), 1280, 720, nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = Arrange(DefaultOptions(), 0, 720, tiles(3))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestArrange_MultipleBig(t *testing.T) {
	_, err := Arrange(DefaultOptions(), 1280, 720, []Tile{{ID: "a", Big: true}, {ID: "b", Big: true}})
	assert.ErrorIs(t, err, ErrMultipleBig)
}

func TestArrange_RatioBounds(t *testing.T) {
	bounds := []struct{ min, max float64 }{
		{9.0 / 16.0, 3.0 / 2.0},
		{0.75, 0.75},
		{0.3, 3},
	}
	containers := []struct{ w, h float64 }{
		{1280, 720},
		{720, 1280},
		{333, 777},
		{1920, 200},
		{50, 50},
	}

	for _, b := range bounds {
		for _, c := range containers {
			for n := 1; n <= 12; n++ {
				opts := DefaultOptions()
				opts.MinRatio, opts.MaxRatio = b.min, b.max

				got, err := Arrange(opts, c.w, c.h, tiles(n))
				require.NoError(t, err)
				require.Len(t, got, n)

				for _, p := range got {
					r := p.Rect.Ratio()
					assert.GreaterOrEqual(t, r, b.min-epsilon, "n=%d container=%vx%v", n, c.w, c.h)
					assert.LessOrEqual(t, r, b.max+epsilon, "n=%d container=%vx%v", n, c.w, c.h)
					assert.GreaterOrEqual(t, p.Rect.X, -epsilon)
					assert.GreaterOrEqual(t, p.Rect.Y, -epsilon)
					assert.LessOrEqual(t, p.Rect.X+p.Rect.Width, c.w+epsilon)
					assert.LessOrEqual(t, p.Rect.Y+p.Rect.Height, c.h+epsilon)
				}
			}
		}
	}
}

func TestArrange_Idempotent(t *testing.T) {
	in := []Tile{{ID: "a"}, {ID: "b", Big: true}, {ID: "c"}, {ID: "d"}}

	first, err := Arrange(DefaultOptions(), 1024, 768, in)
	require.NoError(t, err)
	second, err := Arrange(DefaultOptions(), 1024, 768, in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Options) {}},
		{name: "inverted bounds", mutate: func(o *Options) { o.MinRatio, o.MaxRatio = 2, 1 }, wantErr: true},
		{name: "zero ratio", mutate: func(o *Options) { o.MinRatio = 0 }, wantErr: true},
		{name: "inverted big bounds", mutate: func(o *Options) { o.BigMinRatio = 3 }, wantErr: true},
		{name: "big percentage of one", mutate: func(o *Options) { o.BigPercentage = 1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			err := opts.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEngine_NotMounted(t *testing.T) {
	e, err := NewEngine(DefaultOptions())
	require.NoError(t, err)

	surface := &fakeSurface{}
	_, err = e.Layout([]Tile{{ID: "a", Surface: surface}})

	assert.ErrorIs(t, err, ErrNotMounted)
	assert.Empty(t, surface.placed)
	assert.Nil(t, e.Last())
}

func TestEngine_LayoutAppliesSurfaces(t *testing.T) {
	opts := DefaultOptions()
	opts.Animate = true
	e, err := NewEngine(opts)
	require.NoError(t, err)

	e.Mount(1280, 720)
	a, b := &fakeSurface{}, &fakeSurface{}

	placements, err := e.Layout([]Tile{{ID: "a", Surface: a}, {ID: "b", Surface: b}})
	require.NoError(t, err)
	require.Len(t, placements, 2)

	require.Len(t, a.placed, 1)
	require.Len(t, b.placed, 1)
	assert.Equal(t, placements[0].Rect, a.placed[0])
	assert.Equal(t, placements[1].Rect, b.placed[0])
	assert.Equal(t, []bool{true}, a.animate)
	assert.Equal(t, placements, e.Last())

	again, err := e.Layout([]Tile{{ID: "a", Surface: a}, {ID: "b", Surface: b}})
	require.NoError(t, err)
	assert.Equal(t, placements, again)
}

func TestEngine_MountZeroUnmounts(t *testing.T) {
	e, err := NewEngine(DefaultOptions())
	require.NoError(t, err)

	e.Mount(640, 480)
	assert.True(t, e.Mounted())

	e.Mount(0, 480)
	assert.False(t, e.Mounted())

	_, err = e.Layout(tiles(1))
	assert.ErrorIs(t, err, ErrNotMounted)
}

func TestNewEngine_InvalidOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxRatio = 0.1

	_, err := NewEngine(opts)
	assert.Error(t, err)
}
