// Package encoding renders the weights of a layer as images. Its
// subpackages turn the images into watchers of a training run.
package encoding

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/golang/freetype/truetype"
	"github.com/gorgonia/boltzmann/rbm"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/math/fixed"
)

var regular *truetype.Font

const (
	dpi             = 144.0
	fontsize        = 12.0
	lineheight      = 1.2
	gap             = 2
	dummyLongString = `Epoch 100000, error 0.00000`
)

func init() {
	var err error
	if regular, err = truetype.Parse(gomono.TTF); err != nil {
		panic(err)
	}
}

// Palette holds 256 levels of gray; index i is Gray{i}.
var Palette = func() color.Palette {
	p := make(color.Palette, 256)
	for i := range p {
		p[i] = color.Gray{uint8(i)}
	}
	return p
}()

// Renderer draws the filter of every hidden unit, the column of weights
// connecting it to the visible units, as a grid of gray tiles. Each filter
// is normalised to the full gray range.
type Renderer struct {
	Rows, Cols int // layout of the visible units in a tile
	Scale      int // pixels per visible unit
	font.Drawer

	padH, padW int
}

// NewRenderer creates a renderer for visible units laid out as rows × cols.
func NewRenderer(rows, cols, scale int) *Renderer {
	if scale < 1 {
		scale = 1
	}
	return &Renderer{
		Rows:  rows,
		Cols:  cols,
		Scale: scale,
		padH:  10,
		padW:  10,
		Drawer: font.Drawer{
			Src: image.Black,
			Face: truetype.NewFace(regular, &truetype.Options{
				Size:    fontsize,
				DPI:     dpi,
				Hinting: font.HintingFull,
			}),
		},
	}
}

// Bounds returns the size of the images rendered for a layer with the given
// number of hidden units. It does not depend on the caption, so every frame
// of a run has the same size.
func (r *Renderer) Bounds(hidden int) image.Rectangle {
	gridCols, gridRows := grid(hidden)
	w := gridCols*(r.Cols*r.Scale+gap) - gap + 2*r.padW
	if cw := font.MeasureString(r.Face, dummyLongString).Ceil() + 2*r.padW; cw > w {
		w = cw
	}
	h := r.gridBottom(gridRows) + lineHeight() + r.padH
	return image.Rect(0, 0, w, h)
}

// Render draws the filters of l with the caption underneath.
func (r *Renderer) Render(l *rbm.RBM, caption string) (*image.Paletted, error) {
	v, h := l.Visible, l.Hidden
	if r.Rows*r.Cols != v {
		return nil, errors.Errorf("tiles of %d×%d cannot show %d visible units", r.Rows, r.Cols, v)
	}
	im := image.NewPaletted(r.Bounds(h), Palette)
	draw.Draw(im, im.Bounds(), image.White, image.ZP, draw.Src)

	gridCols, gridRows := grid(h)
	tileW, tileH := r.Cols*r.Scale, r.Rows*r.Scale
	ws := l.W.Data().([]float32)
	for j := 0; j < h; j++ {
		lo, hi := ws[j], ws[j]
		for i := 1; i < v; i++ {
			w := ws[i*h+j]
			if w < lo {
				lo = w
			}
			if w > hi {
				hi = w
			}
		}
		ox := r.padW + (j%gridCols)*(tileW+gap)
		oy := r.padH + (j/gridCols)*(tileH+gap)
		for i := 0; i < v; i++ {
			g := uint8(127)
			if hi > lo {
				g = uint8((ws[i*h+j] - lo) / (hi - lo) * 255)
			}
			px := ox + (i%r.Cols)*r.Scale
			py := oy + (i/r.Cols)*r.Scale
			for dy := 0; dy < r.Scale; dy++ {
				for dx := 0; dx < r.Scale; dx++ {
					im.SetColorIndex(px+dx, py+dy, g)
				}
			}
		}
	}

	r.Dst = im
	r.Dot = fixed.P(r.padW, r.gridBottom(gridRows)+lineHeight())
	r.DrawString(caption)
	return im, nil
}

func (r *Renderer) gridBottom(gridRows int) int {
	return r.padH + gridRows*(r.Rows*r.Scale+gap) - gap
}

func lineHeight() int { return int(math.Ceil(fontsize * lineheight * dpi / 72)) }

// grid lays n tiles out in a square-ish grid.
func grid(n int) (cols, rows int) {
	cols = int(math.Ceil(math.Sqrt(float64(n))))
	if cols < 1 {
		cols = 1
	}
	rows = (n + cols - 1) / cols
	return
}
