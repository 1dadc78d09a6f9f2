package gif

import (
	"fmt"
	"image/gif"
	"io"

	"github.com/gorgonia/boltzmann"
	"github.com/gorgonia/boltzmann/encoding"
	"github.com/gorgonia/boltzmann/rbm"
	"github.com/pkg/errors"
)

// Encoder is a boltzmann.Watcher that records the filters of a layer at the
// end of every epoch, and writes them as an animated gif on Flush.
type Encoder struct {
	io.Writer
	Delay int // between frames, in hundredths of a second

	r   *encoding.Renderer
	out *gif.GIF
	err error
}

// NewGifEncoder creates an encoder writing into w. The visible units of a
// filter are laid out as rows × cols, scale pixels each.
func NewGifEncoder(w io.Writer, rows, cols, scale int) *Encoder {
	return &Encoder{
		Writer: w,
		Delay:  50,
		r:      encoding.NewRenderer(rows, cols, scale),
		out:    &gif.GIF{LoopCount: 0},
	}
}

// Encode adds a frame showing the current filters of l.
func (enc *Encoder) Encode(l *rbm.RBM, caption string) error {
	im, err := enc.r.Render(l, caption)
	if err != nil {
		return err
	}
	enc.out.Image = append(enc.out.Image, im)
	enc.out.Delay = append(enc.out.Delay, enc.Delay)
	return nil
}

// Frames returns the number of frames encoded so far.
func (enc *Encoder) Frames() int { return len(enc.out.Image) }

// Err returns the first error met while encoding epochs.
func (enc *Encoder) Err() error { return enc.err }

func (enc *Encoder) TrainingBegin(l *rbm.RBM, epochs int) {
	if enc.err == nil {
		enc.err = enc.Encode(l, "Initial filters")
	}
}

func (enc *Encoder) BatchEnd(l *rbm.RBM, s boltzmann.BatchStats) {}

func (enc *Encoder) EpochEnd(l *rbm.RBM, s boltzmann.EpochStats) {
	if enc.err == nil {
		enc.err = enc.Encode(l, fmt.Sprintf("Epoch %d, error %.5f", s.Epoch, s.ReconstructionError))
	}
}

func (enc *Encoder) Diverged(l *rbm.RBM, epoch int, err error) {}

func (enc *Encoder) TrainingEnd(l *rbm.RBM) {
	// hold the last frame
	if n := len(enc.out.Delay); n > 0 {
		enc.out.Delay[n-1] = 300
	}
}

// Flush writes the gif into the writer
func (enc *Encoder) Flush() error {
	if enc.err != nil {
		return enc.err
	}
	if len(enc.out.Image) == 0 {
		return errors.New("no frame to write")
	}
	return errors.WithStack(gif.EncodeAll(enc.Writer, enc.out))
}
