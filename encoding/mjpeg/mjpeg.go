package mjpeg

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"log"
	"net/http"

	"github.com/gorgonia/boltzmann"
	"github.com/gorgonia/boltzmann/encoding"
	"github.com/gorgonia/boltzmann/rbm"
	"github.com/mattn/go-mjpeg"
)

// Encoder is a boltzmann.Watcher that streams the filters of a layer as a
// motion jpeg over HTTP. It refreshes the frame at the end of every epoch,
// and every Every batches when Every is positive.
type Encoder struct {
	Every   int
	Quality int

	r      *encoding.Renderer
	stream *mjpeg.Stream
}

func (e *Encoder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.stream.ServeHTTP(w, r)
}

// NewEncoder creates an encoder for visible units laid out as rows × cols,
// scale pixels each.
func NewEncoder(rows, cols, scale int) *Encoder {
	return &Encoder{
		Quality: jpeg.DefaultQuality,
		r:       encoding.NewRenderer(rows, cols, scale),
		stream:  mjpeg.NewStream(),
	}
}

// Encode replaces the streamed frame with the current filters of l.
func (enc *Encoder) Encode(l *rbm.RBM, caption string) error {
	im, err := enc.r.Render(l, caption)
	if err != nil {
		return err
	}
	var b bytes.Buffer
	if err = jpeg.Encode(&b, im, &jpeg.Options{Quality: enc.Quality}); err != nil {
		return err
	}
	return enc.stream.Update(b.Bytes())
}

func (enc *Encoder) encode(l *rbm.RBM, caption string) {
	if err := enc.Encode(l, caption); err != nil {
		log.Println(err)
	}
}

func (enc *Encoder) TrainingBegin(l *rbm.RBM, epochs int) { enc.encode(l, "Initial filters") }

func (enc *Encoder) BatchEnd(l *rbm.RBM, s boltzmann.BatchStats) {
	if enc.Every > 0 && (s.Batch+1)%enc.Every == 0 {
		enc.encode(l, fmt.Sprintf("Epoch %d, batch %d", s.Epoch, s.Batch))
	}
}

func (enc *Encoder) EpochEnd(l *rbm.RBM, s boltzmann.EpochStats) {
	enc.encode(l, fmt.Sprintf("Epoch %d, error %.5f", s.Epoch, s.ReconstructionError))
}

func (enc *Encoder) Diverged(l *rbm.RBM, epoch int, err error) {
	enc.encode(l, fmt.Sprintf("Epoch %d diverged", epoch))
}

func (enc *Encoder) TrainingEnd(l *rbm.RBM) {}
