package boltzmann

import (
	"io"
	"log"

	"github.com/gorgonia/boltzmann/rbm"
)

// Watchers notifies every watcher it holds, in order.
type Watchers []Watcher

func (ws Watchers) TrainingBegin(l *rbm.RBM, epochs int) {
	for _, w := range ws {
		w.TrainingBegin(l, epochs)
	}
}

func (ws Watchers) BatchEnd(l *rbm.RBM, s BatchStats) {
	for _, w := range ws {
		w.BatchEnd(l, s)
	}
}

func (ws Watchers) EpochEnd(l *rbm.RBM, s EpochStats) {
	for _, w := range ws {
		w.EpochEnd(l, s)
	}
}

func (ws Watchers) Diverged(l *rbm.RBM, epoch int, err error) {
	for _, w := range ws {
		w.Diverged(l, epoch, err)
	}
}

func (ws Watchers) TrainingEnd(l *rbm.RBM) {
	for _, w := range ws {
		w.TrainingEnd(l)
	}
}

// LogWatcher logs the progress of training. Batches are only logged for
// verbose layers.
type LogWatcher struct {
	logger *log.Logger
}

// NewLogWatcher creates a LogWatcher writing to w.
func NewLogWatcher(w io.Writer) *LogWatcher {
	return &LogWatcher{logger: log.New(w, "", log.Ltime)}
}

func (lw *LogWatcher) TrainingBegin(l *rbm.RBM, epochs int) {
	lw.logger.Printf("Training %v for %d epochs (%d weights)", l, epochs, l.Parameters())
}

func (lw *LogWatcher) BatchEnd(l *rbm.RBM, s BatchStats) {
	if !l.Verbose {
		return
	}
	lw.logger.Printf("\tEpoch %d batch %d: reconstruction error %.5f, sparsity %.3f", s.Epoch, s.Batch, s.ReconstructionError, s.Sparsity)
}

func (lw *LogWatcher) EpochEnd(l *rbm.RBM, s EpochStats) {
	if l.ComputeFreeEnergy {
		lw.logger.Printf("Epoch %d: reconstruction error %.5f, sparsity %.3f, free energy %.3f, lr %v (%v)",
			s.Epoch, s.ReconstructionError, s.Sparsity, s.FreeEnergy, s.LearningRate, s.Duration)
		return
	}
	lw.logger.Printf("Epoch %d: reconstruction error %.5f, sparsity %.3f, lr %v (%v)",
		s.Epoch, s.ReconstructionError, s.Sparsity, s.LearningRate, s.Duration)
}

func (lw *LogWatcher) Diverged(l *rbm.RBM, epoch int, err error) {
	lw.logger.Printf("Epoch %d diverged, restoring the parameters: %v", epoch, err)
}

func (lw *LogWatcher) TrainingEnd(l *rbm.RBM) {
	lw.logger.Printf("Training of %v done", l)
}
