package boltzmann

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/gorgonia/boltzmann/rbm"
)

// Statistics records the epoch statistics of a training run. It is a
// Watcher.
type Statistics struct {
	Epochs              []int
	ReconstructionError []float32
	Sparsity            []float32
	FreeEnergy          []float32
	LearningRate        []float32
	Divergences         []int // epochs that diverged
}

func MakeStatistics() Statistics {
	return Statistics{
		Epochs:              make([]int, 0, 64),
		ReconstructionError: make([]float32, 0, 64),
		Sparsity:            make([]float32, 0, 64),
		FreeEnergy:          make([]float32, 0, 64),
		LearningRate:        make([]float32, 0, 64),
	}
}

func (s *Statistics) TrainingBegin(l *rbm.RBM, epochs int) {}
func (s *Statistics) BatchEnd(l *rbm.RBM, bs BatchStats)   {}
func (s *Statistics) TrainingEnd(l *rbm.RBM)               {}

func (s *Statistics) EpochEnd(l *rbm.RBM, es EpochStats) {
	s.Epochs = append(s.Epochs, es.Epoch)
	s.ReconstructionError = append(s.ReconstructionError, es.ReconstructionError)
	s.Sparsity = append(s.Sparsity, es.Sparsity)
	s.FreeEnergy = append(s.FreeEnergy, es.FreeEnergy)
	s.LearningRate = append(s.LearningRate, es.LearningRate)
}

func (s *Statistics) Diverged(l *rbm.RBM, epoch int, err error) {
	s.Divergences = append(s.Divergences, epoch)
}

// Dump writes the statistics into filename as CSV.
func (s *Statistics) Dump(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.WriteCSV(f)
}

// WriteCSV writes one record per epoch, after a header.
func (s *Statistics) WriteCSV(out io.Writer) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{"epoch", "reconstruction_error", "sparsity", "free_energy", "learning_rate"}); err != nil {
		return err
	}
	ff := func(f float32) string { return strconv.FormatFloat(float64(f), 'f', 5, 32) }
	records := make([][]string, 0, len(s.Epochs))
	for i, epoch := range s.Epochs {
		records = append(records, []string{
			strconv.Itoa(epoch),
			ff(s.ReconstructionError[i]),
			ff(s.Sparsity[i]),
			ff(s.FreeEnergy[i]),
			ff(s.LearningRate[i]),
		})
	}
	if err := w.WriteAll(records); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
