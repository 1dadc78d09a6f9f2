package boltzmann

import (
	"encoding/gob"
	"io"
	"os"

	"github.com/gorgonia/boltzmann/rbm"
	"github.com/pkg/errors"
)

type savedLayer struct {
	Config rbm.Config
	Params *rbm.Params
}

// Save writes the configuration and the parameters of the layer into
// filename.
func Save(filename string, l *rbm.RBM) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()
	return Encode(f, l)
}

// Load reads a layer written by Save.
func Load(filename string) (*rbm.RBM, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()
	return Decode(f)
}

// Encode writes the layer into w with gob.
func Encode(w io.Writer, l *rbm.RBM) error {
	enc := gob.NewEncoder(w)
	if err := enc.Encode(savedLayer{Config: l.Config, Params: l.Params}); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Decode reads a layer written by Encode. The configuration is validated
// again.
func Decode(r io.Reader) (*rbm.RBM, error) {
	var s savedLayer
	if err := gob.NewDecoder(r).Decode(&s); err != nil {
		return nil, errors.WithStack(err)
	}
	if s.Params == nil {
		return nil, errors.New("saved layer has no parameters")
	}
	l, err := rbm.New(s.Config)
	if err != nil {
		return nil, err
	}
	if err = l.SetParams(s.Params); err != nil {
		return nil, err
	}
	return l, nil
}
