package rbm

import (
	"github.com/pkg/errors"
)

var (
	// ErrConfiguration is the cause of every error raised because a
	// configuration, or the shape of an input checked against it, is invalid.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrNumericDivergence is returned when NaN or Inf shows up in the
	// parameters. Training can recover by restoring a snapshot.
	ErrNumericDivergence = errors.New("numeric divergence")

	// ErrMissingSnapshot is returned by Restore when no snapshot was taken.
	ErrMissingSnapshot = errors.New("no parameter snapshot to restore")
)

func configErrorf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConfiguration, format, args...)
}
