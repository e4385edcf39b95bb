package ahrs

import (
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrShapeMismatch is returned when input sequences differ in length or a
	// sample has the wrong number of components.
	ErrShapeMismatch = errors.New("ahrs: shape mismatch")
	// ErrInvalidConfiguration is returned when an observer cannot be built from a Config.
	ErrInvalidConfiguration = errors.New("ahrs: invalid configuration")
	// ErrDegenerateMeasurement is returned when a reference vector has near-zero norm.
	ErrDegenerateMeasurement = errors.New("ahrs: degenerate measurement")
	// ErrNumericalSingularity is returned when a matrix that must be inverted is singular.
	ErrNumericalSingularity = errors.New("ahrs: numerical singularity")
)

func invalidf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidConfiguration, format, args...)
}

func shapef(format string, args ...interface{}) error {
	return errors.Wrapf(ErrShapeMismatch, format, args...)
}

// Err converts the fault set into an error, or nil if no fault is set.
func (f Fault) Err() error {
	switch {
	case f == 0:
		return nil
	case f&FaultSingular != 0:
		return errors.Wrap(ErrNumericalSingularity, f.String())
	case f&(FaultDegenerateAcc|FaultDegenerateMag) != 0:
		return errors.Wrap(ErrDegenerateMeasurement, f.String())
	default:
		return errors.Wrap(ErrNumericalSingularity, f.String())
	}
}

func (f Fault) String() string {
	if f == 0 {
		return "none"
	}
	var s []string
	if f&FaultDegenerateAcc != 0 {
		s = append(s, "degenerate-acc")
	}
	if f&FaultDegenerateMag != 0 {
		s = append(s, "degenerate-mag")
	}
	if f&FaultSingular != 0 {
		s = append(s, "singular")
	}
	if f&FaultCovariance != 0 {
		s = append(s, "covariance")
	}
	return strings.Join(s, "|")
}
