package geometry

import "github.com/pkg/errors"

// ErrInvalidTransformConfig is returned when a transform or region is built
// from dimensions that would divide by zero or produce NaN/Inf coordinates.
var ErrInvalidTransformConfig = errors.New("invalid transform config")
