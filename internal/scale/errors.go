package scale

import "errors"

// ErrDegenerateScale indicates a response column whose standard deviation is
// zero, NaN or infinite, so z-scores cannot be formed.
var ErrDegenerateScale = errors.New("scale: degenerate standard deviation")
