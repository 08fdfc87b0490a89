package aggregate

import "errors"

var (
	// ErrDegenerateGroup indicates a group with a single observation, whose
	// standard error and confidence bounds are undefined.
	ErrDegenerateGroup = errors.New("aggregate: group has fewer than 2 observations")

	// ErrNoGroups indicates an empty grouping factor list.
	ErrNoGroups = errors.New("aggregate: no grouping factors")
)
