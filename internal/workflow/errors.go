package workflow

import "errors"

var (
	// ErrNoData indicates a configuration naming neither a file nor a generator.
	ErrNoData = errors.New("workflow: no data source")

	// ErrUnknownModel indicates a model name absent from the configuration.
	ErrUnknownModel = errors.New("workflow: unknown model")

	// ErrGridAxis indicates a prediction axis that cannot be built.
	ErrGridAxis = errors.New("workflow: invalid prediction grid axis")
)
