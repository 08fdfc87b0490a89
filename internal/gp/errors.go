package gp

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientDraws indicates a sampler configuration or run that
	// cannot produce the requested post-warmup draws.
	ErrInsufficientDraws = errors.New("gp: insufficient post-warmup draws")

	// ErrCovariateMismatch indicates prediction rows with missing columns or
	// factor levels the model was not fitted on.
	ErrCovariateMismatch = errors.New("gp: prediction covariates do not match the fitted model")

	// ErrInvalidConfig indicates sampler settings outside their valid range.
	ErrInvalidConfig = errors.New("gp: invalid sampler configuration")

	// ErrNoValidInit indicates no initial point with finite log density was found.
	ErrNoValidInit = errors.New("gp: could not find initial values with finite log density")

	// ErrNotPositiveDefinite indicates a covariance matrix that failed to factorise.
	ErrNotPositiveDefinite = errors.New("gp: covariance matrix is not positive definite")

	// ErrEmptyData indicates a fit on a table without usable rows.
	ErrEmptyData = errors.New("gp: no observations")
)

// FitError wraps a failure with the model and chain it happened in.
// Chain is -1 when the failure is not specific to a chain.
type FitError struct {
	Model   string
	Chain   int
	Wrapped error
}

func (e *FitError) Error() string {
	if e.Chain < 0 {
		return fmt.Sprintf("fit %s: %v", e.Model, e.Wrapped)
	}
	return fmt.Sprintf("fit %s (chain %d): %v", e.Model, e.Chain, e.Wrapped)
}

func (e *FitError) Unwrap() error {
	return e.Wrapped
}
