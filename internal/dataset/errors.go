package dataset

import "errors"

var (
	// ErrUnknownColumn indicates a lookup of a column the table does not have.
	ErrUnknownColumn = errors.New("dataset: unknown column")

	// ErrKindMismatch indicates a numeric access to a categorical column or vice versa.
	ErrKindMismatch = errors.New("dataset: column kind mismatch")

	// ErrLength indicates a column whose length differs from the table row count.
	ErrLength = errors.New("dataset: column length mismatch")

	// ErrEmpty indicates a CSV source without a header or data rows.
	ErrEmpty = errors.New("dataset: no data")
)
