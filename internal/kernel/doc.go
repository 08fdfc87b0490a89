// Package kernel provides covariance functions for Gaussian process terms.
//
// The squared-exponential kernel is the one fitted to data:
//
//	k(d) = s² · exp(-d² / (2ℓ²))
//
// where d is the distance between two predictor locations (absolute time
// difference, or Euclidean distance between longitude/latitude pairs), s the
// amplitude and ℓ the length-scale. [Exponential], [Periodic] and [Product]
// are available for illustrating alternative kernel shapes against
// hypothetical parameter draws; the engine in package gp does not fit them.
//
// # Matrices
//
// [Matrix] and [Cross] evaluate a kernel over point sets. Large matrices are
// filled by a chunked worker pool.
package kernel
