package kernel

import (
	"runtime"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// parallelThreshold is the row count from which matrices are filled by
// several workers.
const parallelThreshold = 64

// Matrix evaluates k over every pair of points.
func Matrix(points [][]float64, k Kernel) *mat.SymDense {
	n := len(points)
	if n == 0 {
		return &mat.SymDense{}
	}
	m := mat.NewSymDense(n, nil)
	Fill(m, points, k)
	return m
}

// Fill overwrites the upper triangle of dst, which must be len(points)
// square, with k evaluated over every pair of points.
func Fill(dst *mat.SymDense, points [][]float64, k Kernel) {
	n := len(points)
	fill := func(start, end int) {
		for i := start; i < end; i++ {
			for j := i; j < n; j++ {
				dst.SetSym(i, j, k.Cov(Distance(points[i], points[j])))
			}
		}
	}
	parallelRows(n, fill)
}

// Cross evaluates k between every point of a (rows) and b (columns).
func Cross(a, b [][]float64, k Kernel) *mat.Dense {
	if len(a) == 0 || len(b) == 0 {
		return &mat.Dense{}
	}
	m := mat.NewDense(len(a), len(b), nil)
	fill := func(start, end int) {
		for i := start; i < end; i++ {
			for j := range b {
				m.Set(i, j, k.Cov(Distance(a[i], b[j])))
			}
		}
	}
	parallelRows(len(a), fill)
	return m
}

// parallelRows splits [0, n) into one contiguous chunk per worker. Each row
// is written by exactly one goroutine.
func parallelRows(n int, fn func(start, end int)) {
	workers := runtime.NumCPU()
	if n < parallelThreshold || workers <= 1 {
		fn(0, n)
		return
	}
	if workers > n/16 {
		workers = n / 16
	}
	chunkSize := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			break
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}
