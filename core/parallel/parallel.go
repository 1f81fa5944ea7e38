// Package parallel splits an index range into contiguous chunks and runs
// them on separate goroutines.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// For divides [0, items) into one chunk per CPU core (never more chunks than
// items) and runs fn on each chunk concurrently. It returns the first error
// reported by any chunk after all chunks have finished.
func For(items int, fn func(start, end int) error) error {
	if items <= 0 {
		return nil
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}
	// Ceiling division
	chunkSize := (items + numWorkers - 1) / numWorkers

	var g errgroup.Group
	for start := 0; start < items; start += chunkSize {
		end := start + chunkSize
		if end > items {
			end = items
		}
		s, e := start, end
		g.Go(func() error {
			return fn(s, e)
		})
	}
	return g.Wait()
}

// ForWithThreshold runs fn(0, items) on the calling goroutine when items does
// not exceed threshold, and falls back to For otherwise.
func ForWithThreshold(items, threshold int, fn func(start, end int) error) error {
	if items <= threshold {
		if items <= 0 {
			return nil
		}
		return fn(0, items)
	}
	return For(items, fn)
}
