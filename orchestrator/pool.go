package orchestrator

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
)

// runPool runs fn over items with at most workers goroutines and returns the
// results in item order. A panicking task yields recovered(i, panic value).
func runPool[T, R any](
	ctx context.Context,
	log logrus.FieldLogger,
	workers int,
	items []T,
	fn func(ctx context.Context, i int, item T) R,
	recovered func(i int, p any) R,
) []R {
	out := make([]R, len(items))
	if len(items) == 0 {
		return out
	}
	workers = max(1, min(workers, len(items)))

	jobs := make(chan int, len(items))
	for i := range items {
		jobs <- i
	}
	close(jobs)

	type result struct {
		i int
		r R
	}
	results := make(chan result, len(items))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := range jobs {
				results <- result{i: i, r: runOne(ctx, log, workerID, i, items[i], fn, recovered)}
			}
		}(w)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		out[res.i] = res.r
	}
	return out
}

func runOne[T, R any](
	ctx context.Context,
	log logrus.FieldLogger,
	workerID, i int,
	item T,
	fn func(ctx context.Context, i int, item T) R,
	recovered func(i int, p any) R,
) (r R) {
	defer func() {
		if p := recover(); p != nil {
			log.WithFields(logrus.Fields{
				"worker": workerID,
				"task":   i,
				"stack":  string(debug.Stack()),
			}).Errorf("task panic: %v", p)
			r = recovered(i, p)
		}
	}()
	return fn(ctx, i, item)
}
