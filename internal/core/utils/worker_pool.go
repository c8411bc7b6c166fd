package utils

import (
	"context"
	"sync"
)

type CompletedTask[T any] struct {
	Index  int
	Result T
	Error  error
}

// RunInPool runs worker over every input using at most maxWorkers goroutines
// and returns the completed tasks in input order. Inputs not yet started when
// ctx is cancelled complete with ctx.Err().
func RunInPool[In any, Out any](ctx context.Context, worker func(context.Context, In) (Out, error), inputs []In, maxWorkers int) []CompletedTask[Out] {
	completed := make([]CompletedTask[Out], len(inputs))
	if len(inputs) == 0 {
		return completed
	}

	queue := make(chan int, len(inputs))
	for i := range inputs {
		queue <- i
	}
	close(queue)

	workers := min(len(inputs), max(maxWorkers, 1))

	wg := sync.WaitGroup{}
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()

			for next := range queue {
				if err := ctx.Err(); err != nil {
					completed[next] = CompletedTask[Out]{Index: next, Error: err}
					continue
				}

				res, err := worker(ctx, inputs[next])
				completed[next] = CompletedTask[Out]{Index: next, Result: res, Error: err}
			}
		}()
	}

	wg.Wait()

	return completed
}

// FirstError returns the error of the lowest indexed failed task.
func FirstError[T any](tasks []CompletedTask[T]) error {
	for _, task := range tasks {
		if task.Error != nil {
			return task.Error
		}
	}
	return nil
}
