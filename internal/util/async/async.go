package async

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// Task is a named unit of work for RunParallel.
type Task struct {
	Name string
	Func func(context.Context) error
}

// RunParallel runs every task concurrently and waits for all of them. A
// failing task does not cancel the others; each failure is reported under
// its task name.
func RunParallel(ctx context.Context, tasks []Task) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs *multierror.Error
	)
	for _, task := range tasks {
		g.Go(func() error {
			if err := task.Func(ctx); err != nil {
				mu.Lock()
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", task.Name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs.ErrorOrNil()
}
