// Package worker provides a fixed-size worker pool: one task per item, a
// bounded number running at once, and a structured per-task outcome.  The
// pool never short-circuits on a failed task; callers aggregate outcomes
// themselves once every task has finished.
package worker

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/TimothyStephens/magi/pkg/errors"
)

// ---------------------------------------------------------------------------
// TaskStatus enumeration
// ---------------------------------------------------------------------------

// TaskStatus is the outcome of a single task.
type TaskStatus int

const (
	TaskStatusSuccess   TaskStatus = iota // completed successfully
	TaskStatusFailed                      // returned an error
	TaskStatusTimeout                     // exceeded its deadline
	TaskStatusCancelled                   // the parent context was cancelled
)

// String returns the lower-case name of s, used as a metric label.
func (s TaskStatus) String() string {
	switch s {
	case TaskStatusSuccess:
		return "success"
	case TaskStatusFailed:
		return "failed"
	case TaskStatusTimeout:
		return "timeout"
	case TaskStatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// ---------------------------------------------------------------------------
// Generic types
// ---------------------------------------------------------------------------

// TaskFunc processes the item at index.
type TaskFunc[T, R any] func(ctx context.Context, index int, item T) (R, error)

// TaskResult is the outcome of one task.
type TaskResult[R any] struct {
	Index    int
	Result   R
	Err      error
	Duration time.Duration
	Status   TaskStatus
}

// Result aggregates the outcomes of a whole batch, ordered by item index.
type Result[R any] struct {
	Tasks         []TaskResult[R]
	SuccessCount  int
	FailureCount  int
	TotalDuration time.Duration
}

// Failed returns the failed tasks in index order.
func (r *Result[R]) Failed() []TaskResult[R] {
	var out []TaskResult[R]
	for _, t := range r.Tasks {
		if t.Status != TaskStatusSuccess {
			out = append(out, t)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

type poolConfig struct {
	size        int
	taskTimeout time.Duration
	observer    func(status TaskStatus, d time.Duration)
}

// Option configures a Pool.
type Option func(*poolConfig)

// WithSize sets the number of tasks running at once.  Values < 1 are ignored.
func WithSize(n int) Option {
	return func(c *poolConfig) {
		if n >= 1 {
			c.size = n
		}
	}
}

// WithTaskTimeout bounds each task.  Zero means no per-task deadline.
func WithTaskTimeout(d time.Duration) Option {
	return func(c *poolConfig) {
		if d > 0 {
			c.taskTimeout = d
		}
	}
}

// WithObserver registers a callback invoked after every task, typically to
// record a duration histogram.
func WithObserver(fn func(status TaskStatus, d time.Duration)) Option {
	return func(c *poolConfig) { c.observer = fn }
}

// ---------------------------------------------------------------------------
// Pool
// ---------------------------------------------------------------------------

// Pool runs a batch of tasks with bounded concurrency.
type Pool[T, R any] struct {
	cfg poolConfig
}

// NewPool constructs a Pool.  The default size is 1.
func NewPool[T, R any](opts ...Option) *Pool[T, R] {
	cfg := poolConfig{size: 1}
	for _, o := range opts {
		o(&cfg)
	}
	return &Pool[T, R]{cfg: cfg}
}

// Size returns the configured concurrency.
func (p *Pool[T, R]) Size() int { return p.cfg.size }

// Process runs fn for every item and blocks until all tasks finished.  The
// returned error is non-nil only for misuse; task failures are reported in
// the Result.
func (p *Pool[T, R]) Process(ctx context.Context, items []T, fn TaskFunc[T, R]) (*Result[R], error) {
	if fn == nil {
		return nil, errors.InvalidParam("task function must not be nil")
	}
	start := time.Now()
	results := make([]TaskResult[R], len(items))

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(p.cfg.size)
	for i := range items {
		idx, item := i, items[i]
		g.Go(func() error {
			tr := p.runOne(ctx, idx, item, fn)
			mu.Lock()
			results[idx] = tr
			mu.Unlock()
			if p.cfg.observer != nil {
				p.cfg.observer(tr.Status, tr.Duration)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })
	res := &Result[R]{Tasks: results, TotalDuration: time.Since(start)}
	for _, tr := range results {
		if tr.Status == TaskStatusSuccess {
			res.SuccessCount++
		} else {
			res.FailureCount++
		}
	}
	return res, nil
}

func (p *Pool[T, R]) runOne(ctx context.Context, idx int, item T, fn TaskFunc[T, R]) TaskResult[R] {
	taskStart := time.Now()
	if err := ctx.Err(); err != nil {
		return TaskResult[R]{Index: idx, Err: err, Status: classifyError(ctx, err)}
	}

	taskCtx := ctx
	if p.cfg.taskTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, p.cfg.taskTimeout)
		defer cancel()
	}

	r, err := fn(taskCtx, idx, item)
	tr := TaskResult[R]{Index: idx, Result: r, Err: err, Duration: time.Since(taskStart)}
	if err != nil {
		tr.Status = classifyError(taskCtx, err)
	}
	return tr
}

func classifyError(ctx context.Context, err error) TaskStatus {
	switch {
	case err == nil:
		return TaskStatusSuccess
	case stderrors.Is(err, context.DeadlineExceeded):
		return TaskStatusTimeout
	case stderrors.Is(err, context.Canceled):
		return TaskStatusCancelled
	case ctx.Err() == context.DeadlineExceeded:
		return TaskStatusTimeout
	case ctx.Err() == context.Canceled:
		return TaskStatusCancelled
	}
	return TaskStatusFailed
}
