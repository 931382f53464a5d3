// Package executor resolves planned tasks and applies them to the store with
// a pool of workers.
package executor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/yuya-takeyama/strict-bunny-sync/internal/worker"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/logger"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/planner"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/storage"
)

type Options struct {
	Concurrency int
	// DryRun resolves every task but sends no write or delete requests.
	DryRun bool
	// LockFile is never deleted, even when planned for deletion.
	LockFile string
	// HTMLBarrier waits for all non-HTML uploads before starting HTML
	// uploads, and for all uploads before starting deletes.
	HTMLBarrier bool
}

// Outcome is the reported result of one task.
type Outcome struct {
	RemoteName string
	Event      string
	Bytes      int64
}

type Executor struct {
	store    storage.Store
	read     ContentReader
	reporter logger.Reporter
	logger   *zap.Logger
	opts     Options
}

func NewExecutor(store storage.Store, read ContentReader, reporter logger.Reporter, log *zap.Logger, opts Options) *Executor {
	if reporter == nil {
		reporter = logger.NullReporter{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		store:    store,
		read:     read,
		reporter: reporter,
		logger:   log,
		opts:     opts,
	}
}

type result struct {
	outcome Outcome
	err     error
}

// Execute applies tasks in submission order and returns the outcomes of
// every finished task. The first failure stops workers from taking further
// tasks; tasks already applied are not rolled back.
func (e *Executor) Execute(ctx context.Context, tasks []planner.Task) ([]Outcome, error) {
	waves := [][]planner.Task{tasks}
	if e.opts.HTMLBarrier {
		waves = SplitWaves(tasks)
	}

	outcomes := make([]Outcome, 0, len(tasks))
	for _, wave := range waves {
		out, err := e.run(ctx, wave)
		outcomes = append(outcomes, out...)
		if err != nil {
			return outcomes, err
		}
	}
	return outcomes, nil
}

func (e *Executor) run(ctx context.Context, tasks []planner.Task) ([]Outcome, error) {
	if len(tasks) == 0 {
		return nil, nil
	}

	work := make(chan planner.Task, len(tasks))
	for _, task := range tasks {
		work <- task
	}
	close(work)

	results := make(chan result, len(tasks))
	var pool *worker.Pool[planner.Task, result]
	pool = worker.New(e.opts.Concurrency, func(ctx context.Context, task planner.Task) result {
		res := e.apply(ctx, task)
		if res.err != nil {
			pool.Stop()
		}
		return res
	})
	e.logger.Debug("executing tasks",
		zap.Int("tasks", len(tasks)),
		zap.Int("workers", pool.Size()))
	pool.Start(ctx, work, results)
	go func() {
		pool.Wait()
		close(results)
	}()

	var outcomes []Outcome
	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		outcomes = append(outcomes, res.outcome)
		e.reporter.ItemProcessed(res.outcome.RemoteName, res.outcome.Event)
	}
	return outcomes, firstErr
}

func (e *Executor) apply(ctx context.Context, task planner.Task) result {
	action, err := Resolve(task, e.read)
	if err != nil {
		return result{err: err}
	}

	outcome := Outcome{RemoteName: task.RemoteName, Event: action.Kind.Event()}
	if action.Kind == ActionUpload {
		outcome.Bytes = int64(len(action.Body))
	}
	if e.opts.DryRun {
		return result{outcome: outcome}
	}

	switch action.Kind {
	case ActionUpload:
		if err := e.store.Put(ctx, task.RemoteName, action.Body, action.ContentType); err != nil {
			return result{err: fmt.Errorf("failed to upload %s: %w", task.RemoteName, err)}
		}
	case ActionRemove:
		if task.RemoteName == e.opts.LockFile {
			e.logger.Debug("keeping lock file", zap.String("path", task.RemoteName))
			break
		}
		if err := e.store.Delete(ctx, task.RemoteName); err != nil {
			return result{err: fmt.Errorf("failed to delete %s: %w", task.RemoteName, err)}
		}
	}
	return result{outcome: outcome}
}

// SplitWaves groups tasks into non-HTML uploads, HTML uploads and deletes,
// keeping the planner's order inside each group. Empty groups are dropped.
func SplitWaves(tasks []planner.Task) [][]planner.Task {
	var assets, pages, deletes []planner.Task
	for _, task := range tasks {
		switch {
		case task.Kind == planner.KindDelete:
			deletes = append(deletes, task)
		case planner.IsHTML(task.RemoteName):
			pages = append(pages, task)
		default:
			assets = append(assets, task)
		}
	}

	var waves [][]planner.Task
	for _, wave := range [][]planner.Task{assets, pages, deletes} {
		if len(wave) > 0 {
			waves = append(waves, wave)
		}
	}
	return waves
}

// Summarize counts outcomes per event.
func Summarize(outcomes []Outcome) (put, unchanged, deleted int, bytes int64) {
	for _, o := range outcomes {
		switch o.Event {
		case "put":
			put++
			bytes += o.Bytes
		case "unchanged":
			unchanged++
		case "delete":
			deleted++
		}
	}
	return put, unchanged, deleted, bytes
}
