// Package syncjob runs one reconciliation of a local tree against a store.
package syncjob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"go.uber.org/zap"

	"github.com/yuya-takeyama/strict-bunny-sync/internal/metrics"
	"github.com/yuya-takeyama/strict-bunny-sync/internal/walker"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/enumerator"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/executor"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/lock"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/logger"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/planner"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/storage"
)

type Options struct {
	// LocalRoot is the directory inside the job filesystem to mirror.
	LocalRoot  string
	RemotePath string
	LockFile   string

	Force  bool
	DryRun bool

	Protected []string
	Excludes  []string

	Concurrency int
	HTMLBarrier bool

	// MetricsTextfile, when set, receives run metrics after every run.
	MetricsTextfile string
}

// Summary describes a finished run.
type Summary struct {
	Uploaded      int
	Unchanged     int
	Deleted       int
	BytesUploaded int64
	LocalFiles    int
	RemoteFiles   int
	Duration      time.Duration
	DryRun        bool
	// LockedAt is when the lock was taken. Zero for dry runs.
	LockedAt time.Time
	Outcomes []executor.Outcome
}

type Job struct {
	store    storage.Store
	fs       billy.Filesystem
	opts     Options
	reporter logger.Reporter
	logger   *zap.Logger
}

func New(store storage.Store, fsys billy.Filesystem, opts Options, reporter logger.Reporter, log *zap.Logger) *Job {
	if reporter == nil {
		reporter = logger.NullReporter{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	opts.LockFile = strings.TrimLeft(opts.LockFile, "/")
	return &Job{
		store:    store,
		fs:       fsys,
		opts:     opts,
		reporter: reporter,
		logger:   log,
	}
}

// Run locks the store unless dry-running, diffs both trees and applies the
// plan. On failure the returned summary holds whatever was applied.
func (j *Job) Run(ctx context.Context) (summary *Summary, err error) {
	start := time.Now()
	summary = &Summary{DryRun: j.opts.DryRun}
	defer func() {
		summary.Duration = time.Since(start)
		j.writeMetrics(summary, err == nil)
	}()

	if !j.opts.DryRun {
		handle, err := lock.Acquire(ctx, j.store, j.opts.LockFile, j.opts.Force, j.logger)
		if err != nil {
			return summary, err
		}
		defer handle.Release(context.WithoutCancel(ctx))
		summary.LockedAt = handle.AcquiredAt()
		j.logger.Info("holding lock",
			zap.String("lockfile", handle.Name()),
			zap.Time("acquired_at", summary.LockedAt))
	}

	local, err := walker.Scan(j.fs, j.opts.LocalRoot, j.opts.RemotePath, j.opts.Excludes)
	if err != nil {
		return summary, fmt.Errorf("scan %s: %w", j.opts.LocalRoot, err)
	}
	summary.LocalFiles = len(local)
	j.logger.Info("scanned local tree",
		zap.String("root", j.opts.LocalRoot),
		zap.Int("files", len(local)))

	remote, err := enumerator.Enumerate(ctx, j.store, j.opts.RemotePath, j.opts.Protected, j.opts.Concurrency, j.logger)
	if err != nil {
		return summary, fmt.Errorf("enumerate %s: %w", j.store.ID(), err)
	}
	summary.RemoteFiles = len(remote)
	j.logger.Info("enumerated remote tree",
		zap.String("storage_zone", j.store.ID()),
		zap.String("path", j.opts.RemotePath),
		zap.Int("files", len(remote)))

	tasks, err := planner.Plan(local, remote, planner.Options{
		Protected:    j.opts.Protected,
		Excludes:     j.opts.Excludes,
		RemotePrefix: j.opts.RemotePath,
	})
	if err != nil {
		return summary, fmt.Errorf("plan: %w", err)
	}
	j.logger.Debug("planned tasks", zap.Int("tasks", len(tasks)))

	exec := executor.NewExecutor(j.store, j.readLocal, j.reporter, j.logger, executor.Options{
		Concurrency: j.opts.Concurrency,
		DryRun:      j.opts.DryRun,
		LockFile:    j.opts.LockFile,
		HTMLBarrier: j.opts.HTMLBarrier,
	})
	outcomes, err := exec.Execute(ctx, tasks)
	summary.Outcomes = outcomes
	summary.Uploaded, summary.Unchanged, summary.Deleted, summary.BytesUploaded = executor.Summarize(outcomes)
	if err != nil {
		return summary, fmt.Errorf("execute: %w", err)
	}

	return summary, nil
}

func (j *Job) readLocal(path string) ([]byte, error) {
	return util.ReadFile(j.fs, path)
}

func (j *Job) writeMetrics(summary *Summary, success bool) {
	if j.opts.MetricsTextfile == "" {
		return
	}

	recorder := metrics.NewRecorder()
	recorder.Observe(metrics.Run{
		StorageZone: j.store.ID(),
		Uploaded:    summary.Uploaded,
		Unchanged:   summary.Unchanged,
		Deleted:     summary.Deleted,
		Bytes:       summary.BytesUploaded,
		LocalFiles:  summary.LocalFiles,
		RemoteFiles: summary.RemoteFiles,
		Duration:    summary.Duration,
		Finished:    time.Now(),
		Success:     success,
	})
	if err := recorder.WriteTextfile(j.opts.MetricsTextfile); err != nil {
		j.logger.Warn("failed to write metrics", zap.String("path", j.opts.MetricsTextfile), zap.Error(err))
	}
}
