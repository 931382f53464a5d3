package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yuya-takeyama/strict-bunny-sync/internal/config"
	"github.com/yuya-takeyama/strict-bunny-sync/internal/logging"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/bunny"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/logger"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/s3client"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/storage"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/syncerr"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/syncjob"
)

type syncFlags struct {
	configFile      string
	backend         string
	endpoint        string
	remotePath      string
	lockFile        string
	dryRun          bool
	force           bool
	verbose         bool
	quiet           bool
	ignore          []string
	excludes        []string
	concurrency     int
	htmlBarrier     bool
	metricsTextfile string
	s3Region        string
	s3Profile       string
	s3Endpoint      string
	s3PathStyle     bool
}

func newSyncCommand(a *app) *cobra.Command {
	var f syncFlags

	cmd := &cobra.Command{
		Use:   "sync [LOCAL_PATH] [STORAGE_ZONE]",
		Short: "Make a storage zone mirror a local directory",
		Long: `Uploads new and changed files from LOCAL_PATH and deletes remote files that
no longer exist locally. Files below --ignore prefixes are never deleted.

STORAGE_ZONE may also be an S3 URI (s3://bucket/prefix) to sync into an
S3 compatible bucket instead. Both arguments can come from --config.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, args, &f)
			if err != nil {
				return err
			}
			return a.runSync(cmd, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.configFile, "config", "", "YAML job configuration file")
	flags.StringVar(&f.backend, "backend", string(config.BackendBunny), "Store backend (bunny, s3)")
	flags.StringVarP(&f.endpoint, "endpoint", "e", config.DefaultEndpoint, "Storage API endpoint host")
	flags.StringVarP(&f.remotePath, "path", "p", config.DefaultRemotePath, "Remote path to mirror into")
	flags.StringVar(&f.lockFile, "lockfile", config.DefaultLockFile, "Name of the lock object at the storage zone root")
	flags.BoolVar(&f.dryRun, "dry-run", false, "Show what would change without changing anything")
	flags.BoolVarP(&f.force, "force", "f", false, "Sync even if another run holds the lock")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "Print every processed file")
	flags.BoolVar(&f.quiet, "quiet", false, "Do not print the summary")
	flags.StringSliceVarP(&f.ignore, "ignore", "i", nil, "Remote path prefix that is never deleted (multiple allowed)")
	flags.StringSliceVar(&f.excludes, "exclude", nil, "Glob pattern of paths to leave alone (multiple allowed)")
	flags.IntVarP(&f.concurrency, "concurrency", "c", 0, "Number of concurrent requests (default: number of CPUs)")
	flags.BoolVar(&f.htmlBarrier, "html-barrier", false, "Finish all other uploads before uploading HTML, and all uploads before deleting")
	flags.StringVar(&f.metricsTextfile, "metrics-textfile", "", "Write Prometheus metrics of the run to this file")
	flags.StringVar(&f.s3Region, "s3-region", "", "AWS region of the s3 backend")
	flags.StringVar(&f.s3Profile, "s3-profile", "", "AWS profile of the s3 backend")
	flags.StringVar(&f.s3Endpoint, "s3-endpoint", "", "Endpoint URL of an S3 compatible service")
	flags.BoolVar(&f.s3PathStyle, "s3-path-style", false, "Use path style S3 addressing")

	return cmd
}

// resolveConfig starts from the config file, or the defaults, and applies
// arguments and every flag that was set explicitly.
func resolveConfig(cmd *cobra.Command, args []string, f *syncFlags) (*config.Config, error) {
	cfg := config.Default()
	if f.configFile != "" {
		parsed, err := config.Parse(f.configFile)
		if err != nil {
			return nil, err
		}
		cfg = parsed
	}

	if len(args) > 0 {
		cfg.LocalPath = args[0]
	}
	if len(args) > 1 {
		cfg.StorageZone = args[1]
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Backend = config.Backend(f.backend)
	}
	if flags.Changed("endpoint") {
		cfg.Endpoint = f.endpoint
	}
	if flags.Changed("path") {
		cfg.RemotePath = f.remotePath
	}
	if flags.Changed("lockfile") {
		cfg.LockFile = f.lockFile
	}
	if flags.Changed("dry-run") {
		cfg.DryRun = f.dryRun
	}
	if flags.Changed("force") {
		cfg.Force = f.force
	}
	if flags.Changed("verbose") {
		cfg.Verbose = f.verbose
	}
	if flags.Changed("quiet") {
		cfg.Quiet = f.quiet
	}
	if flags.Changed("ignore") {
		cfg.Ignore = f.ignore
	}
	if flags.Changed("exclude") {
		cfg.Exclude = f.excludes
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = f.concurrency
	}
	if flags.Changed("html-barrier") {
		cfg.HTMLBarrier = f.htmlBarrier
	}
	if flags.Changed("metrics-textfile") {
		cfg.MetricsTextfile = f.metricsTextfile
	}
	if flags.Changed("s3-region") {
		cfg.S3.Region = f.s3Region
	}
	if flags.Changed("s3-profile") {
		cfg.S3.Profile = f.s3Profile
	}
	if flags.Changed("s3-endpoint") {
		cfg.S3.Endpoint = f.s3Endpoint
	}
	if flags.Changed("s3-path-style") {
		cfg.S3.PathStyle = f.s3PathStyle
	}

	if s3client.IsS3URI(cfg.StorageZone) {
		bucket, prefix, err := s3client.ParseS3URI(cfg.StorageZone)
		if err != nil {
			return nil, syncerr.Configuration("storage zone", err)
		}
		cfg.Backend = config.BackendS3
		cfg.StorageZone = bucket
		if cfg.RemotePath == config.DefaultRemotePath && prefix != "" {
			cfg.RemotePath = prefix
		}
	}

	cfg.ApplyDefaults()

	if cfg.LocalPath != "" {
		abs, err := filepath.Abs(cfg.LocalPath)
		if err != nil {
			return nil, syncerr.Configuration("local path", err)
		}
		cfg.LocalPath = abs
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (a *app) runSync(cmd *cobra.Command, cfg *config.Config) error {
	log := a.newLogger(cmd, cfg.Log.Level, cfg.Log.Format, cfg.Log.File)
	defer func() { _ = log.Sync() }()

	ctx := cmd.Context()
	store, err := a.openStore(ctx, cfg, a.apiKey())
	if err != nil {
		return err
	}

	var reporter logger.Reporter = logger.NullReporter{}
	if cfg.Verbose || cfg.DryRun {
		reporter = logger.NewConsoleReporter(a.stdout)
	}

	log.Info("starting sync",
		zap.String("local_path", cfg.LocalPath),
		zap.String("backend", string(cfg.Backend)),
		zap.String("storage_zone", cfg.StorageZone),
		zap.String("remote_path", cfg.RemotePath),
		zap.Bool("dry_run", cfg.DryRun))

	job := syncjob.New(store, osfs.New("/"), syncjob.Options{
		LocalRoot:       cfg.LocalPath,
		RemotePath:      cfg.RemotePath,
		LockFile:        cfg.LockFile,
		Force:           cfg.Force,
		DryRun:          cfg.DryRun,
		Protected:       cfg.Ignore,
		Excludes:        cfg.Exclude,
		Concurrency:     cfg.Concurrency,
		HTMLBarrier:     cfg.HTMLBarrier,
		MetricsTextfile: cfg.MetricsTextfile,
	}, reporter, log)

	summary, err := job.Run(ctx)
	if err != nil {
		return fmt.Errorf("sync %s: %w", cfg.StorageZone, err)
	}

	if !cfg.Quiet {
		logging.PrintSummary(a.stdout, logging.Summary{
			Uploaded:      summary.Uploaded,
			Unchanged:     summary.Unchanged,
			Deleted:       summary.Deleted,
			BytesUploaded: summary.BytesUploaded,
			Duration:      summary.Duration,
			DryRun:        summary.DryRun,
		})
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, apiKey string) (storage.Store, error) {
	if cfg.Backend == config.BackendS3 {
		client, err := s3client.NewFromOptions(ctx, cfg.StorageZone, s3client.Options{
			Region:    cfg.S3.Region,
			Profile:   cfg.S3.Profile,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	client, err := bunny.NewStorageClient(bunny.StorageConfig{
		AccessKey:   apiKey,
		Endpoint:    cfg.Endpoint,
		StorageZone: cfg.StorageZone,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}
