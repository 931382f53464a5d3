// Package logging builds the zap logger used for operational messages and
// prints the end-of-run summary.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logging configuration.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // console, json
	// File additionally writes JSON logs to a size rotated file.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// New builds a logger writing to w, and to cfg.File when set. An unknown
// level falls back to info.
func New(cfg Config, w io.Writer) *zap.Logger {
	if w == nil {
		w = os.Stderr
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}
	atomic := zap.NewAtomicLevelAt(level)

	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.TimeOnly)
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(w), atomic),
	}
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 10),
			MaxBackups: orDefault(cfg.MaxBackups, 3),
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(rotator),
			atomic,
		))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zapcore.ErrorLevel))
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Summary is what PrintSummary reports.
type Summary struct {
	Uploaded      int
	Unchanged     int
	Deleted       int
	BytesUploaded int64
	Duration      time.Duration
	DryRun        bool
}

// PrintSummary prints a summary of the sync operation.
func PrintSummary(w io.Writer, s Summary) {
	fmt.Fprintln(w)
	if s.DryRun {
		fmt.Fprintln(w, "=== Summary (dry run) ===")
	} else {
		fmt.Fprintln(w, "=== Summary ===")
	}
	fmt.Fprintf(w, "Uploaded: %d files (%s)\n", s.Uploaded, humanize.Bytes(uint64(s.BytesUploaded)))
	fmt.Fprintf(w, "Unchanged: %d files\n", s.Unchanged)
	fmt.Fprintf(w, "Deleted: %d files\n", s.Deleted)
	fmt.Fprintf(w, "Duration: %s\n", s.Duration.Round(time.Millisecond))
}
