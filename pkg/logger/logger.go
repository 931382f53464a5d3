// Package logger prints per-item sync outcomes for the user.
package logger

import (
	"fmt"
	"io"
	"sync"
)

// Reporter receives one outcome per executed task.
type Reporter interface {
	ItemProcessed(remoteName string, event string)
}

// ConsoleReporter writes "<remoteName>: <event>" lines.
type ConsoleReporter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{w: w}
}

func (r *ConsoleReporter) ItemProcessed(remoteName string, event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "%s: %s\n", remoteName, event)
}

type NullReporter struct{}

func (NullReporter) ItemProcessed(remoteName string, event string) {}
