package planner

import (
	"github.com/yuya-takeyama/strict-bunny-sync/internal/checksum"
)

// LocalMap maps a remote-relative name to the local file that should be stored there.
type LocalMap map[string]string

// RemoteMap maps a remote-relative name to the checksum the store reported for
// it. A nil checksum means the store did not report one.
type RemoteMap map[string]*checksum.Digest

type Kind int

const (
	// KindPut uploads a file that does not exist remotely.
	KindPut Kind = iota
	// KindReplace uploads a file unless its remote checksum already matches.
	KindReplace
	// KindDelete removes a remote file that no longer exists locally.
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindPut:
		return "put"
	case KindReplace:
		return "replace"
	case KindDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Task is one planned change. LocalPath is empty for deletes and
// RemoteChecksum is only set for replaces.
type Task struct {
	Kind           Kind
	LocalPath      string
	RemoteName     string
	RemoteChecksum *checksum.Digest
}

type Options struct {
	// Protected lists name prefixes whose remote-only files are never deleted.
	Protected []string
	// Excludes lists doublestar patterns, relative to RemotePrefix, whose
	// remote-only files are never deleted.
	Excludes     []string
	RemotePrefix string
}
