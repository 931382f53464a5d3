package executor

import (
	"fmt"

	"github.com/gabriel-vasile/mimetype"

	"github.com/yuya-takeyama/strict-bunny-sync/internal/checksum"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/planner"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/storage"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/syncerr"
)

// ContentReader reads the bytes of a local file.
type ContentReader func(path string) ([]byte, error)

type ActionKind int

const (
	ActionUpload ActionKind = iota
	ActionSkip
	ActionRemove
)

// Event is the outcome name reported for the action.
func (k ActionKind) Event() string {
	switch k {
	case ActionUpload:
		return "put"
	case ActionSkip:
		return "unchanged"
	case ActionRemove:
		return "delete"
	default:
		return "unknown"
	}
}

// Action is a task resolved against the current local content. Body and
// ContentType are only set for uploads.
type Action struct {
	Kind        ActionKind
	Body        []byte
	ContentType string
}

// Resolve reads the local file of a put or replace and decides what to do
// with it. A replace whose remote checksum is unknown is always uploaded.
func Resolve(task planner.Task, read ContentReader) (Action, error) {
	switch task.Kind {
	case planner.KindPut:
		body, err := read(task.LocalPath)
		if err != nil {
			return Action{}, syncerr.Filesystem("read", task.LocalPath, err)
		}
		return upload(body), nil

	case planner.KindReplace:
		body, err := read(task.LocalPath)
		if err != nil {
			return Action{}, syncerr.Filesystem("read", task.LocalPath, err)
		}
		if checksum.Sum(body).Equal(task.RemoteChecksum) {
			return Action{Kind: ActionSkip}, nil
		}
		return upload(body), nil

	case planner.KindDelete:
		return Action{Kind: ActionRemove}, nil

	default:
		return Action{}, fmt.Errorf("resolve %s: unknown task kind %d", task.RemoteName, task.Kind)
	}
}

func upload(body []byte) Action {
	return Action{
		Kind:        ActionUpload,
		Body:        body,
		ContentType: detectContentType(body),
	}
}

// detectContentType sniffs the content, never the file name.
func detectContentType(body []byte) string {
	if mt := mimetype.Detect(body); mt != nil && mt.String() != "" {
		return mt.String()
	}
	return storage.DefaultContentType
}
