// Package fetcher defines the contract between the download orchestrator and
// the programs that actually move bytes.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/saverx/saverx/internal/engine/types"
)

// ErrCancelled is returned when a transfer stops because cancellation was requested.
var ErrCancelled = types.ErrCancelled

// Progress is one report from a running transfer.
type Progress struct {
	Downloaded int64
	Total      int64         // 0 when unknown
	Speed      string        // advisory label
	ETA        time.Duration // <0 when unknown
	Title      string        // optional metadata
}

type Request struct {
	URL     string
	DestDir string
	// OnProgress is invoked synchronously from the fetcher's goroutine.
	// A non-nil error aborts the transfer and is returned from Fetch.
	OnProgress func(Progress) error
	// Cancelled is polled between chunks.
	Cancelled func() bool
}

// Report forwards p to OnProgress if set.
func (r Request) Report(p Progress) error {
	if r.OnProgress == nil {
		return nil
	}
	return r.OnProgress(p)
}

func (r Request) IsCancelled() bool {
	return r.Cancelled != nil && r.Cancelled()
}

// Fetcher downloads one URL into DestDir and returns the absolute path of the
// finished file.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (string, error)
}

// Func adapts a plain function to Fetcher.
type Func func(ctx context.Context, req Request) (string, error)

func (f Func) Fetch(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// FetchError wraps a failure from a fetcher with the step that failed.
type FetchError struct {
	Op  string
	URL string
	Err error
}

func (e *FetchError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Reason turns err into the short message shown to users: the last
// non-empty line of the underlying cause.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var fe *FetchError
	if errors.As(err, &fe) && fe.Err != nil {
		err = fe.Err
	}
	lines := strings.Split(strings.TrimSpace(err.Error()), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return "unknown error"
}
