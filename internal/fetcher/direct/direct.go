// Package direct downloads plain HTTP(S) file URLs without any helper program.
package direct

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/saverx/saverx/internal/fetcher"
	"github.com/saverx/saverx/internal/utils"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/120.0.0.0 Safari/537.36"
	defaultProgressInterval = 500 * time.Millisecond
	copyBufferSize          = 32 * 1024
)

type Options struct {
	UserAgent        string
	ProgressInterval time.Duration
	// Client defaults to a client without an overall timeout; transfers are
	// bounded only by cancellation.
	Client *http.Client
}

type Fetcher struct {
	opts   Options
	client *http.Client
}

func New(opts Options) *Fetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = defaultProgressInterval
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	return &Fetcher{opts: opts, client: client}
}

func (f *Fetcher) Fetch(ctx context.Context, req fetcher.Request) (string, error) {
	if req.IsCancelled() {
		return "", fetcher.ErrCancelled
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return "", &fetcher.FetchError{Op: "build request", URL: req.URL, Err: err}
	}
	httpReq.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", fetcher.ErrCancelled
		}
		return "", &fetcher.FetchError{Op: "request", URL: req.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &fetcher.FetchError{
			Op:  "request",
			URL: req.URL,
			Err: fmt.Errorf("HTTP Error %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		}
	}

	name, body, err := DetermineFilename(req.URL, resp)
	if err != nil {
		return "", &fetcher.FetchError{Op: "read response", URL: req.URL, Err: err}
	}
	if err := os.MkdirAll(req.DestDir, 0o755); err != nil {
		return "", &fetcher.FetchError{Op: "create destination", URL: req.URL, Err: err}
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}
	if err := req.Report(fetcher.Progress{Title: name, Total: total, ETA: -1}); err != nil {
		return "", err
	}

	partial := filepath.Join(req.DestDir, "."+uuid.NewString()+PartialSuffix)
	out, err := os.Create(partial)
	if err != nil {
		return "", &fetcher.FetchError{Op: "create file", URL: req.URL, Err: err}
	}

	utils.Debug("direct: downloading %s to %s (size %d)", req.URL, partial, total)
	if err := f.copy(ctx, out, body, total, req); err != nil {
		_ = out.Close()
		_ = os.Remove(partial)
		return "", err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(partial)
		return "", &fetcher.FetchError{Op: "write file", URL: req.URL, Err: err}
	}

	final, err := claimFinalPath(partial, filepath.Join(req.DestDir, name))
	if err != nil {
		_ = os.Remove(partial)
		return "", &fetcher.FetchError{Op: "rename file", URL: req.URL, Err: err}
	}
	return final, nil
}

// copy streams body into out, checking for cancellation between chunks and
// reporting progress at most once per interval plus once at the end.
func (f *Fetcher) copy(ctx context.Context, out io.Writer, body io.Reader, total int64, req fetcher.Request) error {
	buf := make([]byte, copyBufferSize)
	start := time.Now()
	lastReport := start
	var downloaded int64

	report := func() error {
		elapsed := time.Since(start).Seconds()
		var speed float64
		if elapsed > 0 {
			speed = float64(downloaded) / elapsed
		}
		eta := time.Duration(-1)
		if total > 0 && speed > 0 {
			eta = time.Duration(float64(total-downloaded)/speed) * time.Second
		}
		return req.Report(fetcher.Progress{
			Downloaded: downloaded,
			Total:      total,
			Speed:      utils.FormatSpeed(speed),
			ETA:        eta,
		})
	}

	for {
		if req.IsCancelled() || ctx.Err() != nil {
			return fetcher.ErrCancelled
		}

		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return &fetcher.FetchError{Op: "write file", URL: req.URL, Err: werr}
			}
			downloaded += int64(n)
			if time.Since(lastReport) >= f.opts.ProgressInterval {
				lastReport = time.Now()
				if err := report(); err != nil {
					return err
				}
			}
		}

		if errors.Is(rerr, io.EOF) {
			if total > 0 && downloaded < total {
				return &fetcher.FetchError{Op: "read body", URL: req.URL, Err: io.ErrUnexpectedEOF}
			}
			return report()
		}
		if rerr != nil {
			if ctx.Err() != nil {
				return fetcher.ErrCancelled
			}
			return &fetcher.FetchError{Op: "read body", URL: req.URL, Err: rerr}
		}
	}
}
