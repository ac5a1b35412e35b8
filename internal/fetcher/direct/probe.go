package direct

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/saverx/saverx/internal/utils"
)

const (
	probeTimeout  = 15 * time.Second
	probeAttempts = 3
)

// ProbeResult is what a one-byte ranged GET reveals about a URL.
type ProbeResult struct {
	FileSize      int64
	SupportsRange bool
	ContentType   string
}

// Probe sends GET with Range: bytes=0-0 and reads size and type from the
// response headers. Transport errors are retried.
func (f *Fetcher) Probe(ctx context.Context, rawurl string) (*ProbeResult, error) {
	var (
		resp *http.Response
		err  error
	)
	for i := 0; i < probeAttempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Second):
			}
			utils.Debug("direct: retrying probe of %s, attempt %d", rawurl, i+1)
		}
		resp, err = f.probeOnce(ctx, rawurl)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("probe request failed after retries: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	result := &ProbeResult{ContentType: resp.Header.Get("Content-Type")}
	switch resp.StatusCode {
	case http.StatusPartialContent:
		result.SupportsRange = true
		// Content-Range: bytes 0-0/12345 (or /* when unknown)
		if cr := resp.Header.Get("Content-Range"); cr != "" {
			if idx := strings.LastIndex(cr, "/"); idx != -1 && cr[idx+1:] != "*" {
				result.FileSize, _ = strconv.ParseInt(cr[idx+1:], 10, 64)
			}
		}
	case http.StatusOK:
		result.FileSize, _ = strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	default:
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	utils.Debug("direct: probed %s type=%q size=%d range=%v",
		rawurl, result.ContentType, result.FileSize, result.SupportsRange)
	return result, nil
}

func (f *Fetcher) probeOnce(ctx context.Context, rawurl string) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Range", "bytes=0-0")
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// ContentType is a ProbeFunc for the fetcher selector.
func (f *Fetcher) ContentType(ctx context.Context, rawurl string) (string, error) {
	res, err := f.Probe(ctx, rawurl)
	if err != nil {
		return "", err
	}
	return res.ContentType, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
