// Package ytdlp drives an external yt-dlp process and turns its output into
// progress reports.
package ytdlp

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/saverx/saverx/internal/fetcher"
	"github.com/saverx/saverx/internal/utils"
)

const (
	progressTemplate = "download:" + progressMarker +
		"%(progress.downloaded_bytes)s/%(progress.total_bytes)s/%(progress.total_bytes_estimate)s/%(progress.speed)s/%(progress.eta)s"
	printTitle = "before_dl:" + titleMarker + "%(title)s"
	printFile  = "after_move:" + fileMarker + "%(filepath)s"

	maxLineSize = 1024 * 1024
	waitDelay   = 5 * time.Second
)

type Options struct {
	Binary         string
	Format         string
	OutputTemplate string
	NoPlaylist     bool
}

type commandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// Fetcher runs one yt-dlp process per request.
type Fetcher struct {
	opts    Options
	command commandFunc
}

func New(opts Options) *Fetcher {
	if opts.Binary == "" {
		opts.Binary = "yt-dlp"
	}
	if opts.OutputTemplate == "" {
		opts.OutputTemplate = "%(title)s.%(ext)s"
	}
	return &Fetcher{opts: opts, command: exec.CommandContext}
}

// Available reports whether binary can be found on PATH.
func Available(binary string) bool {
	if binary == "" {
		binary = "yt-dlp"
	}
	_, err := exec.LookPath(binary)
	return err == nil
}

// Args returns the yt-dlp command line for url.
func (f *Fetcher) Args(url, destDir string) []string {
	args := []string{
		"--newline",
		"--no-colors",
		"--progress",
		"--no-simulate",
		"--progress-template", progressTemplate,
		"--print", printTitle,
		"--print", printFile,
		"-o", filepath.Join(destDir, f.opts.OutputTemplate),
	}
	if f.opts.Format != "" {
		args = append(args, "-f", f.opts.Format)
	}
	if f.opts.NoPlaylist {
		args = append(args, "--no-playlist")
	}
	return append(args, "--", url)
}

func (f *Fetcher) Fetch(ctx context.Context, req fetcher.Request) (string, error) {
	if req.IsCancelled() {
		return "", fetcher.ErrCancelled
	}
	if err := os.MkdirAll(req.DestDir, 0o755); err != nil {
		return "", &fetcher.FetchError{Op: "create destination", URL: req.URL, Err: err}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := f.command(runCtx, f.opts.Binary, f.Args(req.URL, req.DestDir)...)
	killProcessGroup(cmd)
	cmd.WaitDelay = waitDelay
	// One pipe for both streams keeps progress and error lines in order.
	pr, pw, err := os.Pipe()
	if err != nil {
		return "", &fetcher.FetchError{Op: "start yt-dlp", URL: req.URL, Err: err}
	}
	defer pr.Close()
	cmd.Stdout = pw
	cmd.Stderr = pw

	utils.Debug("yt-dlp: starting %s", req.URL)
	err = cmd.Start()
	_ = pw.Close()
	if err != nil {
		return "", &fetcher.FetchError{Op: "start yt-dlp", URL: req.URL, Err: err}
	}

	var (
		abort     error
		finalPath string
		lastError string
		lastLine  string
	)

	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		if abort != nil {
			continue
		}
		line := ParseLine(scanner.Text())
		switch line.Kind {
		case LineProgress:
			if req.IsCancelled() {
				abort = fetcher.ErrCancelled
				cancel()
				continue
			}
			if err := req.Report(line.Progress); err != nil {
				abort = err
				cancel()
			}
		case LineTitle:
			if err := req.Report(fetcher.Progress{Title: line.Text, ETA: -1}); err != nil {
				abort = err
				cancel()
			}
		case LineFile:
			finalPath = line.Text
		case LineError:
			lastError = line.Text
		default:
			if t := strings.TrimSpace(line.Text); t != "" {
				lastLine = t
			}
		}
	}
	// Keep the pipe drained so the child never blocks on a full buffer.
	_, _ = io.Copy(io.Discard, pr)

	err = cmd.Wait()
	if abort != nil {
		utils.Debug("yt-dlp: aborted %s: %v", req.URL, abort)
		return "", abort
	}
	if ctx.Err() != nil {
		return "", fetcher.ErrCancelled
	}
	if err != nil {
		msg := lastError
		if msg == "" {
			msg = lastLine
		}
		if msg == "" {
			msg = err.Error()
		}
		return "", &fetcher.FetchError{Op: "yt-dlp", URL: req.URL, Err: errors.New(msg)}
	}
	if finalPath == "" {
		return "", &fetcher.FetchError{Op: "yt-dlp", URL: req.URL, Err: errors.New("no output file reported")}
	}
	if !filepath.IsAbs(finalPath) {
		finalPath = filepath.Join(req.DestDir, finalPath)
	}
	utils.Debug("yt-dlp: finished %s -> %s", req.URL, finalPath)
	return finalPath, nil
}
