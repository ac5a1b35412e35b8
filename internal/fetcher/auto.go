package fetcher

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/saverx/saverx/internal/utils"
)

// Mode selects which fetcher handles a URL.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeYtDlp  Mode = "ytdlp"
	ModeDirect Mode = "direct"
)

// ProbeFunc reports the Content-Type a server returns for rawurl.
type ProbeFunc func(ctx context.Context, rawurl string) (string, error)

// Selector routes each request to the yt-dlp or the direct HTTP fetcher.
//
// In auto mode a URL whose path ends in a known file extension goes straight
// to the direct fetcher. Otherwise, if a probe is configured, a server that
// answers with a media or binary content type is downloaded directly too.
// Everything else is handed to yt-dlp, which understands site pages.
type Selector struct {
	mode      Mode
	ytdlp     Fetcher
	direct    Fetcher
	haveYtDlp bool
	probe     ProbeFunc
}

func NewSelector(mode string, ytdlp, direct Fetcher, haveYtDlp bool) (*Selector, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(mode)))
	if m == "" {
		m = ModeAuto
	}
	switch m {
	case ModeAuto, ModeYtDlp, ModeDirect:
	default:
		return nil, fmt.Errorf("unknown fetcher mode %q", mode)
	}
	return &Selector{mode: m, ytdlp: ytdlp, direct: direct, haveYtDlp: haveYtDlp}, nil
}

// WithProbe enables content-type probing for URLs without a file extension.
func (s *Selector) WithProbe(p ProbeFunc) *Selector {
	s.probe = p
	return s
}

func (s *Selector) Mode() Mode {
	return s.mode
}

// Pick returns the fetcher that will handle rawurl.
func (s *Selector) Pick(ctx context.Context, rawurl string) Fetcher {
	switch s.mode {
	case ModeYtDlp:
		return s.ytdlp
	case ModeDirect:
		return s.direct
	}

	if !s.haveYtDlp || LooksLikeFile(rawurl) {
		return s.direct
	}
	if s.probe != nil {
		ct, err := s.probe(ctx, rawurl)
		if err != nil {
			utils.Debug("Selector: probe %s failed: %v", rawurl, err)
		} else if isDirectContentType(ct) {
			return s.direct
		}
	}
	return s.ytdlp
}

func (s *Selector) Fetch(ctx context.Context, req Request) (string, error) {
	return s.Pick(ctx, req.URL).Fetch(ctx, req)
}

var directExtensions = map[string]bool{
	".mp4": true, ".m4v": true, ".mkv": true, ".webm": true, ".mov": true, ".avi": true,
	".mp3": true, ".m4a": true, ".ogg": true, ".opus": true, ".flac": true, ".wav": true,
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".zip": true, ".pdf": true, ".tar": true, ".gz": true, ".7z": true, ".iso": true,
}

// LooksLikeFile reports whether the URL path names a downloadable file.
func LooksLikeFile(rawurl string) bool {
	u, err := url.Parse(rawurl)
	if err != nil {
		return false
	}
	return directExtensions[strings.ToLower(path.Ext(u.Path))]
}

func isDirectContentType(ct string) bool {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	switch {
	case strings.HasPrefix(mt, "video/"), strings.HasPrefix(mt, "audio/"), strings.HasPrefix(mt, "image/"):
		return true
	case mt == "application/octet-stream", mt == "application/zip", mt == "application/pdf":
		return true
	}
	return false
}
