package ytdlp

import (
	"strconv"
	"strings"
	"time"

	"github.com/saverx/saverx/internal/fetcher"
	"github.com/saverx/saverx/internal/utils"
)

// Output markers. yt-dlp is asked to print these via --progress-template
// and --print so its output can be parsed without scraping the default
// human-readable progress bar.
const (
	progressMarker = "[saverx] progress "
	titleMarker    = "[saverx] title "
	fileMarker     = "[saverx] file "
	errorPrefix    = "ERROR:"
)

// notAvailable is what yt-dlp prints for missing template fields.
const notAvailable = "NA"

// LineKind classifies one output line.
type LineKind int

const (
	LineOther LineKind = iota
	LineProgress
	LineTitle
	LineFile
	LineError
)

// Line is a parsed line of yt-dlp output.
type Line struct {
	Kind     LineKind
	Progress fetcher.Progress
	Text     string
}

// ParseLine classifies a single line of yt-dlp output.
func ParseLine(raw string) Line {
	line := strings.TrimRight(raw, "\r\n")
	switch {
	case strings.HasPrefix(line, progressMarker):
		p, ok := parseProgress(strings.TrimPrefix(line, progressMarker))
		if !ok {
			return Line{Kind: LineOther, Text: line}
		}
		return Line{Kind: LineProgress, Progress: p}
	case strings.HasPrefix(line, titleMarker):
		return Line{Kind: LineTitle, Text: strings.TrimSpace(strings.TrimPrefix(line, titleMarker))}
	case strings.HasPrefix(line, fileMarker):
		return Line{Kind: LineFile, Text: strings.TrimSpace(strings.TrimPrefix(line, fileMarker))}
	case strings.HasPrefix(line, errorPrefix):
		return Line{Kind: LineError, Text: strings.TrimSpace(line)}
	}
	return Line{Kind: LineOther, Text: line}
}

// parseProgress reads "downloaded/total/estimate/speed/eta". Any field may be NA.
// The exact total is preferred; the estimate is used when it is missing.
func parseProgress(s string) (fetcher.Progress, bool) {
	fields := strings.Split(strings.TrimSpace(s), "/")
	if len(fields) != 5 {
		return fetcher.Progress{}, false
	}

	downloaded, ok := parseNumber(fields[0])
	if !ok {
		return fetcher.Progress{}, false
	}
	total, ok := parseNumber(fields[1])
	if !ok || total <= 0 {
		total, _ = parseNumber(fields[2])
	}

	p := fetcher.Progress{
		Downloaded: int64(downloaded),
		Total:      int64(total),
		ETA:        -1,
	}
	if speed, ok := parseNumber(fields[3]); ok {
		p.Speed = utils.FormatSpeed(speed)
	}
	if eta, ok := parseNumber(fields[4]); ok && eta >= 0 {
		p.ETA = time.Duration(eta) * time.Second
	}
	return p, true
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == notAvailable || s == "None" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
