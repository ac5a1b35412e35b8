package utils

import (
	"github.com/dustin/go-humanize"
)

// FormatBytes renders a byte count with binary units, e.g. "1.5 MiB".
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(n))
}

// FormatSpeed renders a transfer rate in bytes per second, or "" when unknown.
func FormatSpeed(bytesPerSec float64) string {
	if bytesPerSec <= 0 {
		return ""
	}
	return humanize.IBytes(uint64(bytesPerSec)) + "/s"
}
