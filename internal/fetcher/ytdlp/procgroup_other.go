//go:build !unix

package ytdlp

import "os/exec"

// killProcessGroup keeps the default behaviour of killing only yt-dlp.
func killProcessGroup(cmd *exec.Cmd) {}
