//go:build unix

package ytdlp

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saverx/saverx/internal/fetcher"
)

func TestKillProcessGroup_SetsPgid(t *testing.T) {
	cmd := exec.CommandContext(context.Background(), "true")
	killProcessGroup(cmd)

	require.NotNil(t, cmd.SysProcAttr)
	assert.True(t, cmd.SysProcAttr.Setpgid)
	assert.NotNil(t, cmd.Cancel)
	// Nothing started yet, so there is nothing to kill.
	assert.NoError(t, cmd.Cancel())
}

func TestFetch_CancelKillsPostProcessor(t *testing.T) {
	dest := t.TempDir()
	f := helperFetcher(t, "spawn", dest)

	ticks := 0
	start := time.Now()
	_, err := f.Fetch(context.Background(), fetcher.Request{
		URL:     "https://example.com/v",
		DestDir: dest,
		OnProgress: func(p fetcher.Progress) error {
			ticks++
			return nil
		},
		Cancelled: func() bool { return ticks >= 1 },
	})
	assert.ErrorIs(t, err, fetcher.ErrCancelled)
	// The grandchild sleeps for a minute; only a group kill frees the pipe.
	assert.Less(t, time.Since(start), 20*time.Second)
}
