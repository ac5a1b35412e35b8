package cmd

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saverx/saverx/internal/config"
	"github.com/saverx/saverx/internal/download"
	"github.com/saverx/saverx/internal/engine/events"
	"github.com/saverx/saverx/internal/engine/types"
	"github.com/saverx/saverx/internal/fetcher"
	"github.com/saverx/saverx/internal/utils"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "saverx-cmd-logs")
	if err == nil {
		utils.ConfigureDebug(dir)
		defer os.RemoveAll(dir)
	}
	os.Exit(m.Run())
}

// =============================================================================
// findAvailablePort Tests
// =============================================================================

func TestFindAvailablePort_Success(t *testing.T) {
	port, ln := findAvailablePort(50000)
	require.NotNil(t, ln, "findAvailablePort returned nil listener")
	defer ln.Close()

	assert.GreaterOrEqual(t, port, 50000)
	assert.Less(t, port, 50100)

	_, err := net.Listen("tcp", ln.Addr().String())
	assert.Error(t, err, "should not be able to bind to the same port")
}

func TestFindAvailablePort_SkipsOccupiedPorts(t *testing.T) {
	ln1, err := net.Listen("tcp", "127.0.0.1:52000")
	if err != nil {
		t.Skipf("port 52000 unavailable: %v", err)
	}
	defer ln1.Close()

	port, ln2 := findAvailablePort(52000)
	require.NotNil(t, ln2)
	defer ln2.Close()

	assert.NotEqual(t, 52000, port)
	addr := ln2.Addr().(*net.TCPAddr)
	assert.Equal(t, port, addr.Port)
}

func TestListen_ExplicitPortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	_, _, err = listen(ln.Addr().(*net.TCPAddr).Port)
	assert.Error(t, err)
}

// =============================================================================
// Port file Tests
// =============================================================================

func TestSaveAndRemoveActivePort(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	require.NoError(t, config.EnsureDirs())

	assert.Equal(t, 0, readActivePort())

	saveActivePort(12345)
	data, err := os.ReadFile(filepath.Join(config.GetStateDir(), "port"))
	require.NoError(t, err)
	assert.Equal(t, "12345", string(data))
	assert.Equal(t, 12345, readActivePort())

	removeActivePort()
	_, err = os.Stat(portFile())
	assert.True(t, os.IsNotExist(err), "port file should be removed")
	assert.Equal(t, 0, readActivePort())
}

func TestResolvePort(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	require.NoError(t, config.EnsureDirs())

	port, err := resolvePort(9000)
	require.NoError(t, err)
	assert.Equal(t, 9000, port)

	_, err = resolvePort(0)
	assert.ErrorIs(t, err, errNotRunning)

	saveActivePort(8081)
	port, err = resolvePort(0)
	require.NoError(t, err)
	assert.Equal(t, 8081, port)
}

// =============================================================================
// readURLsFromFile Tests
// =============================================================================

func TestReadURLsFromFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
		wantErr bool
	}{
		{
			name:    "skips blanks and comments",
			content: "https://a.example/x\n\n# comment\n  https://b.example/y  \n",
			want:    []string{"https://a.example/x", "https://b.example/y"},
		},
		{
			name:    "drops duplicates ignoring trailing slash",
			content: "https://a.example/x\nhttps://a.example/x/\n",
			want:    []string{"https://a.example/x"},
		},
		{
			name:    "empty file",
			content: "# nothing\n\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "urls.txt")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			got, err := readURLsFromFile(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadURLsFromFile_Missing(t *testing.T) {
	_, err := readURLsFromFile(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestParseIDArg(t *testing.T) {
	id, err := parseIDArg("#12")
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)

	for _, bad := range []string{"", "abc", "0", "-3"} {
		_, err := parseIDArg(bad)
		assert.Error(t, err, bad)
	}
}

// =============================================================================
// Client Tests
// =============================================================================

func serverPort(t *testing.T, srv *httptest.Server) int {
	t.Helper()
	return srv.Listener.Addr().(*net.TCPAddr).Port
}

func TestSendToServer(t *testing.T) {
	ctrl := newFakeController()
	srv := httptest.NewServer(NewServer(ctrl, nil, 0).Router())
	defer srv.Close()

	id, err := sendToServer("https://example.com/a.mp4", serverPort(t, srv))
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, []string{"https://example.com/a.mp4"}, ctrl.submitted)
}

func TestSendToServer_Rejected(t *testing.T) {
	ctrl := newFakeController()
	srv := httptest.NewServer(NewServer(ctrl, nil, 0).Router())
	defer srv.Close()

	_, err := sendToServer("", serverPort(t, srv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestQueueRemote(t *testing.T) {
	ctrl := newFakeController()
	srv := httptest.NewServer(NewServer(ctrl, nil, 0).Router())
	defer srv.Close()

	var out, errOut bytes.Buffer
	failed := queueRemote([]string{"https://a.example/1", "", "https://a.example/2"}, serverPort(t, srv), &out, &errOut)

	assert.Equal(t, 1, failed)
	assert.Contains(t, out.String(), "ID: 1")
	assert.Contains(t, out.String(), "ID: 2")
	assert.Contains(t, errOut.String(), "[2/3]")
}

func TestGetJSON_NotFound(t *testing.T) {
	srv := httptest.NewServer(NewServer(newFakeController(), nil, 0).Router())
	defer srv.Close()

	var job types.Job
	err := getJSON(serverPort(t, srv), "/download?id=42", &job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

// =============================================================================
// Output Tests
// =============================================================================

func TestFormatEvent(t *testing.T) {
	tests := []struct {
		event events.Event
		want  string
		ok    bool
	}{
		{events.JobAddedMsg{JobID: 1, URL: "https://x"}, "Started #1: https://x", true},
		{events.StatusChangedMsg{JobID: 1, Text: "finalizing"}, "Status #1: finalizing", true},
		{events.JobCompletedMsg{JobID: 1, Path: "/d/a.mp4"}, "Completed #1: /d/a.mp4", true},
		{events.JobFailedMsg{JobID: 2, Reason: "HTTP Error 404: Not Found"}, "Failed #2: HTTP Error 404: Not Found", true},
		{events.JobCancelledMsg{JobID: 3}, "Cancelled #3", true},
		{events.ProgressMsg{JobID: 1, Percent: 50}, "", false},
	}

	for _, tt := range tests {
		got, ok := formatEvent(tt.event)
		assert.Equal(t, tt.ok, ok, "%T", tt.event)
		assert.Equal(t, tt.want, got)
	}
}

func TestPrintJobs(t *testing.T) {
	jobs := []types.Job{
		{ID: 2, URL: "https://b", Title: types.PlaceholderTitle, State: types.StateDownloading, Percent: 40, Total: 2048, Speed: "1.0 KiB/s", ETASeconds: 65},
		{ID: 1, URL: "https://a", Title: "clip", State: types.StateDone, Percent: 100},
	}

	var buf bytes.Buffer
	printJobs(&buf, jobs, false)
	out := buf.String()

	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "downloading")
	assert.Contains(t, out, "40%")
	assert.Contains(t, out, "01:05")
	assert.Contains(t, out, "clip")
	assert.Less(t, strings.Index(out, "downloading"), strings.Index(out, "done"))
}

func TestPrintJobs_Empty(t *testing.T) {
	var buf bytes.Buffer
	printJobs(&buf, nil, false)
	assert.Equal(t, "No downloads found.\n", buf.String())

	buf.Reset()
	printJobs(&buf, nil, true)
	assert.Equal(t, "[]\n", buf.String())
}

func TestPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	printStatus(&buf, types.Job{ID: 7, URL: "https://x", Title: "x", State: types.StateFailed, Error: "boom"})

	assert.Contains(t, buf.String(), "ID:        7")
	assert.Contains(t, buf.String(), "Status:    failed")
	assert.Contains(t, buf.String(), "Error:     boom")
	assert.NotContains(t, buf.String(), "ETA")
}

// =============================================================================
// In-process download Tests
// =============================================================================

func TestRunLocal(t *testing.T) {
	dir := t.TempDir()
	f := fetcher.Func(func(ctx context.Context, req fetcher.Request) (string, error) {
		if strings.Contains(req.URL, "bad") {
			return "", errors.New("ERROR: Unsupported URL")
		}
		path := filepath.Join(req.DestDir, filepath.Base(req.URL))
		return path, os.WriteFile(path, []byte("data"), 0o644)
	})
	orch := download.New(f, dir)

	var out bytes.Buffer
	failed := runLocal(context.Background(), orch, []string{"https://ok.example/a.mp4", "https://bad.example/b", ""}, &out)

	assert.Equal(t, 2, failed)
	assert.Contains(t, out.String(), "Completed #1")
	assert.Contains(t, out.String(), "Failed #2: ERROR: Unsupported URL")
	assert.FileExists(t, filepath.Join(dir, "a.mp4"))
}

func TestRunLocal_CancelledContext(t *testing.T) {
	f := fetcher.Func(func(ctx context.Context, req fetcher.Request) (string, error) {
		<-ctx.Done()
		return "", fetcher.ErrCancelled
	})
	orch := download.New(f, t.TempDir())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	failed := runLocal(ctx, orch, []string{"https://slow.example/v"}, &out)

	assert.Equal(t, 1, failed)
	assert.Contains(t, out.String(), "Cancelled #1")
}

func TestStartHeadlessConsumer(t *testing.T) {
	f := fetcher.Func(func(ctx context.Context, req fetcher.Request) (string, error) {
		path := filepath.Join(req.DestDir, "v.mp4")
		return path, os.WriteFile(path, nil, 0o644)
	})
	orch := download.New(f, t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var buf syncBuffer
	StartHeadlessConsumer(ctx, orch, &buf)

	_, err := orch.Submit("https://example.com/v")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "Completed #1")
	}, 2*time.Second, 10*time.Millisecond)
}

// =============================================================================
// rootCmd Tests
// =============================================================================

func TestVersion_DefaultValue(t *testing.T) {
	assert.NotEmpty(t, Version)
	assert.NotEmpty(t, BuildTime)
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"get", "ls", "status", "cancel", "gallery"} {
		assert.True(t, names[want], "missing %q subcommand", want)
	}
}

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "saverx", rootCmd.Use)
}
