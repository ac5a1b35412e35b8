package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saverx/saverx/internal/engine/events"
	"github.com/saverx/saverx/internal/engine/types"
	"github.com/saverx/saverx/internal/gallery"
)

type fakeController struct {
	mu        sync.Mutex
	jobs      map[int64]types.Job
	order     []int64
	submitted []string
	cancelled []int64
	bus       *events.Bus
}

func newFakeController() *fakeController {
	return &fakeController{jobs: make(map[int64]types.Job), bus: events.NewBus()}
}

func (f *fakeController) Submit(url string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if strings.TrimSpace(url) == "" {
		return 0, fmt.Errorf("%w: url is empty", types.ErrInvalidInput)
	}
	id := int64(len(f.order) + 1)
	job := types.NewJob(id, url)
	job.State = types.StateDownloading
	f.jobs[id] = job
	f.order = append(f.order, id)
	f.submitted = append(f.submitted, url)
	f.bus.Publish(events.JobAddedMsg{JobID: id, URL: url, Title: job.Title})
	return id, nil
}

func (f *fakeController) Cancel(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
}

func (f *fakeController) Snapshot(id int64) (types.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return types.Job{}, fmt.Errorf("%w: job %d", types.ErrNotFound, id)
	}
	return job, nil
}

func (f *fakeController) ListAll() []types.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Job, 0, len(f.order))
	for i := len(f.order) - 1; i >= 0; i-- {
		out = append(out, f.jobs[f.order[i]])
	}
	return out
}

func (f *fakeController) DrainEvents() []events.Event {
	return f.bus.Drain()
}

func (f *fakeController) Subscribe() *events.Queue {
	return f.bus.Subscribe()
}

func (f *fakeController) Unsubscribe(q *events.Queue) {
	f.bus.Unsubscribe(q)
}

// syncBuffer is a bytes.Buffer safe for one writer goroutine and a reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func doRequest(t *testing.T, h http.Handler, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	h := NewServer(newFakeController(), nil, 8080).Router()

	rec := doRequest(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, float64(8080), resp["port"])
}

func TestSubmitEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"valid", `{"url":"https://example.com/v"}`, http.StatusOK},
		{"empty url", `{"url":""}`, http.StatusBadRequest},
		{"missing url", `{}`, http.StatusBadRequest},
		{"invalid json", `{not json`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewServer(newFakeController(), nil, 0).Router()
			rec := doRequest(t, h, http.MethodPost, "/download", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode == http.StatusOK {
				var resp DownloadResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, int64(1), resp.ID)
			}
		})
	}
}

func TestGetJobEndpoint(t *testing.T) {
	ctrl := newFakeController()
	_, err := ctrl.Submit("https://example.com/v")
	require.NoError(t, err)
	h := NewServer(ctrl, nil, 0).Router()

	rec := doRequest(t, h, http.MethodGet, "/download?id=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var job types.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, int64(1), job.ID)
	assert.Equal(t, types.StateDownloading, job.State)
	assert.Equal(t, types.PlaceholderTitle, job.Title)

	assert.Equal(t, http.StatusNotFound, doRequest(t, h, http.MethodGet, "/download?id=9", "").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(t, h, http.MethodGet, "/download", "").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(t, h, http.MethodGet, "/download?id=abc", "").Code)
}

func TestCancelEndpoint(t *testing.T) {
	ctrl := newFakeController()
	h := NewServer(ctrl, nil, 0).Router()

	// Unknown ids are still acknowledged.
	rec := doRequest(t, h, http.MethodPost, "/cancel?id=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, []int64{5}, ctrl.cancelled)

	assert.Equal(t, http.StatusMethodNotAllowed, doRequest(t, h, http.MethodGet, "/cancel?id=5", "").Code)
}

func TestListJobsEndpoint(t *testing.T) {
	ctrl := newFakeController()
	h := NewServer(ctrl, nil, 0).Router()

	rec := doRequest(t, h, http.MethodGet, "/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	_, _ = ctrl.Submit("https://a.example/1")
	_, _ = ctrl.Submit("https://a.example/2")

	rec = doRequest(t, h, http.MethodGet, "/jobs", "")
	var jobs []types.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobs))
	require.Len(t, jobs, 2)
	assert.Equal(t, int64(2), jobs[0].ID)
	assert.Equal(t, int64(1), jobs[1].ID)
}

func TestEventsEndpointDrains(t *testing.T) {
	ctrl := newFakeController()
	h := NewServer(ctrl, nil, 0).Router()
	_, _ = ctrl.Submit("https://a.example/1")

	rec := doRequest(t, h, http.MethodGet, "/events", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var envs []struct {
		Kind  events.Kind     `json:"kind"`
		JobID int64           `json:"job_id"`
		Event json.RawMessage `json:"event"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envs))
	require.Len(t, envs, 1)
	assert.Equal(t, events.KindJobAdded, envs[0].Kind)
	assert.Equal(t, int64(1), envs[0].JobID)

	rec = doRequest(t, h, http.MethodGet, "/events", "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestGalleryEndpoint(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clip.mp4"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clip.mp4.part"), []byte("x"), 0o644))

	h := NewServer(newFakeController(), gallery.NewLister(dir), 0).Router()
	rec := doRequest(t, h, http.MethodGet, "/gallery", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var items []gallery.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "clip.mp4", items[0].Name)

	h = NewServer(newFakeController(), nil, 0).Router()
	assert.JSONEq(t, `[]`, doRequest(t, h, http.MethodGet, "/gallery", "").Body.String())
}

func TestRequestIDIsAssigned(t *testing.T) {
	var seen string
	h := assignRequestID(middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.GetReqID(r.Context())
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Len(t, seen, 36, "expected a UUID request id, got %q", seen)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(middleware.RequestIDHeader, "caller-id")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "caller-id", seen)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(fmt.Errorf("%w: x", types.ErrInvalidInput)))
	assert.Equal(t, http.StatusNotFound, statusFor(fmt.Errorf("%w: x", types.ErrNotFound)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(fmt.Errorf("boom")))
}

func TestStreamEndpoint(t *testing.T) {
	ctrl := newFakeController()
	srv := httptest.NewServer(NewServer(ctrl, nil, 0).Router())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	_, err = ctrl.Submit("https://example.com/v")
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env struct {
		Kind  events.Kind        `json:"kind"`
		JobID int64              `json:"job_id"`
		Event events.JobAddedMsg `json:"event"`
	}
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, events.KindJobAdded, env.Kind)
	assert.Equal(t, int64(1), env.JobID)
	assert.Equal(t, "https://example.com/v", env.Event.URL)

	// The stream does not consume the default queue.
	assert.Len(t, ctrl.DrainEvents(), 1)
}

func TestIsLocalOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"http://127.0.0.1:8080", true},
		{"http://[::1]:8080", true},
		{"https://evil.example", false},
		{"::bad", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.want, isLocalOrigin(req), tt.origin)
	}
}
