package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/t766/control/internal/agent/apply"
	"github.com/t766/control/internal/agent/checkin"
	"github.com/t766/control/internal/agent/client"
	"github.com/t766/control/internal/bundle"
	"github.com/t766/control/internal/logging"
	"github.com/t766/control/internal/models"
)

type fakeApplier struct {
	result       apply.Result
	manifestsDir string
	modulePath   string
	sawSite      bool
}

func (f *fakeApplier) Apply(_ context.Context, manifestsDir, modulePath string) apply.Result {
	f.manifestsDir = manifestsDir
	f.modulePath = modulePath
	_, err := os.Stat(filepath.Join(manifestsDir, "site.pp"))
	f.sawSite = err == nil
	return f.result
}

// collector serves a bundle and records submitted reports
type collector struct {
	mu      sync.Mutex
	reports []models.SubmitRequest
	bundle  []byte
}

func newCollector(t *testing.T) (*collector, *httptest.Server) {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, bundle.ManifestsDir), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, bundle.ManifestsDir, "site.pp"), []byte("node default {}\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, bundle.ModulesDir, "base"), 0o755))

	var buf bytes.Buffer
	require.NoError(t, bundle.Write(&buf, root, bundle.ManifestsDir, bundle.ModulesDir))

	c := &collector{bundle: buf.Bytes()}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/manifests":
			_, _ = w.Write(c.bundle)
		case "/puppet-sync":
			body, _ := io.ReadAll(r.Body)
			var req models.SubmitRequest
			if err := json.Unmarshal(body, &req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			c.mu.Lock()
			c.reports = append(c.reports, req)
			c.mu.Unlock()
			_, _ = w.Write([]byte("recorded sync:20240101090500:" + req.Hostname))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return c, srv
}

func (c *collector) Reports() []models.SubmitRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.SubmitRequest(nil), c.reports...)
}

func newClient(t *testing.T, primary, fallback string) *client.Client {
	t.Helper()
	return client.New(client.Config{
		PrimaryURL:  primary,
		FallbackURL: fallback,
		Timeout:     2 * time.Second,
		TempDir:     t.TempDir(),
	}, logging.NewNop())
}

func TestNew_DefaultsHostname(t *testing.T) {
	want, err := os.Hostname()
	require.NoError(t, err)

	a, err := New("", nil, nil, &fakeApplier{}, logging.NewNop())
	require.NoError(t, err)
	assert.Equal(t, want, a.Hostname())

	a, err = New("web-01", nil, nil, &fakeApplier{}, logging.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "web-01", a.Hostname())
}

func TestSync_ReportsApplyOutcome(t *testing.T) {
	tests := []struct {
		name       string
		result     apply.Result
		wantStatus models.Status
	}{
		{"success", apply.Result{ExitCode: 0, Output: "Notice: Applied catalog"}, models.StatusSuccess},
		{"failure", apply.Result{ExitCode: 1, Output: "Error: boom"}, models.StatusFailure},
		{"interrupted", apply.Result{ExitCode: -1, Output: "killed"}, models.StatusInterrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col, srv := newCollector(t)
			applier := &fakeApplier{result: tt.result}
			a, err := New("web-01", newClient(t, srv.URL, srv.URL), nil, applier, logging.NewNop())
			require.NoError(t, err)

			require.NoError(t, a.Sync(context.Background()))

			assert.True(t, applier.sawSite, "applier must see the unpacked manifests")
			assert.Equal(t, bundle.ModulesDir, filepath.Base(applier.modulePath))

			reports := col.Reports()
			require.Len(t, reports, 1)
			assert.Equal(t, "web-01", reports[0].Hostname)
			assert.Equal(t, tt.wantStatus, reports[0].Status)
			assert.Equal(t, tt.result.ExitCode, reports[0].ExitCode)
			assert.Equal(t, tt.result.Output, reports[0].Logs)
			assert.Empty(t, reports[0].CheckinLogs)

			// Bundle directory is removed after the attempt
			_, err = os.Stat(applier.manifestsDir)
			assert.True(t, os.IsNotExist(err))
		})
	}
}

func TestSync_AttachesAndClearsCheckins(t *testing.T) {
	col, srv := newCollector(t)
	dir := t.TempDir()
	buf := checkin.New(filepath.Join(dir, "checkins.txt"), filepath.Join(dir, "checkins.old"))
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, buf.Append(now, "alice"))
	require.NoError(t, buf.Append(now.Add(time.Minute), "bob"))

	a, err := New("web-01", newClient(t, srv.URL, srv.URL), buf, &fakeApplier{}, logging.NewNop())
	require.NoError(t, err)
	require.NoError(t, a.Sync(context.Background()))

	reports := col.Reports()
	require.Len(t, reports, 1)
	assert.Equal(t, []string{
		"2024-01-01 09:00:00 - alice",
		"2024-01-01 09:01:00 - bob",
	}, reports[0].CheckinLogs)

	left, err := buf.Read()
	require.NoError(t, err)
	assert.Empty(t, left)

	// Second sync carries nothing
	require.NoError(t, a.Sync(context.Background()))
	reports = col.Reports()
	require.Len(t, reports, 2)
	assert.Empty(t, reports[1].CheckinLogs)
}

type failingCheckins struct {
	entries  []string
	readErr  error
	clearErr error
}

func (f *failingCheckins) Read() ([]string, error) { return f.entries, f.readErr }
func (f *failingCheckins) Clear() error { return f.clearErr }

func TestSync_CheckinErrorsDoNotFailSync(t *testing.T) {
	tests := []struct {
		name  string
		src   *failingCheckins
		wantN int
	}{
		{"read fails", &failingCheckins{readErr: errors.New("permission denied")}, 0},
		{"clear fails", &failingCheckins{entries: []string{"x - y"}, clearErr: errors.New("read-only")}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col, srv := newCollector(t)
			a, err := New("web-01", newClient(t, srv.URL, srv.URL), tt.src, &fakeApplier{}, logging.NewNop())
			require.NoError(t, err)

			require.NoError(t, a.Sync(context.Background()))
			reports := col.Reports()
			require.Len(t, reports, 1)
			assert.Len(t, reports[0].CheckinLogs, tt.wantN)
		})
	}
}

func TestSync_FailsOverToFallback(t *testing.T) {
	col, srv := newCollector(t)
	down := httptest.NewServer(http.NotFoundHandler())
	down.Close()

	a, err := New("web-01", newClient(t, down.URL, srv.URL), nil, &fakeApplier{}, logging.NewNop())
	require.NoError(t, err)

	require.NoError(t, a.Sync(context.Background()))
	assert.Len(t, col.Reports(), 1)
}

func TestSync_FetchFailure(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	down.Close()
	applier := &fakeApplier{}

	a, err := New("web-01", newClient(t, down.URL, down.URL), nil, applier, logging.NewNop())
	require.NoError(t, err)

	err = a.Sync(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrAllEndpointsFailed)
	assert.Empty(t, applier.manifestsDir, "apply must not run without a bundle")
}

func TestSync_ArchiveFailure(t *testing.T) {
	col, srv := newCollector(t)
	col.bundle = []byte("<html>502 Bad Gateway</html>")

	a, err := New("web-01", newClient(t, srv.URL, srv.URL), nil, &fakeApplier{}, logging.NewNop())
	require.NoError(t, err)

	err = a.Sync(context.Background())
	var archiveErr *client.ArchiveError
	require.ErrorAs(t, err, &archiveErr)
	assert.Contains(t, string(archiveErr.Preview), "502 Bad Gateway")
	assert.Empty(t, col.Reports())
}

func TestSync_SubmitFailure(t *testing.T) {
	_, srv := newCollector(t)
	reject := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/manifests" {
			http.Redirect(w, r, srv.URL+"/manifests", http.StatusFound)
			return
		}
		http.Error(w, "storage error", http.StatusInternalServerError)
	}))
	t.Cleanup(reject.Close)

	a, err := New("web-01", newClient(t, reject.URL, reject.URL), nil, &fakeApplier{}, logging.NewNop())
	require.NoError(t, err)

	err = a.Sync(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrAllEndpointsFailed)
	assert.Contains(t, err.Error(), "submit status")
}

type applyFunc func(ctx context.Context, manifestsDir, modulePath string) apply.Result

func (f applyFunc) Apply(ctx context.Context, manifestsDir, modulePath string) apply.Result {
	return f(ctx, manifestsDir, modulePath)
}

func TestSync_ShutdownDuringApplyStillReports(t *testing.T) {
	col, srv := newCollector(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	applier := applyFunc(func(context.Context, string, string) apply.Result {
		cancel()
		return apply.Result{ExitCode: 0, Output: "Notice: Applied catalog"}
	})

	a, err := New("web-01", newClient(t, srv.URL, srv.URL), nil, applier, logging.NewNop())
	require.NoError(t, err)

	require.NoError(t, a.Sync(ctx))

	reports := col.Reports()
	require.Len(t, reports, 1)
	assert.Equal(t, models.StatusSuccess, reports[0].Status)
}

func TestSync_CancelledBeforeStart(t *testing.T) {
	col, srv := newCollector(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	applier := &fakeApplier{}
	a, err := New("web-01", newClient(t, srv.URL, srv.URL), nil, applier, logging.NewNop())
	require.NoError(t, err)

	assert.ErrorIs(t, a.Sync(ctx), context.Canceled)
	assert.Empty(t, applier.manifestsDir)
	assert.Empty(t, col.Reports())
}
