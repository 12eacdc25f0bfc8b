package router

import (
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/t766/control/internal/config"
	"github.com/t766/control/internal/handlers"
	"github.com/t766/control/internal/logging"
	"github.com/t766/control/internal/services"
	"github.com/t766/control/internal/storage"
)

const testAPIKey = "0123456789abcdef0123456789abcdef"

func newTestApp(t *testing.T, auth config.AuthConfig) *fiber.App {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Auth = auth
	return newTestAppWithConfig(t, cfg)
}

func newTestAppWithConfig(t *testing.T, cfg *config.Config) *fiber.App {
	t.Helper()
	logger := logging.NewNop()

	store, err := storage.Open(filepath.Join(t.TempDir(), "status.bolt"), storage.DefaultOptions(), logger)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "manifests"), 0o755); err != nil {
		t.Fatal(err)
	}

	h := handlers.New(logger, store,
		services.NewSyncService(logger, store, nil, nil, time.UTC),
		services.NewQueryService(logger, store, services.NewBucketer(time.UTC, 15), 20),
		root)
	return New(logger, h, *cfg)
}

func TestRoutes_NodeFacingSkipAuth(t *testing.T) {
	app := newTestApp(t, config.AuthConfig{Enabled: true, APIKeys: []string{testAPIKey}})

	req := httptest.NewRequest("POST", "/puppet-sync", strings.NewReader(`{"hostname":"A","status":"success"}`))
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("POST /puppet-sync = %d, expected 200", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/manifests", nil), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("GET /manifests = %d, expected 200", resp.StatusCode)
	}
}

func TestRoutes_ReadAPIRequiresKey(t *testing.T) {
	app := newTestApp(t, config.AuthConfig{Enabled: true, APIKeys: []string{testAPIKey}})

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/syncs", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("without key = %d, expected 401", resp.StatusCode)
	}

	req := httptest.NewRequest("GET", "/v1/syncs", nil)
	req.Header.Set("X-API-Key", testAPIKey)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("with key = %d, expected 200", resp.StatusCode)
	}
}

func TestRoutes_RequestIDAndNotFound(t *testing.T) {
	app := newTestApp(t, config.AuthConfig{})

	resp, err := app.Test(httptest.NewRequest("GET", "/nope", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("status = %d, expected 404", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestRoutes_BodyLimit(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.BodyLimit = 512
	app := newTestAppWithConfig(t, cfg)

	// Oversized bodies fail inside fasthttp before routing; app.Test only
	// sees a transport error there, so serve over a real socket.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	big := `{"hostname":"A","status":"success","logs":"` + strings.Repeat("x", 2048) + `"}`
	resp, err := http.Post("http://"+ln.Addr().String()+"/puppet-sync", "application/json", strings.NewReader(big))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != fiber.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, expected 413", resp.StatusCode)
	}
}
