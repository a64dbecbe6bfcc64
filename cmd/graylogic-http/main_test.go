package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// freePort returns a TCP port that was free a moment ago.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("finding free port: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func writeConfig(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("GRAYLOGIC_CONFIG", path)
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("GRAYLOGIC_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestRun_InvalidThreshold(t *testing.T) {
	writeConfig(t, `
site:
  id: test-site
http:
  login_attempts_threshold: 0
`)
	if err := run(context.Background()); err == nil {
		t.Fatal("run() should reject a zero login attempts threshold")
	}
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	port := freePort(t)
	dbPath := filepath.Join(t.TempDir(), "http.db")
	writeConfig(t, fmt.Sprintf(`
site:
  id: test-site
http:
  api_password: "test-password"
  server_host: "127.0.0.1"
  server_port: %d
  login_attempts_threshold: 3
database:
  path: %q
logging:
  level: error
  format: text
  output: stderr
`, port, dbPath))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	client := &http.Client{Timeout: time.Second}

	var up bool
	for deadline := time.Now().Add(10 * time.Second); time.Now().Before(deadline); {
		resp, err := client.Get(base + "/api/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				up = true
				break
			}
		}
		select {
		case err := <-done:
			t.Fatalf("run() exited early: %v", err)
		case <-time.After(50 * time.Millisecond):
		}
	}
	if !up {
		cancel()
		t.Fatal("server never became healthy")
	}

	resp, err := client.Get(base + "/api/")
	if err != nil {
		t.Fatalf("GET /api/: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("GET /api/ without password = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, base+"/api/", nil) //nolint:errcheck // constant URL
	req.Header.Set("X-HA-Access", "test-password")
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("GET /api/ with password: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /api/ with password = %d, want 200", resp.StatusCode)
	}

	// the audit trail is served whenever the database is open
	req, _ = http.NewRequest(http.MethodGet, base+"/api/audit?action=login_failed", nil) //nolint:errcheck // constant URL
	req.Header.Set("X-HA-Access", "test-password")
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("GET /api/audit: %v", err)
	}
	var page struct {
		Total int `json:"total"`
	}
	decodeErr := json.NewDecoder(resp.Body).Decode(&page)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || decodeErr != nil {
		t.Errorf("GET /api/audit = %d (%v), want 200", resp.StatusCode, decodeErr)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error = %v", err)
		}
	case <-time.After(20 * time.Second):
		t.Fatal("run() did not return after cancel")
	}

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("ban database not created: %v", err)
	}
}

func TestHealthCheck_NothingConfigured(t *testing.T) {
	if err := healthCheck(context.Background(), nil, nil, nil); err != nil {
		t.Errorf("healthCheck() with no backends error = %v", err)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("GRAYLOGIC_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}
	t.Setenv("GRAYLOGIC_CONFIG", "/etc/graylogic/http.yaml")
	if got := getConfigPath(); got != "/etc/graylogic/http.yaml" {
		t.Errorf("getConfigPath() = %q", got)
	}
}
