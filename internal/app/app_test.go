package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/imgtag/internal/config"
)

func TestInit_WithDefaults_Succeeds(t *testing.T) {
	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "8080")
	}

	// slogのデフォルトロガーがJSON出力に設定されていること
	slog.Default().Info("init test")
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log output, got error: %v\nraw: %s", err, buf.String())
	}
	if entry["msg"] != "init test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "init test")
	}
}

func TestInit_AppliesLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")

	var buf bytes.Buffer
	if _, err := Init(&buf); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	slog.Default().Info("suppressed")
	if buf.Len() != 0 {
		t.Errorf("info log should be suppressed at warn level, got %s", buf.String())
	}
}

func TestInit_WithInvalidConfig_ReturnsError(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose")

	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err == nil {
		t.Fatal("expected error for invalid LOG_LEVEL, got nil")
	}
	if cfg != nil {
		t.Error("expected nil config on error")
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	cfg.ShutdownTimeout = 5 * time.Second
	return cfg
}

func TestNewServer_MissingPolicyFile_ReturnsError(t *testing.T) {
	cfg := testConfig(t)
	cfg.SetPolicyFile(filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := newServer(cfg, slog.New(slog.NewJSONHandler(io.Discard, nil))); err == nil {
		t.Fatal("expected error for missing policy file")
	}
}

func TestServer_ServesAndShutsDown(t *testing.T) {
	dir := t.TempDir()
	policyPath := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(policyPath, []byte("blacklist:\n  - bad.example.com\n"), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	cfg := testConfig(t)
	cfg.SetPolicyFile(policyPath)

	s, err := newServer(cfg, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}
	if s.watcher == nil {
		t.Error("expected policy watcher to be enabled with a policy file")
	}
	if s.registry == nil {
		t.Error("expected metrics registry to be enabled by default")
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.serve(ctx, ln) }()

	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(base + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/health status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	resp, err = client.Post(base+"/api/img/validate", "application/json",
		strings.NewReader(`{"src":"https://bad.example.com/a.png"}`))
	if err != nil {
		t.Fatalf("POST /api/img/validate: %v", err)
	}
	var body struct {
		OK     bool   `json:"ok"`
		Reason string `json:"reason"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if body.OK || body.Reason != "blacklisted" {
		t.Errorf("validate = %+v, want blacklisted", body)
	}

	resp, err = client.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	metricsText, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(metricsText), `imgtag_validations_total{reason="blacklisted"} 1`) {
		t.Errorf("metrics should record the blacklisted verdict")
	}
	if !strings.Contains(string(metricsText), "go_goroutines") {
		t.Errorf("metrics should include Go runtime collectors")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}

func TestNewServer_MetricsDisabled(t *testing.T) {
	t.Setenv("METRICS_ENABLED", "false")
	cfg := testConfig(t)

	s, err := newServer(cfg, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}
	defer s.rateLimiter.Stop()

	if s.registry != nil {
		t.Error("registry should be nil when metrics are disabled")
	}
	if s.watcher != nil {
		t.Error("watcher should be nil without a policy file")
	}
}

func TestServer_ListenFailureClosesWatcher(t *testing.T) {
	dir := t.TempDir()
	policyPath := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(policyPath, []byte("whitelist:\n  - example.com\n"), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	cfg := testConfig(t)
	cfg.SetPolicyFile(policyPath)

	s, err := newServer(cfg, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}
	if s.watcher == nil {
		t.Fatal("expected policy watcher to be enabled with a policy file")
	}

	// 使用中のアドレスで待ち受けを失敗させる
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer busy.Close()

	if err := s.listenAndServe(context.Background(), busy.Addr().String()); err == nil {
		t.Fatal("expected listen error on a busy address")
	}

	// 閉じられた監視のRunはすぐに戻る
	done := make(chan struct{})
	go func() {
		s.watcher.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("policy watcher was left open after listen failure")
	}
}

func TestRunHealthcheck(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	})}
	go srv.Serve(ln)
	defer srv.Close()

	_, port, _ := net.SplitHostPort(ln.Addr().String())
	if err := runHealthcheck(port); err != nil {
		t.Errorf("runHealthcheck: %v", err)
	}
}
