package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/plaf203-core/internal/auth"
	"github.com/nerrad567/plaf203-core/internal/infrastructure/config"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

// writeConfig writes a minimal config using a temp database and returns its path.
func writeConfig(t *testing.T, mqttPort int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
device:
  serial: "AF0123456789"

database:
  path: "` + filepath.Join(dir, "test.db") + `"
  wal_mode: true
  busy_timeout: 5

mqtt:
  broker:
    host: "127.0.0.1"
    port: ` + strconv.Itoa(mqttPort) + `
    client_id: "plaf203-test"

logging:
  level: error
  format: text
  output: stderr

api:
  host: "127.0.0.1"
  port: 18203
  auth:
    jwt_secret: "` + testSecret + `"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// execute runs the command tree with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, "/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestRun_MissingSerial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("database:\n  path: ./x.db\n"), 0600); err != nil {
		t.Fatal(err)
	}

	err := run(context.Background(), path)
	if err == nil || !strings.Contains(err.Error(), "device.serial") {
		t.Fatalf("run() error = %v, want device.serial validation error", err)
	}
}

// Requires an MQTT broker at 127.0.0.1:1883.
func TestRun_StartupAndShutdown(t *testing.T) {
	path := writeConfig(t, 1883)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := run(ctx, path); err != nil {
		t.Skipf("run() returned error (no MQTT broker?): %v", err)
	}
}

func TestResolveConfigPath(t *testing.T) {
	tests := []struct {
		name string
		flag string
		env  string
		want string
	}{
		{"default", "", "", defaultConfigPath},
		{"env", "", "/etc/plaf203/config.yaml", "/etc/plaf203/config.yaml"},
		{"flag wins", "/tmp/mine.yaml", "/etc/plaf203/config.yaml", "/tmp/mine.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(configEnv, tt.env)
			if got := resolveConfigPath(tt.flag); got != tt.want {
				t.Errorf("resolveConfigPath(%q) = %q, want %q", tt.flag, got, tt.want)
			}
		})
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "plaf203 "+version) {
		t.Errorf("version output = %q", out)
	}
}

func TestMigrateCmd(t *testing.T) {
	path := writeConfig(t, 19999)

	if _, err := execute(t, "migrate", "up", "--config", path); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	out, err := execute(t, "migrate", "status", "--config", path)
	if err != nil {
		t.Fatalf("migrate status: %v", err)
	}
	if strings.Contains(out, "pending") || !strings.Contains(out, "applied") {
		t.Errorf("status after up = %q, want only applied migrations", out)
	}

	if _, err := execute(t, "migrate", "down", "--config", path); err != nil {
		t.Fatalf("migrate down: %v", err)
	}
	out, err = execute(t, "migrate", "status", "--config", path)
	if err != nil {
		t.Fatalf("migrate status: %v", err)
	}
	if strings.Count(out, "pending") != 1 {
		t.Errorf("status after down = %q, want one pending migration", out)
	}
}

func TestTokenCmd(t *testing.T) {
	path := writeConfig(t, 19999)

	out, err := execute(t, "token", "--config", path, "--subject", "dashboard", "--role", "admin", "--ttl", "1h")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	claims, err := auth.ParseToken(strings.TrimSpace(out), testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "dashboard" || claims.Role != auth.RoleAdmin {
		t.Errorf("claims = %+v", claims)
	}
	if ttl := time.Until(claims.ExpiresAt.Time); ttl > time.Hour || ttl < 59*time.Minute {
		t.Errorf("token lifetime = %v, want about 1h", ttl)
	}

	tests := []struct {
		name string
		args []string
	}{
		{"missing subject", []string{"token", "--config", path}},
		{"unknown role", []string{"token", "--config", path, "--subject", "x", "--role", "owner"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, tt.args...); err == nil {
				t.Error("token should fail")
			}
		})
	}
}

func TestIssueToken_DefaultTTL(t *testing.T) {
	cfg := &config.Config{API: config.APIConfig{Auth: config.APIAuthConfig{JWTSecret: testSecret, TokenTTL: 30}}}

	tok, err := issueToken(cfg, "viewer", auth.RoleViewer, 0)
	if err != nil {
		t.Fatalf("issueToken() error = %v", err)
	}
	claims, err := auth.ParseToken(tok, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if ttl := time.Until(claims.ExpiresAt.Time); ttl > 30*time.Minute || ttl < 29*time.Minute {
		t.Errorf("token lifetime = %v, want the configured 30m", ttl)
	}

	cfg.API.Auth.JWTSecret = ""
	if _, err := issueToken(cfg, "viewer", auth.RoleViewer, 0); err == nil {
		t.Error("issueToken() without secret should fail")
	}
}
