// ABOUTME: Tests for courserun config functionality
// ABOUTME: Verifies load, save, env overrides, path resolution, defaults, and backend factory

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harper/courserun/internal/checkpoint"
	"github.com/harper/courserun/internal/route"
)

// isolate points every XDG directory at a fresh temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	t.Setenv("XDG_DATA_HOME", tmpDir)
	return tmpDir
}

func TestGetConfigPath(t *testing.T) {
	path := GetConfigPath()
	if path == "" {
		t.Error("GetConfigPath returned empty string")
	}
	if !filepath.IsAbs(path) {
		t.Errorf("GetConfigPath returned non-absolute path: %s", path)
	}
}

func TestGetConfigPathWithXDGConfigHome(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	path := GetConfigPath()
	if !strings.HasPrefix(path, tmpDir) {
		t.Errorf("GetConfigPath should use XDG_CONFIG_HOME, got %s", path)
	}
	if !strings.HasSuffix(path, filepath.Join("courserun", "config.json")) {
		t.Errorf("GetConfigPath should end with courserun/config.json, got %s", path)
	}
}

func TestGetConfigPathWithoutXDGConfigHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")

	path := GetConfigPath()
	if !strings.Contains(path, ".config") {
		t.Errorf("GetConfigPath should use .config fallback, got %s", path)
	}
}

func TestLoadNonExistent(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed on non-existent config: %v", err)
	}
	if cfg.GetBackend() != BackendSQLite {
		t.Errorf("expected default backend sqlite, got %q", cfg.GetBackend())
	}
	if cfg.CheckpointRadius != checkpoint.DefaultRadius {
		t.Errorf("expected default checkpoint radius, got %v", cfg.CheckpointRadius)
	}

	if _, err := os.Stat(GetConfigPath()); os.IsNotExist(err) {
		t.Error("expected config file to be auto-created on first run")
	}
}

func TestLoadExistingBadgerUser(t *testing.T) {
	tmpDir := isolate(t)

	badgerDir := filepath.Join(tmpDir, "courserun", "badger")
	if err := os.MkdirAll(badgerDir, 0750); err != nil {
		t.Fatalf("failed to create badger dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(badgerDir, "MANIFEST"), []byte("x"), 0600); err != nil {
		t.Fatalf("failed to create badger file: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend != BackendBadger {
		t.Errorf("expected badger backend for existing badger data, got %q", cfg.Backend)
	}
}

func TestLoadAutoCreatedConfigIsValidJSON(t *testing.T) {
	isolate(t)

	if _, err := Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	data, err := os.ReadFile(GetConfigPath())
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("auto-created config is not valid JSON: %v", err)
	}
	if _, ok := parsed["verification"]; !ok {
		t.Error("expected verification section in saved config")
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	isolate(t)

	path := GetConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := Load(); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	isolate(t)

	path := GetConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	body := `{"backend": "badger", "finish_radius": 75, "verification": {"auto_approve_score": 0.9}}`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend != BackendBadger || cfg.FinishRadius != 75 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Verification.AutoApproveScore != 0.9 {
		t.Errorf("expected auto approve 0.9, got %v", cfg.Verification.AutoApproveScore)
	}
	if cfg.Verification.Weights.DataQuality != 0.30 {
		t.Errorf("missing weights should keep defaults, got %v", cfg.Verification.Weights.DataQuality)
	}
	if cfg.OffCourseThreshold != route.DefaultOffCourseThreshold {
		t.Errorf("missing threshold should keep default, got %v", cfg.OffCourseThreshold)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	tmpDir := isolate(t)
	t.Setenv("COURSERUN_BACKEND", "badger")
	t.Setenv("COURSERUN_COURSE_DIR", filepath.Join(tmpDir, "mycourses"))
	t.Setenv("COURSERUN_CHECKPOINT_RADIUS", "25")
	t.Setenv("COURSERUN_VERIFY_MAX_AVG_SPEED", "22")
	t.Setenv("COURSERUN_SCREENSHOT_MIN_SIGNATURES", "4")
	t.Setenv("COURSERUN_COMPLETION_MIN_PROGRESS_PERCENT", "95")
	t.Setenv("COURSERUN_RECOVER_HOURS", "6")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend != BackendBadger {
		t.Errorf("expected env backend, got %q", cfg.Backend)
	}
	if cfg.GetCourseDir() != filepath.Join(tmpDir, "mycourses") {
		t.Errorf("unexpected course dir %s", cfg.GetCourseDir())
	}
	if cfg.CheckpointRadius != 25 {
		t.Errorf("expected radius 25, got %v", cfg.CheckpointRadius)
	}
	if cfg.Verification.MaxAvgSpeed != 22 {
		t.Errorf("expected max avg speed 22, got %v", cfg.Verification.MaxAvgSpeed)
	}
	if cfg.Screenshot.MinSignatures != 4 {
		t.Errorf("expected min signatures 4, got %v", cfg.Screenshot.MinSignatures)
	}
	if cfg.Completion.MinProgressPercent != 95 {
		t.Errorf("expected min progress 95, got %v", cfg.Completion.MinProgressPercent)
	}
	if cfg.Completion.MaxTotalTime != route.DefaultCompletionCriteria().MaxTotalTime {
		t.Errorf("unset completion fields should keep defaults, got %v", cfg.Completion.MaxTotalTime)
	}
	if cfg.RecoverHours != 6 {
		t.Errorf("expected recover hours 6, got %v", cfg.RecoverHours)
	}
}

func TestLoadEnvInvalid(t *testing.T) {
	isolate(t)
	t.Setenv("COURSERUN_BACKEND", "markdown")

	if _, err := Load(); err == nil {
		t.Error("expected error for unknown backend from env")
	}
}

func TestSaveAndLoad(t *testing.T) {
	isolate(t)

	cfg := Default()
	cfg.DataDir = "/custom/data"
	cfg.Tesseract = "/opt/bin/tesseract"
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.DataDir != "/custom/data" {
		t.Errorf("expected data dir /custom/data, got %q", loaded.DataDir)
	}
	if loaded.GetTesseract() != "/opt/bin/tesseract" {
		t.Errorf("expected tesseract path, got %q", loaded.GetTesseract())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Backend = "postgres" }},
		{"negative radius", func(c *Config) { c.CheckpointRadius = -1 }},
		{"bad weights", func(c *Config) { c.Verification.Weights.Duration = 0.9 }},
		{"no signatures", func(c *Config) { c.Screenshot.MinSignatures = 0 }},
		{"negative recover window", func(c *Config) { c.RecoverHours = -1 }},
		{"inverted completion window", func(c *Config) { c.Completion.MinTotalTime = c.Completion.MaxTotalTime + 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestDefaultDataDir(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmpDir)

	cfg := &Config{}
	expected := filepath.Join(tmpDir, "courserun")
	if got := cfg.GetDataDir(); got != expected {
		t.Errorf("expected %s, got %s", expected, got)
	}
	if got := cfg.GetCourseDir(); got != filepath.Join(expected, "courses") {
		t.Errorf("unexpected course dir %s", got)
	}
}

func TestDataDirTildeExpansion(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home directory")
	}

	cfg := &Config{DataDir: "~/runs"}
	if got := cfg.GetDataDir(); got != filepath.Join(home, "runs") {
		t.Errorf("expected %s, got %s", filepath.Join(home, "runs"), got)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home directory")
	}

	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"~", home},
		{"~/foo", filepath.Join(home, "foo")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
	}
	for _, tt := range tests {
		if got := ExpandPath(tt.input); got != tt.expected {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestOpenStorageBackends(t *testing.T) {
	for _, backend := range []string{BackendSQLite, BackendBadger} {
		t.Run(backend, func(t *testing.T) {
			tmpDir := t.TempDir()
			cfg := &Config{Backend: backend, DataDir: tmpDir}

			repo, err := cfg.OpenStorage()
			if err != nil {
				t.Fatalf("OpenStorage failed: %v", err)
			}
			defer repo.Close()

			if _, err := os.Stat(cfg.StoragePath(backend)); err != nil {
				t.Errorf("expected storage at %s: %v", cfg.StoragePath(backend), err)
			}
		})
	}
}

func TestOpenStorageUnknownBackend(t *testing.T) {
	cfg := &Config{Backend: "unknown", DataDir: t.TempDir()}
	if _, err := cfg.OpenStorage(); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestOptions(t *testing.T) {
	cfg := Default()
	if len(cfg.RouteOptions()) != 1 || len(cfg.CheckpointOptions()) != 2 || len(cfg.SamplerOptions()) != 1 {
		t.Error("unexpected option counts")
	}
	if cfg.RecoverHours != 24 {
		t.Errorf("expected 24 recover hours by default, got %v", cfg.RecoverHours)
	}
}
