package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kaiassist/kai/internal/core"
)

// =============================================================================
// Default Config Tests
// =============================================================================

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.DataDir == "" {
		t.Error("DataDir should not be empty")
	}
	if filepath.Base(cfg.DataDir) != ".kai" {
		t.Errorf("DataDir should end with .kai, got %q", filepath.Base(cfg.DataDir))
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Storage.Backend != BackendFile {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, BackendFile)
	}
	if cfg.Tasks.DelayUnit != "seconds" {
		t.Errorf("Tasks.DelayUnit = %q, want seconds", cfg.Tasks.DelayUnit)
	}
	if cfg.Tasks.Tick != time.Second {
		t.Errorf("Tasks.Tick = %v, want 1s", cfg.Tasks.Tick)
	}
	if cfg.Personality.DefaultMode != "ceo" {
		t.Errorf("Personality.DefaultMode = %q, want ceo", cfg.Personality.DefaultMode)
	}
	if cfg.Research.MaxParagraphs != 3 {
		t.Errorf("Research.MaxParagraphs = %d, want 3", cfg.Research.MaxParagraphs)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_Path(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/data"

	if got := cfg.Path("tasks.json"); got != filepath.Join("/data", "tasks.json") {
		t.Errorf("Path(relative) = %q", got)
	}
	if got := cfg.Path("/abs/tasks.json"); got != "/abs/tasks.json" {
		t.Errorf("Path(absolute) = %q", got)
	}
}

// =============================================================================
// Load Config Tests
// =============================================================================

func TestLoad_NonExistentFile(t *testing.T) {
	cfg, err := Load("/non/existent/path/config.json")
	if err != nil {
		t.Fatalf("Load() error = %v, want nil for non-existent file", err)
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000 (default)", cfg.Server.Port)
	}
}

func TestLoad_ValidJSONFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	content := `{
		"data_dir": "` + tmpDir + `",
		"server": {"port": 9090},
		"storage": {"backend": "sqlite"},
		"tasks": {"delay_unit": "minutes", "tick": "250ms"},
		"personality": {"default_mode": "chill"}
	}`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DataDir != tmpDir {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, tmpDir)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	// Unset keys keep their defaults
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want default", cfg.Server.Host)
	}
	if cfg.Storage.Backend != BackendSQLite {
		t.Errorf("Storage.Backend = %q, want sqlite", cfg.Storage.Backend)
	}
	if cfg.DelayUnit() != core.DelayMinutes {
		t.Errorf("DelayUnit() = %q, want minutes", cfg.DelayUnit())
	}
	if cfg.Tasks.Tick != 250*time.Millisecond {
		t.Errorf("Tasks.Tick = %v, want 250ms", cfg.Tasks.Tick)
	}
	if cfg.Personality.DefaultMode != "chill" {
		t.Errorf("Personality.DefaultMode = %q, want chill", cfg.Personality.DefaultMode)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := "server:\n  port: 7070\nresearch:\n  max_paragraphs: 5\n"
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Research.MaxParagraphs != 5 {
		t.Errorf("Research.MaxParagraphs = %d, want 5", cfg.Research.MaxParagraphs)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("KAI_SERVER_PORT", "6060")
	t.Setenv("KAI_MAIL_PASSWORD", "app-password")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 6060 {
		t.Errorf("Server.Port = %d, want 6060 from env", cfg.Server.Port)
	}
	if cfg.Mail.Password != "app-password" {
		t.Error("mail password should come from env")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(configPath, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Load() should fail for invalid JSON")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown backend", `{"storage": {"backend": "redis"}}`},
		{"unknown delay unit", `{"tasks": {"delay_unit": "hours"}}`},
		{"zero tick", `{"tasks": {"tick": "0s"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.json")
			if err := os.WriteFile(configPath, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}

			_, err := Load(configPath)
			if !errors.Is(err, core.ErrInvalidInput) {
				t.Errorf("Load() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

// =============================================================================
// Save Config Tests
// =============================================================================

func TestSave_CreatesFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.json")

	cfg := Default()
	cfg.DataDir = tmpDir
	cfg.Server.Port = 9999

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read saved config: %v", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("failed to unmarshal saved config: %v", err)
	}
	if loaded.Server.Port != 9999 {
		t.Errorf("saved Server.Port = %d, want 9999", loaded.Server.Port)
	}
}

func TestSave_EmptyPath(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := Default()
	cfg.DataDir = tmpDir

	if err := cfg.Save(""); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	defaultPath := filepath.Join(tmpDir, "config.json")
	if _, err := os.Stat(defaultPath); os.IsNotExist(err) {
		t.Errorf("config file was not created at default path: %s", defaultPath)
	}
}

func TestSave_DoesNotSaveMailPassword(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	cfg := Default()
	cfg.Mail.Password = "super-secret"

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, _ := os.ReadFile(configPath)
	if strings.Contains(string(data), "super-secret") {
		t.Error("mail password should not be saved to file")
	}
	if cfg.Mail.Password != "super-secret" {
		t.Error("Save() should not modify the original config")
	}
}

func TestLoadAndSave_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	original := Default()
	original.DataDir = tmpDir
	original.Server.Port = 4321
	original.Tasks.Tick = 2 * time.Second
	original.Storage.Backend = BackendSQLite

	if err := original.Save(configPath); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if loaded.Server.Port != original.Server.Port {
		t.Errorf("Server.Port = %d, want %d", loaded.Server.Port, original.Server.Port)
	}
	if loaded.Tasks.Tick != original.Tasks.Tick {
		t.Errorf("Tasks.Tick = %v, want %v", loaded.Tasks.Tick, original.Tasks.Tick)
	}
	if loaded.Storage.Backend != original.Storage.Backend {
		t.Errorf("Storage.Backend = %q, want %q", loaded.Storage.Backend, original.Storage.Backend)
	}
}
