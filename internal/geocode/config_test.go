package geocode

import (
	"os"
	"path/filepath"
	"testing"
)

// TestLoadConfig_MissingFile falls back to defaults when the file does not
// exist.
func TestLoadConfig_MissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

// TestLoadConfig_Overrides merges file values over defaults, keeping unset
// fields at their defaults.
func TestLoadConfig_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geocode.yaml")
	content := "ban_base_url: http://addok.internal:7878\nscore_threshold: 0.7\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.BANBaseURL != "http://addok.internal:7878" {
		t.Errorf("BANBaseURL = %q", cfg.BANBaseURL)
	}
	if cfg.ScoreThreshold != 0.7 {
		t.Errorf("ScoreThreshold = %v", cfg.ScoreThreshold)
	}
	if cfg.CommuneAPIBaseURL != DefaultCommuneAPIBaseURL {
		t.Errorf("CommuneAPIBaseURL should keep its default, got %q", cfg.CommuneAPIBaseURL)
	}
	if cfg.RequestsPerSecond != DefaultRequestsPerSecond {
		t.Errorf("RequestsPerSecond should keep its default, got %v", cfg.RequestsPerSecond)
	}
}

// TestLoadConfig_BadYAML reports a parse error but still returns defaults so
// the caller can decide.
func TestLoadConfig_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geocode.yaml")
	if err := os.WriteFile(path, []byte("{{nope"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Error("expected a parse error")
	}
}
