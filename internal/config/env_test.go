package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"QWILL_PAGE_SIZE", "QWILL_DPI", "QWILL_STORAGE_URL", "QWILL_AUTOSAVE_DELAY", "QWILL_HTTP_ADDR", "AXIOM_DATASET"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()

	if cfg.Page.Size != "letter" || cfg.Page.DPI != 96 || cfg.Page.MarginIn != 1 {
		t.Errorf("Page = %+v", cfg.Page)
	}
	if cfg.Storage.AutosaveDelay != time.Second || cfg.Storage.URL != "data" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("HTTP.Addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Axiom.Dataset != "dev_qwill" {
		t.Errorf("Axiom.Dataset = %q", cfg.Axiom.Dataset)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("QWILL_PAGE_SIZE", "A4")
	t.Setenv("QWILL_MARGIN_IN", "0.5")
	t.Setenv("QWILL_AUTOSAVE_DELAY", "250ms")
	t.Setenv("QWILL_LOG_PRETTY", "yes")
	t.Setenv("QWILL_LOG_MAX_BACKUPS", "not-a-number")

	cfg := FromEnv()
	if cfg.Page.Size != "a4" || cfg.Page.MarginIn != 0.5 {
		t.Errorf("Page = %+v", cfg.Page)
	}
	if cfg.Storage.AutosaveDelay != 250*time.Millisecond {
		t.Errorf("AutosaveDelay = %v", cfg.Storage.AutosaveDelay)
	}
	if !cfg.Logging.Pretty || cfg.Logging.MaxBackups != 10 {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("QWILL_HTTP_ADDR=:9999\nQWILL_FONT=monospace\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("QWILL_HTTP_ADDR", "")
	t.Setenv("QWILL_FONT", "sans-serif")
	os.Unsetenv("QWILL_HTTP_ADDR")

	cfg, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Addr != ":9999" {
		t.Errorf("HTTP.Addr = %q, want value from file", cfg.HTTP.Addr)
	}
	if cfg.Page.Font != "sans-serif" {
		t.Errorf("Page.Font = %q, environment should win over file", cfg.Page.Font)
	}
}
