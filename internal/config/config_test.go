package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SettleWindow() != 500*time.Millisecond {
		t.Fatalf("SettleWindow = %v", cfg.SettleWindow())
	}
	if cfg.SettlePoll() != 100*time.Millisecond {
		t.Fatalf("SettlePoll = %v", cfg.SettlePoll())
	}
	if cfg.CaptchaMaxAttempts != 15 {
		t.Fatalf("CaptchaMaxAttempts = %d", cfg.CaptchaMaxAttempts)
	}
	if cfg.PickPercentile != 0.08 {
		t.Fatalf("PickPercentile = %v", cfg.PickPercentile)
	}
	if !cfg.IsDevelopment() {
		t.Fatal("default env should be development")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SEATRUSH_CAPTCHA_MAX_ATTEMPTS", "3")
	t.Setenv("SEATRUSH_ENV", "production")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CaptchaMaxAttempts != 3 {
		t.Fatalf("CaptchaMaxAttempts = %d, want 3", cfg.CaptchaMaxAttempts)
	}
	if cfg.IsDevelopment() {
		t.Fatal("production env should not be development")
	}
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "settle_window_ms: 800\nlogin_batch_size: 2\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SettleWindow() != 800*time.Millisecond {
		t.Fatalf("SettleWindow = %v, want 800ms", cfg.SettleWindow())
	}
	if cfg.LoginBatchSize != 2 {
		t.Fatalf("LoginBatchSize = %d, want 2", cfg.LoginBatchSize)
	}
}

func TestLoadRejectsBadPercentile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SEATRUSH_PICK_PERCENTILE", "1.5")

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadRejectsZeroCodeLength(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SEATRUSH_CAPTCHA_CODE_LENGTH", "0")

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadRejectsSingleColumnGrid(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SEATRUSH_GRID_COLS", "1")

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadRejectsSettleWindowSmallerThanPoll(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SEATRUSH_SETTLE_WINDOW_MS", "50")

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error")
	}
}
