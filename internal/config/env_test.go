package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("RUNFLOW_TEST_STR", "value")

	if got := GetEnv("RUNFLOW_TEST_STR", "fallback"); got != "value" {
		t.Errorf("GetEnv = %q, want %q", got, "value")
	}
	if got := GetEnv("RUNFLOW_TEST_MISSING", "fallback"); got != "fallback" {
		t.Errorf("GetEnv = %q, want fallback", got)
	}
}

func TestGetIntEnv(t *testing.T) {
	t.Setenv("RUNFLOW_TEST_INT", "42")
	t.Setenv("RUNFLOW_TEST_BAD_INT", "not-a-number")

	if got := GetIntEnv("RUNFLOW_TEST_INT", 7); got != 42 {
		t.Errorf("GetIntEnv = %d, want 42", got)
	}
	if got := GetIntEnv("RUNFLOW_TEST_BAD_INT", 7); got != 7 {
		t.Errorf("GetIntEnv with invalid value = %d, want default 7", got)
	}
	if got := GetIntEnv("RUNFLOW_TEST_MISSING", 7); got != 7 {
		t.Errorf("GetIntEnv missing = %d, want default 7", got)
	}
}

func TestGetDurationEnv(t *testing.T) {
	t.Setenv("RUNFLOW_TEST_DUR", "30s")
	t.Setenv("RUNFLOW_TEST_BAD_DUR", "soon")

	if got := GetDurationEnv("RUNFLOW_TEST_DUR", time.Minute); got != 30*time.Second {
		t.Errorf("GetDurationEnv = %v, want 30s", got)
	}
	if got := GetDurationEnv("RUNFLOW_TEST_BAD_DUR", time.Minute); got != time.Minute {
		t.Errorf("GetDurationEnv with invalid value = %v, want default 1m", got)
	}
}

func TestGetSecretFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(path, []byte("  s3cret\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if got := GetSecretFile(path); got != "s3cret" {
		t.Errorf("GetSecretFile = %q, want trimmed secret", got)
	}
	if got := GetSecretFile(""); got != "" {
		t.Errorf("GetSecretFile(\"\") = %q, want empty", got)
	}
	if got := GetSecretFile(filepath.Join(t.TempDir(), "missing")); got != "" {
		t.Errorf("GetSecretFile(missing) = %q, want empty", got)
	}
}

func TestLoadServiceConfig_Defaults(t *testing.T) {
	cfg := LoadServiceConfig()

	if cfg.Port != "8080" {
		t.Errorf("default port = %q, want 8080", cfg.Port)
	}
	if cfg.MetricsPort != "9090" {
		t.Errorf("default metrics port = %q, want 9090", cfg.MetricsPort)
	}
	if cfg.ShutdownDrainWait != 5*time.Second {
		t.Errorf("default drain wait = %v, want 5s", cfg.ShutdownDrainWait)
	}
}
