package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigAppliesExamDefaults(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  port: "9090"
  mode: debug
jwt:
  secret: test-secret
storage:
  type: minio
exam:
  warning_scope: section
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("port = %q", cfg.Server.Port)
	}
	if cfg.Exam.WarningScope != "section" {
		t.Errorf("warning scope = %q", cfg.Exam.WarningScope)
	}
	if cfg.Exam.WarningThreshold != 3 {
		t.Errorf("warning threshold = %d, want default 3", cfg.Exam.WarningThreshold)
	}
	if cfg.Exam.ViolationDebounce() != 2*time.Second {
		t.Errorf("debounce = %v, want 2s", cfg.Exam.ViolationDebounce())
	}
	if cfg.Exam.TickInterval() != time.Second {
		t.Errorf("tick = %v, want 1s", cfg.Exam.TickInterval())
	}
	if cfg.Database.Driver != "mysql" {
		t.Errorf("driver = %q, want mysql", cfg.Database.Driver)
	}
}

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoadConfigInfrastructureDefaults(t *testing.T) {
	dir := writeConfig(t, `
server:
  mode: debug
jwt:
  secret: test-secret
storage:
  type: minio
redis:
  host: cache
  port: 6380
`)
	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Redis.Addr() != "cache:6380" || cfg.Redis.PoolSize != 50 || cfg.Redis.DialTimeout() != 5*time.Second {
		t.Errorf("unexpected redis config %+v", cfg.Redis)
	}
	if cfg.Log.File != "logs/quiz.log" || cfg.Log.MaxBackups != 5 || !cfg.Log.Console {
		t.Errorf("unexpected log config %+v", cfg.Log)
	}
	if cfg.Tracing.SampleRatio != 1 {
		t.Errorf("sample ratio = %v, want 1", cfg.Tracing.SampleRatio)
	}
}

func TestLoadConfigRejectsBadSampleRatio(t *testing.T) {
	dir := writeConfig(t, `
jwt:
  secret: test-secret
storage:
  type: minio
tracing:
  sample_ratio: 2
`)
	if _, err := LoadConfig(dir); err == nil {
		t.Fatal("expected sample ratio outside [0, 1] to be rejected")
	}
}
