package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.AppPort != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.AppPort)
	}
	if cfg.UploadMaxBytes != 10*1024*1024 {
		t.Fatalf("expected 10MiB upload cap, got %d", cfg.UploadMaxBytes)
	}
	if cfg.WriteLimit.Requests != 30 || cfg.WriteLimit.Window != time.Minute {
		t.Fatalf("unexpected write limit defaults: %+v", cfg.WriteLimit)
	}
	if cfg.ObjectStore.Bucket == "" {
		t.Fatal("expected a default bucket name")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MOVIEMEMO_PORT", "9001")
	t.Setenv("MOVIEMEMO_UPLOAD_MAX_BYTES", "1048576")
	t.Setenv("MOVIEMEMO_WRITE_LIMIT_WINDOW", "30s")
	t.Setenv("MOVIEMEMO_S3_PUBLIC_BASE_URL", "https://cdn.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.AppPort != 9001 {
		t.Fatalf("expected port override, got %d", cfg.AppPort)
	}
	if cfg.UploadMaxBytes != 1048576 {
		t.Fatalf("expected upload cap override, got %d", cfg.UploadMaxBytes)
	}
	if cfg.WriteLimit.Window != 30*time.Second {
		t.Fatalf("expected window override, got %s", cfg.WriteLimit.Window)
	}
	if cfg.ObjectStore.PublicBaseURL != "https://cdn.example.com" {
		t.Fatalf("expected base url override, got %q", cfg.ObjectStore.PublicBaseURL)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("MOVIEMEMO_PORT", "not-a-number")
	t.Setenv("MOVIEMEMO_WRITE_LIMIT_WINDOW", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.AppPort != 8080 {
		t.Fatalf("expected fallback port, got %d", cfg.AppPort)
	}
	if cfg.WriteLimit.Window != time.Minute {
		t.Fatalf("expected fallback window, got %s", cfg.WriteLimit.Window)
	}
}
