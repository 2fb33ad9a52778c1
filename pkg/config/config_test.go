package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shelfd/shelfd/internal/bytesize"
)

func TestDefaults(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Logging.Level != "INFO" || cfg.Logging.Format != "text" {
		t.Errorf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if cfg.Storage.DefaultClass != "S" {
		t.Errorf("expected default class S, got %q", cfg.Storage.DefaultClass)
	}
	if cfg.Storage.ClassList["S"] != "Standard" || cfg.Storage.ClassList["A"] != "Archive" {
		t.Errorf("unexpected class list %v", cfg.Storage.ClassList)
	}
	if cfg.Storage.MultipartChunkSizeMin != 5*bytesize.MiB {
		t.Errorf("expected 5Mi chunk min, got %d", cfg.Storage.MultipartChunkSizeMin)
	}
	if cfg.Storage.MultipartChunkSizeMax != 5*bytesize.GiB {
		t.Errorf("expected 5Gi chunk max, got %d", cfg.Storage.MultipartChunkSizeMax)
	}
	if cfg.Storage.MultipartMaxParts != 10000 {
		t.Errorf("expected 10000 max parts, got %d", cfg.Storage.MultipartMaxParts)
	}
	if cfg.Storage.MultipartExpires != 4*24*time.Hour {
		t.Errorf("expected 4d expiry, got %s", cfg.Storage.MultipartExpires)
	}
	if cfg.Storage.MinFileSize != 1 {
		t.Errorf("expected min file size 1, got %d", cfg.Storage.MinFileSize)
	}
	if cfg.Storage.ObjectKeyMaxLen != 255 {
		t.Errorf("expected key max 255, got %d", cfg.Storage.ObjectKeyMaxLen)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Storage.DefaultClass != "S" {
		t.Errorf("expected defaults, got %+v", cfg.Storage)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
logging:
  level: debug
  format: json
storage:
  multipart_chunk_size_min: 1Mi
  default_quota_size: 10Gi
database:
  type: sqlite
  sqlite:
    path: /tmp/test-catalog.db
api:
  port: 9999
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging config %+v", cfg.Logging)
	}
	if cfg.Storage.MultipartChunkSizeMin != bytesize.MiB {
		t.Errorf("expected 1Mi chunk min, got %d", cfg.Storage.MultipartChunkSizeMin)
	}
	if cfg.Storage.DefaultQuotaSize != 10*bytesize.GiB {
		t.Errorf("expected 10Gi quota, got %d", cfg.Storage.DefaultQuotaSize)
	}
	if cfg.API.Port != 9999 {
		t.Errorf("expected api port 9999, got %d", cfg.API.Port)
	}
	// Untouched knobs keep their defaults.
	if cfg.Storage.MultipartMaxParts != 10000 {
		t.Errorf("expected default max parts, got %d", cfg.Storage.MultipartMaxParts)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	t.Run("default class outside list", func(t *testing.T) {
		cfg := GetDefaultConfig()
		cfg.Storage.DefaultClass = "X"
		if err := Validate(cfg); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("chunk bounds inverted", func(t *testing.T) {
		cfg := GetDefaultConfig()
		cfg.Storage.MultipartChunkSizeMin = 10
		cfg.Storage.MultipartChunkSizeMax = 5
		if err := Validate(cfg); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("bad log level", func(t *testing.T) {
		cfg := GetDefaultConfig()
		cfg.Logging.Level = "LOUD"
		if err := Validate(cfg); err == nil {
			t.Error("expected validation error")
		}
	})
}
