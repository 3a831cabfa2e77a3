package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"catalogetl/internal/blob"
	"catalogetl/internal/core"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(Options{Getenv: envMap(nil)})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != string(core.StorageSQLite) || cfg.Storage.SQLitePath != "catalogetl.db" {
		t.Fatalf("unexpected storage defaults: %+v", cfg.Storage)
	}
	if cfg.Blob.Driver != string(blob.DriverFilesystem) || cfg.Blob.FSRoot != "reports" {
		t.Fatalf("unexpected blob defaults: %+v", cfg.Blob)
	}
	if got := cfg.Inputs.Path(cfg.Inputs.Updates); got != filepath.Join("data", "4", "_update_data.pkl") {
		t.Fatalf("unexpected updates path %q", got)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalogetl.yaml")
	doc := `
storage:
  driver: memory
blob:
  driver: s3
  s3:
    bucket: reports
    path_style: true
log:
  format: json
inputs:
  data_dir: /srv/data
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(Options{File: path, Getenv: envMap(nil)})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != "memory" || cfg.Blob.S3.Bucket != "reports" || !cfg.Blob.S3.PathStyle {
		t.Fatalf("yaml not applied: %+v", cfg)
	}
	if cfg.Log.Format != "json" || cfg.Log.Level != "info" {
		t.Fatalf("unexpected log config: %+v", cfg.Log)
	}
	if got := cfg.Inputs.Path("3/_part_1.text"); got != filepath.Join("/srv/data", "3", "_part_1.text") {
		t.Fatalf("unexpected resolved path %q", got)
	}
	if got := cfg.Inputs.Path("/abs/file.csv"); got != "/abs/file.csv" {
		t.Fatalf("absolute path rewritten: %q", got)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  driver: memory\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(Options{File: path, Getenv: envMap(map[string]string{
		EnvPrefix + "STORAGE_DRIVER":     "postgres",
		EnvPrefix + "POSTGRES_DSN":       "postgres://db/catalog",
		EnvPrefix + "BLOB_S3_PATH_STYLE": "true",
		EnvPrefix + "LOG_LEVEL":          "debug",
	})})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	opts := cfg.StoreOptions()
	if opts.Driver != core.StoragePostgres || opts.PostgresDSN != "postgres://db/catalog" {
		t.Fatalf("unexpected store options: %+v", opts)
	}
	if !cfg.BlobOptions().S3.PathStyle || cfg.Log.Level != "debug" {
		t.Fatalf("env not applied: %+v", cfg)
	}
}

func TestDotEnvFillsUnsetVariables(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "CATALOGETL_BLOB_DRIVER=memory\nCATALOGETL_SERVE_ADDR=:9090\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(Options{DotEnv: path, Getenv: envMap(map[string]string{
		EnvPrefix + "SERVE_ADDR": ":7070",
	})})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Blob.Driver != "memory" {
		t.Fatalf("expected .env blob driver, got %q", cfg.Blob.Driver)
	}
	if cfg.Serve.Addr != ":7070" {
		t.Fatalf("environment should win over .env, got %q", cfg.Serve.Addr)
	}
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]struct {
		opts Options
		want string
	}{
		"missing file":   {Options{File: filepath.Join(t.TempDir(), "nope.yaml"), Getenv: envMap(nil)}, "read config"},
		"missing dotenv": {Options{DotEnv: filepath.Join(t.TempDir(), "nope.env"), Getenv: envMap(nil)}, "load"},
		"bad driver":     {Options{Getenv: envMap(map[string]string{EnvPrefix + "STORAGE_DRIVER": "mongo"})}, "unknown storage driver"},
		"bad blob":       {Options{Getenv: envMap(map[string]string{EnvPrefix + "BLOB_DRIVER": "gcs"})}, "unknown blob driver"},
		"bad format":     {Options{Getenv: envMap(map[string]string{EnvPrefix + "LOG_FORMAT": "xml"})}, "unknown log format"},
		"bad path style": {Options{Getenv: envMap(map[string]string{EnvPrefix + "BLOB_S3_PATH_STYLE": "maybe"})}, "BLOB_S3_PATH_STYLE"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(tc.opts)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf strings.Builder
	logger, err := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "job", "products")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"job":"products"`) {
		t.Fatalf("unexpected log output %q", out)
	}
	if _, err := (LogConfig{Level: "loud"}).NewLogger(&buf); err == nil {
		t.Fatalf("expected level error")
	}
}
