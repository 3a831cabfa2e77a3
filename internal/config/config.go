// Package config resolves catalogetl settings from defaults, an optional
// YAML file, a .env file and CATALOGETL_* environment variables, in that
// order of precedence (later wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"catalogetl/internal/blob"
	"catalogetl/internal/core"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CATALOGETL_"

// Config is the resolved configuration for one process.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Blob    BlobConfig    `yaml:"blob"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Serve   ServeConfig   `yaml:"serve"`
	Inputs  InputsConfig  `yaml:"inputs"`
}

// StorageConfig selects the relational backend.
type StorageConfig struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// BlobConfig selects where reports are written.
type BlobConfig struct {
	Driver string        `yaml:"driver"`
	FSRoot string        `yaml:"fs_root"`
	S3     blob.S3Config `yaml:"s3"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig configures batch metric and trace export.
type MetricsConfig struct {
	TextFile  string `yaml:"textfile"`
	TraceFile string `yaml:"trace_file"`
}

// ServeConfig configures the report server.
type ServeConfig struct {
	Addr string `yaml:"addr"`
}

// InputsConfig holds dataset locations. Relative paths resolve against DataDir.
type InputsConfig struct {
	DataDir    string `yaml:"data_dir"`
	Properties string `yaml:"properties"`
	Reviews    string `yaml:"reviews"`
	TracksText string `yaml:"tracks_text"`
	TracksPkl  string `yaml:"tracks_pickle"`
	Products   string `yaml:"products"`
	Updates    string `yaml:"updates"`
	MoviesCSV  string `yaml:"movies_csv"`
	MoviesJSON string `yaml:"movies_json"`
}

// Path resolves p against DataDir unless it is absolute.
func (c InputsConfig) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || c.DataDir == "" {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Storage: StorageConfig{Driver: string(core.StorageSQLite), SQLitePath: "catalogetl.db"},
		Blob:    BlobConfig{Driver: string(blob.DriverFilesystem), FSRoot: "reports"},
		Log:     LogConfig{Level: "info", Format: "text"},
		Serve:   ServeConfig{Addr: ":8080"},
		Inputs: InputsConfig{
			DataDir:    "data",
			Properties: "1-2/item.json",
			Reviews:    "1-2/subitem.csv",
			TracksText: "3/_part_1.text",
			TracksPkl:  "3/_part_2.pkl",
			Products:   "4/_product_data.csv",
			Updates:    "4/_update_data.pkl",
			MoviesCSV:  "5/AllMoviesDetails_filtred.csv",
			MoviesJSON: "5/Movie_cleaned.json",
		},
	}
}

// Options controls where Load looks for its sources.
type Options struct {
	// File is an optional YAML file; a missing explicit file is an error.
	File string
	// DotEnv is the .env file to load; empty means ".env" when present.
	DotEnv string
	// Getenv reads environment values; defaults to os.Getenv.
	Getenv func(string) string
}

// Load resolves the configuration.
func Load(opts Options) (Config, error) {
	cfg := Default()
	if opts.File != "" {
		raw, err := os.ReadFile(opts.File)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", opts.File, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", opts.File, err)
		}
	}
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	dotenv, err := readDotEnv(opts.DotEnv)
	if err != nil {
		return Config{}, err
	}
	lookup := func(key string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return dotenv[key]
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// readDotEnv parses a .env file. Process variables take precedence over its
// values. A missing default file is not an error.
func readDotEnv(path string) (map[string]string, error) {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	vals, err := godotenv.Read(path)
	if err == nil {
		return vals, nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return nil, fmt.Errorf("load %s: %w", path, err)
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(name string, dst *string) {
		if v := strings.TrimSpace(getenv(EnvPrefix + name)); v != "" {
			*dst = v
		}
	}
	str("STORAGE_DRIVER", &cfg.Storage.Driver)
	str("SQLITE_PATH", &cfg.Storage.SQLitePath)
	str("POSTGRES_DSN", &cfg.Storage.PostgresDSN)
	str("BLOB_DRIVER", &cfg.Blob.Driver)
	str("BLOB_FS_ROOT", &cfg.Blob.FSRoot)
	str("BLOB_S3_BUCKET", &cfg.Blob.S3.Bucket)
	str("BLOB_S3_REGION", &cfg.Blob.S3.Region)
	str("BLOB_S3_ENDPOINT", &cfg.Blob.S3.Endpoint)
	str("BLOB_S3_PREFIX", &cfg.Blob.S3.Prefix)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	str("METRICS_TEXTFILE", &cfg.Metrics.TextFile)
	str("TRACE_FILE", &cfg.Metrics.TraceFile)
	str("SERVE_ADDR", &cfg.Serve.Addr)
	str("DATA_DIR", &cfg.Inputs.DataDir)
	if v := strings.TrimSpace(getenv(EnvPrefix + "BLOB_S3_PATH_STYLE")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse %sBLOB_S3_PATH_STYLE: %w", EnvPrefix, err)
		}
		cfg.Blob.S3.PathStyle = b
	}
	return nil
}

// Validate rejects unknown drivers and formats.
func (c Config) Validate() error {
	switch core.StorageDriver(c.Storage.Driver) {
	case core.StorageMemory, core.StorageSQLite, core.StoragePostgres:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch blob.Driver(c.Blob.Driver) {
	case blob.DriverFilesystem, blob.DriverMemory, blob.DriverS3:
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// StoreOptions converts the storage section for core.OpenProductStore.
func (c Config) StoreOptions() core.StoreOptions {
	return core.StoreOptions{
		Driver:      core.StorageDriver(c.Storage.Driver),
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
	}
}

// BlobOptions converts the blob section for blob.Open.
func (c Config) BlobOptions() blob.Config {
	return blob.Config{Driver: blob.Driver(c.Blob.Driver), FSRoot: c.Blob.FSRoot, S3: c.Blob.S3}
}
