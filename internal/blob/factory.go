package blob

import (
	"context"
	"fmt"

	"catalogetl/internal/infra/blob/fs"
	memorystore "catalogetl/internal/infra/blob/memory"
	infraS3 "catalogetl/internal/infra/blob/s3"
)

// S3Config configures the S3 / MinIO artifact backend.
type S3Config = infraS3.Config

// Config selects and configures a blob backend.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// Open constructs the backend named by cfg.Driver (default fs).
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return infraS3.New(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// NewFilesystem stores reports as files below root.
func NewFilesystem(root string) (Store, error) { return fs.New(root) }

// NewMemory returns a process-local store for tests and dry runs.
func NewMemory() Store { return memorystore.New() }

// NewMockS3ForTests returns an S3 store over an in-memory transport.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests() }
