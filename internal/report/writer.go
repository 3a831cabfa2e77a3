package report

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"catalogetl/internal/blob"
)

// ContentType is stored with every artifact.
const ContentType = "application/json"

// Metadata keys attached to stored artifacts.
const (
	MetaRunID = "run_id"
	MetaJob   = "job"
)

// Writer stores rendered reports, replacing earlier artifacts under the same
// key.
type Writer struct {
	store blob.Store
	runID string
	job   string
}

// NewWriter returns a Writer that tags artifacts with runID and job.
func NewWriter(store blob.Store, runID, job string) *Writer {
	return &Writer{store: store, runID: runID, job: job}
}

// WithJob returns a Writer sharing the store and run id that tags artifacts
// with job.
func (w *Writer) WithJob(job string) *Writer {
	return &Writer{store: w.store, runID: w.runID, job: job}
}

// Store returns the underlying artifact store.
func (w *Writer) Store() blob.Store { return w.store }

// Write renders v and stores it at key.
func (w *Writer) Write(ctx context.Context, key string, v any) (blob.Info, error) {
	payload, err := Marshal(v)
	if err != nil {
		return blob.Info{}, err
	}
	info, err := w.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: ContentType,
		Metadata:    map[string]string{MetaRunID: w.runID, MetaJob: w.job},
		Overwrite:   true,
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("store report %s: %w", key, err)
	}
	return info, nil
}

// Read returns the raw bytes of a stored artifact.
func Read(ctx context.Context, store blob.Store, key string) ([]byte, error) {
	_, rc, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read report %s: %w", key, err)
	}
	return b, nil
}
