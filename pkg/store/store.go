// Package store records batch runs so past invocations can be listed and
// compared.
//
// Two backends are provided: an embedded SQLite database (the default,
// under the catbits data directory) and MongoDB for shared deployments.
// Open picks one from a URL:
//
//	""                          -> SQLite at <data dir>/runs.db
//	"sqlite:///var/lib/runs.db" -> SQLite at the given path
//	"/tmp/runs.db"              -> SQLite at the given path
//	"mongodb://host:27017/db"   -> MongoDB database "db" (default "catbits")
//	"none"                      -> runs are not recorded
package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"github.com/matzehuels/catbits/pkg/errors"
	"github.com/matzehuels/catbits/pkg/pipeline"
)

// DefaultListLimit bounds ListRuns when no limit is given.
const DefaultListLimit = 20

// Run is the persisted summary of one batch.
type Run struct {
	ID         string    `json:"id" bson:"_id"`
	StartedAt  time.Time `json:"started_at" bson:"started_at"`
	FinishedAt time.Time `json:"finished_at" bson:"finished_at"`
	Source     string    `json:"source" bson:"source"`
	Output     string    `json:"output" bson:"output"`
	Images     int       `json:"images" bson:"images"`
	Skipped    int       `json:"skipped" bson:"skipped"`
	Bytes      int64     `json:"bytes" bson:"bytes"`
	Entropy    float64   `json:"entropy" bson:"entropy"`

	// Options is the JSON encoding of the pipeline options used.
	Options string `json:"options" bson:"options"`

	// Error is the message of the error that aborted the batch, if any.
	Error string `json:"error,omitempty" bson:"error,omitempty"`
}

// Duration returns the wall time of the run.
func (r Run) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// NewRun builds a Run from a finished batch. runErr is the error Batch
// returned, if any.
func NewRun(res *pipeline.BatchResult, source, output string, opts pipeline.Options, entropy float64, runErr error) Run {
	optsJSON, _ := json.Marshal(opts)
	run := Run{
		ID:         res.RunID,
		StartedAt:  res.StartedAt.UTC(),
		FinishedAt: res.FinishedAt.UTC(),
		Source:     source,
		Output:     output,
		Images:     res.Images,
		Skipped:    res.Skipped,
		Bytes:      res.Bytes,
		Entropy:    entropy,
		Options:    string(optsJSON),
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	return run
}

// Store persists runs.
type Store interface {
	// SaveRun inserts or replaces the run with the same ID.
	SaveRun(ctx context.Context, run Run) error

	// ListRuns returns the most recent runs first. limit <= 0 uses
	// DefaultListLimit.
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// Close releases the backend.
	Close() error
}

// Open returns the store described by url. dataDir is used for the default
// SQLite location.
func Open(ctx context.Context, url, dataDir string) (Store, error) {
	switch {
	case url == "none" || url == "off":
		return NullStore{}, nil
	case strings.HasPrefix(url, "mongodb://"), strings.HasPrefix(url, "mongodb+srv://"):
		s, err := OpenMongo(ctx, url)
		if err != nil {
			return nil, err
		}
		return s, nil
	case strings.Contains(url, "://") && !strings.HasPrefix(url, "sqlite://"):
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unsupported store url %q", url)
	}

	path := strings.TrimPrefix(url, "sqlite://")
	if path == "" {
		path = filepath.Join(dataDir, "runs.db")
	}
	s, err := OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

// NullStore discards runs. Used when run history is disabled.
type NullStore struct{}

// SaveRun does nothing.
func (NullStore) SaveRun(ctx context.Context, run Run) error {
	return nil
}

// ListRuns always returns no runs.
func (NullStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	return nil, nil
}

// Close does nothing.
func (NullStore) Close() error {
	return nil
}

// Ensure implementations satisfy Store.
var (
	_ Store = NullStore{}
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MongoStore)(nil)
)
