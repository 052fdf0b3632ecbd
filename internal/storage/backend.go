// Package storage defines the Backend interface for the remote volume
// and the factory that builds a backend from configuration.
package storage

import (
	"context"

	"github.com/fruitsalade/volumeviewer/internal/models"
)

// Backend is the interface for remote volume access.
// Implementations perform one blocking round-trip per call and never retry.
type Backend interface {
	// List returns the entries directly under dir. Paths in the result are
	// full volume paths; directories end in "/".
	List(ctx context.Context, dir string) ([]models.Entry, error)

	// Fetch returns the full content of the file at path.
	Fetch(ctx context.Context, path string) ([]byte, error)

	// Store writes data to path, replacing any existing file.
	Store(ctx context.Context, path string, data []byte) error

	// Type returns the backend type identifier ("databricks", "s3", "local").
	Type() string

	// Close releases any resources held by the backend.
	Close() error
}
