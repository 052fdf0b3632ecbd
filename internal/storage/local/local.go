// Package local provides a volume backend on the local filesystem.
package local

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fruitsalade/volumeviewer/internal/metrics"
	"github.com/fruitsalade/volumeviewer/internal/models"
)

// Config holds local filesystem backend settings.
type Config struct {
	RootPath   string
	CreateDirs bool
}

// LocalBackend serves a directory on disk as a volume. Volume paths are
// "/"-separated and always resolve inside RootPath.
type LocalBackend struct {
	rootPath   string
	createDirs bool
}

// New creates a new local filesystem backend.
func New(cfg Config) (*LocalBackend, error) {
	if cfg.RootPath == "" {
		return nil, fmt.Errorf("root_path is required")
	}

	info, err := os.Stat(cfg.RootPath)
	if err != nil {
		if os.IsNotExist(err) && cfg.CreateDirs {
			if mkErr := os.MkdirAll(cfg.RootPath, 0755); mkErr != nil {
				return nil, fmt.Errorf("create root path %s: %w", cfg.RootPath, mkErr)
			}
		} else {
			return nil, fmt.Errorf("stat root path %s: %w", cfg.RootPath, err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("root path %s is not a directory", cfg.RootPath)
	}

	return &LocalBackend{
		rootPath:   cfg.RootPath,
		createDirs: cfg.CreateDirs,
	}, nil
}

// fullPath maps a volume path onto the filesystem. Cleaning against "/"
// first removes any ".." that would escape the root.
func (b *LocalBackend) fullPath(p string) string {
	clean := path.Clean("/" + p)
	return filepath.Join(b.rootPath, filepath.FromSlash(clean))
}

// List returns the entries directly under dir, sorted by name.
func (b *LocalBackend) List(_ context.Context, dir string) ([]models.Entry, error) {
	start := time.Now()
	entries, err := b.list(dir)
	metrics.RecordStorageOperation(b.Type(), "list", time.Since(start), err == nil)
	return entries, err
}

func (b *LocalBackend) list(dir string) ([]models.Entry, error) {
	des, err := os.ReadDir(b.fullPath(dir))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	prefix := path.Clean("/" + dir)
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	entries := make([]models.Entry, 0, len(des))
	for _, de := range des {
		if strings.HasPrefix(de.Name(), ".volumeviewer-") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		p := prefix + de.Name()
		size := info.Size()
		if de.IsDir() {
			p += models.DirSuffix
			size = 0
		}
		entries = append(entries, models.NewEntry(p, size, info.ModTime()))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// Fetch reads a file from the local filesystem.
func (b *LocalBackend) Fetch(_ context.Context, p string) ([]byte, error) {
	start := time.Now()
	data, err := os.ReadFile(b.fullPath(p))
	metrics.RecordStorageOperation(b.Type(), "fetch", time.Since(start), err == nil)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	metrics.RecordFetch(len(data))
	return data, nil
}

// Store writes content to the local filesystem atomically.
func (b *LocalBackend) Store(_ context.Context, p string, data []byte) error {
	start := time.Now()
	err := b.store(p, data)
	metrics.RecordStorageOperation(b.Type(), "store", time.Since(start), err == nil)
	if err == nil {
		metrics.RecordStore(len(data))
	}
	return err
}

func (b *LocalBackend) store(p string, data []byte) error {
	full := b.fullPath(p)
	dir := filepath.Dir(full)

	if b.createDirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create dirs for %s: %w", p, err)
		}
	}

	// Write to temp file then rename for atomicity
	tmp, err := os.CreateTemp(dir, ".volumeviewer-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", p, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", p, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp for %s: %w", p, err)
	}

	if err := os.Rename(tmpName, full); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp to %s: %w", p, err)
	}
	return nil
}

// Type returns "local".
func (b *LocalBackend) Type() string { return "local" }

// Close is a no-op for local backends.
func (b *LocalBackend) Close() error { return nil }
