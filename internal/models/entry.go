// Package models contains data types shared by the storage backends and the UI.
package models

import (
	"strings"
	"time"
)

// DirSuffix marks a directory entry's path.
const DirSuffix = "/"

// Entry is one item of a volume listing. Path is the full path within the
// volume; directories carry a trailing "/".
type Entry struct {
	Path    string    `json:"path"`
	Name    string    `json:"name"`
	IsDir   bool      `json:"is_dir"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mtime"`
}

// NewEntry builds an Entry from a listed path, deriving the directory flag
// and the name from the path itself.
func NewEntry(path string, size int64, modTime time.Time) Entry {
	return Entry{
		Path:    path,
		Name:    BaseName(path),
		IsDir:   IsDirPath(path),
		Size:    size,
		ModTime: modTime,
	}
}

// IsDirPath reports whether path names a directory.
func IsDirPath(path string) bool {
	return strings.HasSuffix(path, DirSuffix)
}

// BaseName returns the trailing name component of path. For directories the
// trailing separator is ignored.
func BaseName(path string) string {
	p := strings.TrimSuffix(path, DirSuffix)
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}
