// Package browser implements the file browser's session controller: the
// per-session listing cache and the select, upload and refresh actions.
package browser

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fruitsalade/volumeviewer/internal/logging"
	"github.com/fruitsalade/volumeviewer/internal/metrics"
	"github.com/fruitsalade/volumeviewer/internal/models"
	"github.com/fruitsalade/volumeviewer/internal/preview"
)

// Volume is the remote storage the controller reads and writes.
type Volume interface {
	List(ctx context.Context, dir string) ([]models.Entry, error)
	Fetch(ctx context.Context, path string) ([]byte, error)
	Store(ctx context.Context, path string, data []byte) error
}

// Renderer builds previews from fetched bytes.
type Renderer interface {
	Render(name string, data []byte) *preview.Preview
}

// State is the viewer state after a selection.
type State int

const (
	StateNoSelection State = iota
	StateUnsupported
	StateFetchFailed
	StateRendered
)

func (s State) String() string {
	switch s {
	case StateNoSelection:
		return "no_selection"
	case StateUnsupported:
		return "unsupported"
	case StateFetchFailed:
		return "fetch_failed"
	case StateRendered:
		return "rendered"
	default:
		return "unknown"
	}
}

// User-facing messages.
const (
	MsgNoSelection    = "No file selected."
	MsgNoSubdirectory = "Sub-directory browsing is not available."
)

// Selection is the outcome of selecting a listing entry.
type Selection struct {
	Path    string
	Name    string
	State   State
	Preview *preview.Preview
	Err     error
}

// ErrNotAFile is returned when a download names a directory or nothing.
var ErrNotAFile = errors.New("path does not name a file")

// Controller wires user actions to the volume and the preview renderer.
type Controller struct {
	volume   Volume
	renderer Renderer
	root     string
}

// NewController creates a controller serving the volume directory root.
// A trailing "/" is added to root when missing.
func NewController(volume Volume, renderer Renderer, root string) *Controller {
	if !models.IsDirPath(root) {
		root += models.DirSuffix
	}
	return &Controller{
		volume:   volume,
		renderer: renderer,
		root:     root,
	}
}

// Root returns the volume directory the controller lists and uploads into.
func (c *Controller) Root() string {
	return c.root
}

// Listing returns the session's cached listing, fetching it first when the
// cache is empty. The caller must hold the session lock.
func (c *Controller) Listing(ctx context.Context, s *Session) []models.Entry {
	if len(s.Entries()) == 0 {
		c.RefreshListing(ctx, s)
	}
	return s.Entries()
}

// RefreshListing replaces the session's cached listing with a fresh one.
// On failure the previous listing is kept and an error is flashed. The
// caller must hold the session lock.
func (c *Controller) RefreshListing(ctx context.Context, s *Session) error {
	entries, err := c.volume.List(ctx, c.root)
	if err != nil {
		s.AddFlash(LevelError, fmt.Sprintf("Error fetching file list: %v", err))
		return err
	}
	s.setEntries(entries)
	metrics.SetListingSize(len(entries))
	logging.WithContext(ctx).Debug("listing refreshed",
		zap.String("session", s.ID), zap.Int("entries", len(entries)))
	return nil
}

// SelectFile fetches and renders the file at path. Empty paths and
// directories never reach the volume.
func (c *Controller) SelectFile(ctx context.Context, path string) *Selection {
	sel := &Selection{Path: path}

	switch {
	case path == "":
		sel.State = StateNoSelection
		return sel
	case models.IsDirPath(path):
		sel.State = StateUnsupported
		return sel
	}

	sel.Name = models.BaseName(path)
	data, err := c.volume.Fetch(ctx, path)
	if err != nil {
		sel.State = StateFetchFailed
		sel.Err = err
		return sel
	}

	sel.State = StateRendered
	sel.Preview = c.renderer.Render(sel.Name, data)
	return sel
}

// UploadFile stores data as root+name, replacing any file of that name,
// then refreshes the listing. The caller must hold the session lock.
func (c *Controller) UploadFile(ctx context.Context, s *Session, name string, data []byte) error {
	target := c.root + name
	if err := c.volume.Store(ctx, target, data); err != nil {
		s.AddFlash(LevelError, fmt.Sprintf("Failed to upload file '%s'.", name))
		return fmt.Errorf("upload %s: %w", name, err)
	}

	logging.WithContext(ctx).Info("file uploaded",
		zap.String("path", target), zap.Int("size", len(data)))
	s.AddFlash(LevelSuccess, fmt.Sprintf("File '%s' uploaded successfully!", name))
	c.RefreshListing(ctx, s)
	return nil
}

// Download returns the name and bytes of the file at path.
func (c *Controller) Download(ctx context.Context, path string) (string, []byte, error) {
	if path == "" || models.IsDirPath(path) {
		return "", nil, ErrNotAFile
	}
	data, err := c.volume.Fetch(ctx, path)
	if err != nil {
		return "", nil, err
	}
	return models.BaseName(path), data, nil
}
