// Package api provides the HTTP server and handlers.
package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/fruitsalade/volumeviewer/internal/browser"
	"github.com/fruitsalade/volumeviewer/internal/logging"
	"github.com/fruitsalade/volumeviewer/internal/metrics"
	"github.com/fruitsalade/volumeviewer/internal/models"
	"github.com/fruitsalade/volumeviewer/internal/preview"
	"github.com/fruitsalade/volumeviewer/webapp"
)

const (
	pageTitle       = "Databricks Volumes Helper"
	pageDescription = "This app allows you to view and download files from a Databricks volume"

	// SessionCookie names the cookie carrying the browser session ID.
	SessionCookie = "volumeviewer_session"
)

// Server is the HTTP server.
type Server struct {
	controller    *browser.Controller
	sessions      *browser.SessionStore
	maxUploadSize int64
	page          *template.Template
	static        fs.FS
}

// NewServer creates a new server. A maxUploadSize of 0 disables the upload
// body limit.
func NewServer(controller *browser.Controller, sessions *browser.SessionStore, maxUploadSize int64) (*Server, error) {
	page, err := template.New("index.html").Funcs(templateFuncs).ParseFS(webapp.Assets, "templates/index.html")
	if err != nil {
		return nil, err
	}
	static, err := fs.Sub(webapp.Assets, "static")
	if err != nil {
		return nil, err
	}
	return &Server{
		controller:    controller,
		sessions:      sessions,
		maxUploadSize: maxUploadSize,
		page:          page,
		static:        static,
	}, nil
}

var templateFuncs = template.FuncMap{
	"bytes": func(n int64) string { return humanize.Bytes(uint64(n)) },
	"ago": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return humanize.Time(t)
	},
	"dataURI": func(img *preview.ImagePreview) template.URL {
		if img == nil {
			return ""
		}
		return template.URL("data:" + img.ContentType + ";base64," + base64.StdEncoding.EncodeToString(img.Data))
	},
}

// Handler returns the HTTP handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /refresh", s.handleRefresh)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("GET /file", s.handleFile)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(s.static))))

	// Metrics must sit inside logging so it sees the pattern the mux sets.
	return logging.Middleware(metrics.Middleware(mux))
}

type pageData struct {
	Title             string
	Description       string
	Supported         string
	MsgNoSelection    string
	MsgNoSubdirectory string

	Flash      []browser.Message
	Entries    []models.Entry
	Selected   string
	RenderMode string
	Selection  *browser.Selection
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	ctx := r.Context()
	selected := r.URL.Query().Get("file")

	sess.Lock()
	entries := s.controller.Listing(ctx, sess)
	sel := s.controller.SelectFile(ctx, selected)
	flash := sess.TakeFlash()
	sess.Unlock()

	if sel.State == browser.StateFetchFailed {
		logging.WithContext(ctx).Warn("fetch failed",
			zap.String("path", sel.Path), zap.Error(sel.Err))
	}

	data := pageData{
		Title:             pageTitle,
		Description:       pageDescription,
		Supported:         strings.Join(preview.SupportedExtensions(), ", "),
		MsgNoSelection:    browser.MsgNoSelection,
		MsgNoSubdirectory: browser.MsgNoSubdirectory,
		Flash:             flash,
		Entries:           entries,
		Selected:          selected,
		RenderMode:        r.URL.Query().Get("render"),
		Selection:         sel,
	}

	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		logging.WithContext(ctx).Error("render page", zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	sess.Lock()
	s.controller.RefreshListing(r.Context(), sess)
	sess.Unlock()

	redirectToIndex(w, r, r.FormValue("file_path"))
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	ctx := r.Context()

	if s.maxUploadSize > 0 {
		if r.ContentLength > s.maxUploadSize {
			s.flashTooLarge(sess)
			redirectToIndex(w, r, "")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.flashTooLarge(sess)
			redirectToIndex(w, r, "")
			return
		}
		sess.Lock()
		switch {
		case errors.Is(err, http.ErrMissingFile):
			sess.AddFlash(browser.LevelInfo, "No file chosen.")
		default:
			logging.WithContext(ctx).Warn("parse upload", zap.Error(err))
			sess.AddFlash(browser.LevelError, "Failed to read upload.")
		}
		sess.Unlock()
		redirectToIndex(w, r, r.FormValue("file_path"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		logging.WithContext(ctx).Warn("read upload", zap.String("name", header.Filename), zap.Error(err))
		sess.Lock()
		sess.AddFlash(browser.LevelError, "Failed to read upload.")
		sess.Unlock()
		redirectToIndex(w, r, r.FormValue("file_path"))
		return
	}

	sess.Lock()
	if err := s.controller.UploadFile(ctx, sess, header.Filename, data); err != nil {
		logging.WithContext(ctx).Error("upload failed", zap.String("name", header.Filename), zap.Error(err))
	}
	sess.Unlock()

	redirectToIndex(w, r, r.FormValue("file_path"))
}

func (s *Server) flashTooLarge(sess *browser.Session) {
	sess.Lock()
	sess.AddFlash(browser.LevelError, "Upload exceeds the maximum allowed size of "+humanize.Bytes(uint64(s.maxUploadSize))+".")
	sess.Unlock()
}

// handleFile streams a volume file. By default the response is an
// attachment; inline=1 serves images and PDFs with their own content type
// so the browser can display them.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("path")
	name, data, err := s.controller.Download(r.Context(), p)
	if err != nil {
		if errors.Is(err, browser.ErrNotAFile) {
			s.sendError(w, http.StatusBadRequest, err.Error())
			return
		}
		logging.WithContext(r.Context()).Warn("download failed", zap.String("path", p), zap.Error(err))
		s.sendError(w, http.StatusBadGateway, "failed to fetch file: "+err.Error())
		return
	}

	disposition := "attachment"
	contentType := "application/octet-stream"
	if r.URL.Query().Get("inline") == "1" {
		if ct, ok := inlineContentType(name); ok {
			disposition = "inline"
			contentType = ct
		}
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": name}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(data))
}

// inlineContentType reports the content type for files safe to display
// inline. Markup is never served inline.
func inlineContentType(name string) (string, bool) {
	switch preview.Classify(name) {
	case preview.CategoryPDF:
		return "application/pdf", true
	case preview.CategoryImage:
		ct := mime.TypeByExtension(path.Ext(strings.ToLower(name)))
		if ct == "" {
			return "", false
		}
		return ct, true
	}
	return "", false
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"root":    s.controller.Root(),
		"version": "1.0",
	})
}

// session returns the caller's session, issuing a cookie for new ones.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *browser.Session {
	var id string
	if c, err := r.Cookie(SessionCookie); err == nil {
		id = c.Value
	}
	sess, created := s.sessions.Get(id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sess
}

// redirectToIndex finishes a POST by sending the browser back to the page,
// keeping the current selection.
func redirectToIndex(w http.ResponseWriter, r *http.Request, selected string) {
	target := "/"
	if selected != "" {
		target += "?" + url.Values{"file": {selected}}.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(errorResponse{
		Error: message,
		Code:  code,
	})
}
