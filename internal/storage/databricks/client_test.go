package databricks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
)

const testToken = "dapi-secret"

// fakeFilesAPI is an in-memory Files API: anything PUT under /files/ shows
// up in the next directory listing of its parent.
type fakeFilesAPI struct {
	mu       sync.Mutex
	files    map[string][]byte // full path with leading "/"
	pageSize int
}

func newFakeFilesAPI() *fakeFilesAPI {
	return &fakeFilesAPI{files: make(map[string][]byte)}
}

func (f *fakeFilesAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+testToken {
		http.Error(w, `{"error_code":"UNAUTHENTICATED"}`, http.StatusUnauthorized)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case strings.HasPrefix(r.URL.Path, apiPrefix+"/directories/"):
		dir := strings.TrimPrefix(r.URL.Path, apiPrefix+"/directories")
		f.serveList(w, r, dir)
	case strings.HasPrefix(r.URL.Path, apiPrefix+"/files/"):
		path := "/" + strings.TrimPrefix(r.URL.Path, apiPrefix+"/files/")
		switch r.Method {
		case http.MethodGet:
			data, ok := f.files[path]
			if !ok {
				http.Error(w, `{"error_code":"NOT_FOUND"}`, http.StatusNotFound)
				return
			}
			w.Write(data)
		case http.MethodPut:
			if r.URL.Query().Get("overwrite") != "true" {
				if _, exists := f.files[path]; exists {
					http.Error(w, `{"error_code":"ALREADY_EXISTS"}`, http.StatusConflict)
					return
				}
			}
			data, _ := io.ReadAll(r.Body)
			f.files[path] = data
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeFilesAPI) serveList(w http.ResponseWriter, r *http.Request, dir string) {
	var paths []string
	subdirs := map[string]bool{}
	for p := range f.files {
		if !strings.HasPrefix(p, dir) {
			continue
		}
		rest := strings.TrimPrefix(p, dir)
		if i := strings.Index(rest, "/"); i >= 0 {
			subdirs[dir+rest[:i+1]] = true
			continue
		}
		paths = append(paths, p)
	}
	for d := range subdirs {
		paths = append(paths, d)
	}
	sort.Strings(paths)

	start := 0
	if tok := r.URL.Query().Get("page_token"); tok != "" {
		for i, p := range paths {
			if p == tok {
				start = i
			}
		}
	}
	end := len(paths)
	next := ""
	if f.pageSize > 0 && start+f.pageSize < len(paths) {
		end = start + f.pageSize
		next = paths[end]
	}

	contents := []map[string]interface{}{}
	for _, p := range paths[start:end] {
		isDir := strings.HasSuffix(p, "/")
		contents = append(contents, map[string]interface{}{
			"path":          p,
			"is_directory":  isDir,
			"file_size":     len(f.files[p]),
			"last_modified": 1700000000000,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"contents":        contents,
		"next_page_token": next,
	})
}

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	c, err := New(Config{Host: ts.URL + "/", Token: testToken})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestStoreThenListShowsPath(t *testing.T) {
	api := newFakeFilesAPI()
	c := testClient(t, api)
	ctx := context.Background()

	root := "/Volumes/main/default/files/"
	if err := c.Store(ctx, root+"report.csv", []byte("a,b\n1,2\n")); err != nil {
		t.Fatalf("Store: %v", err)
	}

	entries, err := c.List(ctx, root)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	found := false
	for _, e := range entries {
		if e.Path == root+"report.csv" {
			found = true
			if e.Name != "report.csv" {
				t.Errorf("expected name report.csv, got %s", e.Name)
			}
			if e.Size != 8 {
				t.Errorf("expected size 8, got %d", e.Size)
			}
		}
	}
	if !found {
		t.Fatalf("stored path missing from listing: %+v", entries)
	}
}

func TestStoreOverwrites(t *testing.T) {
	api := newFakeFilesAPI()
	c := testClient(t, api)
	ctx := context.Background()

	path := "/Volumes/main/default/files/a.txt"
	if err := c.Store(ctx, path, []byte("one")); err != nil {
		t.Fatalf("first Store: %v", err)
	}
	if err := c.Store(ctx, path, []byte("two")); err != nil {
		t.Fatalf("second Store: %v", err)
	}
	data, err := c.Fetch(ctx, path)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "two" {
		t.Errorf("expected overwritten content, got %q", data)
	}
}

func TestListMarksDirectories(t *testing.T) {
	api := newFakeFilesAPI()
	api.files["/Volumes/v/files/sub/inner.txt"] = []byte("x")
	api.files["/Volumes/v/files/top.txt"] = []byte("y")
	c := testClient(t, api)

	entries, err := c.List(context.Background(), "/Volumes/v/files/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	var dir bool
	for _, e := range entries {
		if e.Path == "/Volumes/v/files/sub/" {
			dir = e.IsDir
		}
	}
	if !dir {
		t.Errorf("expected sub/ to be a directory entry: %+v", entries)
	}
}

func TestListFollowsPageTokens(t *testing.T) {
	api := newFakeFilesAPI()
	api.pageSize = 2
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		api.files["/Volumes/v/files/"+name+".txt"] = []byte(name)
	}
	c := testClient(t, api)

	entries, err := c.List(context.Background(), "/Volumes/v/files/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("expected 5 entries across pages, got %d", len(entries))
	}
}

func TestListErrorCarriesStatusAndBody(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, "no access to volume")
	}))

	_, err := c.List(context.Background(), "/Volumes/v/files/")
	if err == nil {
		t.Fatal("expected error")
	}
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %T: %v", err, err)
	}
	if se.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", se.Code)
	}
	if se.Body != "no access to volume" {
		t.Errorf("unexpected body %q", se.Body)
	}
	if se.Error() != "403 - no access to volume" {
		t.Errorf("unexpected message %q", se.Error())
	}
}

func TestListSendsHeaders(t *testing.T) {
	var gotAuth, gotType, gotPath string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotPath = r.URL.Path
		io.WriteString(w, `{"contents":[]}`)
	}))

	entries, err := c.List(context.Background(), "/Volumes/v/files/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty listing, got %d", len(entries))
	}
	if gotAuth != "Bearer "+testToken {
		t.Errorf("unexpected auth header %q", gotAuth)
	}
	if gotType != "application/json" {
		t.Errorf("unexpected content type %q", gotType)
	}
	if gotPath != "/api/2.0/fs/directories/Volumes/v/files/" {
		t.Errorf("unexpected path %q", gotPath)
	}
}

func TestFetchStripsOneLeadingSlash(t *testing.T) {
	var gotPath string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		io.WriteString(w, "content")
	}))

	data, err := c.Fetch(context.Background(), "/Volumes/v/files/a.txt")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "content" {
		t.Errorf("unexpected content %q", data)
	}
	if gotPath != "/api/2.0/fs/files/Volumes/v/files/a.txt" {
		t.Errorf("unexpected path %q", gotPath)
	}
}

func TestFetchNonSuccessIsError(t *testing.T) {
	api := newFakeFilesAPI()
	c := testClient(t, api)

	data, err := c.Fetch(context.Background(), "/Volumes/v/files/missing.txt")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if data != nil {
		t.Errorf("expected no data, got %q", data)
	}
}

func TestStoreFailure(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	if err := c.Store(context.Background(), "/Volumes/v/files/a.txt", []byte("x")); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewRequiresHost(t *testing.T) {
	if _, err := New(Config{Token: "t"}); err == nil {
		t.Fatal("expected error without host")
	}
}
