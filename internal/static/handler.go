package static

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"
)

const defaultContentType = "application/octet-stream"

// Handler serves files below a single root directory. GET and HEAD go to
// the standard library file server; every other method is answered 501.
type Handler struct {
	dir   string
	files *containedFS
	fs    http.Handler
}

// New opens dir as the served root. The returned handler keeps the root
// open until Close.
func New(dir string) (*Handler, error) {
	files, err := openContained(dir)
	if err != nil {
		return nil, fmt.Errorf("open serve root %q: %w", dir, err)
	}

	return &Handler{
		dir:   dir,
		files: files,
		fs:    http.FileServerFS(files),
	}, nil
}

// Dir returns the served root as given to New.
func (h *Handler) Dir() string {
	return h.dir
}

func (h *Handler) Close() error {
	return h.files.Close()
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
	default:
		http.Error(w, fmt.Sprintf("Unsupported method (%q)", r.Method), http.StatusNotImplemented)
		return
	}

	if h.serveIndexFile(w, r) {
		return
	}

	if ctype, ok := h.fallbackContentType(r.URL.Path); ok {
		w.Header().Set("Content-Type", ctype)
	}

	h.fs.ServeHTTP(w, r)
}

// serveIndexFile answers a request naming an index.html file directly.
// http.FileServerFS would redirect it to the enclosing directory instead.
func (h *Handler) serveIndexFile(w http.ResponseWriter, r *http.Request) bool {
	if strings.HasSuffix(r.URL.Path, "/") {
		return false
	}

	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if path.Base(name) != "index.html" {
		return false
	}

	f, err := h.files.Open(name)
	if err != nil {
		msg, code := openErrorStatus(err)
		http.Error(w, msg, code)
		return true
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	content, ok := f.(io.ReadSeeker)
	if !ok {
		return false
	}

	http.ServeContent(w, r, name, info.ModTime(), content)
	return true
}

// openErrorStatus matches the statuses and bodies of http.FileServerFS.
func openErrorStatus(err error) (string, int) {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "404 page not found", http.StatusNotFound
	case errors.Is(err, fs.ErrPermission):
		return "403 Forbidden", http.StatusForbidden
	default:
		return "500 Internal Server Error", http.StatusInternalServerError
	}
}

// fallbackContentType covers regular files whose extension has no known
// mapping. The file server would otherwise sniff the first bytes.
func (h *Handler) fallbackContentType(urlPath string) (string, bool) {
	if strings.HasSuffix(urlPath, "/") {
		return "", false
	}

	name := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if name == "" {
		return "", false
	}

	if mime.TypeByExtension(path.Ext(name)) != "" {
		return "", false
	}

	info, err := fs.Stat(h.files, name)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}

	return defaultContentType, true
}
