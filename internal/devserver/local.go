package devserver

import (
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

// LocalHandler serves the dev server's own files: build output first, then the
// project root. Extensionless paths that match no file render the index page so
// client-side routes survive a reload. Missing files with an extension are 404s.
// Paths with a segment starting with "." (.env, .git) and denied file names are
// never served.
type LocalHandler struct {
	dirs   []fs.FS
	files  []http.Handler
	index  http.Handler
	denied map[string]struct{}
}

// NewLocalHandler serves files from dirs in order. index may be nil, in which
// case an index.html found in dirs is used for "/".
func NewLocalHandler(index http.Handler, dirs ...string) *LocalHandler {
	h := &LocalHandler{index: index, denied: map[string]struct{}{}}
	for _, d := range dirs {
		fsys := os.DirFS(d)
		h.dirs = append(h.dirs, fsys)
		h.files = append(h.files, http.FileServer(http.FS(fsys)))
	}
	return h
}

// Deny hides files with the given base names, such as the config file, from
// every directory.
func (h *LocalHandler) Deny(names ...string) *LocalHandler {
	for _, n := range names {
		h.denied[n] = struct{}{}
	}
	return h
}

func (h *LocalHandler) hidden(urlPath string) bool {
	if _, ok := h.denied[path.Base(urlPath)]; ok {
		return true
	}
	for _, segment := range strings.Split(urlPath, "/") {
		if strings.HasPrefix(segment, ".") {
			return true
		}
	}
	return false
}

func (h *LocalHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	urlPath := path.Clean("/" + r.URL.Path)

	if h.hidden(urlPath) {
		http.NotFound(w, r)
		return
	}

	if urlPath == "/" && h.index != nil {
		h.index.ServeHTTP(w, r)
		return
	}

	name := strings.TrimPrefix(urlPath, "/")
	if name == "" {
		name = "."
	}
	for i, fsys := range h.dirs {
		info, err := fs.Stat(fsys, name)
		if err != nil {
			continue
		}
		if info.IsDir() {
			if _, err := fs.Stat(fsys, path.Join(name, "index.html")); err != nil {
				continue
			}
		}
		h.files[i].ServeHTTP(w, r)
		return
	}

	if path.Ext(urlPath) != "" || h.index == nil {
		http.NotFound(w, r)
		return
	}

	h.index.ServeHTTP(w, r)
}
