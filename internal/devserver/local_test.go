package devserver

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(name), 0o755))
	require.NoError(t, os.WriteFile(name, []byte(content), 0o600))
}

var indexPage = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("index"))
})

func TestLocalHandler(t *testing.T) {
	dist := t.TempDir()
	root := t.TempDir()
	writeFile(t, filepath.Join(dist, "main.js"), "bundle")
	writeFile(t, filepath.Join(dist, "js", "earthsdk3-assets", "marker.png"), "png")
	writeFile(t, filepath.Join(root, "favicon.ico"), "icon")
	writeFile(t, filepath.Join(root, "main.js"), "shadowed")

	h := NewLocalHandler(indexPage, dist, root)

	tests := []struct {
		name   string
		path   string
		status int
		body   string
	}{
		{name: "root renders index", path: "/", status: http.StatusOK, body: "index"},
		{name: "build output", path: "/main.js", status: http.StatusOK, body: "bundle"},
		{name: "copied static asset", path: "/js/earthsdk3-assets/marker.png", status: http.StatusOK, body: "png"},
		{name: "project root file", path: "/favicon.ico", status: http.StatusOK, body: "icon"},
		{name: "client route", path: "/scene/globe", status: http.StatusOK, body: "index"},
		{name: "missing file with extension", path: "/missing.js", status: http.StatusNotFound},
		{name: "directory without index falls back", path: "/js", status: http.StatusOK, body: "index"},
		{name: "traversal stays inside", path: "/../../etc/passwd", status: http.StatusOK, body: "index"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				require.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestLocalHandler_withoutIndexHandler(t *testing.T) {
	dist := t.TempDir()
	writeFile(t, filepath.Join(dist, "index.html"), "<html>static</html>")

	h := NewLocalHandler(nil, dist)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "static")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scene", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLocalHandler_hidesDotfilesAndDeniedNames(t *testing.T) {
	dist := t.TempDir()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".env"), "TILE_KEY=secret")
	writeFile(t, filepath.Join(root, ".env.local"), "TILE_KEY=local")
	writeFile(t, filepath.Join(root, ".git", "config"), "[core]")
	writeFile(t, filepath.Join(root, "mapdev.yaml"), "proxy: {}")
	writeFile(t, filepath.Join(root, "public", "mapdev.yaml"), "proxy: {}")
	writeFile(t, filepath.Join(root, "robots.txt"), "ok")

	h := NewLocalHandler(indexPage, dist, root).Deny("mapdev.yaml")

	for _, p := range []string{"/.env", "/.env.local", "/.git/config", "/.git", "/mapdev.yaml", "/public/mapdev.yaml", "/%2eenv"} {
		t.Run(p, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, p, nil))
			require.Equal(t, http.StatusNotFound, rec.Code)
			require.NotContains(t, rec.Body.String(), "secret")
		})
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/robots.txt", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
