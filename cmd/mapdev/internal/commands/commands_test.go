package commands

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/mapdev/internal/config"
)

func writeProject(t *testing.T, config string) *Globals {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "main.ts"), []byte("console.log(CESIUM_BASE_URL)\n"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "vendor", "earth-assets", "img"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vendor", "earth-assets", "img", "marker.png"), []byte("png"), 0o600))

	path := filepath.Join(dir, "mapdev.yaml")
	require.NoError(t, os.WriteFile(path, []byte(config), 0o600))
	return &Globals{Config: path, Version: "test"}
}

func TestRoutesCmd(t *testing.T) {
	globals := writeProject(t, `
proxy:
  /tiles:
    target: http://ecn.t2.tiles.virtualearth.net
    change_origin: true
  /tiles-t1:
    target: https://ecn.t1.tiles.virtualearth.net
    secure: false
`)

	var out bytes.Buffer
	cmd := &RoutesCmd{out: &out}
	require.NoError(t, cmd.Run(globals))

	require.Contains(t, out.String(), "http://ecn.t2.tiles.virtualearth.net")
	require.Contains(t, out.String(), "https://ecn.t1.tiles.virtualearth.net")
	require.Contains(t, out.String(), `warning: /tiles-t1: never matches, shadowed by earlier prefix "/tiles"`)
}

func TestRoutesCmd_noRules(t *testing.T) {
	globals := writeProject(t, "server:\n  listen: 127.0.0.1:0\n")

	var out bytes.Buffer
	cmd := &RoutesCmd{out: &out}
	require.NoError(t, cmd.Run(globals))
	require.Contains(t, out.String(), "no proxy rules configured")
}

func TestRoutesCmd_invalidConfig(t *testing.T) {
	globals := writeProject(t, `
proxy:
  /tiles:
    target: ftp://example.com
`)

	cmd := &RoutesCmd{out: &bytes.Buffer{}}
	require.Error(t, cmd.Run(globals))
}

func TestCheckCmd(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer up.Close()

	down := httptest.NewServer(http.NotFoundHandler())
	downURL := down.URL
	down.Close()

	globals := writeProject(t, fmt.Sprintf(`
proxy:
  /tiles-up:
    target: %s
  /tiles-down:
    target: %s
`, up.URL, downURL))

	var out bytes.Buffer
	cmd := &CheckCmd{MaxElapsed: 300 * time.Millisecond, RequestTimeout: time.Second, out: &out}
	err := cmd.Run(context.Background(), globals)
	require.ErrorIs(t, err, ErrUnreachable)

	require.Contains(t, out.String(), "OK   /tiles-up -> "+up.URL+": 404")
	require.Contains(t, out.String(), "FAIL /tiles-down -> "+downURL)
}

func TestCheckCmd_selfSignedUpstream(t *testing.T) {
	up := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer up.Close()

	globals := writeProject(t, fmt.Sprintf(`
proxy:
  /tiles:
    target: %s
    secure: false
`, up.URL))

	var out bytes.Buffer
	cmd := &CheckCmd{MaxElapsed: time.Second, RequestTimeout: time.Second, out: &out}
	require.NoError(t, cmd.Run(context.Background(), globals))
	require.Contains(t, out.String(), "OK   /tiles")
}

func TestBuildCmd(t *testing.T) {
	globals := writeProject(t, `
static_copy:
  - src: vendor/earth-assets
    dest: js
assets:
  entry_points:
    - src/main.ts
  out_dir: dist
  define:
    CESIUM_BASE_URL: '"/cesium"'
`)

	cmd := &BuildCmd{}
	require.NoError(t, cmd.Run(context.Background(), globals))

	dir := filepath.Dir(globals.Config)
	require.FileExists(t, filepath.Join(dir, "dist", "meta.json"))
	require.FileExists(t, filepath.Join(dir, "dist", "js", "earth-assets", "img", "marker.png"))

	bundle, err := os.ReadFile(filepath.Join(dir, "dist", "main.js"))
	require.NoError(t, err)
	require.Contains(t, string(bundle), `"/cesium"`)
}

func writeCesiumBuild(t *testing.T, dir string) {
	t.Helper()
	files := map[string]string{
		"Workers/createTaskProcessorWorker.js":  "worker",
		"Assets/approximateTerrainHeights.json": "{}",
		"Widgets/widgets.css":                   ".cesium-widget{}",
		"ThirdParty/Workers/draco.js":           "draco",
	}
	for name, content := range files {
		p := filepath.Join(dir, "node_modules", "cesium", "Build", "Cesium", filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
}

func TestBuildCmd_servesCesiumRuntime(t *testing.T) {
	globals := writeProject(t, `
cesium:
  dir: node_modules/cesium/Build/Cesium
assets:
  entry_points:
    - src/main.ts
  out_dir: dist
`)
	dir := filepath.Dir(globals.Config)
	writeCesiumBuild(t, dir)

	cmd := &BuildCmd{}
	require.NoError(t, cmd.Run(context.Background(), globals))

	bundle, err := os.ReadFile(filepath.Join(dir, "dist", "main.js"))
	require.NoError(t, err)
	require.Contains(t, string(bundle), `"/cesium/"`)

	cfg, err := config.Load(globals.Config)
	require.NoError(t, err)
	h := newLocalHandler(cfg, nil, globals.Config)

	for path, body := range map[string]string{
		"/cesium/Workers/createTaskProcessorWorker.js": "worker",
		"/cesium/Widgets/widgets.css":                  ".cesium-widget{}",
		"/cesium/ThirdParty/Workers/draco.js":          "draco",
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
		require.Equal(t, body, rec.Body.String(), path)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mapdev.yaml", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
