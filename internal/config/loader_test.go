package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/mapdev/internal/proxy"
)

const tilesConfig = `
server:
  listen: 127.0.0.1:5173
resolve:
  alias:
    cesium: node_modules/cesium/Source/Cesium
proxy:
  /tiles:
    target: http://ecn.t2.tiles.virtualearth.net
    change_origin: true
  /tiles-t1:
    target: http://ecn.t1.tiles.virtualearth.net
    change_origin: true
  /tiles-t2:
    target: http://ecn.t3.tiles.virtualearth.net/tiles
    change_origin: true
    secure: false
    strip_prefix: /tiles
static_copy:
  - src: node_modules/earthsdk3-assets
    dest: js
assets:
  entry_points:
    - src/main.ts
  out_dir: dist
  define:
    CESIUM_BASE_URL: '"/cesium"'
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_keepsRuleOrder(t *testing.T) {
	path := writeConfig(t, tilesConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	router := cfg.Router()
	require.NotNil(t, router)

	rules := router.Rules()
	require.Len(t, rules, 3)
	require.Equal(t, "/tiles", rules[0].Prefix)
	require.Equal(t, "/tiles-t1", rules[1].Prefix)
	require.Equal(t, "/tiles-t2", rules[2].Prefix)

	require.True(t, rules[0].ChangeOrigin)
	require.False(t, rules[0].Insecure)
	require.True(t, rules[2].Insecure)
	require.Equal(t, "/tiles", rules[2].StripPrefix)
	require.Equal(t, "/tiles", rules[2].Target.Path)

	// later rules are shadowed by /tiles, reported rather than reordered
	require.NotEmpty(t, router.Warnings())
}

func TestLoad_resolvesPaths(t *testing.T) {
	path := writeConfig(t, tilesConfig)
	dir := filepath.Dir(path)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, dir, cfg.Dir())
	require.Equal(t, map[string]string{
		"cesium": filepath.Join(dir, "node_modules", "cesium", "Source", "Cesium"),
	}, cfg.Aliases())
	require.Equal(t, filepath.Join(dir, "dist"), cfg.Path(cfg.Assets.OutDir))
	require.Equal(t, "/abs/path", cfg.Path("/abs/path"))
	require.Equal(t, filepath.Join("dist", "meta.json"), cfg.Assets.Metafile)
	require.Equal(t, `"/cesium"`, cfg.Assets.Define["CESIUM_BASE_URL"])
	require.Equal(t, []CopyTarget{{Src: "node_modules/earthsdk3-assets", Dest: "js"}}, cfg.StaticCopy)
}

func TestLoad_missingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), DefaultFile))
	require.NoError(t, err)

	require.Nil(t, cfg.Router())
	require.Equal(t, "127.0.0.1:5173", cfg.Server.Listen)
	require.Equal(t, "dist", cfg.Assets.OutDir)
}

func TestLoad_duplicatePrefix(t *testing.T) {
	path := writeConfig(t, `
proxy:
  /tiles:
    target: http://a.example.com
  /tiles:
    target: http://b.example.com
`)

	_, err := Load(path)
	require.ErrorIs(t, err, ErrInvalidConfig)
	require.ErrorIs(t, err, proxy.ErrDuplicatePrefix)
}

func TestLoad_invalidEntries(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errType error
	}{
		{
			name: "malformed origin",
			content: `
proxy:
  /tiles:
    target: ecn.t2.tiles.virtualearth.net
`,
			errType: proxy.ErrInvalidTarget,
		},
		{
			name: "missing target",
			content: `
proxy:
  /tiles:
    change_origin: true
`,
			errType: ErrInvalidConfig,
		},
		{
			name: "relative prefix",
			content: `
proxy:
  tiles:
    target: http://a.example.com
`,
			errType: proxy.ErrInvalidPrefix,
		},
		{
			name: "strip prefix unrelated to prefix",
			content: `
proxy:
  /tiles:
    target: http://a.example.com
    strip_prefix: /maps
`,
			errType: proxy.ErrInvalidStripPrefix,
		},
		{
			name: "unknown cache mode",
			content: `
proxy:
  /tiles:
    target: http://a.example.com
    cache: redis
`,
			errType: ErrInvalidConfig,
		},
		{
			name: "bad listen address",
			content: `
server:
  listen: nope
`,
			errType: ErrInvalidConfig,
		},
		{
			name: "listen port out of range",
			content: `
server:
  listen: 127.0.0.1:70000
`,
			errType: ErrInvalidConfig,
		},
		{
			name: "copy target without dest",
			content: `
static_copy:
  - src: node_modules/x
`,
			errType: ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.ErrorIs(t, err, tt.errType)
		})
	}
}

func TestLoad_expandsBracedEnvOnly(t *testing.T) {
	t.Setenv("MAPDEV_TEST_TITLE", "Globe")

	cfg, err := Load(writeConfig(t, `
assets:
  entry_points:
    - src/main.ts
  title: ${MAPDEV_TEST_TITLE} $MAPDEV_TEST_TITLE
`))
	require.NoError(t, err)
	require.Equal(t, "Globe $MAPDEV_TEST_TITLE", cfg.Assets.Title)
}

func TestLoad_undefinedEnv(t *testing.T) {
	_, err := Load(writeConfig(t, `
proxy:
  /tiles:
    target: https://${MAPDEV_TEST_UNSET_HOST}
`))
	require.ErrorIs(t, err, ErrInvalidConfig)
	require.ErrorContains(t, err, "MAPDEV_TEST_UNSET_HOST")
}

func TestLoad_listenAddresses(t *testing.T) {
	for _, listen := range []string{":0", "127.0.0.1:0", "localhost:5173", "[::1]:8080", ":5173"} {
		t.Run(listen, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, "server:\n  listen: \""+listen+"\"\n"))
			require.NoError(t, err)
			require.Equal(t, listen, cfg.Server.Listen)
		})
	}
}

func TestLoad_malformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "proxy: [unterminated"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "proxy:\n  - /tiles\n"))
	require.Error(t, err)
}

func TestLoad_duplicateAlias(t *testing.T) {
	_, err := Load(writeConfig(t, `
resolve:
  alias:
    cesium: a
    cesium: b
`))
	require.Error(t, err)
}

func TestLoad_expandsEnv(t *testing.T) {
	t.Setenv("MAPDEV_TEST_TILE_HOST", "tiles.example.com")

	cfg, err := Load(writeConfig(t, `
proxy:
  /tiles:
    target: https://${MAPDEV_TEST_TILE_HOST}
    timeout: 3s
    cache: memory
`))
	require.NoError(t, err)

	rules := cfg.Router().Rules()
	require.Len(t, rules, 1)
	require.Equal(t, "tiles.example.com", rules[0].Target.Host)
	require.Equal(t, 3*time.Second, rules[0].Timeout)
	require.Equal(t, proxy.CacheMemory, rules[0].Cache)
}
