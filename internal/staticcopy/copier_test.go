package staticcopy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func memFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}
	return fs
}

func TestCopier_CopyAll_directory(t *testing.T) {
	src := memFs(t, map[string]string{
		"/app/node_modules/earthsdk3-assets/img/marker.png":  "png",
		"/app/node_modules/earthsdk3-assets/fonts/font.woff": "woff",
	})
	dest := afero.NewMemMapFs()

	c := New([]Target{{Src: "/app/node_modules/earthsdk3-assets", Dest: "./js"}}, "/app/dist", WithFs(src, dest))

	n, err := c.CopyAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := afero.ReadFile(dest, "/app/dist/js/earthsdk3-assets/img/marker.png")
	require.NoError(t, err)
	require.Equal(t, "png", string(got))

	ok, err := afero.Exists(dest, "/app/dist/js/earthsdk3-assets/fonts/font.woff")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCopier_CopyAll_glob(t *testing.T) {
	src := memFs(t, map[string]string{
		"/app/public/a.json": "a",
		"/app/public/b.json": "b",
		"/app/public/c.txt":  "c",
	})
	dest := afero.NewMemMapFs()

	c := New([]Target{{Src: "/app/public/*.json", Dest: "data"}}, "/out", WithFs(src, dest))

	n, err := c.CopyAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)

	for _, name := range []string{"/out/data/a.json", "/out/data/b.json"} {
		ok, err := afero.Exists(dest, name)
		require.NoError(t, err)
		require.True(t, ok, name)
	}
	ok, err := afero.Exists(dest, "/out/data/c.txt")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCopier_CopyAll_mergesIntoExisting(t *testing.T) {
	src := memFs(t, map[string]string{"/src/assets/new.png": "new"})
	dest := memFs(t, map[string]string{"/out/js/assets/old.png": "old"})

	c := New([]Target{{Src: "/src/assets", Dest: "js"}}, "/out", WithFs(src, dest))
	_, err := c.CopyAll(context.Background())
	require.NoError(t, err)

	for _, name := range []string{"/out/js/assets/new.png", "/out/js/assets/old.png"} {
		ok, err := afero.Exists(dest, name)
		require.NoError(t, err)
		require.True(t, ok, name)
	}
}

func TestCopier_CopyAll_noMatch(t *testing.T) {
	c := New([]Target{{Src: "/missing", Dest: "js"}}, "/out", WithFs(afero.NewMemMapFs(), afero.NewMemMapFs()))

	_, err := c.CopyAll(context.Background())
	require.ErrorIs(t, err, ErrNoMatch)
}

func TestCopier_CopyAll_cancelled(t *testing.T) {
	src := memFs(t, map[string]string{"/src/a": "a"})
	c := New([]Target{{Src: "/src/a", Dest: "x"}}, "/out", WithFs(src, afero.NewMemMapFs()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.CopyAll(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestCopier_Watch(t *testing.T) {
	dir := t.TempDir()
	srcDir := filepath.Join(dir, "assets")
	outDir := filepath.Join(dir, "dist")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("a"), 0o600))

	c := New([]Target{{Src: srcDir, Dest: "js"}}, outDir, WithDebounce(20*time.Millisecond))

	_, err := c.CopyAll(context.Background())
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(outDir, "js", "assets", "a.txt"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx) }()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "b.txt"), []byte("b"), 0o600))

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(outDir, "js", "assets", "b.txt"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestTargetFor(t *testing.T) {
	roots := []watchRoot{
		{path: filepath.FromSlash("/app/assets"), target: 0},
		{path: filepath.FromSlash("/app/other"), target: 1},
	}

	require.Equal(t, 0, targetFor(roots, filepath.FromSlash("/app/assets")))
	require.Equal(t, 0, targetFor(roots, filepath.FromSlash("/app/assets/x/y.png")))
	require.Equal(t, 1, targetFor(roots, filepath.FromSlash("/app/other/z")))
	require.Equal(t, -1, targetFor(roots, filepath.FromSlash("/app/assets-old/z")))
	require.Equal(t, -1, targetFor(roots, filepath.FromSlash("/app")))
}
