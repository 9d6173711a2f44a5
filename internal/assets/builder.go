package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/mapdev/internal/telemetry"
)

// ErrBuildFailed is returned when esbuild reports errors
var ErrBuildFailed = errors.New("esbuild failed with errors")

// Build runs esbuild once with the configured settings and loads metadata
func (p *Pipeline) Build() error {
	opts, err := p.buildOptions()
	if err != nil {
		return err
	}

	log.Info().Strs("entrypoints", opts.EntryPoints).Msg("Building assets")

	started := time.Now()
	result := api.Build(opts)
	return p.handleResult(&result, started)
}

// Watch builds the assets and rebuilds them whenever an input changes, until
// ctx is cancelled. Build errors are logged and the previous metadata is kept.
func (p *Pipeline) Watch(ctx context.Context) error {
	opts, err := p.buildOptions()
	if err != nil {
		return err
	}

	var started time.Time
	opts.Plugins = append(opts.Plugins, api.Plugin{
		Name: "mapdev-metadata",
		Setup: func(build api.PluginBuild) {
			build.OnStart(func() (api.OnStartResult, error) {
				started = time.Now()
				return api.OnStartResult{}, nil
			})
			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				if err := p.handleResult(result, started); err != nil {
					log.Warn().Err(err).Msg("Rebuild failed, serving previous assets")
				}
				return api.OnEndResult{}, nil
			})
		},
	})

	buildCtx, ctxErr := api.Context(opts)
	if ctxErr != nil {
		return fmt.Errorf("failed to create esbuild context: %w", ctxErr)
	}
	defer buildCtx.Dispose()

	if err := buildCtx.Watch(api.WatchOptions{}); err != nil {
		return fmt.Errorf("failed to watch assets: %w", err)
	}

	log.Info().Strs("entrypoints", opts.EntryPoints).Msg("Watching assets")

	<-ctx.Done()
	return nil
}

func (p *Pipeline) buildOptions() (api.BuildOptions, error) {
	workDir, err := filepath.Abs(p.config.WorkDir)
	if err != nil {
		return api.BuildOptions{}, err
	}

	entryPoints, err := p.resolveEntryPoints(workDir)
	if err != nil {
		return api.BuildOptions{}, err
	}

	return api.BuildOptions{
		AbsWorkingDir:     workDir,
		EntryPoints:       entryPoints,
		Bundle:            true,
		Splitting:         true,
		Write:             true,
		Outdir:            p.absPath(workDir, p.config.OutputDir),
		Format:            api.FormatESModule,
		Alias:             aliases(workDir, p.config.Alias),
		Define:            p.config.Define,
		Loader:            assetLoaders,
		MinifyWhitespace:  p.config.Minify,
		MinifyIdentifiers: p.config.Minify,
		MinifySyntax:      p.config.Minify,
		TreeShaking:       api.TreeShakingTrue,
		Sourcemap:         cond(p.config.SourceMap, api.SourceMapLinked, api.SourceMapNone),
		Metafile:          true,
		LogLevel:          api.LogLevelSilent,
	}, nil
}

// assetLoaders emits binary map assets as separate files referenced by URL.
var assetLoaders = map[string]api.Loader{
	".png":   api.LoaderFile,
	".jpg":   api.LoaderFile,
	".jpeg":  api.LoaderFile,
	".gif":   api.LoaderFile,
	".svg":   api.LoaderFile,
	".glb":   api.LoaderFile,
	".gltf":  api.LoaderFile,
	".ktx2":  api.LoaderFile,
	".wasm":  api.LoaderFile,
	".woff":  api.LoaderFile,
	".woff2": api.LoaderFile,
}

func (p *Pipeline) resolveEntryPoints(workDir string) ([]string, error) {
	var entryPoints []string
	for _, pattern := range p.config.EntryPoints {
		matches, err := filepath.Glob(p.absPath(workDir, pattern))
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			rel, err := filepath.Rel(workDir, m)
			if err != nil {
				return nil, err
			}
			entryPoints = append(entryPoints, filepath.ToSlash(rel))
		}
	}

	if len(entryPoints) == 0 {
		return nil, errors.New("no entry points found")
	}

	return entryPoints, nil
}

// aliases rewrites directory aliases inside workDir to "./" paths, which
// esbuild resolves against the working directory.
func aliases(workDir string, alias map[string]string) map[string]string {
	if len(alias) == 0 {
		return nil
	}

	out := make(map[string]string, len(alias))
	for module, dir := range alias {
		if filepath.IsAbs(dir) {
			if rel, err := filepath.Rel(workDir, dir); err == nil && !strings.HasPrefix(rel, "..") {
				dir = "./" + filepath.ToSlash(rel)
			}
		} else if !strings.HasPrefix(dir, "./") && !strings.HasPrefix(dir, "../") {
			dir = "./" + filepath.ToSlash(dir)
		}
		out[module] = dir
	}
	return out
}

func (p *Pipeline) handleResult(result *api.BuildResult, started time.Time) error {
	metrics := telemetry.GetMetrics()
	ctx := context.Background()

	metrics.AssetBuildsTotal.Add(ctx, 1)
	metrics.AssetBuildDuration.Record(ctx, float64(time.Since(started).Milliseconds()))

	if len(result.Errors) > 0 {
		metrics.AssetBuildErrorsTotal.Add(ctx, 1)
		for _, msg := range result.Errors {
			ev := log.Error().Str("error", msg.Text)
			if msg.Location != nil {
				ev = ev.Str("file", msg.Location.File).Int("line", msg.Location.Line)
			}
			ev.Msg("Build error")
		}
		return ErrBuildFailed
	}

	for _, msg := range result.Warnings {
		log.Warn().Str("warning", msg.Text).Msg("Build warning")
	}

	for _, file := range result.OutputFiles {
		log.Debug().Str("file", file.Path).Msg("Built file")
	}

	// Write metafile
	if p.config.MetafilePath != "" {
		if err := os.WriteFile(p.config.MetafilePath, []byte(result.Metafile), 0600); err != nil {
			return err
		}
	}

	// Parse and cache metadata
	var metadata BuildMetadata
	if err := json.Unmarshal([]byte(result.Metafile), &metadata); err != nil {
		return err
	}

	p.mu.Lock()
	p.metadata = &metadata
	p.mu.Unlock()

	log.Info().
		Int("outputs", len(metadata.Outputs)).
		Dur("duration", time.Since(started)).
		Msg("Assets built")

	return nil
}

// EntryPoints returns the configured entry points resolved to paths relative
// to the working directory, as they appear in the metafile.
func (p *Pipeline) EntryPoints() ([]string, error) {
	workDir, err := filepath.Abs(p.config.WorkDir)
	if err != nil {
		return nil, err
	}
	return p.resolveEntryPoints(workDir)
}

// LoadScripts returns the ordered list of script URLs needed for the given entrypoint
// and the main entrypoint URL
func (p *Pipeline) LoadScripts(entryPointPath string) ([]string, string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.metadata == nil {
		return nil, "", errors.New("assets not built yet, call Build() first")
	}

	scripts := []string{}
	visited := make(map[string]bool)

	// Find the output file for this entrypoint
	for outputPath, info := range p.metadata.Outputs {
		if info.EntryPoint == entryPointPath {
			entrypoint := p.outputURL(outputPath)
			scripts = append(scripts, entrypoint)
			visited[outputPath] = true
			p.addDependencies(info, &scripts, visited)
			return scripts, entrypoint, nil
		}
	}

	return nil, "", errors.New("entrypoint not found in metadata")
}

// LoadStyles returns the CSS bundle URL emitted for the entrypoint, if any.
func (p *Pipeline) LoadStyles(entryPointPath string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.metadata == nil {
		return nil
	}

	for _, info := range p.metadata.Outputs {
		if info.EntryPoint == entryPointPath && info.CSSBundle != "" {
			return []string{p.outputURL(info.CSSBundle)}
		}
	}
	return nil
}

func (p *Pipeline) addDependencies(output OutputInfo, scripts *[]string, visited map[string]bool) {
	for _, imp := range output.Imports {
		// dynamic imports load on demand, only static chunks are preloaded
		if imp.Kind == "dynamic-import" || visited[imp.Path] {
			continue
		}
		visited[imp.Path] = true
		*scripts = append(*scripts, p.outputURL(imp.Path))

		if chunkInfo, exists := p.metadata.Outputs[imp.Path]; exists {
			p.addDependencies(chunkInfo, scripts, visited)
		}
	}
}

// outputURL maps a metafile output path (relative to the working directory)
// to its URL below the output directory, which is served at the site root.
func (p *Pipeline) outputURL(outputPath string) string {
	outDir := path.Clean(filepath.ToSlash(p.config.OutputDir))
	if workDir, err := filepath.Abs(p.config.WorkDir); err == nil && filepath.IsAbs(p.config.OutputDir) {
		if rel, err := filepath.Rel(workDir, p.config.OutputDir); err == nil {
			outDir = filepath.ToSlash(rel)
		}
	}
	return "/" + strings.TrimPrefix(outputPath, outDir+"/")
}

func (p *Pipeline) absPath(workDir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(workDir, name)
}

// Handler returns an http.HandlerFunc that renders the given template and entrypoint with its scripts
func (p *Pipeline) Handler(templateName, title, entryPointPath string) (http.HandlerFunc, error) {
	if p.tmpl == nil || p.tmpl.Lookup(templateName) == nil {
		return nil, fmt.Errorf("template %q not loaded", templateName)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		scripts, entry, err := p.LoadScripts(entryPointPath)
		if err != nil {
			log.Error().Err(err).Msg("Failed to load scripts")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		styles := append(append([]string(nil), p.config.Stylesheets...), p.LoadStyles(entryPointPath)...)

		data := map[string]any{
			"Title":    title,
			"Scripts":  scripts,
			"Entry":    entry,
			"Preloads": scripts[1:],
			"Styles":   styles,
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		if err := p.tmpl.ExecuteTemplate(w, templateName, data); err != nil {
			log.Error().Err(err).Msg("Failed to render template")
		}
	}, nil
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
