package assets

type Config struct {
	// Working directory esbuild resolves relative paths against
	WorkDir string
	// Entry point glob patterns relative to WorkDir (e.g., "src/*.ts")
	EntryPoints []string
	// Output directory for built files, served at the site root
	OutputDir string
	// Path to metafile
	MetafilePath string
	// Import specifier to directory aliases (e.g., "cesium" to the library sources)
	Alias map[string]string
	// Global identifiers replaced at build time, values are JS expressions
	Define map[string]string
	// Stylesheet URLs linked from the index page before the bundle's own CSS
	Stylesheets []string
	// Whether to minify output
	Minify bool
	// Whether to enable source maps
	SourceMap bool
}
