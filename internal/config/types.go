package config

import (
	"time"

	"github.com/wolfeidau/mapdev/internal/proxy"
)

// Config is the parsed mapdev.yaml. It is built once by Load and treated as
// read-only afterwards.
type Config struct {
	Server     ServerConfig  `yaml:"server"`
	Resolve    ResolveConfig `yaml:"resolve"`
	Proxy      ProxyTable    `yaml:"proxy" validate:"dive"`
	StaticCopy []CopyTarget  `yaml:"static_copy" validate:"dive"`
	Assets     AssetsConfig  `yaml:"assets"`
	Cesium     CesiumConfig  `yaml:"cesium"`
	Cache      CacheConfig   `yaml:"cache"`

	// dir is the directory holding the config file, relative paths resolve against it.
	dir    string
	router *proxy.Router
}

type ServerConfig struct {
	Listen      string   `yaml:"listen" validate:"required,listen_addr"`
	Root        string   `yaml:"root" validate:"required"`
	CORSOrigins []string `yaml:"cors_origins" validate:"dive,required"`
}

type ResolveConfig struct {
	Alias AliasTable `yaml:"alias" validate:"dive"`
}

// Alias resolves an import specifier to a directory.
type Alias struct {
	Module string `yaml:"-" validate:"required"`
	Path   string `yaml:"-" validate:"required"`
}

type AliasTable []Alias

// ProxyEntry is one prefix rule as written in the file.
type ProxyEntry struct {
	Prefix       string        `yaml:"-" validate:"required,startswith=/"`
	Target       string        `yaml:"target" validate:"required,url"`
	ChangeOrigin bool          `yaml:"change_origin"`
	Secure       *bool         `yaml:"secure"`
	StripPrefix  string        `yaml:"strip_prefix" validate:"omitempty,startswith=/"`
	Timeout      time.Duration `yaml:"timeout" validate:"gte=0"`
	Cache        string        `yaml:"cache" validate:"omitempty,oneof=none memory disk"`

	// Line is the source line of the entry's key, for error messages.
	Line int `yaml:"-"`
}

// ProxyTable keeps proxy entries in the order they appear in the file.
type ProxyTable []ProxyEntry

// CopyTarget copies Src (a path or glob) into Dest under the assets output directory.
type CopyTarget struct {
	Src  string `yaml:"src" validate:"required"`
	Dest string `yaml:"dest" validate:"required"`
}

type AssetsConfig struct {
	EntryPoints   []string          `yaml:"entry_points" validate:"required,min=1,dive,required"`
	OutDir        string            `yaml:"out_dir" validate:"required"`
	Metafile      string            `yaml:"metafile"`
	Minify        bool              `yaml:"minify"`
	SourceMap     bool              `yaml:"sourcemap"`
	Define        map[string]string `yaml:"define"`
	IndexTemplate string            `yaml:"index_template"`
	Title         string            `yaml:"title"`
}

// CesiumConfig serves a prebuilt Cesium distribution next to the bundle. Dir
// is the built package (node_modules/cesium/Build/Cesium); an empty Dir
// disables it.
type CesiumConfig struct {
	Dir     string `yaml:"dir"`
	BaseURL string `yaml:"base_url" validate:"required,startswith=/"`
}

type CacheConfig struct {
	Dir string `yaml:"dir"`
}
