package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wolfeidau/mapdev/internal/proxy"
)

// DefaultFile is the config file name looked up in the working directory.
const DefaultFile = "mapdev.yaml"

// ErrInvalidConfig wraps every validation failure reported by Load.
var ErrInvalidConfig = errors.New("invalid config")

// Default returns the configuration used for keys missing from the file.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen: "127.0.0.1:5173",
			Root:   ".",
		},
		Assets: AssetsConfig{
			EntryPoints: []string{"src/main.ts"},
			OutDir:      "dist",
			SourceMap:   true,
			Title:       "mapdev",
		},
		Cesium: CesiumConfig{
			BaseURL: "/cesium",
		},
		Cache: CacheConfig{
			Dir: ".mapdev/cache",
		},
	}
}

// Load reads the YAML file at path, expands ${VAR} references from the
// environment, applies defaults and validates the result, including the proxy
// rule table. A missing file yields the defaults. All errors are reported at
// once so a broken config fails before the first request.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	cfg := Default()
	cfg.dir = filepath.Dir(absPath)

	data, err := os.ReadFile(absPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		data = nil
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if len(strings.TrimSpace(string(data))) > 0 {
		expanded, err := expandEnv(data)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(expanded, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if cfg.Assets.Metafile == "" {
		cfg.Assets.Metafile = filepath.Join(cfg.Assets.OutDir, "meta.json")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} references with values from the environment. Bare
// $VAR is left alone so values such as "$1" survive. Unset variables are errors.
func expandEnv(data []byte) ([]byte, error) {
	var missing []string
	expanded := envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		name := string(envRef.FindSubmatch(ref)[1])
		value, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
			return ref
		}
		return []byte(value)
	})
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: undefined environment variables: %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}
	return expanded, nil
}

func (c *Config) validate() error {
	var errs []error

	if err := validateStruct(c); err != nil {
		errs = append(errs, err)
	}

	rules, err := c.rules()
	if err != nil {
		errs = append(errs, err)
	}

	if len(rules) > 0 && err == nil {
		router, err := proxy.NewRouter(rules...)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
		}
		c.router = router
	}

	return errors.Join(errs...)
}

func (c *Config) rules() ([]proxy.Rule, error) {
	var (
		rules = make([]proxy.Rule, 0, len(c.Proxy))
		errs  []error
	)

	for _, entry := range c.Proxy {
		opts := []proxy.RuleOption{
			proxy.WithChangeOrigin(entry.ChangeOrigin),
			proxy.WithInsecureTLS(entry.Secure != nil && !*entry.Secure),
			proxy.WithTimeout(entry.Timeout),
			proxy.WithCache(proxy.CacheMode(entry.Cache)),
		}
		if entry.StripPrefix != "" {
			opts = append(opts, proxy.WithStripPrefix(entry.StripPrefix))
		}

		rule, err := proxy.NewRule(entry.Prefix, entry.Target, opts...)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: proxy %q (line %d): %w", ErrInvalidConfig, entry.Prefix, entry.Line, err))
			continue
		}
		rules = append(rules, rule)
	}

	return rules, errors.Join(errs...)
}

// Router returns the proxy router built at load time, or nil when no proxy
// rules are configured.
func (c *Config) Router() *proxy.Router {
	return c.router
}

// Dir returns the directory relative paths are resolved against.
func (c *Config) Dir() string {
	return c.dir
}

// Path resolves p against the config directory unless it is already absolute.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.dir, filepath.FromSlash(p))
}

// Aliases returns the module aliases with directories resolved to absolute paths.
func (c *Config) Aliases() map[string]string {
	aliases := make(map[string]string, len(c.Resolve.Alias))
	for _, a := range c.Resolve.Alias {
		aliases[a.Module] = c.Path(a.Path)
	}
	return aliases
}
