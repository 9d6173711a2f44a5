package commands

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/wolfeidau/mapdev/internal/assets"
	"github.com/wolfeidau/mapdev/internal/config"
	"github.com/wolfeidau/mapdev/internal/staticcopy"
)

type Globals struct {
	Debug   bool
	Config  string
	Version string
}

// loadConfig loads the .env files next to the config file and then the config
// itself, so ${VAR} references see values from both.
func loadConfig(globals *Globals, log zerolog.Logger) (*config.Config, error) {
	dir := filepath.Dir(globals.Config)

	loaded, err := config.LoadDotEnv(dir)
	if err != nil {
		return nil, err
	}
	if len(loaded) > 0 {
		log.Debug().Strs("files", loaded).Msg("Loaded environment files")
	}

	cfg, err := config.Load(globals.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", globals.Config, err)
	}

	if router := cfg.Router(); router != nil {
		for _, w := range router.Warnings() {
			log.Warn().Str("prefix", w.Prefix).Msg(w.Message)
		}
	}

	return cfg, nil
}

func newPipeline(cfg *config.Config) (*assets.Pipeline, string, error) {
	assetsCfg := assets.Config{
		WorkDir:      cfg.Dir(),
		EntryPoints:  cfg.Assets.EntryPoints,
		OutputDir:    cfg.Path(cfg.Assets.OutDir),
		MetafilePath: cfg.Path(cfg.Assets.Metafile),
		Alias:        cfg.Aliases(),
		Define:       cfg.Defines(),
		Stylesheets:  cfg.Stylesheets(),
		Minify:       cfg.Assets.Minify,
		SourceMap:    cfg.Assets.SourceMap,
	}

	if cfg.Assets.IndexTemplate == "" {
		pipeline, err := assets.New(assetsCfg)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create asset pipeline: %w", err)
		}
		return pipeline, assets.DefaultTemplateName, nil
	}

	templatePath := cfg.Path(cfg.Assets.IndexTemplate)
	pipeline, err := assets.NewWithTemplate(assetsCfg, templatePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load index template: %w", err)
	}
	return pipeline, filepath.Base(templatePath), nil
}

func newCopier(cfg *config.Config) *staticcopy.Copier {
	copyTargets := cfg.CopyTargets()
	targets := make([]staticcopy.Target, 0, len(copyTargets))
	for _, t := range copyTargets {
		targets = append(targets, staticcopy.Target{
			Src:  cfg.Path(t.Src),
			Dest: filepath.FromSlash(t.Dest),
		})
	}
	return staticcopy.New(targets, cfg.Path(cfg.Assets.OutDir))
}
