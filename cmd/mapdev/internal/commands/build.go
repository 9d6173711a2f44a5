package commands

import (
	"context"

	"github.com/wolfeidau/mapdev/internal/logger"
)

type BuildCmd struct{}

func (c *BuildCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	cfg, err := loadConfig(globals, log)
	if err != nil {
		return err
	}

	pipeline, _, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	if err := pipeline.Build(); err != nil {
		return err
	}

	copied, err := newCopier(cfg).CopyAll(ctx)
	if err != nil {
		return err
	}

	log.Info().Str("out_dir", cfg.Path(cfg.Assets.OutDir)).Int("copied", copied).Msg("Build complete")
	return nil
}
