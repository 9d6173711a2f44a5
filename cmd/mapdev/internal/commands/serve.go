package commands

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wolfeidau/mapdev/internal/config"
	"github.com/wolfeidau/mapdev/internal/devserver"
	"github.com/wolfeidau/mapdev/internal/logger"
	"github.com/wolfeidau/mapdev/internal/proxy"
	"github.com/wolfeidau/mapdev/internal/telemetry"
)

type ServeCmd struct {
	Listen          string        `help:"override server.listen from the config file" env:"MAPDEV_LISTEN"`
	NoWatch         bool          `help:"build once instead of rebuilding on change" default:"false" env:"MAPDEV_NO_WATCH"`
	Telemetry       bool          `help:"export traces and metrics over OTLP" default:"false" env:"MAPDEV_TELEMETRY"`
	SampleRatio     float64       `help:"fraction of requests traced" default:"1" env:"MAPDEV_TRACE_SAMPLE_RATIO"`
	ShutdownTimeout time.Duration `help:"time allowed for in-flight requests on shutdown" default:"10s"`
}

// newLocalHandler serves the build output, then the project root, without
// exposing the config file.
func newLocalHandler(cfg *config.Config, index http.Handler, configPath string) *devserver.LocalHandler {
	return devserver.NewLocalHandler(index, cfg.Path(cfg.Assets.OutDir), cfg.Path(cfg.Server.Root)).
		Deny(filepath.Base(configPath))
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting mapdev")

	cfg, err := loadConfig(globals, log)
	if err != nil {
		return err
	}

	if c.Telemetry {
		log.Info().Msg("Telemetry is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, telemetry.Config{
			ServiceName: "mapdev",
			Version:     globals.Version,
			SampleRatio: c.SampleRatio,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without it")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	pipeline, templateName, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	entryPoints, err := pipeline.EntryPoints()
	if err != nil {
		return fmt.Errorf("failed to resolve entry points: %w", err)
	}
	if len(entryPoints) == 0 {
		return fmt.Errorf("no entry points match %v", cfg.Assets.EntryPoints)
	}

	index, err := pipeline.Handler(templateName, cfg.Assets.Title, entryPoints[0])
	if err != nil {
		return err
	}

	copier := newCopier(cfg)
	copied, err := copier.CopyAll(ctx)
	if err != nil {
		return err
	}
	log.Info().Int("copied", copied).Msg("Copied static targets")

	if c.NoWatch {
		if err := pipeline.Build(); err != nil {
			return err
		}
	}

	handler, err := devserver.NewHandler(devserver.Options{
		Local:        newLocalHandler(cfg, index, globals.Config),
		Router:       cfg.Router(),
		ProxyOptions: []proxy.HandlerOption{proxy.WithCacheDir(cfg.Path(cfg.Cache.Dir))},
		CORSOrigins:  cfg.Server.CORSOrigins,
		Tracing:      c.Telemetry,
		Logger:       log,
	})
	if err != nil {
		return err
	}

	listen := cfg.Server.Listen
	if c.Listen != "" {
		listen = c.Listen
	}

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", listen, err)
	}

	if router := cfg.Router(); router != nil {
		for _, rule := range router.Rules() {
			log.Info().Str("prefix", rule.Prefix).Str("target", rule.Origin()).Bool("insecure", rule.Insecure).Msg("Proxy rule")
		}
	}
	log.Info().Str("url", "http://"+ln.Addr().String()).Msg("Dev server ready")

	g, gctx := errgroup.WithContext(ctx)

	if !c.NoWatch {
		g.Go(func() error { return pipeline.Watch(gctx) })
		if len(copier.Targets()) > 0 {
			g.Go(func() error { return copier.Watch(gctx) })
		}
	}

	g.Go(func() error {
		return devserver.Serve(gctx, devserver.NewHTTPServer(listen, handler), ln, c.ShutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info().Msg("Shut down")
	return nil
}
