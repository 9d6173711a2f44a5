package staticcopy

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"go.nhat.io/aferocopy/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wolfeidau/mapdev/internal/telemetry"
)

const copyBufferSize uint = 512 * 1024 // 512 kB

// ErrNoMatch is returned when a target's source matches nothing.
var ErrNoMatch = errors.New("no file was found to copy")

// Target copies Src, a path or glob, into Dest below the output directory.
// Every match keeps its base name: Src "node_modules/assets" with Dest "js"
// lands in "<out>/js/assets".
type Target struct {
	Src  string
	Dest string
}

// Copier copies static targets into the output directory.
type Copier struct {
	targets  []Target
	outDir   string
	srcFs    afero.Fs
	destFs   afero.Fs
	debounce time.Duration
}

type Option func(*Copier)

// WithFs overrides the source and destination filesystems, which default to the OS.
func WithFs(src, dest afero.Fs) Option {
	return func(c *Copier) {
		c.srcFs = src
		c.destFs = dest
	}
}

// WithDebounce sets how long Watch waits for changes to settle. Default is 200ms.
func WithDebounce(d time.Duration) Option {
	return func(c *Copier) {
		c.debounce = d
	}
}

// New creates a copier. Target sources and outDir should be absolute paths.
func New(targets []Target, outDir string, opts ...Option) *Copier {
	c := &Copier{
		targets:  targets,
		outDir:   outDir,
		srcFs:    afero.NewOsFs(),
		destFs:   afero.NewOsFs(),
		debounce: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Targets returns the configured targets.
func (c *Copier) Targets() []Target {
	return append([]Target(nil), c.targets...)
}

// CopyAll copies every target once and returns the number of copied sources.
func (c *Copier) CopyAll(ctx context.Context) (int, error) {
	total := 0
	for _, t := range c.targets {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := c.Copy(ctx, t)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// Copy copies a single target and returns the number of copied sources.
func (c *Copier) Copy(ctx context.Context, t Target) (int, error) {
	metrics := telemetry.GetMetrics()
	attrs := metric.WithAttributes(attribute.String("dest", t.Dest))

	matches, err := c.matches(t)
	if err != nil {
		metrics.StaticCopyErrorsTotal.Add(ctx, 1, attrs)
		return 0, err
	}

	for _, src := range matches {
		dest := c.destination(t, src)
		if err := c.copy(src, dest); err != nil {
			metrics.StaticCopyErrorsTotal.Add(ctx, 1, attrs)
			return 0, fmt.Errorf("failed to copy %q to %q: %w", src, dest, err)
		}
		log.Debug().Str("src", src).Str("dest", dest).Msg("Copied static target")
	}

	metrics.StaticCopyTotal.Add(ctx, 1, attrs)
	return len(matches), nil
}

func (c *Copier) matches(t Target) ([]string, error) {
	matches, err := afero.Glob(c.srcFs, t.Src)
	if err != nil {
		return nil, fmt.Errorf("bad static copy pattern %q: %w", t.Src, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoMatch, t.Src)
	}
	return matches, nil
}

func (c *Copier) destination(t Target, src string) string {
	return filepath.Join(c.outDir, filepath.FromSlash(t.Dest), filepath.Base(src))
}

func (c *Copier) copy(src, dest string) error {
	return aferocopy.Copy(src, dest, aferocopy.Options{
		SrcFs:          c.srcFs,
		DestFs:         c.destFs,
		Sync:           false,
		CopyBufferSize: copyBufferSize,
		OnDirExists: func(srcFs afero.Fs, src string, destFs afero.Fs, dest string) aferocopy.DirExistsAction {
			return aferocopy.Merge
		},
	})
}
