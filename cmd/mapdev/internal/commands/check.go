package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/wolfeidau/mapdev/internal/logger"
	"github.com/wolfeidau/mapdev/internal/proxy"
)

// ErrUnreachable is returned when at least one upstream never answered.
var ErrUnreachable = errors.New("upstream unreachable")

type CheckCmd struct {
	MaxElapsed     time.Duration `help:"give up on an upstream after this long" default:"30s"`
	RequestTimeout time.Duration `help:"timeout for a single probe" default:"5s"`

	out io.Writer
}

type probeResult struct {
	rule    proxy.Rule
	status  int
	elapsed time.Duration
	err     error
}

func (c *CheckCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	cfg, err := loadConfig(globals, log)
	if err != nil {
		return err
	}

	out := c.out
	if out == nil {
		out = os.Stdout
	}

	router := cfg.Router()
	if router == nil {
		fmt.Fprintln(out, "no proxy rules configured")
		return nil
	}

	rules := router.Rules()
	results := make([]probeResult, len(rules))

	g, gctx := errgroup.WithContext(ctx)
	for i, rule := range rules {
		g.Go(func() error {
			results[i] = c.probe(gctx, log, rule)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, res := range results {
		if res.err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %s -> %s: %v\n", res.rule.Prefix, res.rule.Target.String(), res.err)
			continue
		}
		fmt.Fprintf(out, "OK   %s -> %s: %d in %s\n", res.rule.Prefix, res.rule.Target.String(), res.status, res.elapsed.Round(time.Millisecond))
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrUnreachable, failed, len(rules))
	}
	return nil
}

// probe sends HEAD requests to the rule target through the same transport the
// proxy uses. Transport errors and 5xx responses are retried with exponential
// backoff, any other response means the upstream is reachable.
func (c *CheckCmd) probe(ctx context.Context, log zerolog.Logger, rule proxy.Rule) probeResult {
	client := &http.Client{
		Transport: proxy.NewTransport(rule),
		Timeout:   c.RequestTimeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	target := rule.Target.String()
	started := time.Now()

	operation := func() (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
		if err != nil {
			return 0, backoff.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return 0, err
		}
		_ = resp.Body.Close()
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp.StatusCode, fmt.Errorf("upstream returned %s", resp.Status)
		}
		return resp.StatusCode, nil
	}

	status, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(c.MaxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Debug().Err(err).Str("prefix", rule.Prefix).Dur("retry_in", next).Msg("Probe failed, retrying")
		}),
	)

	return probeResult{rule: rule, status: status, elapsed: time.Since(started), err: err}
}
