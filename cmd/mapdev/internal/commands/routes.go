package commands

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/wolfeidau/mapdev/internal/logger"
)

type RoutesCmd struct {
	out io.Writer
}

func (c *RoutesCmd) Run(globals *Globals) error {
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
		fmt.Fprintln(out, "no proxy rules configured, every request is served locally")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tPREFIX\tTARGET\tSTRIP\tCHANGE ORIGIN\tINSECURE\tTIMEOUT\tCACHE")
	for i, rule := range router.Rules() {
		timeout := "-"
		if rule.Timeout > 0 {
			timeout = rule.Timeout.String()
		}
		cache := string(rule.Cache)
		if cache == "" {
			cache = "none"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%t\t%t\t%s\t%s\n",
			i+1, rule.Prefix, rule.Target.String(), rule.StripPrefix, rule.ChangeOrigin, rule.Insecure, timeout, cache)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	for _, warning := range router.Warnings() {
		fmt.Fprintf(out, "warning: %s\n", warning)
	}

	return nil
}
