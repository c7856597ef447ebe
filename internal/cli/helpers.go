package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chaostheorist/chaos/internal/daemon"
	"github.com/chaostheorist/chaos/internal/domain"
	"github.com/chaostheorist/chaos/internal/store"
)

// loadConfig reads the config named by --config, or the default one.
// One-shot commands log warnings only unless --verbose is set.
func loadConfig(quiet bool) (daemon.Config, error) {
	path := configPath
	if path == "" {
		path = daemon.ConfigPath()
	}
	cfg, err := daemon.LoadConfigFrom(path)
	if err != nil {
		return cfg, err
	}
	switch {
	case verbose:
		cfg.Logging.Level = "debug"
	case quiet:
		cfg.Logging.Level = "warn"
	}
	return cfg, nil
}

// bootConsole wires a daemon and performs the initial catalog load. A
// failed load is returned as the console's global error.
func bootConsole(ctx context.Context) (*daemon.Daemon, error) {
	cfg, err := loadConfig(true)
	if err != nil {
		return nil, err
	}
	d, err := newDaemon(cfg)
	if err != nil {
		return nil, err
	}
	d.Boot(ctx)
	if msg := d.Store.State().GlobalError; msg != "" {
		d.Close()
		return nil, errors.New(msg)
	}
	return d, nil
}

func newDaemon(cfg daemon.Config) (*daemon.Daemon, error) {
	d, err := daemon.NewWithConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize daemon: %w", err)
	}
	return d, nil
}

// visibleSystem returns a system from the console catalog.
func visibleSystem(st store.State, id string) (domain.ChaoticSystemDefinition, error) {
	sys, ok := st.System(id)
	if !ok {
		return sys, domain.NotFound("system", id)
	}
	return sys, nil
}

// formatRange renders a parameter's domain, e.g. "[0, 20] %" or
// "static|countercyclical|dynamic".
func formatRange(p domain.SystemParameter) string {
	switch p.DataType {
	case domain.DataNumber:
		if p.MinValue == nil || p.MaxValue == nil {
			return strings.TrimSpace("any " + p.Unit)
		}
		return strings.TrimSpace(fmt.Sprintf("[%g, %g] %s", *p.MinValue, *p.MaxValue, p.Unit))
	case domain.DataEnum:
		return strings.Join(p.EnumValues, "|")
	case domain.DataBoolean:
		return "true|false"
	}
	return "text"
}

// newLineScanner creates a line scanner from a reader.
func newLineScanner(r io.Reader) *bufio.Scanner {
	return bufio.NewScanner(r)
}
