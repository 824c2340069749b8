package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/ssrdata"
	"github.com/vango-dev/ssrdata/internal/config"
	"github.com/vango-dev/ssrdata/internal/errors"
	"github.com/vango-dev/ssrdata/pkg/render"
)

type serveOptions struct {
	configPath string
	port       int
	host       string
	logLevel   string
	scripts    []string
}

func serveCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pages declared in the config",
		Long: `Serve the pages declared in ssrdata.json (or ssrdata.yaml).

Each page runs one GraphQL query whose variables are read from the
URL query string. The result is resolved on the server and embedded
in the page for the client bundle to mount from.

Examples:
  ssrdata serve
  ssrdata serve --config=deploy/ssrdata.yaml --port=8080
  ssrdata serve --script=/static/app.js`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default: search from the working directory)")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "Port to listen on (overrides the config)")
	cmd.Flags().StringVarP(&opts.host, "host", "H", "", "Host to bind to (overrides the config)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	cmd.Flags().StringSliceVar(&opts.scripts, "script", nil, "Module script added to every page (repeatable)")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, opts serveOptions) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.port > 0 {
		cfg.Server.Port = opts.port
	}
	if opts.host != "" {
		cfg.Server.Host = opts.host
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.logLevel)); err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})).
		With("service", cfg.ServiceName())

	appOpts := []ssrdata.Option{ssrdata.WithLogger(logger)}
	for _, src := range opts.scripts {
		appOpts = append(appOpts, ssrdata.WithScripts(render.ScriptTag{Src: src, Module: true}))
	}
	app, err := ssrdata.NewApp(cfg, appOpts...)
	if err != nil {
		return err
	}

	pages := sortedPages(cfg.Pages)
	for _, p := range pages {
		app.Page(p.Path, configPage{cfg: p})
	}

	if cfg.GraphQL.Endpoint == "" {
		warn(out, "No graphql.endpoint configured; pages will fail to fetch")
	}
	if len(pages) == 0 {
		warn(out, "No pages configured")
	}
	success(out, "Serving %d page(s) on http://%s", len(pages), cfg.Address())
	for _, p := range pages {
		info(out, "%s", p.Path)
	}

	return app.ListenAndServe(ctx)
}

// loadConfig loads path, or searches from the working directory when path
// is empty. No config file at all yields the defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	cfg, err := config.LoadFromWorkingDir()
	if errors.Is(err, "E121") {
		return config.New(), nil
	}
	return cfg, err
}
