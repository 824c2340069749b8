package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/ssrdata/internal/config"
	"github.com/vango-dev/ssrdata/internal/errors"
)

func initCmd() *cobra.Command {
	var (
		format   string
		endpoint string
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a default config file",
		Long: `Write ssrdata.json (or ssrdata.yaml with --format=yaml) with the
default settings and an example page.

Examples:
  ssrdata init
  ssrdata init deploy --format=yaml --endpoint=https://api.example.com/graphql`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}

			name := config.ConfigFileName
			switch format {
			case "json":
			case "yaml":
				name = config.YAMLConfigFileName
			default:
				return errors.New("E120").WithDetail("Unknown format " + format).
					WithSuggestion("Use --format=json or --format=yaml")
			}
			if config.Exists(dir) && !force {
				return errors.New("E120").WithDetail("A config file already exists in " + dir).
					WithSuggestion("Pass --force to overwrite it")
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}

			cfg := config.New()
			cfg.Name = filepath.Base(absOrSelf(dir))
			cfg.GraphQL.Endpoint = endpoint
			cfg.Pages = []config.PageConfig{{
				Path:      "/",
				Title:     "Home",
				Operation: "viewer",
				Query:     "query viewer { viewer { __typename id name } }",
			}}
			if err := cfg.Validate(); err != nil {
				return err
			}

			path := filepath.Join(dir, name)
			if err := cfg.SaveTo(path); err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "Wrote %s", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "File format: json or yaml")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "GraphQL endpoint")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config")

	return cmd
}

func absOrSelf(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}
