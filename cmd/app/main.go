package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/notegraph/internal"
	pkgconfig "github.com/starford/notegraph/pkg/config"
)

var version = "dev"

type runner func(ctx context.Context, opts ...internal.Option) error

// loadConfig reads the config file (if any) over the defaults and applies flag overrides.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if v := cmd.String("vault"); v != "" {
		cfg.Vault.Path = v
	}
	return cfg, nil
}

// action wires a runner into a CLI action. Commands that print results or
// speak a protocol on stdout log to stderr.
func action(run runner, logToStderr bool) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		opts := []internal.Option{
			internal.WithConfig(cfg),
			internal.WithVersion(version),
		}
		if logToStderr {
			opts = append(opts, internal.WithLogOutput(os.Stderr))
		}
		if err := run(ctx, opts...); err != nil {
			return fmt.Errorf("%s: %w", cmd.Name, err)
		}
		return nil
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "notegraph",
		Usage:   "Index a folder of Markdown notes into a link graph with analytics, served over HTTP and MCP",
		Version: version,
		Action:  action(internal.Run, false),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "vault",
				Usage:   "Vault directory (overrides vault.path)",
				Sources: cli.EnvVars("NOTEGRAPH_VAULT"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Sync, watch the vault and serve the HTTP API (default)",
				Action: action(internal.Run, false),
			},
			{
				Name:   "init",
				Usage:  "Rebuild the index from every document",
				Action: action(internal.Initialize, true),
			},
			{
				Name:   "sync",
				Usage:  "Apply document changes since the last run",
				Action: action(internal.Sync, true),
			},
			{
				Name:   "stats",
				Usage:  "Print note and link counts from the index",
				Action: action(internal.Stats, true),
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: action(internal.ServeMCP, true),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
