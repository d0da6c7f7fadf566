package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/miguelarios/productboard-mcp-server-sub002/internal/builder"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/domain"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/config"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/logging"
)

var cliFlags flags

// flags override the loaded configuration when set.
type flags struct {
	configPath string
	transport  string
	httpAddr   string
	logLevel   string
}

func (f flags) load() (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.transport != "" {
		cfg.Server.Transport = f.transport
	}
	if f.httpAddr != "" {
		cfg.Server.HTTPAddr = f.httpAddr
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "productboard-mcp-server",
		Short:         "Serve Productboard tools to JSON-RPC clients",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cliFlags.load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	bindFlags(cmd, &cliFlags)
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	srv, err := builder.NewServerBuilder().WithConfig(cfg).Build()
	if err != nil {
		return err
	}
	defer srv.Close()
	logging.SetDefault(srv.Logger)

	if ok, err := srv.Auth.ValidateCredentials(ctx); !ok {
		srv.Logger.Warn("upstream credentials are missing or incomplete; tool calls will fail", logging.Fields{
			"error": err,
		})
	}

	tr, err := srv.Transport()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		defer cancel()
		return srv.Serve(ctx, tr)
	})
	eg.Go(func() error {
		<-ctx.Done()
		return tr.Close()
	})

	srv.Logger.Info("server started", logging.Fields{
		"transport": cfg.Server.Transport,
		"session":   srv.Service.SessionID(),
	})
	if err := eg.Wait(); err != nil {
		return errors.Wrap(err, "serving")
	}
	srv.Logger.Info("server stopped")
	return nil
}

func newToolsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Print the registered tools as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cliFlags.load()
			if err != nil {
				return err
			}
			srv, err := builder.NewServerBuilder().
				WithConfig(cfg).
				WithLogger(logging.NewNop()).
				Build()
			if err != nil {
				return err
			}
			defer srv.Close()

			out := make([]interface{}, 0, srv.Tools.Size())
			for _, t := range srv.Tools.List() {
				out = append(out, domain.DescribeTool(t))
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}
