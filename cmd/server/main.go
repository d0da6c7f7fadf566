// Command server runs the Productboard tool server over stdio or HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand()
	root.AddCommand(newToolsCommand())

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// bindFlags registers the flags shared by every command.
func bindFlags(cmd *cobra.Command, f *flags) {
	cmd.PersistentFlags().StringVarP(&f.configPath, "config", "c", "", "path to a YAML configuration file")
	cmd.PersistentFlags().StringVar(&f.transport, "transport", "", "transport to serve: stdio or http")
	cmd.PersistentFlags().StringVar(&f.httpAddr, "http-addr", "", "listen address for the http transport")
	cmd.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn or error")
}
