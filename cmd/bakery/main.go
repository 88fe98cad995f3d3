// Command bakery runs the bakery production and inventory server and talks
// to a running one.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	envFile    string
	server     string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "bakery",
		Short:         "Bakery production and inventory engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "dotenv file (defaults to ./.env when present)")
	root.PersistentFlags().StringVar(&opts.server, "server", envOr("BAKERY_SERVER", "http://localhost:8080"), "bakery API base URL")

	root.AddCommand(
		newServeCmd(opts),
		newIngredientCmd(opts),
		newRecipeCmd(opts),
		newProductionCmd(opts),
		newReportCmd(opts),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
