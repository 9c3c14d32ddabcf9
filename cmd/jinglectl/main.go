// Command jinglectl is the operator CLI: it runs the postcard pipeline
// locally, inspects the scene catalog and edits mailboxes in Redis.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"jingle-gift/internal/config"
	"jingle-gift/internal/logging"
)

func main() {
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globals struct {
	logLevel string
}

func rootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:           "jinglectl",
		Short:         "Jingle Gift operator tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		generateCmd(g),
		scenesCmd(g),
		classifyCmd(),
		mailboxCmd(g),
	)
	return cmd
}

// load reads the environment the same way the services do. Logs go to
// stderr so command output stays pipeable.
func (g *globals) load(stderr io.Writer) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logging.New(g.logLevel, stderr), nil
}
