// Command datanomics drives an econometric analysis session from the
// terminal, with an optional read-only browser view of the same session.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"datanomics/internal/config"
	"datanomics/internal/container"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "datanomics",
		Short: "Guided econometric analysis: upload, clean, chart, test, model and report",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(); err != nil {
				log.Println("No .env file found, using system environment variables")
			}
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newShellCmd(),
		newServeCmd(),
		newExportCmd(),
		newStatusCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and opens the shared infrastructure
func bootstrap(ctx context.Context) (*container.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	c, err := container.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := c.InitCache(ctx); err != nil {
		return nil, fmt.Errorf("failed to open session cache: %w", err)
	}
	return c, nil
}
