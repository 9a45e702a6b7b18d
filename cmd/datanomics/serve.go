package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"datanomics/ui"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	var addr string
	var headless bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the interactive session with a browser view of it",
		Long: `Run the interactive session and serve a read-only view of the same
session over HTTP. With --headless no shell is started and the server runs
until interrupted, showing whatever the durable cache restored.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cmd, addr, headless)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to UI_ADDR)")
	cmd.Flags().BoolVar(&headless, "headless", false, "Serve without an interactive shell")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, addr string, headless bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer c.Shutdown(context.Background())

	if addr == "" {
		addr = c.Config.UI.Addr
	}

	session := c.NewSession()
	defer session.Close()
	session.Start(ctx)

	web, err := ui.NewApp(ui.Config{Addr: addr}, session, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to create UI: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return web.Serve(gctx)
	})
	fmt.Fprintf(cmd.OutOrStdout(), "Serving session view on http://%s\n", addr)

	if !headless {
		shellCtx, cancel := context.WithCancel(gctx)
		g.Go(func() error {
			// leaving the shell stops the server too
			defer stop()
			defer cancel()
			return repl(shellCtx, session, c.Config.Data.ExportDir, cmd.OutOrStdout(), cmd.ErrOrStderr())
		})
	}

	return g.Wait()
}
