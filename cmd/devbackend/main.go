// Command devbackend serves an in-process stand-in for the analysis backend
// and writes sample macroeconomic panels for local development.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"datanomics/adapters/excel"
	"datanomics/internal/testkit"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "devbackend",
		Short: "Local analysis backend and sample data for development",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(); err != nil {
				log.Println("No .env file found, using system environment variables")
			}
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newFixtureCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the stand-in backend",
		Long: `Serve the stand-in backend. Point BACKEND_URL at it:

  devbackend serve --addr :5000
  BACKEND_URL=http://localhost:5000 datanomics shell`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", envOr("DEV_BACKEND_ADDR", ":5000"), "Listen address")

	return cmd
}

func runServe(ctx context.Context, addr string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           testkit.NewFakeBackend().Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("dev backend listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func newFixtureCmd() *cobra.Command {
	var out string
	var years int
	var seed int64
	var missing float64
	var duplicates int

	cmd := &cobra.Command{
		Use:   "fixture",
		Short: "Write a sample country-year panel as CSV or Excel",
		Long: `Write a sample country-year panel. The format follows the file extension.

Example: devbackend fixture --out macro.xlsx --years 30 --missing 0.05`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := testkit.DefaultMacroConfig()
			cfg.Years = years
			cfg.Seed = seed
			cfg.MissingRate = missing
			cfg.DuplicateRows = duplicates
			return writeFixture(out, testkit.NewMacroDataGenerator(cfg))
		},
	}

	def := testkit.DefaultMacroConfig()
	cmd.Flags().StringVar(&out, "out", "macro.csv", "Output file (.csv or .xlsx)")
	cmd.Flags().IntVar(&years, "years", def.Years, "Years per country")
	cmd.Flags().Int64Var(&seed, "seed", def.Seed, "Random seed")
	cmd.Flags().Float64Var(&missing, "missing", def.MissingRate, "Share of blank cells")
	cmd.Flags().IntVar(&duplicates, "duplicates", def.DuplicateRows, "Duplicate rows appended at the end")

	return cmd
}

func writeFixture(path string, gen *testkit.MacroDataGenerator) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		data, err := gen.CSV()
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0o644)
	case ".xlsx":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := excel.Write(f, gen.Records()); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	return fmt.Errorf("unsupported fixture extension %q, use .csv or .xlsx", filepath.Ext(path))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
