package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"datanomics/adapters/postgres"
	"datanomics/domain/core"
	"datanomics/internal/container"
	sessionstore "datanomics/internal/session"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration, the cached session and backend reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), cmd)
		},
	}
}

func runStatus(ctx context.Context, cmd *cobra.Command) error {
	c, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer c.Shutdown(context.Background())

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "Backend:\t%s\n", c.Config.Backend.URL)
	fmt.Fprintf(w, "Cache:\t%s\n", c.Config.Cache.Backend)

	cache := sessionstore.NewCache(c.CacheStore, core.NewSessionID(), c.Logger)
	sess, ok, err := cache.Load(ctx)
	switch {
	case err != nil:
		fmt.Fprintf(w, "Cached session:\tunreadable (%v)\n", err)
	case !ok:
		fmt.Fprintf(w, "Cached session:\tnone\n")
	default:
		fmt.Fprintf(w, "Cached session:\t%s\n", sess.Filename)
		fmt.Fprintf(w, "  Rows:\t%d\n", len(sess.FullDataset))
		fmt.Fprintf(w, "  Columns:\t%s\n", strings.Join(sess.Columns, ", "))
		if blobs, ok := c.CacheStore.(*sessionstore.LocalBlobStore); ok {
			if meta, err := blobs.Metadata(ctx, sessionstore.CacheKey); err == nil {
				fmt.Fprintf(w, "  Saved:\t%s (%d bytes)\n", meta.LastModified.Format(time.RFC3339), meta.Size)
			}
		}
	}
	if c.DB != nil {
		printDatabase(ctx, w, c)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	count, err := c.Backend.ReportCount(pingCtx)
	if err != nil {
		fmt.Fprintf(w, "Backend status:\tunreachable (%v)\n", err)
		return nil
	}
	fmt.Fprintf(w, "Backend status:\tok, %d reports generated\n", count)
	return nil
}

func printDatabase(ctx context.Context, w io.Writer, c *container.Container) {
	migrations, err := postgres.NewMigrator(c.DB, c.Logger).Status(ctx)
	if err != nil {
		fmt.Fprintf(w, "Migrations:\tunknown (%v)\n", err)
	} else {
		for _, m := range migrations {
			state := "pending"
			if m.Applied {
				state = "applied"
			}
			fmt.Fprintf(w, "Migration %s:\t%s (%s)\n", m.Version, m.Name, state)
		}
	}

	repo, ok := c.CacheStore.(*postgres.SessionCacheRepository)
	if !ok {
		return
	}
	entries, err := repo.List(ctx)
	if err != nil {
		fmt.Fprintf(w, "Cache entries:\tunknown (%v)\n", err)
		return
	}
	for _, e := range entries {
		fmt.Fprintf(w, "Cache entry %s:\t%d bytes, updated %s\n", e.Key, e.Size, e.UpdatedAt.Format(time.RFC3339))
	}
}
