package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	var format string
	var dir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the cached dataset to a CSV or Excel file",
		Long: `Write the dataset of the last cached session to cleaned_data.csv or
cleaned_data.xlsx without contacting the backend.

Example: datanomics export --format xlsx --dir ./out`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), cmd, format, dir)
		},
	}

	cmd.Flags().StringVar(&format, "format", "csv", "Output format: csv or xlsx")
	cmd.Flags().StringVar(&dir, "dir", "", "Output directory (defaults to EXPORT_DIR)")

	return cmd
}

func runExport(ctx context.Context, cmd *cobra.Command, format, dir string) error {
	c, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer c.Shutdown(context.Background())

	if dir == "" {
		dir = c.Config.Data.ExportDir
	}

	session := c.NewSession()
	defer session.Close()
	session.Start(ctx)

	var path string
	switch format {
	case "csv":
		path, err = session.Prepare.ExportCSV(dir)
	case "xlsx":
		path, err = session.Prepare.ExportXLSX(dir)
	default:
		return fmt.Errorf("unknown export format %q, use csv or xlsx", format)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d rows)\n", path, len(session.Session().FullDataset))
	return nil
}
