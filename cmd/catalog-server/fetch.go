package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Sternrassler/creature-catalog/pkg/client"
	"github.com/Sternrassler/creature-catalog/pkg/enrichment"
	"github.com/spf13/cobra"
)

func newFetchCmd(root *rootOptions) *cobra.Command {
	var table bool

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Run one refresh and print the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, root)
			if err != nil {
				return err
			}

			catalogClient, err := client.New(cfg.ClientConfig())
			if err != nil {
				return fmt.Errorf("create catalog client: %w", err)
			}

			pipeline := enrichment.New(catalogClient, cfg.EnrichmentConfig())
			if err := pipeline.Refresh(cmd.Context(), cfg.Pipeline.Offset, cfg.Pipeline.Limit); err != nil {
				return err
			}

			if table {
				return writeTable(cmd.OutOrStdout(), pipeline.Current())
			}
			return writeJSON(cmd.OutOrStdout(), pipeline.Current())
		},
	}

	cmd.Flags().BoolVar(&table, "table", false, "print a table instead of JSON")
	return cmd
}

func writeJSON(w io.Writer, rs enrichment.ResultSet) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rs)
}

func writeTable(w io.Writer, rs enrichment.ResultSet) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NUMBER\tNAME\tCATEGORY\tIMAGE")
	for _, e := range rs.Entities {
		image := "-"
		if e.ImageURL != nil {
			image = *e.ImageURL
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Number(), e.Title(), e.PrimaryCategory, image)
	}
	return tw.Flush()
}
