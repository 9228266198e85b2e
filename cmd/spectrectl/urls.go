package main

import (
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jonesrussell/north-cloud/spectre/internal/domain"
	"github.com/spf13/cobra"
)

func urlsCommand() *cobra.Command {
	var siteID string

	cmd := &cobra.Command{
		Use:   "urls",
		Short: "List the pages with heatmap data",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if siteID == "" {
				return errMissingSiteFlag
			}

			urls, err := NewCollectorClient(endpoint).URLs(cmd.Context(), siteID)
			if err != nil {
				return err
			}

			renderURLTable(os.Stdout, urls)
			return nil
		},
	}

	cmd.Flags().StringVar(&siteID, "site", "", "site id")

	return cmd
}

func renderURLTable(w io.Writer, urls []domain.HeatmapURL) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"URL", "Title", "Interactions"})
	for _, u := range urls {
		t.AppendRow(table.Row{u.URL, u.Title, u.Count})
	}
	t.AppendFooter(table.Row{"", "Pages", len(urls)})
	t.Render()
}
