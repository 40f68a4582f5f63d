package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/A78Z/pmn-marches-publics/internal/app"
	"github.com/A78Z/pmn-marches-publics/internal/infrastructure/browser"
	"github.com/A78Z/pmn-marches-publics/internal/infrastructure/parser"
)

var (
	inspectFile string
	inspectURL  string
)

// inspectCmd runs the listing parser over a saved page.
var inspectCmd = &cobra.Command{
	Use:   "inspect --file page.html",
	Short: "Parse a saved listing page and print the extracted tenders",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(inspectFile)
		if err != nil {
			return eris.Wrapf(err, "read %s", inspectFile)
		}
		pageURL := inspectURL
		if pageURL == "" {
			pageURL = cfg.Scraping.SourceURL
		}
		page, err := browser.NewDocumentPage(pageURL, string(raw))
		if err != nil {
			return err
		}
		defer page.Close()

		site, err := app.NewParser(cfg, logger)
		if err != nil {
			return err
		}
		parsed := site.ParseListPage(cmd.Context(), page)

		out := cmd.OutOrStdout()
		t := newTable(out)
		t.AppendHeader(table.Row{"Reference", "Title", "Institution", "Region", "Deadline"})
		for _, tender := range parsed.Tenders {
			deadline := ""
			if !tender.DeadlineDate.IsZero() {
				deadline = tender.DeadlineDate.Format("2006-01-02")
			}
			t.AppendRow(table.Row{tender.Reference, shorten(tender.Title, 60), tender.Institution, tender.Region, deadline})
		}
		t.Render()
		fmt.Fprintf(out, "items=%d tenders=%d skipped=%d next=%t\n",
			parsed.Items, len(parsed.Tenders), parsed.Skipped, site.HasNextPage(cmd.Context(), page))

		if len(parsed.Tenders) == 0 {
			diag := parsed.Diagnostic
			if diag == nil {
				d := parser.Diagnose(string(raw))
				diag = &d
			}
			fmt.Fprintf(out, "present: %s\nabsent: %s\n", strings.Join(diag.Present, ", "), strings.Join(diag.Absent, ", "))
		}
		return nil
	},
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectFile, "file", "f", "", "saved HTML listing page")
	inspectCmd.Flags().StringVar(&inspectURL, "url", "", "URL the page was saved from (resolves relative links)")
	_ = inspectCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(inspectCmd)
}
