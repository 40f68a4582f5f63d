package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/A78Z/pmn-marches-publics/internal/app"
)

var (
	classifyDescription string
	classifyCategory    string
)

var classifyCmd = &cobra.Command{
	Use:   "classify <title>",
	Short: "Show how a tender title would be routed to a module",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := app.NewEngine(cfg.Classification)
		if err != nil {
			return err
		}
		result := engine.Classify(strings.Join(args, " "), classifyDescription, classifyCategory)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "module: %s (confidence %.2f)\n", result.Module, result.Confidence)
		if len(result.MatchedRules) > 0 {
			fmt.Fprintf(out, "rules: %s\n", strings.Join(result.MatchedRules, ", "))
		}
		if len(result.Keywords) > 0 {
			fmt.Fprintf(out, "keywords: %s\n", strings.Join(result.Keywords, ", "))
		}

		t := newTable(out)
		t.AppendHeader(table.Row{"Module", "Score"})
		for _, s := range result.Scores {
			t.AppendRow(table.Row{s.Module, s.Score})
		}
		t.Render()
		return nil
	},
}

func init() {
	classifyCmd.Flags().StringVarP(&classifyDescription, "description", "d", "", "tender description")
	classifyCmd.Flags().StringVar(&classifyCategory, "category", "", "category label from the listing")
	rootCmd.AddCommand(classifyCmd)
}
