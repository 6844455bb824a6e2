package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	searchSources  documentSources
	searchStrategy string
	searchTopK     int
	searchJSON     bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Show the clauses retrieved for a query",
	Long: `Indexes the given documents and prints the closest clauses for the
query with their distance. No language model is called.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchSources.register(searchCmd)
	searchCmd.Flags().StringVar(&searchStrategy, "strategy", "", "retrieval strategy: sparse or dense (default from config)")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 3, "maximum number of clauses")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

type searchResult struct {
	Position int     `json:"position"`
	Distance float32 `json:"distance"`
	Text     string  `json:"text"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	qa, err := buildQA()
	if err != nil {
		return err
	}

	fullText, err := searchSources.load(cmd, qa)
	if err != nil {
		return err
	}

	matches, err := qa.Search(cmd.Context(), searchStrategy, fullText, args[0], searchTopK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	results := make([]searchResult, len(matches))
	for i, m := range matches {
		results[i] = searchResult{Position: m.Clause.Position, Distance: m.Distance, Text: m.Clause.Text}
	}

	if searchJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No clauses found.")
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(cmd.OutOrStdout(), "  [%d] clause %d (%.4f)\n", i+1, r.Position, r.Distance)
		fmt.Fprintf(cmd.OutOrStdout(), "      %s\n\n", r.Text)
	}
	return nil
}
