package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	askSources   documentSources
	askQuestions []string
	askStrategy  string
	askTopK      int
	askJSON      bool
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer questions about documents",
	Long: `Loads the given documents, indexes their clauses and answers every
question in order. One answer is printed per question.`,
	Args: cobra.NoArgs,
	RunE: runAsk,
}

func init() {
	askSources.register(askCmd)
	askCmd.Flags().StringArrayVarP(&askQuestions, "question", "q", nil, "question to answer (repeatable)")
	askCmd.Flags().StringVar(&askStrategy, "strategy", "", "retrieval strategy: sparse or dense (default from config)")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "clauses retrieved per question (default from strategy)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output answers as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, _ []string) error {
	if len(askQuestions) == 0 {
		return errors.New("at least one --question is required")
	}
	if askSources.empty() {
		return errors.New("at least one --file or --url is required")
	}

	qa, err := buildQA()
	if err != nil {
		return err
	}

	fullText, err := askSources.load(cmd, qa)
	if err != nil {
		return err
	}

	result, err := qa.ProcessWith(cmd.Context(), askStrategy, fullText, askQuestions, askTopK)
	if err != nil {
		return err
	}

	if askJSON {
		data, err := json.MarshalIndent(map[string][]string{"answers": result.Answers}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answers: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	for i, answer := range result.Answers {
		fmt.Fprintf(cmd.OutOrStdout(), "Q%d: %s\n", i+1, askQuestions[i])
		fmt.Fprintf(cmd.OutOrStdout(), "A%d: %s\n\n", i+1, answer)
	}
	return nil
}
