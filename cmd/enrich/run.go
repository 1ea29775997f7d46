package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/octobees/enrichment-pipeline/internal/service/enrichment"
)

var (
	recipePath string
	runInput   string
	runOutput  string
	runRegion  string
)

// runCmd applies a recipe to every row of a contact CSV.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Apply a recipe to a contact list",
	Example: `  enrich run --recipe cold-intro.yaml --input contacts.csv --output enriched.csv
  ENRICH_BACKEND=gemini GEMINI_API_KEY=... enrich run --recipe r.yaml --input in.csv --output out.csv`,
	RunE: runRecipe,
}

func init() {
	runCmd.Flags().StringVar(&recipePath, "recipe", "", "recipe YAML file")
	runCmd.Flags().StringVar(&runInput, "input", "", "contact CSV to enrich")
	runCmd.Flags().StringVar(&runOutput, "output", "", "destination CSV (default stdout)")
	runCmd.Flags().StringVar(&runRegion, "region", "US", "default region for phone numbers")
	_ = runCmd.MarkFlagRequired("recipe")
	_ = runCmd.MarkFlagRequired("input")
}

func runRecipe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	recipe, err := loadRecipe(recipePath)
	if err != nil {
		return err
	}
	contacts, err := readContacts(ctx, runInput, false, runRegion)
	if err != nil {
		return err
	}

	dispatcher, err := newDispatcher(ctx)
	if err != nil {
		return err
	}

	report, err := dispatcher.Run(ctx, recipe.Steps, contacts, logProgress)
	if err != nil {
		return fmt.Errorf("run recipe %s: %w", recipe.Slug, err)
	}
	applyReport(contacts, report)

	logger.Info("recipe finished",
		zap.String("run_id", report.RunID),
		zap.String("recipe", recipe.Name),
		zap.Int("rows", len(contacts)),
		zap.Int("done", report.Done),
		zap.Int("failed", report.Failed),
	)
	return writeContacts(cmd.OutOrStdout(), runOutput, contacts, recipe.EmailTemplate)
}

func logProgress(p enrichment.Progress) {
	logger.Debug("progress", zap.Int("processed", p.Processed), zap.Int("total", p.Total))
}
