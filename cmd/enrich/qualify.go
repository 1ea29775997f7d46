package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/octobees/enrichment-pipeline/internal/service"
	"github.com/octobees/enrichment-pipeline/internal/service/prefilter"
)

var (
	criteriaPath  string
	qualifyInput  string
	qualifyOutput string
	qualifyRegion string
)

// qualifyCmd pre-filters a connections export and asks the model for a verdict on
// the survivors. Rows removed by the pre-filter are exported unchanged.
var qualifyCmd = &cobra.Command{
	Use:     "qualify",
	Short:   "Qualify a LinkedIn connections export",
	Example: `  enrich qualify --criteria criteria.yaml --input Connections.csv --output qualified.csv`,
	RunE:    runQualify,
}

func init() {
	qualifyCmd.Flags().StringVar(&criteriaPath, "criteria", "", "qualification criteria YAML file")
	qualifyCmd.Flags().StringVar(&qualifyInput, "input", "", "LinkedIn Connections.csv export")
	qualifyCmd.Flags().StringVar(&qualifyOutput, "output", "", "destination CSV (default stdout)")
	qualifyCmd.Flags().StringVar(&qualifyRegion, "region", "US", "default region for phone numbers")
	_ = qualifyCmd.MarkFlagRequired("criteria")
	_ = qualifyCmd.MarkFlagRequired("input")
}

func runQualify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	criteria, err := loadCriteria(criteriaPath)
	if err != nil {
		return err
	}
	contacts, err := readContacts(ctx, qualifyInput, true, qualifyRegion)
	if err != nil {
		return err
	}

	retained, summary := prefilter.ApplyWithSummary(contacts, criteria)
	logger.Info("connections pre-filtered",
		zap.Int("input", summary.Input),
		zap.Int("retained", summary.Retained),
		zap.Int("excluded_title", summary.ExcludedTitle),
		zap.Int("excluded_company", summary.ExcludedCompany),
		zap.Int("excluded_date", summary.ExcludedDate),
	)

	if len(retained) > 0 {
		dispatcher, err := newDispatcher(ctx)
		if err != nil {
			return err
		}
		report, err := dispatcher.Run(ctx, service.QualificationSteps(criteria), retained, logProgress)
		if err != nil {
			return fmt.Errorf("qualify connections: %w", err)
		}
		applyReport(contacts, report)
		logger.Info("qualification finished",
			zap.String("run_id", report.RunID),
			zap.Int("done", report.Done),
			zap.Int("failed", report.Failed),
		)
	}

	return writeContacts(cmd.OutOrStdout(), qualifyOutput, contacts, nil)
}
