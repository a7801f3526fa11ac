package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AvallenSolutions/alkatera-sub012/internal/importer"
	"github.com/AvallenSolutions/alkatera-sub012/internal/model"
)

var factorsCmd = &cobra.Command{
	Use:   "factors",
	Short: "Manage the curated emission factor table",
}

var (
	importSheet string
	importOrg   string
)

var factorsImportCmd = &cobra.Command{
	Use:   "import <workbook.xlsx>",
	Short: "Import curated factors from an XLSX workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		factors, bad, err := importer.ReadFactors(args[0], importer.Options{SheetName: importSheet})
		if err != nil {
			return err
		}
		for _, b := range bad {
			zap.L().Warn("row rejected", zap.Int("row", b.Row), zap.String("reason", b.Reason))
		}

		if importOrg != "" {
			for i := range factors {
				factors[i].OrganisationID = importOrg
			}
		}

		n, err := st.BulkInsertFactors(cmd.Context(), factors)
		if err != nil {
			return err
		}

		zap.L().Info("import complete",
			zap.String("workbook", args[0]),
			zap.Int("inserted", n),
			zap.Int("rejected", len(bad)),
		)
		return nil
	},
}

var (
	searchCategory string
	searchOrg      string
)

var factorsSearchCmd = &cobra.Command{
	Use:   "search <name>",
	Short: "Search the curated factor table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		var category model.FactorCategory
		if searchCategory != "" {
			category, err = model.ParseFactorCategory(searchCategory)
			if err != nil {
				return err
			}
		}

		factors, err := st.SearchFactors(cmd.Context(), args[0], category, searchOrg)
		if err != nil {
			return err
		}
		return printJSON(factors)
	},
}

func init() {
	factorsImportCmd.Flags().StringVar(&importSheet, "sheet", "", "sheet name (default: first sheet)")
	factorsImportCmd.Flags().StringVar(&importOrg, "org", "", "scope all imported factors to this organisation")
	factorsSearchCmd.Flags().StringVar(&searchCategory, "category", "", "factor category filter")
	factorsSearchCmd.Flags().StringVar(&searchOrg, "org", "", "organisation ID")
	factorsCmd.AddCommand(factorsImportCmd, factorsSearchCmd)
	rootCmd.AddCommand(factorsCmd)
}
