package main

import (
	"github.com/spf13/cobra"

	"github.com/AvallenSolutions/alkatera-sub012/internal/aggregator"
)

var (
	aggregateOrg  string
	aggregateYear int
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Build an organisation's annual Scope 3 inventory",
	Long:  "Combines per-unit product assessments scaled by production counts with classified corporate overhead activities into the eight-bucket Scope 3 breakdown.",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		report, err := aggregator.New(st).Aggregate(cmd.Context(), aggregateOrg, aggregateYear)
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}

func init() {
	aggregateCmd.Flags().StringVar(&aggregateOrg, "org", "", "organisation ID")
	aggregateCmd.Flags().IntVar(&aggregateYear, "year", 0, "reporting year")
	aggregateCmd.MarkFlagRequired("org")
	aggregateCmd.MarkFlagRequired("year")
	rootCmd.AddCommand(aggregateCmd)
}
