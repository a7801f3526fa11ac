package main

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AvallenSolutions/alkatera-sub012/internal/model"
	"github.com/AvallenSolutions/alkatera-sub012/internal/resolver"
)

var (
	resolveCategory string
	resolveOrg      string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <name>...",
	Short: "Resolve emission factors through the source cascade",
	Long:  "Tries the curated table, then the lookup cache, then the external database for each named material. Prints resolved factors as JSON; names no source can answer are listed in the summary.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		var category model.FactorCategory
		if resolveCategory != "" {
			category, err = model.ParseFactorCategory(resolveCategory)
			if err != nil {
				return err
			}
		}

		r := initResolver(st)

		if len(args) == 1 {
			resolved, err := r.Resolve(cmd.Context(), model.FactorQuery{
				Name:           args[0],
				Category:       category,
				OrganisationID: resolveOrg,
			})
			if err != nil {
				if errors.Is(err, resolver.ErrNotFound) {
					zap.L().Info("no factor found", zap.String("name", args[0]))
					return nil
				}
				return err
			}
			return printJSON(resolved)
		}

		queries := make([]model.FactorQuery, len(args))
		for i, name := range args {
			queries[i] = model.FactorQuery{Name: name, Category: category, OrganisationID: resolveOrg}
		}

		results, summary, err := r.ResolveAll(cmd.Context(), queries)
		if err != nil {
			return err
		}

		out := struct {
			Results []*model.ResolvedFactor `json:"results"`
			Summary resolver.BatchSummary   `json:"summary"`
		}{Results: results, Summary: summary}
		return printJSON(out)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	resolveCmd.Flags().StringVar(&resolveCategory, "category", "", "factor category (ingredient, packaging, energy, transport, waste)")
	resolveCmd.Flags().StringVar(&resolveOrg, "org", "", "organisation ID for org-scoped factors")
	rootCmd.AddCommand(resolveCmd)
}
