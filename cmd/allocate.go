package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/AvallenSolutions/alkatera-sub012/internal/allocator"
)

var (
	allocateFacility string
	allocateYear     int
	allocateVolume   float64
)

var allocateCmd = &cobra.Command{
	Use:   "allocate",
	Short: "Allocate facility period impacts to a product by volumetric share",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		impacts, err := st.GetFacilityImpacts(cmd.Context(), allocateFacility, allocateYear)
		if err != nil {
			return err
		}
		if impacts == nil {
			return eris.Errorf("no impacts recorded for facility %s in %d", allocateFacility, allocateYear)
		}

		allocated, err := allocator.New().Allocate(*impacts, allocateVolume)
		if err != nil {
			return err
		}
		return printJSON(allocated)
	},
}

func init() {
	allocateCmd.Flags().StringVar(&allocateFacility, "facility", "", "facility ID")
	allocateCmd.Flags().IntVar(&allocateYear, "year", 0, "reporting year")
	allocateCmd.Flags().Float64Var(&allocateVolume, "product-volume", 0, "product volume in litres")
	allocateCmd.MarkFlagRequired("facility")
	allocateCmd.MarkFlagRequired("year")
	allocateCmd.MarkFlagRequired("product-volume")
	rootCmd.AddCommand(allocateCmd)
}
