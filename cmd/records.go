package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AvallenSolutions/alkatera-sub012/internal/model"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Record the upstream data the aggregator and allocator read",
}

var (
	facilityID     string
	facilityYear   int
	facilityCO2e   float64
	facilityWater  float64
	facilityWaste  float64
	facilityVolume float64
)

var recordFacilityCmd = &cobra.Command{
	Use:   "facility",
	Short: "Record a facility's finalized period impacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		impacts, err := st.InsertFacilityImpacts(cmd.Context(), model.FacilityPeriodImpacts{
			FacilityID:  facilityID,
			Year:        facilityYear,
			CO2eKg:      facilityCO2e,
			WaterLitres: facilityWater,
			WasteKg:     facilityWaste,
			TotalVolume: model.BulkVolume(facilityVolume),
			FinalizedAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		return printJSON(impacts)
	},
}

var (
	productionOrg     string
	productionProduct string
	productionYear    int
	productionUnits   int64
	productionVolume  float64
)

var recordProductionCmd = &cobra.Command{
	Use:   "production",
	Short: "Record a production-log entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		err = st.InsertProductionEntry(cmd.Context(), model.ProductionEntry{
			OrganisationID: productionOrg,
			ProductID:      productionProduct,
			Year:           productionYear,
			UnitsProduced:  model.UnitCount(productionUnits),
			Volume:         model.BulkVolume(productionVolume),
		})
		if err != nil {
			return err
		}
		zap.L().Info("production entry recorded",
			zap.String("product_id", productionProduct),
			zap.Int64("units", productionUnits),
		)
		return nil
	},
}

var (
	overheadOrg      string
	overheadYear     int
	overheadCategory string
	overheadMaterial string
	overheadCO2e     float64
)

var recordOverheadCmd = &cobra.Command{
	Use:   "overhead",
	Short: "Record a corporate overhead activity",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		err = st.InsertOverheadEntry(cmd.Context(), model.OverheadEntry{
			OrganisationID: overheadOrg,
			Year:           overheadYear,
			Category:       overheadCategory,
			MaterialType:   overheadMaterial,
			CO2eKg:         overheadCO2e,
		})
		if err != nil {
			return err
		}
		zap.L().Info("overhead entry recorded",
			zap.String("category", overheadCategory),
			zap.Float64("co2e_kg", overheadCO2e),
		)
		return nil
	},
}

var (
	assessmentProduct string
	assessmentScope3  float64
	assessmentScope12 float64
	assessmentDraft   bool
)

var recordAssessmentCmd = &cobra.Command{
	Use:   "assessment",
	Short: "Record a product assessment",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		status := model.AssessmentCompleted
		completedAt := time.Now().UTC()
		if assessmentDraft {
			status = model.AssessmentDraft
		}

		err = st.InsertAssessment(cmd.Context(), model.ProductAssessment{
			ProductID:        assessmentProduct,
			Status:           status,
			Scope3PerUnitKg:  assessmentScope3,
			Scope12PerUnitKg: assessmentScope12,
			CompletedAt:      completedAt,
		})
		if err != nil {
			return err
		}
		zap.L().Info("assessment recorded",
			zap.String("product_id", assessmentProduct),
			zap.String("status", string(status)),
		)
		return nil
	},
}

func init() {
	recordFacilityCmd.Flags().StringVar(&facilityID, "facility", "", "facility ID")
	recordFacilityCmd.Flags().IntVar(&facilityYear, "year", 0, "reporting year")
	recordFacilityCmd.Flags().Float64Var(&facilityCO2e, "co2e-kg", 0, "total CO2e in kg")
	recordFacilityCmd.Flags().Float64Var(&facilityWater, "water-litres", 0, "total water use in litres")
	recordFacilityCmd.Flags().Float64Var(&facilityWaste, "waste-kg", 0, "total waste in kg")
	recordFacilityCmd.Flags().Float64Var(&facilityVolume, "total-volume", 0, "total production volume in litres")
	recordFacilityCmd.MarkFlagRequired("facility")
	recordFacilityCmd.MarkFlagRequired("year")
	recordFacilityCmd.MarkFlagRequired("total-volume")

	recordProductionCmd.Flags().StringVar(&productionOrg, "org", "", "organisation ID")
	recordProductionCmd.Flags().StringVar(&productionProduct, "product", "", "product ID")
	recordProductionCmd.Flags().IntVar(&productionYear, "year", 0, "reporting year")
	recordProductionCmd.Flags().Int64Var(&productionUnits, "units", 0, "units produced (discrete count)")
	recordProductionCmd.Flags().Float64Var(&productionVolume, "volume", 0, "bulk volume in litres")
	recordProductionCmd.MarkFlagRequired("org")
	recordProductionCmd.MarkFlagRequired("product")
	recordProductionCmd.MarkFlagRequired("year")

	recordOverheadCmd.Flags().StringVar(&overheadOrg, "org", "", "organisation ID")
	recordOverheadCmd.Flags().IntVar(&overheadYear, "year", 0, "reporting year")
	recordOverheadCmd.Flags().StringVar(&overheadCategory, "category", "", "activity category label")
	recordOverheadCmd.Flags().StringVar(&overheadMaterial, "material-type", "", "material type for physical purchased goods")
	recordOverheadCmd.Flags().Float64Var(&overheadCO2e, "co2e-kg", 0, "computed CO2e in kg")
	recordOverheadCmd.MarkFlagRequired("org")
	recordOverheadCmd.MarkFlagRequired("year")
	recordOverheadCmd.MarkFlagRequired("category")

	recordAssessmentCmd.Flags().StringVar(&assessmentProduct, "product", "", "product ID")
	recordAssessmentCmd.Flags().Float64Var(&assessmentScope3, "scope3-per-unit", 0, "Scope 3 kg CO2e per finished unit")
	recordAssessmentCmd.Flags().Float64Var(&assessmentScope12, "scope12-per-unit", 0, "own-facility Scope 1/2 kg CO2e per unit")
	recordAssessmentCmd.Flags().BoolVar(&assessmentDraft, "draft", false, "record as draft (excluded from aggregation)")
	recordAssessmentCmd.MarkFlagRequired("product")

	recordsCmd.AddCommand(recordFacilityCmd, recordProductionCmd, recordOverheadCmd, recordAssessmentCmd)
	rootCmd.AddCommand(recordsCmd)
}
