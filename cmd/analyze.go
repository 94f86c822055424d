package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/isolysis/internal/ingest"
	"github.com/sells-group/isolysis/internal/spatial"
	"github.com/sells-group/isolysis/internal/store"
)

var (
	analyzeBandsPath string
	analyzePOIsPath  string
	analyzeOutPath   string
	analyzeSave      bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run spatial analysis over precomputed isochrone bands and POIs",
	Long:  "Loads isochrone bands (GeoJSON) and POIs (CSV, XLSX, JSON, GeoJSON, shapefile, or ZIP; local path or URL), computes band coverage, intersections, out-of-coverage POIs, and the network optimization index.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		bands, err := ingest.LoadBands(ctx, analyzeBandsPath)
		if err != nil {
			return err
		}
		pois, err := ingest.LoadPOIs(ctx, analyzePOIsPath)
		if err != nil {
			return err
		}

		zap.L().Info("inputs loaded",
			zap.Int("bands", len(bands)),
			zap.Int("pois", len(pois)),
		)

		opts := analysisOptions(cfg)
		result, err := spatial.Analyze(ctx, bands, pois, opts)
		if err != nil {
			return err
		}

		if analyzeSave {
			st, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			rec, err := st.SaveAnalysis(ctx, store.InputHash(bands, pois, opts), result)
			if err != nil {
				return err
			}
			zap.L().Info("analysis saved", zap.String("id", rec.ID))
		}

		return writeOutput(analyzeOutPath, result)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeBandsPath, "bands", "", "isochrone bands source (GeoJSON file or URL)")
	analyzeCmd.Flags().StringVar(&analyzePOIsPath, "pois", "", "POI source (file or URL)")
	analyzeCmd.Flags().StringVarP(&analyzeOutPath, "out", "o", "", "output file (default stdout)")
	analyzeCmd.Flags().BoolVar(&analyzeSave, "save", false, "persist the result to the configured store")
	_ = analyzeCmd.MarkFlagRequired("bands")
	_ = analyzeCmd.MarkFlagRequired("pois")
	rootCmd.AddCommand(analyzeCmd)
}
