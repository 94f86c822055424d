package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/isolysis/internal/ingest"
	"github.com/sells-group/isolysis/internal/model"
	"github.com/sells-group/isolysis/internal/spatial"
	"github.com/sells-group/isolysis/internal/store"
	"github.com/sells-group/isolysis/pkg/isoline"
)

var (
	isoCentroidsPath string
	isoPOIsPath      string
	isoProvider      string
	isoInterval      float64
	isoOutPath       string
	isoSave          bool
)

// isochroneOutput is the document written by the isochrones command. GeoJSON
// is keyed by centroid ID; failed centroids appear under errors instead.
type isochroneOutput struct {
	Provider        string                     `json:"provider"`
	GeoJSON         map[string]json.RawMessage `json:"geojson"`
	Errors          map[string]string          `json:"errors,omitempty"`
	SpatialAnalysis *spatialAnalysisDoc        `json:"spatial_analysis,omitempty"`
}

type spatialAnalysisDoc struct {
	AnalysisID string                       `json:"analysis_id,omitempty"`
	Result     *model.SpatialAnalysisResult `json:"result"`
}

var isochronesCmd = &cobra.Command{
	Use:   "isochrones",
	Short: "Compute travel-time isochrones for a set of centroids",
	Long:  "Loads centroids (CSV or JSON; local path or URL), computes isochrone bands through the selected routing provider, and optionally runs spatial analysis against a POI dataset.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		provider, err := selectProvider(cfg, isoProvider)
		if err != nil {
			return err
		}

		centroids, err := ingest.LoadCentroids(ctx, isoCentroidsPath)
		if err != nil {
			return err
		}
		zap.L().Info("centroids loaded",
			zap.Int("count", len(centroids)),
			zap.String("provider", provider.Name()),
		)

		svcOpts := []isoline.ServiceOption{isoline.WithConcurrency(cfg.Providers.Concurrency)}
		if isoInterval > 0 {
			svcOpts = append(svcOpts, isoline.WithBandInterval(isoInterval))
		}
		results, err := isoline.NewService(provider, svcOpts...).Compute(ctx, centroids)
		if err != nil {
			return err
		}

		out := isochroneOutput{
			Provider: provider.Name(),
			GeoJSON:  make(map[string]json.RawMessage, len(results)),
		}
		for _, cr := range results {
			if cr.Err != nil {
				if out.Errors == nil {
					out.Errors = make(map[string]string)
				}
				out.Errors[cr.CentroidID] = cr.Err.Error()
				continue
			}
			raw, err := isoline.MarshalFeatureCollection(cr.Bands)
			if err != nil {
				return err
			}
			out.GeoJSON[cr.CentroidID] = raw
		}

		if isoPOIsPath != "" {
			pois, err := ingest.LoadPOIs(ctx, isoPOIsPath)
			if err != nil {
				return err
			}

			bands := isoline.Flatten(results)
			opts := analysisOptions(cfg)
			opts.MaxProductionByCentroid = spatial.ThresholdsFromCentroids(centroids, opts.MaxProductionByCentroid)
			result, err := spatial.Analyze(ctx, bands, pois, opts)
			if err != nil {
				return err
			}
			out.SpatialAnalysis = &spatialAnalysisDoc{Result: result}

			if isoSave {
				st, err := openStore(ctx, cfg)
				if err != nil {
					return err
				}
				defer st.Close() //nolint:errcheck

				rec, err := st.SaveAnalysis(ctx, store.InputHash(bands, pois, opts), result)
				if err != nil {
					return err
				}
				out.SpatialAnalysis.AnalysisID = rec.ID
			}
		}

		return writeOutput(isoOutPath, out)
	},
}

func init() {
	isochronesCmd.Flags().StringVar(&isoCentroidsPath, "centroids", "", "centroid source (CSV or JSON file, or URL)")
	isochronesCmd.Flags().StringVar(&isoPOIsPath, "pois", "", "optional POI source for spatial analysis")
	isochronesCmd.Flags().StringVar(&isoProvider, "provider", "", "routing provider (default from config)")
	isochronesCmd.Flags().Float64Var(&isoInterval, "interval", 0, "band interval in hours (default 0.5)")
	isochronesCmd.Flags().StringVarP(&isoOutPath, "out", "o", "", "output file (default stdout)")
	isochronesCmd.Flags().BoolVar(&isoSave, "save", false, "persist the spatial analysis to the configured store")
	_ = isochronesCmd.MarkFlagRequired("centroids")
	rootCmd.AddCommand(isochronesCmd)
}
