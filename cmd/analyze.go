package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pricing-cli/internal/model"
)

var (
	analyzeProduct   string
	analyzeCost      float64
	analyzeMargin    float64
	analyzeTolerance float64
	analyzeMaxOffers int
	analyzeWeight    float64
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run pricing analysis for a single product",
	Long: `Analyzes one MercadoLibre listing end to end: extracts the pivot product,
plans search queries, collects and classifies comparable offers, and produces
a price recommendation with profitability.

The product may be given as an item ID (MLM123456789) or a listing permalink.

Examples:
  pricing-cli analyze --product MLM123456789 --cost 650
  pricing-cli analyze --product "https://articulo.mercadolibre.com.mx/MLM-123456789-taladro-_JM" --cost 650 --margin 35`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		req := model.AnalysisRequest{
			ProductRef:          analyzeProduct,
			CostPrice:           analyzeCost,
			TargetMarginPercent: analyzeMargin,
			PriceTolerance:      analyzeTolerance,
			MaxOffers:           analyzeMaxOffers,
			WeightKg:            analyzeWeight,
		}

		result, err := env.Pipeline.Run(ctx, req)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		logAnalysisResult(result)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeProduct, "product", "", "item ID or listing URL (required)")
	analyzeCmd.Flags().Float64Var(&analyzeCost, "cost", 0, "cost of goods per unit in MXN")
	analyzeCmd.Flags().Float64Var(&analyzeMargin, "margin", 0, "target margin percent (default from config)")
	analyzeCmd.Flags().Float64Var(&analyzeTolerance, "tolerance", 0, "price band tolerance around the pivot price (default from config)")
	analyzeCmd.Flags().IntVar(&analyzeMaxOffers, "max-offers", 0, "max offers to collect (default from config)")
	analyzeCmd.Flags().Float64Var(&analyzeWeight, "weight", 0, "package weight in kg for shipping cost")
	_ = analyzeCmd.MarkFlagRequired("product")
	rootCmd.AddCommand(analyzeCmd)
}

// logAnalysisResult logs a per-stage summary and the final recommendation.
func logAnalysisResult(result *model.AnalysisResult) {
	log := zap.L().With(zap.String("run_id", result.RunID))

	for _, stage := range result.Stages {
		log.Info("stage",
			zap.String("name", stage.Name),
			zap.String("status", string(stage.Status)),
			zap.Int64("duration_ms", stage.Duration),
		)
	}

	for _, d := range result.Diagnostics {
		log.Warn("diagnostic",
			zap.String("stage", d.Stage),
			zap.String("code", d.Code),
			zap.String("message", d.Message),
		)
	}

	if result.Recommendation != nil {
		rec := result.Recommendation
		log.Info("analysis complete",
			zap.Float64("recommended_price", rec.RecommendedPrice),
			zap.String("strategy", rec.Strategy),
			zap.Bool("low_confidence", rec.LowConfidence),
			zap.Int("comparables", len(result.Comparables.Offers)),
			zap.Int("total_tokens", result.Usage.TotalTokens()),
			zap.Float64("cost_usd", result.Usage.TotalCostUSD),
		)
		if rec.ProfitComputed {
			log.Info("profitability",
				zap.Float64("net_profit", rec.ProfitPerUnit),
				zap.Float64("roi_pct", rec.ROIPercent),
			)
		}
	}
}
