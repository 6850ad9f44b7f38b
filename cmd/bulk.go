package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pricing-cli/internal/catalog"
	"github.com/sells-group/pricing-cli/internal/pipeline"
)

var (
	bulkCSV         string
	bulkLimit       int
	bulkConcurrency int
	bulkDryRun      bool
	bulkOutput      string
)

var bulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Run pricing analysis for a product list CSV",
	Long: `Reads a product CSV and analyzes every row. One product's failure never
stops the others; the output always has one entry per input row, in order.

The CSV needs a product_ref column; cost_price, target_margin_percent,
weight_kg, and max_offers are optional.

Examples:
  # Dry run: parse the CSV only, no analysis
  pricing-cli bulk --csv products.csv --dry-run

  # Analyze the first 5 rows, 2 at a time
  pricing-cli bulk --csv products.csv --limit 5 --concurrency 2 --output results.json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		reqs, err := catalog.ParseCSV(bulkCSV)
		if err != nil {
			return eris.Wrap(err, "bulk: parse csv")
		}
		zap.L().Info("parsed csv", zap.Int("products", len(reqs)))

		if bulkLimit > 0 && bulkLimit < len(reqs) {
			reqs = reqs[:bulkLimit]
		}

		if bulkDryRun {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(reqs)
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return eris.Wrap(err, "bulk: init pipeline")
		}
		defer env.Close()

		concurrency := bulkConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Bulk.MaxConcurrentProducts
		}

		items := env.Pipeline.RunBulk(ctx, reqs, concurrency)

		var succeeded, failed int
		for _, item := range items {
			if item.Err != nil {
				failed++
				zap.L().Error("bulk: product failed",
					zap.String("product_ref", item.Request.ProductRef),
					zap.Error(item.Err),
				)
				continue
			}
			succeeded++
		}

		zap.L().Info("bulk: batch complete",
			zap.Int("total", len(items)),
			zap.Int("succeeded", succeeded),
			zap.Int("failed", failed),
		)

		return writeBulkResults(items)
	},
}

func init() {
	bulkCmd.Flags().StringVar(&bulkCSV, "csv", "", "path to product CSV file (required)")
	bulkCmd.Flags().IntVar(&bulkLimit, "limit", 0, "max products to analyze (0 = all)")
	bulkCmd.Flags().IntVar(&bulkConcurrency, "concurrency", 0, "max products to analyze concurrently (default from config)")
	bulkCmd.Flags().BoolVar(&bulkDryRun, "dry-run", false, "parse CSV and print requests, skip analysis")
	bulkCmd.Flags().StringVar(&bulkOutput, "output", "", "write results JSON to file (default: stdout)")
	_ = bulkCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(bulkCmd)
}

// bulkResultItem is the JSON shape of one bulk output entry. Errors are
// flattened to strings so the output stays serializable.
type bulkResultItem struct {
	ProductRef string `json:"product_ref"`
	Error      string `json:"error,omitempty"`
	Result     any    `json:"result,omitempty"`
}

// writeBulkResults writes results to the output file or stdout.
func writeBulkResults(items []pipeline.BulkItem) error {
	out := make([]bulkResultItem, 0, len(items))
	for _, item := range items {
		entry := bulkResultItem{ProductRef: item.Request.ProductRef}
		if item.Err != nil {
			entry.Error = item.Err.Error()
		}
		if item.Result != nil {
			entry.Result = item.Result
		}
		out = append(out, entry)
	}

	w := os.Stdout
	if bulkOutput != "" {
		f, err := os.Create(bulkOutput)
		if err != nil {
			return eris.Wrap(err, "bulk: create output file")
		}
		defer f.Close() //nolint:errcheck
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
