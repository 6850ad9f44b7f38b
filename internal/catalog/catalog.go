// Package catalog loads product lists for bulk analysis from CSV files.
package catalog

import (
	"encoding/csv"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pricing-cli/internal/model"
)

// ParseCSV reads a product CSV into analysis requests, one per data row in
// file order. The only required column is product_ref; cost_price,
// target_margin_percent, weight_kg, and max_offers are optional and fall back
// to configured defaults when absent. Rows with an empty product_ref are
// skipped. Duplicate refs are kept: the same listing may be analyzed at
// different cost points.
func ParseCSV(csvPath string) ([]model.AnalysisRequest, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: open csv")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "catalog: read csv")
	}

	if len(records) < 2 {
		return nil, eris.New("catalog: csv has no data rows")
	}

	header := records[0]
	colIdx := make(map[string]int, len(header))
	for i, col := range header {
		colIdx[strings.ToLower(strings.TrimSpace(col))] = i
	}

	if _, ok := colIdx["product_ref"]; !ok {
		return nil, eris.Errorf("catalog: missing required column %q", "product_ref")
	}

	var reqs []model.AnalysisRequest
	for rowNum, row := range records[1:] {
		ref := getCol(row, colIdx, "product_ref")
		if ref == "" {
			continue
		}

		req := model.AnalysisRequest{ProductRef: ref}

		req.CostPrice, err = parseFloatCol(row, colIdx, "cost_price", rowNum+2)
		if err != nil {
			return nil, err
		}
		req.TargetMarginPercent, err = parseFloatCol(row, colIdx, "target_margin_percent", rowNum+2)
		if err != nil {
			return nil, err
		}
		req.WeightKg, err = parseFloatCol(row, colIdx, "weight_kg", rowNum+2)
		if err != nil {
			return nil, err
		}

		if raw := getCol(row, colIdx, "max_offers"); raw != "" {
			n, convErr := strconv.Atoi(raw)
			if convErr != nil {
				return nil, eris.Errorf("catalog: row %d: invalid max_offers %q", rowNum+2, raw)
			}
			req.MaxOffers = n
		}

		reqs = append(reqs, req)
	}

	if len(reqs) == 0 {
		return nil, eris.New("catalog: no rows with a product_ref")
	}

	return reqs, nil
}

// getCol returns the trimmed value of a column, or "" if the column is
// missing or the row is short.
func getCol(row []string, colIdx map[string]int, name string) string {
	idx, ok := colIdx[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseFloatCol(row []string, colIdx map[string]int, name string, rowNum int) (float64, error) {
	raw := getCol(row, colIdx, name)
	if raw == "" {
		return 0, nil
	}
	// Tolerate currency symbols and thousands separators from spreadsheet
	// exports, e.g. "$1,299.50".
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(raw)
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, eris.Errorf("catalog: row %d: invalid %s %q", rowNum, name, raw)
	}
	return v, nil
}
