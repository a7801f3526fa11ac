// Package importer loads curated emission factor workbooks into the store.
// Sustainability teams maintain factor tables as spreadsheets; the importer
// is the one place those enter the system.
package importer

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/AvallenSolutions/alkatera-sub012/internal/model"
	"github.com/AvallenSolutions/alkatera-sub012/internal/quality"
)

// Workbook column order. The first row is a header and is skipped.
//
//	name | category | value_kg_co2e | unit | source | data_quality | organisation_id
const expectedColumns = 7

// Options configures workbook parsing.
type Options struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// RowError records a row that could not be parsed. Bad rows are reported,
// not silently dropped, so a typo in a spreadsheet is visible at import time.
type RowError struct {
	Row    int
	Reason string
}

// ReadFactors parses a curated factor workbook. Returns the parsed factors
// plus per-row errors for rows that failed validation.
func ReadFactors(path string, opts Options) ([]model.ImpactFactor, []RowError, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "importer: open workbook")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, nil, err
	}

	var (
		factors []model.ImpactFactor
		bad     []RowError
	)
	for i, row := range sheet.Rows {
		if i == 0 {
			continue // header
		}

		cells := rowToStrings(row)
		if isBlank(cells) {
			continue
		}

		factor, err := parseRow(cells)
		if err != nil {
			bad = append(bad, RowError{Row: i + 1, Reason: err.Error()})
			continue
		}
		factors = append(factors, *factor)
	}

	if len(bad) > 0 {
		zap.L().Warn("importer: workbook rows rejected",
			zap.String("path", path),
			zap.Int("accepted", len(factors)),
			zap.Int("rejected", len(bad)),
		)
	}
	return factors, bad, nil
}

func parseRow(cells []string) (*model.ImpactFactor, error) {
	if len(cells) < expectedColumns {
		return nil, eris.Errorf("expected %d columns, got %d", expectedColumns, len(cells))
	}

	category, err := model.ParseFactorCategory(cells[1])
	if err != nil {
		return nil, err
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(cells[2]), 64)
	if err != nil {
		return nil, eris.Wrapf(err, "value %q", cells[2])
	}

	cls := quality.ClassifyTag(cells[5])

	factor := model.ImpactFactor{
		Name:           strings.TrimSpace(cells[0]),
		Category:       category,
		Value:          value,
		Unit:           strings.TrimSpace(cells[3]),
		Source:         strings.TrimSpace(cells[4]),
		OrganisationID: strings.TrimSpace(cells[6]),
		Verified:       cls.Tag == model.TagPrimaryVerified,
		Confidence:     cls.Confidence,
	}
	if err := factor.Validate(); err != nil {
		return nil, err
	}
	return &factor, nil
}

func getSheet(f *xlsx.File, opts Options) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("importer: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("importer: sheet index %d out of range (%d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		cells[i] = cell.String()
	}
	return cells
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
