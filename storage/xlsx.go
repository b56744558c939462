package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"myhome_scrooper/models"
)

const (
	SheetAll     = "All Listings"
	SheetSale    = "Sale Listings"
	SheetRent    = "Rent Listings"
	SheetSummary = "Summary"
)

// XLSXWriter produces the workbook: every listing, per-category sheets when
// the category has rows, and a summary sheet.
type XLSXWriter struct {
	path string
}

func NewXLSXWriter(path string) *XLSXWriter {
	return &XLSXWriter{path: path}
}

func (w *XLSXWriter) Path() string {
	return w.path
}

func (w *XLSXWriter) Write(records []models.ListingRecord, summary models.Summary) error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	// NewFile starts with "Sheet1"; rename it instead of leaving it empty.
	if err := f.SetSheetName(f.GetSheetName(0), SheetAll); err != nil {
		return fmt.Errorf("rename default sheet: %w", err)
	}
	if err := writeListingSheet(f, SheetAll, records); err != nil {
		return err
	}

	byCategory := map[models.Category][]models.ListingRecord{}
	for _, r := range records {
		byCategory[r.Category] = append(byCategory[r.Category], r)
	}
	for _, sheet := range []struct {
		name     string
		category models.Category
	}{
		{SheetSale, models.CategorySale},
		{SheetRent, models.CategoryRent},
	} {
		rows := byCategory[sheet.category]
		if len(rows) == 0 {
			continue
		}
		if _, err := f.NewSheet(sheet.name); err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet.name, err)
		}
		if err := writeListingSheet(f, sheet.name, rows); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(SheetSummary); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	summaryRows := [][]any{
		{"Metric", "Count"},
		{"Total Listings", summary.Total},
		{"Sale Listings", summary.Sale},
		{"Rent Listings", summary.Rent},
		{"With Phone Numbers", summary.WithPhone},
	}
	for i, row := range summaryRows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SheetSummary, cell, &row); err != nil {
			return fmt.Errorf("write summary row %d: %w", i, err)
		}
	}

	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("save xlsx: %w", err)
	}
	return nil
}

func writeListingSheet(f *excelize.File, sheet string, records []models.ListingRecord) error {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("stream writer %s: %w", sheet, err)
	}

	header := make([]any, len(models.ListingColumns))
	for i, col := range models.ListingColumns {
		header[i] = col
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}

	for i := range records {
		values := records[i].Values()
		row := make([]any, len(values))
		for j, v := range values {
			row[j] = v
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i, err)
		}
	}
	return sw.Flush()
}
