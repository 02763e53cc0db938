package services

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// DefaultPreviewRows caps the rows returned per sheet
const DefaultPreviewRows = 500

// SheetPreview is the visible content of one worksheet
type SheetPreview struct {
	Name      string     `json:"name"`
	Rows      [][]string `json:"rows"`
	Truncated bool       `json:"truncated"`
}

// SpreadsheetPreview is a workbook rendered for the browser
type SpreadsheetPreview struct {
	Filename string         `json:"filename"`
	Sheets   []SheetPreview `json:"sheets"`
}

// PreviewSpreadsheet reads at most maxRows rows from every sheet of the workbook in r
func PreviewSpreadsheet(r io.Reader, maxRows int) (*SpreadsheetPreview, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	preview := &SpreadsheetPreview{}
	for _, name := range f.GetSheetList() {
		sheet, err := readSheet(f, name, maxRows)
		if err != nil {
			return nil, err
		}
		preview.Sheets = append(preview.Sheets, sheet)
	}
	return preview, nil
}

func readSheet(f *excelize.File, name string, maxRows int) (SheetPreview, error) {
	sheet := SheetPreview{Name: name, Rows: [][]string{}}

	rows, err := f.Rows(name)
	if err != nil {
		return sheet, fmt.Errorf("read sheet %s: %w", name, err)
	}
	defer rows.Close()

	for rows.Next() {
		if len(sheet.Rows) == maxRows {
			sheet.Truncated = true
			break
		}
		cols, err := rows.Columns()
		if err != nil {
			return sheet, fmt.Errorf("read row in %s: %w", name, err)
		}
		sheet.Rows = append(sheet.Rows, cols)
	}
	return sheet, rows.Error()
}
