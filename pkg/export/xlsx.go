package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/platinummonkey/pfcatalog/pkg/normalize"
)

// ContentTypeXLSX is the media type of a workbook
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SheetName is the worksheet holding exported records
const SheetName = "Connections"

// filenamePrefixes maps dataset names to the protocol prefix of their files
var filenamePrefixes = map[string]string{
	"connections": "saml",
	"clients":     "oauth",
}

// Filename returns the download name for a dataset export, e.g.
// saml_connections_qa.xlsx for the connections of qa
func Filename(dataset, env string) string {
	prefix, ok := filenamePrefixes[dataset]
	if !ok {
		prefix = dataset
	}
	return fmt.Sprintf("%s_connections_%s.xlsx", prefix, env)
}

// WriteXLSX writes a single-sheet workbook of records to w. The header row
// is written even when records is empty.
func WriteXLSX[T normalize.Tabular](w io.Writer, sheet string, columns []string, records []T) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := rec.Row()
		for j, v := range row {
			if v == nil {
				row[j] = ""
			}
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if len(columns) > 0 {
		last, err := excelize.CoordinatesToCellName(len(columns), len(records)+1)
		if err != nil {
			return err
		}
		if err := f.AutoFilter(sheet, "A1:"+last, nil); err != nil {
			return fmt.Errorf("failed to add filter: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
