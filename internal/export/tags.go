// Package export writes tag reports as XLSX workbooks.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/mmynk/paladium/internal/models"
)

// SheetName is the name of the report's only sheet.
const SheetName = "Tags"

// TagReportHeader lists the report's columns in order.
var TagReportHeader = []string{
	"Image",
	"Image ID",
	"Groups",
	"Tag",
	"Count",
	"Percentage",
	"Annotators",
	"Conflict",
}

var columnWidths = []float64{30, 38, 25, 20, 10, 12, 12, 10}

// WriteTagReport writes one row per image tag to w. Images without tags get
// a single row with the tag columns left empty. groupNames maps group ids to
// display names; unknown ids are written as is.
func WriteTagReport(w io.Writer, images []models.ImageItem, groupNames map[string]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	conflictStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#C00000"},
	})
	if err != nil {
		return fmt.Errorf("failed to create conflict style: %w", err)
	}

	for col, header := range TagReportHeader {
		if err := setCell(f, col+1, 1, header); err != nil {
			return err
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(SheetName, name, name, columnWidths[col]); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(TagReportHeader), 1)
	if err := f.SetCellStyle(SheetName, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}

	row := 2
	for _, image := range images {
		groups := make([]string, 0, len(image.GroupIDs))
		for _, id := range image.GroupIDs {
			if name, ok := groupNames[id]; ok {
				groups = append(groups, name)
			} else {
				groups = append(groups, id)
			}
		}

		tags := image.Tags
		if len(tags) == 0 {
			tags = []models.Tag{{}}
		}
		for _, tag := range tags {
			values := []any{image.Alt, image.ID, strings.Join(groups, ", ")}
			if tag.Name != "" {
				values = append(values, tag.Name, tag.Count, tag.Percentage)
			} else {
				values = append(values, nil, nil, nil)
			}
			values = append(values, image.TotalAnnotators, yesNo(image.HasConflict))

			for col, v := range values {
				if v == nil {
					continue
				}
				if err := setCell(f, col+1, row, v); err != nil {
					return err
				}
			}
			if image.HasConflict {
				cell, _ := excelize.CoordinatesToCellName(len(TagReportHeader), row)
				if err := f.SetCellStyle(SheetName, cell, cell, conflictStyle); err != nil {
					return fmt.Errorf("failed to set conflict style: %w", err)
				}
			}
			row++
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze panes: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetCellValue(SheetName, cell, value); err != nil {
		return fmt.Errorf("failed to set cell %s: %w", cell, err)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
