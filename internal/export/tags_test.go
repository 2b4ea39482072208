package export

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/mmynk/paladium/internal/models"
)

func TestWriteTagReport(t *testing.T) {
	images := []models.ImageItem{
		{
			ID:       "img-1",
			Alt:      "cat.png",
			GroupIDs: []string{"g1", "g-unknown"},
			Tags: []models.Tag{
				{Name: "cat", Count: 2, Percentage: 100},
				{Name: "fluffy", Count: 1, Percentage: 50},
			},
			TotalAnnotators: 2,
			HasConflict:     true,
		},
		{ID: "img-2", Alt: "empty.png"},
	}

	var buf bytes.Buffer
	if err := WriteTagReport(&buf, images, map[string]string{"g1": "Red"}); err != nil {
		t.Fatalf("WriteTagReport failed: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("failed to open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("failed to read rows: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header and 3 rows, got %d: %v", len(rows), rows)
	}

	tests := []struct {
		row  int
		want []string
	}{
		{0, TagReportHeader},
		{1, []string{"cat.png", "img-1", "Red, g-unknown", "cat", "2", "100", "2", "Yes"}},
		{2, []string{"cat.png", "img-1", "Red, g-unknown", "fluffy", "1", "50", "2", "Yes"}},
		{3, []string{"empty.png", "img-2", "", "", "", "", "0", "No"}},
	}
	for _, tt := range tests {
		got := rows[tt.row]
		if len(got) != len(tt.want) {
			t.Errorf("row %d: expected %d cells, got %d: %v", tt.row, len(tt.want), len(got), got)
			continue
		}
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Errorf("row %d col %d: expected %q, got %q", tt.row, i, tt.want[i], got[i])
			}
		}
	}
}

func TestWriteTagReportEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTagReport(&buf, nil, nil); err != nil {
		t.Fatalf("WriteTagReport failed: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("failed to open workbook: %v", err)
	}
	defer f.Close()

	if name := f.GetSheetName(0); name != SheetName {
		t.Errorf("sheet name: expected %q, got %q", SheetName, name)
	}
	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("failed to read rows: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("expected only the header, got %d rows", len(rows))
	}
}
