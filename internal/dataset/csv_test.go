package dataset

import (
	"math"
	"path/filepath"
	"strings"
	"testing"
)

const sampleCSV = `Timestamp,GHI,DNI,Tamb,RH
2023-01-01 06:00,12.5,0.0,21.3,88
2023-01-01 06:10,,3.1,21.4,87
2023-01-01 06:20,25.0,8.4,,86
`

func TestRead(t *testing.T) {
	frame, err := Read(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if frame.Len() != 3 {
		t.Errorf("expected 3 rows, got %d", frame.Len())
	}
	want := []string{"GHI", "DNI", "Tamb", "RH"}
	got := frame.ColumnNames()
	if len(got) != len(want) {
		t.Fatalf("expected %d columns, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("column %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	ghi, err := frame.Column(ColGHI)
	if err != nil {
		t.Fatalf("Column failed: %v", err)
	}
	if !math.IsNaN(ghi[1]) {
		t.Errorf("expected NaN for empty GHI cell, got %v", ghi[1])
	}
	if ghi[2] != 25.0 {
		t.Errorf("expected GHI[2]=25.0, got %v", ghi[2])
	}

	if frame.Timestamps[0].Hour() != 6 {
		t.Errorf("expected hour 6, got %d", frame.Timestamps[0].Hour())
	}
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"NoTimestampColumn", "GHI,DNI\n1,2\n"},
		{"HeaderOnly", "Timestamp,GHI\n"},
		{"BadTimestamp", "Timestamp,GHI\nnot-a-time,1\n"},
		{"RaggedRow", "Timestamp,GHI,DNI\n2023-01-01 06:00,1\n"},
		{"DuplicateColumn", "Timestamp,GHI,GHI\n2023-01-01 06:00,1,2\n"},
		{"DuplicateTimestamp", "Timestamp,Timestamp,GHI\n2023-01-01 06:00,2023-01-01 06:00,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Read(strings.NewReader(tt.csv)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestWriteRoundTrip(t *testing.T) {
	frame, err := Read(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "out.csv")
	if err := WriteCSV(frame, path); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	reloaded, err := ReadCSV(path)
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if reloaded.Len() != frame.Len() {
		t.Errorf("row count changed: %d -> %d", frame.Len(), reloaded.Len())
	}

	// Missing cells must survive the round trip as NaN.
	ghi, _ := reloaded.Column(ColGHI)
	if !math.IsNaN(ghi[1]) {
		t.Errorf("missing cell lost in round trip: %v", ghi[1])
	}
}

func TestFilter(t *testing.T) {
	frame, err := Read(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	filtered, err := frame.Filter([]bool{true, false, true})
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if filtered.Len() != 2 {
		t.Errorf("expected 2 rows after filter, got %d", filtered.Len())
	}
	tamb, _ := filtered.Column(ColTamb)
	if tamb[0] != 21.3 || !math.IsNaN(tamb[1]) {
		t.Errorf("filter reordered values: %v", tamb)
	}

	if _, err := frame.Filter([]bool{true}); err == nil {
		t.Error("expected error for mismatched mask length")
	}
}

func TestColumnDropNA(t *testing.T) {
	frame, err := Read(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	vals, err := frame.ColumnDropNA(ColGHI)
	if err != nil {
		t.Fatalf("ColumnDropNA failed: %v", err)
	}
	if len(vals) != 2 {
		t.Errorf("expected 2 non-NaN values, got %d", len(vals))
	}
}
