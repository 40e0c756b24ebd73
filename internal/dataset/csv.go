package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"
)

// Timestamp layouts accepted in station exports, tried in order. The
// measurement loggers emit minute resolution; some re-exports carry
// seconds or RFC3339.
var timestampLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

const timestampColumn = "Timestamp"

// ReadCSV loads a station export. The header row drives column mapping;
// a Timestamp column is required, every other column is parsed as
// float64 with empty or unparseable cells becoming NaN.
func ReadCSV(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer file.Close()

	frame, err := Read(file)
	if err != nil {
		return nil, fmt.Errorf("dataset: read %s: %w", path, err)
	}
	return frame, nil
}

// Read decodes CSV data from r into a Frame.
func Read(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // tolerate ragged rows, validated below

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	tsIdx := -1
	seen := make(map[string]bool, len(header))
	for i, name := range header {
		if seen[name] {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		seen[name] = true
		if name == timestampColumn {
			tsIdx = i
		}
	}
	if tsIdx < 0 {
		return nil, fmt.Errorf("missing %q column", timestampColumn)
	}

	frame := NewFrame()
	for i, name := range header {
		if i == tsIdx {
			continue
		}
		frame.order = append(frame.order, name)
		frame.columns[name] = nil
	}

	row := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		if len(record) != len(header) {
			return nil, fmt.Errorf("row %d: %d fields, header has %d", row, len(record), len(header))
		}

		ts, err := parseTimestamp(record[tsIdx])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		frame.Timestamps = append(frame.Timestamps, ts)

		for i, name := range header {
			if i == tsIdx {
				continue
			}
			frame.columns[name] = append(frame.columns[name], parseCell(record[i]))
		}
		row++
	}

	if frame.Len() == 0 {
		return nil, ErrEmptyFrame
	}
	return frame, nil
}

// WriteCSV writes the frame, including derived columns, to path.
// NaN cells are written as empty strings so round-trips preserve
// missingness.
func WriteCSV(frame *Frame, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dataset: create %s: %w", path, err)
	}
	defer file.Close()

	if err := Write(frame, file); err != nil {
		return fmt.Errorf("dataset: write %s: %w", path, err)
	}
	return nil
}

// Write encodes the frame as CSV to w.
func Write(frame *Frame, w io.Writer) error {
	writer := csv.NewWriter(w)

	header := append([]string{timestampColumn}, frame.order...)
	if err := writer.Write(header); err != nil {
		return err
	}

	record := make([]string, len(header))
	for i := 0; i < frame.Len(); i++ {
		record[0] = frame.Timestamps[i].Format(timestampLayouts[0])
		for j, name := range frame.order {
			v := frame.columns[name][i]
			if math.IsNaN(v) {
				record[j+1] = ""
			} else {
				record[j+1] = strconv.FormatFloat(v, 'g', -1, 64)
			}
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

func parseCell(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
