package profile

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gopkg.in/cheggaaa/pb.v1"
)

// Options selects and conditions one column of a CSV profile file.
type Options struct {
	Column  string  // header name; empty selects the first column
	Scale   float64 // multiplier applied to every value; zero means 1
	Shift   int     // hours to rotate left after loading
	Comment rune    // comment marker, zero for none
	Quiet   bool    // suppress the progress bar
}

// LoadCSV reads one column of a CSV file with a header row.
func LoadCSV(path string, opts Options) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := ReadCSV(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ReadCSV reads one column from r.
func ReadCSV(r io.Reader, opts Options) ([]float64, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.Comment = opts.Comment

	raw, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(raw) < 2 {
		return nil, fmt.Errorf("profile: no data rows")
	}

	col := 0
	if opts.Column != "" {
		col = -1
		for j, name := range raw[0] {
			if strings.TrimSpace(name) == opts.Column {
				col = j
				break
			}
		}
		if col < 0 {
			return nil, fmt.Errorf("profile: column %q not found", opts.Column)
		}
	}

	rows := len(raw)
	bar := pb.New(rows - 1)
	bar.ShowTimeLeft = false
	bar.NotPrint = opts.Quiet
	bar.Start()

	series := make([]float64, 0, rows-1)
	for i := 1; i < rows; i++ {
		if col >= len(raw[i]) {
			bar.Finish()
			return nil, fmt.Errorf("profile: row %d has no column %d", i, col)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw[i][col]), 64)
		if err != nil {
			bar.Finish()
			return nil, fmt.Errorf("profile: row %d: %w", i, err)
		}
		series = append(series, v)
		bar.Increment()
	}
	bar.Finish()

	if opts.Scale != 0 && opts.Scale != 1 {
		floats.Scale(opts.Scale, series)
	}
	if opts.Shift != 0 {
		series = Rotate(series, opts.Shift)
	}
	return series, nil
}
