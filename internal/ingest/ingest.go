// Package ingest reads telemetry export CSV files into model inputs.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/fleetsight/fleetsight/internal/changepoint"
	"github.com/fleetsight/fleetsight/internal/resample"
	"github.com/fleetsight/fleetsight/internal/survival"
)

// ReadObservations reads time-to-event observations from a CSV file with
// columns vehicle_id, time_to_event_hours, event_occurred.
func ReadObservations(path string) ([]survival.Observation, error) {
	var out []survival.Observation
	err := readCSV(path, 3, func(line int, rec []string) error {
		t, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return fmt.Errorf("line %d: time_to_event_hours: %w", line, err)
		}
		ev, err := strconv.ParseBool(rec[2])
		if err != nil {
			return fmt.Errorf("line %d: event_occurred: %w", line, err)
		}
		out = append(out, survival.Observation{
			VehicleID:        rec[0],
			TimeToEventHours: t,
			EventOccurred:    ev,
		})
		return nil
	})
	return out, err
}

// ReadEventSeries reads daily event counts from a CSV file with columns
// vehicle_id, t, event_count, exposure, date. The date column may be empty.
func ReadEventSeries(path string) ([]changepoint.Row, error) {
	var out []changepoint.Row
	err := readCSV(path, 5, func(line int, rec []string) error {
		t, err := strconv.Atoi(rec[1])
		if err != nil {
			return fmt.Errorf("line %d: t: %w", line, err)
		}
		count, err := strconv.Atoi(rec[2])
		if err != nil {
			return fmt.Errorf("line %d: event_count: %w", line, err)
		}
		exposure, err := strconv.ParseFloat(rec[3], 64)
		if err != nil {
			return fmt.Errorf("line %d: exposure: %w", line, err)
		}
		row := changepoint.Row{
			VehicleID:  rec[0],
			T:          t,
			EventCount: count,
			Exposure:   exposure,
		}
		if rec[4] != "" {
			d, err := time.Parse("2006-01-02", rec[4])
			if err != nil {
				return fmt.Errorf("line %d: date: %w", line, err)
			}
			row.Date = d
		}
		out = append(out, row)
		return nil
	})
	return out, err
}

// ReadLabeledFeatures reads classifier training rows from a CSV file whose
// first column is the rare_event label (0/1 or true/false) and whose
// remaining columns are numeric features. All rows must have the same width.
func ReadLabeledFeatures(path string) ([]resample.Row, error) {
	var out []resample.Row
	err := readCSV(path, 0, func(line int, rec []string) error {
		if len(rec) < 2 {
			return fmt.Errorf("line %d: need a label and at least one feature column", line)
		}
		label, err := strconv.ParseBool(rec[0])
		if err != nil {
			return fmt.Errorf("line %d: rare_event: %w", line, err)
		}
		features := make([]float64, len(rec)-1)
		for i, v := range rec[1:] {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("line %d: feature %d: %w", line, i, err)
			}
			features[i] = f
		}
		out = append(out, resample.Row{Features: features, RareEvent: label})
		return nil
	})
	return out, err
}

// readCSV streams records from path, skipping the header row. width of 0
// lets the reader infer a uniform width from the first record.
func readCSV(path string, width int, fn func(line int, rec []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open input %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	if width > 0 {
		r.FieldsPerRecord = width
	}

	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read %q: %w", path, err)
		}
		line++
		if line == 1 {
			continue // header
		}
		if err := fn(line, rec); err != nil {
			return fmt.Errorf("failed to parse %q: %w", path, err)
		}
	}
}
