// Package changepoint detects a single discrete shift in the event rate of a
// Poisson count series and estimates the hazard ratio and the time elapsed
// since the shift (MTTD).
package changepoint

import (
	"sort"
	"time"

	"github.com/fleetsight/fleetsight/internal/inference"
)

// Row is one input record of a time-indexed event/exposure table.
type Row struct {
	VehicleID  string
	T          int // series index, must be orderable
	EventCount int
	Exposure   float64 // e.g. trips that day, must be positive
	Date       time.Time
}

// Series is a prepared, strictly time-ordered count series for one subject
// ("AGGREGATE" or a vehicle id).
type Series struct {
	SubjectID string
	T         []int
	Events    []float64
	Exposure  []float64
	Dates     []time.Time
}

// Len returns the number of points in the series.
func (s *Series) Len() int { return len(s.T) }

// minSeriesLength is the minimum number of points a series needs before a
// change-point fit is meaningful.
const minSeriesLength = 10

// PrepareAggregate sums counts and exposure across all vehicles per time
// index and returns one aggregate series.
func PrepareAggregate(rows []Row) (*Series, error) {
	s := buildSeries("AGGREGATE", rows)
	if s.Len() < minSeriesLength {
		return nil, &inference.InsufficientDataError{
			Available: s.Len(),
			Required:  minSeriesLength,
			Detail:    "series points",
		}
	}
	return s, nil
}

// PrepareByVehicle groups rows by vehicle and returns one series per vehicle
// with at least the minimum number of points. Vehicles below the minimum are
// skipped, not fatal; the error fires only when no vehicle qualifies.
func PrepareByVehicle(rows []Row) ([]*Series, error) {
	byVehicle := make(map[string][]Row)
	var order []string
	for _, r := range rows {
		if r.VehicleID == "" {
			continue
		}
		if _, ok := byVehicle[r.VehicleID]; !ok {
			order = append(order, r.VehicleID)
		}
		byVehicle[r.VehicleID] = append(byVehicle[r.VehicleID], r)
	}

	var out []*Series
	best := 0
	for _, id := range order {
		s := buildSeries(id, byVehicle[id])
		if s.Len() > best {
			best = s.Len()
		}
		if s.Len() >= minSeriesLength {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, &inference.InsufficientDataError{
			Available: best,
			Required:  minSeriesLength,
			Detail:    "series points in longest vehicle series",
		}
	}
	return out, nil
}

// buildSeries sorts rows by time index, merges duplicate indices by summing
// counts and exposure, and drops points with non-positive exposure.
func buildSeries(subjectID string, rows []Row) *Series {
	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].T < sorted[j].T })

	s := &Series{SubjectID: subjectID}
	for _, r := range sorted {
		n := s.Len()
		if n > 0 && s.T[n-1] == r.T {
			s.Events[n-1] += float64(r.EventCount)
			s.Exposure[n-1] += r.Exposure
			continue
		}
		s.T = append(s.T, r.T)
		s.Events = append(s.Events, float64(r.EventCount))
		s.Exposure = append(s.Exposure, r.Exposure)
		s.Dates = append(s.Dates, r.Date)
	}

	// Drop zero-exposure points: a Poisson mean of zero with a positive
	// count would zero out the whole likelihood.
	filtered := &Series{SubjectID: subjectID}
	for i := range s.T {
		if s.Exposure[i] <= 0 {
			continue
		}
		filtered.T = append(filtered.T, s.T[i])
		filtered.Events = append(filtered.Events, s.Events[i])
		filtered.Exposure = append(filtered.Exposure, s.Exposure[i])
		filtered.Dates = append(filtered.Dates, s.Dates[i])
	}
	return filtered
}
