// Package survival fits a hierarchical Weibull hazard model over per-vehicle
// time-to-event observations and produces posterior hazard curves and
// expected time-to-event with credible intervals.
package survival

import (
	"math"

	"github.com/fleetsight/fleetsight/internal/inference"
)

// Observation is one survival record: how long a vehicle operated before a
// safety regression occurred, or was censored.
type Observation struct {
	TimeToEventHours float64
	EventOccurred    bool
	VehicleID        string
}

// PreparedData holds cleaned observation arrays with vehicles mapped to a
// dense zero-based index. Index assignment follows first appearance in the
// input, so identical input always produces identical prepared arrays.
type PreparedData struct {
	Times      []float64
	Events     []bool
	VehicleIdx []int
	VehicleIDs []string // dense index -> vehicle id
}

// NumVehicles returns the number of distinct vehicles in the prepared set.
func (d *PreparedData) NumVehicles() int {
	return len(d.VehicleIDs)
}

const (
	minObservations = 10
	minVehicles     = 2
)

// Prepare drops incomplete rows, maps vehicles to a dense index and
// validates the minimum data requirements.
func Prepare(rows []Observation) (*PreparedData, error) {
	data := &PreparedData{}
	index := make(map[string]int)

	for _, row := range rows {
		if row.VehicleID == "" {
			continue
		}
		if math.IsNaN(row.TimeToEventHours) || row.TimeToEventHours <= 0 {
			continue
		}

		idx, ok := index[row.VehicleID]
		if !ok {
			idx = len(data.VehicleIDs)
			index[row.VehicleID] = idx
			data.VehicleIDs = append(data.VehicleIDs, row.VehicleID)
		}

		data.Times = append(data.Times, row.TimeToEventHours)
		data.Events = append(data.Events, row.EventOccurred)
		data.VehicleIdx = append(data.VehicleIdx, idx)
	}

	if len(data.VehicleIDs) < minVehicles {
		return nil, &inference.InsufficientDataError{
			Available: len(data.VehicleIDs),
			Required:  minVehicles,
			Detail:    "distinct vehicles",
		}
	}
	if len(data.Times) < minObservations {
		return nil, &inference.InsufficientDataError{
			Available: len(data.Times),
			Required:  minObservations,
			Detail:    "observations",
		}
	}
	return data, nil
}
