// Command gendata generates synthetic fleet telemetry CSV files for
// exercising the fleetsight pipelines: time-to-event observations for the
// survival model, daily event-count series for the change-point detector,
// and imbalanced labeled feature rows for the resampling experiments.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	defaultOutputDir    = "./testdata"
	defaultVehicles     = 20
	defaultObsPerVeh    = 40
	defaultSeriesDays   = 120
	defaultLabeledRows  = 5000
	defaultRareRate     = 0.02
	defaultWeibullShape = 1.5
	defaultWeibullScale = 100.0
)

func main() {
	outputDir := flag.String("output-dir", defaultOutputDir, "Output directory for generated files")
	vehicles := flag.Int("vehicles", defaultVehicles, "Number of vehicles in the fleet")
	obsPerVehicle := flag.Int("obs-per-vehicle", defaultObsPerVeh, "Time-to-event observations per vehicle")
	seriesDays := flag.Int("series-days", defaultSeriesDays, "Days of event-count history per vehicle")
	changeDay := flag.Int("change-day", defaultSeriesDays/3, "Day at which the event rate shifts (0 = no shift)")
	hazardRatio := flag.Float64("hazard-ratio", 3.0, "Post-shift to pre-shift rate ratio")
	labeledRows := flag.Int("labeled-rows", defaultLabeledRows, "Rows in the labeled feature file")
	rareRate := flag.Float64("rare-rate", defaultRareRate, "Fraction of rare-event rows in the labeled file")
	shape := flag.Float64("shape", defaultWeibullShape, "Weibull shape for failure times")
	scale := flag.Float64("scale", defaultWeibullScale, "Weibull scale in hours for failure times")
	horizon := flag.Float64("horizon-hours", 250, "Censoring horizon in hours")
	seed := flag.Uint64("seed", 0, "Random seed (0 = use current time)")

	flag.Parse()

	if *seed == 0 {
		*seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewSource(*seed))

	fmt.Printf("Generating synthetic fleet data with:\n")
	fmt.Printf("  Output directory: %s\n", *outputDir)
	fmt.Printf("  Vehicles: %d (%d observations each)\n", *vehicles, *obsPerVehicle)
	fmt.Printf("  Series: %d days, rate shift at day %d (ratio %.1f)\n", *seriesDays, *changeDay, *hazardRatio)
	fmt.Printf("  Labeled rows: %d (rare rate %.3f)\n", *labeledRows, *rareRate)
	fmt.Printf("  Seed: %d\n", *seed)
	fmt.Println()

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	obsPath := filepath.Join(*outputDir, "observations.csv")
	if err := writeObservations(obsPath, *vehicles, *obsPerVehicle, *shape, *scale, *horizon, rng); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", obsPath, err)
		os.Exit(1)
	}
	fmt.Printf("  ✓ %s (%d rows)\n", obsPath, *vehicles * *obsPerVehicle)

	eventsPath := filepath.Join(*outputDir, "events.csv")
	if err := writeEventSeries(eventsPath, *vehicles, *seriesDays, *changeDay, *hazardRatio, rng); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", eventsPath, err)
		os.Exit(1)
	}
	fmt.Printf("  ✓ %s (%d rows)\n", eventsPath, *vehicles * *seriesDays)

	labeledPath := filepath.Join(*outputDir, "labeled.csv")
	if err := writeLabeledFeatures(labeledPath, *labeledRows, *rareRate, rng); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", labeledPath, err)
		os.Exit(1)
	}
	fmt.Printf("  ✓ %s (%d rows)\n", labeledPath, *labeledRows)

	fmt.Printf("\n✓ Successfully generated fleet data in %s\n", *outputDir)
}

// writeObservations draws Weibull failure times per vehicle with slight
// per-vehicle scale variation, censored at the horizon.
func writeObservations(path string, vehicles, perVehicle int, shape, scale, horizon float64, rng *rand.Rand) error {
	return writeCSV(path, []string{"vehicle_id", "time_to_event_hours", "event_occurred"}, func(w *csv.Writer) error {
		for v := 0; v < vehicles; v++ {
			vehicleID := fmt.Sprintf("VEH-%04d", v+1)
			// Per-vehicle scale wobble keeps the hierarchy non-degenerate.
			vehScale := scale * (0.8 + 0.4*rng.Float64())
			dist := distuv.Weibull{K: shape, Lambda: vehScale, Src: rng}

			for i := 0; i < perVehicle; i++ {
				t := dist.Rand()
				occurred := true
				if t > horizon {
					t = horizon
					occurred = false
				}
				row := []string{
					vehicleID,
					strconv.FormatFloat(t, 'f', 3, 64),
					strconv.FormatBool(occurred),
				}
				if err := w.Write(row); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// writeEventSeries draws daily Poisson event counts against a varying
// exposure, with the rate shifting at changeDay.
func writeEventSeries(path string, vehicles, days, changeDay int, ratio float64, rng *rand.Rand) error {
	const baseRate = 0.01 // events per exposure hour before the shift
	start := time.Now().UTC().AddDate(0, 0, -days)

	return writeCSV(path, []string{"vehicle_id", "t", "event_count", "exposure", "date"}, func(w *csv.Writer) error {
		for v := 0; v < vehicles; v++ {
			vehicleID := fmt.Sprintf("VEH-%04d", v+1)
			for d := 0; d < days; d++ {
				exposure := 80 + 40*rng.Float64()
				rate := baseRate
				if changeDay > 0 && d >= changeDay {
					rate *= ratio
				}
				count := distuv.Poisson{Lambda: exposure * rate, Src: rng}.Rand()
				date := start.AddDate(0, 0, d).Format("2006-01-02")
				row := []string{
					vehicleID,
					strconv.Itoa(d),
					strconv.FormatFloat(count, 'f', 0, 64),
					strconv.FormatFloat(exposure, 'f', 2, 64),
					date,
				}
				if err := w.Write(row); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// writeLabeledFeatures draws an imbalanced binary classification set whose
// first two features separate the classes with overlap.
func writeLabeledFeatures(path string, rows int, rareRate float64, rng *rand.Rand) error {
	return writeCSV(path, []string{"label", "speed_var", "brake_intensity", "ambient_temp"}, func(w *csv.Writer) error {
		for i := 0; i < rows; i++ {
			rare := rng.Float64() < rareRate
			var speedVar, brake float64
			if rare {
				speedVar = 180 + 15*rng.NormFloat64()
				brake = 0.7 + 0.1*rng.NormFloat64()
			} else {
				speedVar = 100 + 20*rng.NormFloat64()
				brake = 0.3 + 0.1*rng.NormFloat64()
			}
			temp := 15 + 10*rng.NormFloat64()
			row := []string{
				boolToLabel(rare),
				strconv.FormatFloat(speedVar, 'f', 3, 64),
				strconv.FormatFloat(brake, 'f', 4, 64),
				strconv.FormatFloat(temp, 'f', 2, 64),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

func boolToLabel(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func writeCSV(path string, header []string, body func(*csv.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := body(w); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
