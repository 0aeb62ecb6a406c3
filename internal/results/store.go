package results

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Store appends result rows to per-model CSV files under a base directory
// and reads them back. Appends are serialized per process; across processes
// the unique run id per row keeps concurrent appenders safe without row
// locking.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates a store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create results dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

const (
	survivalFile    = "survival_results.csv"
	changepointFile = "changepoint_results.csv"
	experimentFile  = "importance_sampling_results.csv"
)

// AppendSurvival appends survival summary rows, writing the header when the
// file is new.
func (s *Store) AppendSurvival(records []SurvivalRecord) error {
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = r.row()
	}
	return s.appendRows(survivalFile, survivalHeader, rows)
}

// AppendChangepoint appends change-point detection rows.
func (s *Store) AppendChangepoint(records []ChangepointRecord) error {
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = r.row()
	}
	return s.appendRows(changepointFile, changepointHeader, rows)
}

// AppendExperiment appends weighting-scheme comparison rows.
func (s *Store) AppendExperiment(records []ExperimentRecord) error {
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = r.row()
	}
	return s.appendRows(experimentFile, experimentHeader, rows)
}

// ReadSurvival reads back every persisted survival row.
func (s *Store) ReadSurvival() ([]SurvivalRecord, error) {
	rows, err := s.readRows(survivalFile, len(survivalHeader))
	if err != nil {
		return nil, err
	}
	out := make([]SurvivalRecord, 0, len(rows))
	for _, row := range rows {
		r, err := parseSurvivalRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// ReadChangepoint reads back every persisted change-point row.
func (s *Store) ReadChangepoint() ([]ChangepointRecord, error) {
	rows, err := s.readRows(changepointFile, len(changepointHeader))
	if err != nil {
		return nil, err
	}
	out := make([]ChangepointRecord, 0, len(rows))
	for _, row := range rows {
		r, err := parseChangepointRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// ReadExperiment reads back every persisted experiment row.
func (s *Store) ReadExperiment() ([]ExperimentRecord, error) {
	rows, err := s.readRows(experimentFile, len(experimentHeader))
	if err != nil {
		return nil, err
	}
	out := make([]ExperimentRecord, 0, len(rows))
	for _, row := range rows {
		r, err := parseExperimentRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// appendRows opens the table file in append mode, writes the header when
// the file is empty, then writes the rows in a single buffered flush.
func (s *Store) appendRows(name string, header []string, rows [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("failed to write header to %s: %w", path, err)
		}
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row to %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return nil
}

// readRows reads all data rows of a table, skipping the header. A missing
// file reads as an empty table.
func (s *Store) readRows(name string, width int) ([][]string, error) {
	path := filepath.Join(s.dir, name)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = width

	var rows [][]string
	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if first {
			first = false
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
func formatBool(v bool) string     { return strconv.FormatBool(v) }
func formatInt(v int) string       { return strconv.Itoa(v) }
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
