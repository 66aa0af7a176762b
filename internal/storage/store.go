package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/fmusim/internal/events"
	"github.com/san-kum/fmusim/internal/fmi"
	"github.com/san-kum/fmusim/internal/kernel"
	"github.com/san-kum/fmusim/internal/trajectory"
)

const (
	metadataFile   = "metadata.json"
	trajectoryFile = "trajectory.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID                string             `json:"id"`
	Name              string             `json:"name,omitempty"`
	Model             string             `json:"model"`
	Timestamp         time.Time          `json:"timestamp"`
	Experiment        kernel.Experiment  `json:"experiment"`
	EndTime           float64            `json:"end_time"`
	Counters          events.Counters    `json:"counters"`
	Status            string             `json:"status"`
	TerminatedByModel bool               `json:"terminated_by_model"`
	Error             string             `json:"error,omitempty"`
	Outputs           []string           `json:"outputs"`
	Params            map[string]float64 `json:"params,omitempty"`
}

// NewMetadata describes res. ID and Timestamp are filled in by Save.
func NewMetadata(name string, params map[string]float64, res *kernel.Result) RunMetadata {
	meta := RunMetadata{
		Name:              name,
		Model:             res.Model,
		Experiment:        res.Experiment,
		EndTime:           res.EndTime,
		Counters:          res.Counters,
		Status:            res.StatusText,
		TerminatedByModel: res.TerminatedByModel,
		Outputs:           []string{},
		Params:            params,
	}
	if res.Err != nil {
		meta.Error = res.Err.Error()
	}
	if res.Trajectory != nil {
		meta.Outputs = res.Trajectory.Names()
	}
	return meta
}

// Save writes metadata.json and trajectory.csv into a new run directory and
// returns the run ID.
func (s *Store) Save(name string, params map[string]float64, res *kernel.Result) (string, error) {
	meta := NewMetadata(name, params, res)
	meta.ID = fmt.Sprintf("%s_%s", res.Model, uuid.NewString())
	meta.Timestamp = time.Now()

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, trajectoryFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if res.Trajectory != nil {
		if err := WriteCSV(csvFile, res.Trajectory); err != nil {
			return "", err
		}
	}
	return meta.ID, nil
}

// List returns the stored runs, oldest first. Directories without readable
// metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

func (s *Store) LoadTrajectory(runID string) (*trajectory.Trajectory, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, trajectoryFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	tr, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return tr, nil
}

// WriteCSV writes a header of "time" followed by the variable names, then
// one row per sample.
func WriteCSV(w io.Writer, tr *trajectory.Trajectory) error {
	cw := csv.NewWriter(w)

	header := append([]string{"time"}, tr.Names()...)
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, len(header))
	for k := 0; k < tr.Len(); k++ {
		row[0] = formatFloat(tr.Times[k])
		for i, s := range tr.Series {
			row[i+1] = formatFloat(s[k])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV parses the format written by WriteCSV. Every column is read back
// as a real variable.
func ReadCSV(r io.Reader) (*trajectory.Trajectory, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &trajectory.Trajectory{}, nil
		}
		return nil, err
	}
	if len(header) == 0 || header[0] != "time" {
		return nil, fmt.Errorf("first column must be time, got %q", header)
	}

	tr := &trajectory.Trajectory{
		Variables: make([]fmi.ScalarVariable, len(header)-1),
		Series:    make([][]float64, len(header)-1),
	}
	for i, name := range header[1:] {
		tr.Variables[i] = fmi.ScalarVariable{Name: name, Type: fmi.Real}
	}

	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: time: %w", line, err)
		}
		tr.Times = append(tr.Times, t)
		for i, field := range record[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, header[i+1], err)
			}
			tr.Series[i] = append(tr.Series[i], v)
		}
	}
	return tr, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
