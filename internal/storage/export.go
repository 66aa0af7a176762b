package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/fmusim/internal/events"
	"github.com/san-kum/fmusim/internal/trajectory"
)

type ExportData struct {
	Model     string               `json:"model"`
	StartTime float64              `json:"start_time"`
	StopTime  float64              `json:"stop_time"`
	StepSize  float64              `json:"step_size"`
	EndTime   float64              `json:"end_time"`
	Counters  events.Counters      `json:"counters"`
	Status    string               `json:"status"`
	Times     []float64            `json:"times"`
	Series    map[string][]float64 `json:"series"`
}

func newExportData(meta RunMetadata, tr *trajectory.Trajectory) ExportData {
	data := ExportData{
		Model:     meta.Model,
		StartTime: meta.Experiment.StartTime,
		StopTime:  meta.Experiment.StopTime,
		StepSize:  meta.Experiment.StepSize,
		EndTime:   meta.EndTime,
		Counters:  meta.Counters,
		Status:    meta.Status,
		Times:     []float64{},
		Series:    make(map[string][]float64),
	}
	if tr == nil {
		return data
	}
	data.Times = tr.Times
	for i, v := range tr.Variables {
		data.Series[v.Name] = tr.Series[i]
	}
	return data
}

// WriteJSON encodes the run as indented JSON.
func WriteJSON(w io.Writer, meta RunMetadata, tr *trajectory.Trajectory) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(newExportData(meta, tr))
}

func ExportJSON(path string, meta RunMetadata, tr *trajectory.Trajectory) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteJSON(file, meta, tr)
}

func ExportCSV(path string, tr *trajectory.Trajectory) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteCSV(file, tr)
}
