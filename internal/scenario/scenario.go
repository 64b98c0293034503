// Package scenario defines the JSON interchange format the CLI tools use
// for reading sets: gen-readings writes scenario files, locate consumes
// them.
package scenario

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/banshee-data/radiolocate/reading"
)

// File is a complete scenario: a reading set plus the ground truth used
// to generate it (when known), kept so runs can be scored afterwards.
type File struct {
	Name         string    `json:"name"`
	Dims         int       `json:"dims"`
	FrequencyHz  float64   `json:"frequency_hz,omitempty"`
	TruePosition []float64 `json:"true_position,omitempty"`
	TruePowerdBm *float64  `json:"true_power_dbm,omitempty"`
	TruePathLoss *float64  `json:"true_path_loss,omitempty"`
	Readings     []Reading `json:"readings"`
}

// Reading is the JSON form of one observation.
type Reading struct {
	SourceID       string    `json:"source_id,omitempty"`
	FrequencyHz    float64   `json:"frequency_hz,omitempty"`
	Position       []float64 `json:"position"`
	Distance       *float64  `json:"distance,omitempty"`
	DistanceStdDev float64   `json:"distance_stddev,omitempty"`
	RSSIdBm        *float64  `json:"rssi_dbm,omitempty"`
	RSSIStdDev     float64   `json:"rssi_stddev,omitempty"`
}

// Load reads and validates a scenario file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse scenario JSON: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &f, nil
}

// Save writes a scenario file, indented for hand inspection.
func Save(path string, f *File) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("invalid scenario: %w", err)
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Validate checks structural soundness.
func (f *File) Validate() error {
	if f.Dims != 2 && f.Dims != 3 {
		return fmt.Errorf("dims must be 2 or 3, got %d", f.Dims)
	}
	if len(f.Readings) == 0 {
		return fmt.Errorf("scenario has no readings")
	}
	for i, r := range f.Readings {
		if len(r.Position) != f.Dims {
			return fmt.Errorf("reading %d has %d position coords, want %d", i, len(r.Position), f.Dims)
		}
		if r.Distance == nil && r.RSSIdBm == nil {
			return fmt.Errorf("reading %d carries neither distance nor rssi", i)
		}
	}
	return nil
}

// ToReadings converts the scenario to library reading values. Readings
// without a source frequency inherit the scenario-level one.
func (f *File) ToReadings() []reading.Reading {
	out := make([]reading.Reading, 0, len(f.Readings))
	for _, r := range f.Readings {
		freq := r.FrequencyHz
		if freq == 0 {
			freq = f.FrequencyHz
		}
		rd := reading.Reading{
			Source:   reading.Source{ID: r.SourceID, FrequencyHz: freq},
			Position: reading.Point(r.Position).Clone(),
		}
		if r.Distance != nil {
			rd.HasDistance = true
			rd.Distance = *r.Distance
			rd.DistanceStdDev = r.DistanceStdDev
		}
		if r.RSSIdBm != nil {
			rd.HasRSSI = true
			rd.RSSIdBm = *r.RSSIdBm
			rd.RSSIStdDev = r.RSSIStdDev
		}
		out = append(out, rd)
	}
	return out
}

// FromReadings converts library readings into scenario form.
func FromReadings(name string, dims int, readings []reading.Reading) *File {
	f := &File{Name: name, Dims: dims}
	for _, r := range readings {
		sr := Reading{
			SourceID:    r.Source.ID,
			FrequencyHz: r.Source.FrequencyHz,
			Position:    append([]float64(nil), r.Position...),
		}
		if r.HasDistance {
			d := r.Distance
			sr.Distance = &d
			sr.DistanceStdDev = r.DistanceStdDev
		}
		if r.HasRSSI {
			v := r.RSSIdBm
			sr.RSSIdBm = &v
			sr.RSSIStdDev = r.RSSIStdDev
		}
		f.Readings = append(f.Readings, sr)
	}
	return f
}
