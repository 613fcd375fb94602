package operations

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"pixelqc/internal/config"
	"pixelqc/internal/dataprocessing"
	apperrors "pixelqc/internal/errors"
	"pixelqc/internal/exporter"
	"pixelqc/pkg/contracts"
	"pixelqc/pkg/contracts/domain"
)

// ManifestPrefix names manifest files: manifest.json or manifest_<run-id>.json
const ManifestPrefix = "manifest"

// RunStatus is the overall status of a run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// StageStatus is the status of one stage execution
type StageStatus string

const (
	StageStatusRunning   StageStatus = "running"
	StageStatusCompleted StageStatus = "completed"
	StageStatusFailed    StageStatus = "failed"
)

// StageExecution tracks the execution of a single stage
type StageExecution struct {
	Stage     dataprocessing.Stage `json:"stage"`
	Status    StageStatus          `json:"status"`
	StartTime time.Time            `json:"start_time"`
	EndTime   *time.Time           `json:"end_time,omitempty"`
	Duration  string               `json:"duration,omitempty"`
	RowsIn    int                  `json:"rows_in"`
	RowsOut   int                  `json:"rows_out"`
	Error     string               `json:"error,omitempty"`
}

// RunInputs records where a run's inputs came from
type RunInputs struct {
	Fine             string   `json:"fine"`
	Secondary        string   `json:"secondary"`
	BandConfig       string   `json:"band_config"`
	FineColumns      []string `json:"fine_columns"`
	SecondaryColumns []string `json:"secondary_columns"`
	BandColumn       string   `json:"band_column"`
	Grouping         string   `json:"grouping"`
	DedupeSecondary  bool     `json:"dedupe_secondary"`
}

// RunManifest is the machine-readable record of one run: inputs, band
// configuration, stage outcomes, counts and written files. It is safe for
// concurrent use.
type RunManifest struct {
	mu sync.RWMutex

	ID        string     `json:"id"`
	RunID     string     `json:"run_id,omitempty"`
	TraceID   string     `json:"trace_id,omitempty"`
	Version   string     `json:"version"`
	Format    string     `json:"data_format"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Status    RunStatus  `json:"status"`

	Inputs     RunInputs          `json:"inputs"`
	BandConfig *domain.BandConfig `json:"band_config,omitempty"`

	Stages []StageExecution `json:"stages"`

	Report        *dataprocessing.Report `json:"report,omitempty"`
	CollapsedRows int                    `json:"collapsed_rows,omitempty"`

	Artifacts   []exporter.Artifact `json:"artifacts,omitempty"`
	MetricsFile string              `json:"metrics_file,omitempty"`

	Error     string `json:"error,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
}

// NewRunManifest creates a pending manifest for runID
func NewRunManifest(runID string) *RunManifest {
	return &RunManifest{
		ID:        uuid.New().String(),
		RunID:     runID,
		Version:   config.AppVersion,
		Format:    contracts.DataFormatVersion,
		StartTime: time.Now(),
		Status:    RunStatusPending,
		Stages:    []StageExecution{},
	}
}

// Start marks the run as running
func (m *RunManifest) Start(traceID string, inputs RunInputs) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TraceID = traceID
	m.Inputs = inputs
	m.StartTime = time.Now()
	m.Status = RunStatusRunning
}

// SetBandConfig records the validated band configuration
func (m *RunManifest) SetBandConfig(cfg *domain.BandConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BandConfig = cfg
}

// SetReport records the pipeline counts
func (m *RunManifest) SetReport(r *dataprocessing.Report) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Report = r
}

// SetCollapsedRows records how many duplicate secondary rows were merged
func (m *RunManifest) SetCollapsedRows(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CollapsedRows = n
}

// AddArtifacts records written output files
func (m *RunManifest) AddArtifacts(artifacts ...exporter.Artifact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Artifacts = append(m.Artifacts, artifacts...)
}

// SetMetricsFile records the metrics textfile path
func (m *RunManifest) SetMetricsFile(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MetricsFile = path
}

// RecordStageStart records the start of a stage execution
func (m *RunManifest) RecordStageStart(stage dataprocessing.Stage, rowsIn int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Stages = append(m.Stages, StageExecution{
		Stage:     stage,
		Status:    StageStatusRunning,
		StartTime: time.Now(),
		RowsIn:    rowsIn,
	})
}

// RecordStageCompletion records the completion of the latest run of stage
func (m *RunManifest) RecordStageCompletion(stage dataprocessing.Stage, rowsOut int) {
	m.finishStage(stage, StageStatusCompleted, rowsOut, nil)
}

// RecordStageFailure records a stage failure
func (m *RunManifest) RecordStageFailure(stage dataprocessing.Stage, err error) {
	m.finishStage(stage, StageStatusFailed, 0, err)
}

func (m *RunManifest) finishStage(stage dataprocessing.Stage, status StageStatus, rowsOut int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.Stages) - 1; i >= 0; i-- {
		s := &m.Stages[i]
		if s.Stage != stage || s.Status != StageStatusRunning {
			continue
		}
		now := time.Now()
		s.EndTime = &now
		s.Duration = now.Sub(s.StartTime).String()
		s.Status = status
		s.RowsOut = rowsOut
		if err != nil {
			s.Error = err.Error()
		}
		return
	}
}

// Stage returns the latest execution of stage
func (m *RunManifest) Stage(stage dataprocessing.Stage) (StageExecution, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.Stages) - 1; i >= 0; i-- {
		if m.Stages[i].Stage == stage {
			return m.Stages[i], true
		}
	}
	return StageExecution{}, false
}

// Complete marks the run as completed
func (m *RunManifest) Complete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.EndTime = &now
	m.Status = RunStatusCompleted
}

// Fail marks the run as failed
func (m *RunManifest) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.EndTime = &now
	m.Status = RunStatusFailed
	if err != nil {
		m.Error = err.Error()
		m.ErrorType = string(apperrors.TypeOf(err))
	}
}

// GetStatus returns the run status
func (m *RunManifest) GetStatus() RunStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Status
}

// SaveToFile writes the manifest as indented JSON into dir and returns the path
func (m *RunManifest) SaveToFile(dir string) (string, error) {
	m.mu.RLock()
	data, err := json.MarshalIndent(m, "", "  ")
	runID := m.RunID
	m.mu.RUnlock()
	if err != nil {
		return "", apperrors.NewStorageError("failed to marshal manifest", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", apperrors.NewStorageError("failed to create manifest directory", err)
	}

	path := filepath.Join(dir, exporter.FileName(ManifestPrefix, runID, "json"))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", apperrors.NewStorageError(fmt.Sprintf("failed to write manifest %s", path), err)
	}
	return path, nil
}

// LoadRunManifest reads a manifest written by SaveToFile
func LoadRunManifest(path string) (*RunManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to read manifest %s", path), err)
	}

	var m RunManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to parse manifest %s", path), err)
	}
	return &m, nil
}
