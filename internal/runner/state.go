// Package runner drives the per-series forecasting pipeline and the
// parallel batch layer on top of it. A run walks fixed steps: split,
// backtest, select_model, refit, forecast. Any step failing moves the run
// to failed with a structured cause and no partial forecast.
package runner

import (
	"sync"
	"time"
)

// RunStatusValue represents the overall run status enum
type RunStatusValue string

const (
	RunStatusPending   RunStatusValue = "pending"
	RunStatusRunning   RunStatusValue = "running"
	RunStatusCompleted RunStatusValue = "completed"
	RunStatusFailed    RunStatusValue = "failed"
	RunStatusCancelled RunStatusValue = "cancelled"
)

// StepStatusValue represents the status of a single pipeline step
type StepStatusValue string

const (
	StepStatusPending   StepStatusValue = "pending"
	StepStatusActive    StepStatusValue = "active"
	StepStatusCompleted StepStatusValue = "completed"
	StepStatusFailed    StepStatusValue = "failed"
)

// Pipeline step identifiers, in execution order.
const (
	StepSplit       = "split"
	StepBacktest    = "backtest"
	StepSelectModel = "select_model"
	StepRefit       = "refit"
	StepForecast    = "forecast"
)

// StepOrder lists the pipeline steps in execution order.
var StepOrder = []string{StepSplit, StepBacktest, StepSelectModel, StepRefit, StepForecast}

// StepState tracks one pipeline step's status and timing
type StepState struct {
	Name      string          `json:"name"`
	Status    StepStatusValue `json:"status"`
	StartTime time.Time       `json:"start_time,omitempty"`
	EndTime   *time.Time      `json:"end_time,omitempty"`
	Error     error           `json:"error,omitempty"`
}

// RunState represents the complete state of one per-series run
type RunState struct {
	mu sync.RWMutex

	ID        string         `json:"id"`
	Series    string         `json:"series"`
	Status    RunStatusValue `json:"status"`
	StartTime time.Time      `json:"start_time"`
	EndTime   *time.Time     `json:"end_time,omitempty"`

	Steps map[string]*StepState `json:"steps"`

	// Error holds the structured cause when the run failed
	Error error `json:"error,omitempty"`
}

// NewRunState creates a run state with all pipeline steps pending
func NewRunState(id, seriesID string) *RunState {
	steps := make(map[string]*StepState, len(StepOrder))
	for _, name := range StepOrder {
		steps[name] = &StepState{Name: name, Status: StepStatusPending}
	}
	return &RunState{
		ID:        id,
		Series:    seriesID,
		Status:    RunStatusPending,
		StartTime: time.Now(),
		Steps:     steps,
	}
}

// Start marks the run as running
func (s *RunState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = RunStatusRunning
	s.StartTime = time.Now()
}

// Complete marks the run as completed
func (s *RunState) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.EndTime = &now
	s.Status = RunStatusCompleted
}

// Fail marks the run as failed with the given cause
func (s *RunState) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.EndTime = &now
	s.Status = RunStatusFailed
	s.Error = err
}

// Cancel marks the run as cancelled
func (s *RunState) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.EndTime = &now
	s.Status = RunStatusCancelled
}

// BeginStep marks a step as active
func (s *RunState) BeginStep(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if step, ok := s.Steps[name]; ok {
		step.Status = StepStatusActive
		step.StartTime = time.Now()
	}
}

// CompleteStep marks a step as completed
func (s *RunState) CompleteStep(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if step, ok := s.Steps[name]; ok {
		now := time.Now()
		step.Status = StepStatusCompleted
		step.EndTime = &now
	}
}

// FailStep marks a step as failed with the given cause
func (s *RunState) FailStep(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if step, ok := s.Steps[name]; ok {
		now := time.Now()
		step.Status = StepStatusFailed
		step.EndTime = &now
		step.Error = err
	}
}

// Step returns a copy of the named step's state
func (s *RunState) Step(name string) (StepState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	step, ok := s.Steps[name]
	if !ok {
		return StepState{}, false
	}
	return *step, true
}

// CurrentStatus returns the run status
func (s *RunState) CurrentStatus() RunStatusValue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// Duration returns the elapsed run duration
func (s *RunState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	return time.Since(s.StartTime)
}

// FailedSteps returns the names of failed steps in execution order
func (s *RunState) FailedSteps() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var failed []string
	for _, name := range StepOrder {
		if s.Steps[name].Status == StepStatusFailed {
			failed = append(failed, name)
		}
	}
	return failed
}

// IsComplete reports whether no step is still pending or active
func (s *RunState) IsComplete() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, step := range s.Steps {
		if step.Status == StepStatusPending || step.Status == StepStatusActive {
			return false
		}
	}
	return true
}
