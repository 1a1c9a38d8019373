package models

import "errors"

// ErrInvalidTransition is returned when an analysis status change is not allowed
var ErrInvalidTransition = errors.New("invalid analysis status transition")

// AnalysisStatus is the lifecycle state of an analysis record
type AnalysisStatus string

const (
	StatusProcessing AnalysisStatus = "processing"
	StatusCompleted  AnalysisStatus = "completed"
	StatusFailed     AnalysisStatus = "failed"
)

// Valid reports whether s is a known status value
func (s AnalysisStatus) Valid() bool {
	switch s {
	case StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is a final state. Terminal records never
// transition again, not even back to processing.
func (s AnalysisStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether a status change from -> to is legal.
// The only legal transitions are processing -> completed and
// processing -> failed. Every writer (orchestrator and reaper) must check
// this before updating a row.
func CanTransition(from, to AnalysisStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from.Terminal() {
		return false
	}
	return to.Terminal()
}
