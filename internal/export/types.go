// Package export renders session records to PDF through headless Chrome.
package export

import "errors"

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// SessionNote is the renderable view of a session record.
type SessionNote struct {
	ClientName      string
	TherapistName   string
	SessionDate     string
	SessionTime     string
	DurationMinutes int
	Status          string
	Notes           string
	Summary         string
	OverallProgress string
	Insights        string
	Homework        string
	Observations    string
	RiskAssessment  string
	Interventions   []string
}

// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
var ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
