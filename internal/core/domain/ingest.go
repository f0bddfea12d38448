package domain

import "time"

// IngestOptions configures an ingestion run.
type IngestOptions struct {
	// Reset clears the index in the same commit as the new entries.
	// Without it a re-run appends duplicate entries.
	Reset bool
}

// IngestReport summarises an ingestion run.
type IngestReport struct {
	Artifacts  int
	Chunks     int
	Dimensions int
	Model      string
	Duration   time.Duration
}
