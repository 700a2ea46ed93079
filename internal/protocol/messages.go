package protocol

import "time"

// TranscriptionCompleted is broadcast on the bus after a successful
// pipeline run, for downstream consumers such as dashboards or bots.
type TranscriptionCompleted struct {
	Text      string             `json:"text"`
	Keywords  []string           `json:"keywords"`
	Timings   map[string]float64 `json:"timings"`
	Timestamp time.Time          `json:"timestamp"`
}

const SubjectTranscriptionCompleted = "transcript.completed"
