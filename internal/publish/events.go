package publish

import "time"

// Event types published for each terminal outcome.
const (
	EventUploadSucceeded = "recording.upload.succeeded"
	EventUploadFailed    = "recording.upload.failed"
)

// OutcomeEvent is emitted to Kafka and archived as a receipt once a run
// has finished.
type OutcomeEvent struct {
	RunID                 string    `json:"run_id"`
	MeetingID             string    `json:"meeting_id"`
	Status                string    `json:"status"`
	VideoID               string    `json:"video_id,omitempty"`
	SizeBytes             int64     `json:"size_bytes,omitempty"`
	SizeReadable          string    `json:"size_readable,omitempty"`
	UploadDurationSeconds float64   `json:"upload_duration_seconds,omitempty"`
	Reason                string    `json:"reason,omitempty"`
	CallbackAttempted     bool      `json:"callback_attempted"`
	OccurredAt            time.Time `json:"occurred_at"`
}

func eventType(o Outcome) string {
	if o.Kind == OutcomeSuccess {
		return EventUploadSucceeded
	}
	return EventUploadFailed
}
