package publish

import (
	"math"
	"time"
)

// OutcomeKind is the terminal state reached by a pipeline run.
type OutcomeKind int

const (
	// OutcomeSkipped means the format was not the video format; nothing ran.
	OutcomeSkipped OutcomeKind = iota
	OutcomeSuccess
	OutcomeFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "fail"
	default:
		return "unknown"
	}
}

// Outcome is computed once per run and never changes after notification.
type Outcome struct {
	Kind      OutcomeKind
	RunID     string
	MeetingID string

	// Success fields.
	VideoID          string
	BytesTransferred int64
	Elapsed          time.Duration

	// Failure fields.
	Reason string
	Err    error

	// Notified is true when a callback request was attempted.
	Notified bool
}

func skipped(meetingID string) Outcome {
	return Outcome{Kind: OutcomeSkipped, MeetingID: meetingID}
}

func succeeded(runID, meetingID, videoID string, bytes int64, elapsed time.Duration) Outcome {
	return Outcome{
		Kind:             OutcomeSuccess,
		RunID:            runID,
		MeetingID:        meetingID,
		VideoID:          videoID,
		BytesTransferred: bytes,
		Elapsed:          elapsed,
	}
}

func failed(runID, meetingID string, err error) Outcome {
	return Outcome{
		Kind:      OutcomeFailure,
		RunID:     runID,
		MeetingID: meetingID,
		Reason:    err.Error(),
		Err:       err,
	}
}

// UploadSeconds is the elapsed upload time rounded to hundredths.
func (o Outcome) UploadSeconds() float64 {
	return math.Round(o.Elapsed.Seconds()*100) / 100
}
