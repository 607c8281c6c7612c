package bunny

import (
	"fmt"
	"net/http"
	"strings"
)

// ArtifactNotFoundError reports a missing or unreadable artifact. It is
// raised before any request is sent.
type ArtifactNotFoundError struct {
	Path string
	Err  error
}

func (e *ArtifactNotFoundError) Error() string {
	return "video file not found at " + e.Path
}

func (e *ArtifactNotFoundError) Unwrap() error {
	return e.Err
}

// RegistrationError reports a failed create-video call.
type RegistrationError struct {
	StatusCode int
	Message    string
}

func (e *RegistrationError) Error() string {
	return "bunny create error: " + e.Message
}

// UploadError reports a failed upload call.
type UploadError struct {
	StatusCode int
	Message    string
}

func (e *UploadError) Error() string {
	return "bunny upload error: " + e.Message
}

// responseMessage returns the response body when it carries text and a
// status-based message otherwise.
func responseMessage(status int, body []byte) string {
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}
	return fmt.Sprintf("unexpected status %d %s", status, http.StatusText(status))
}
