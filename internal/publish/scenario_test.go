package publish

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/your-org/bunnyhook/pkg/bunny"
	"github.com/your-org/bunnyhook/pkg/callback"
	"github.com/your-org/bunnyhook/pkg/config"
	"github.com/your-org/bunnyhook/pkg/metadata"
)

type hookRecorder struct {
	mu       sync.Mutex
	payloads []map[string]any
}

func (h *hookRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	h.payloads = append(h.payloads, body)
	w.WriteHeader(http.StatusNoContent)
}

type streamAPI struct {
	mu           sync.Mutex
	uploadStatus int
	creates      int
	uploads      int
	received     int
}

func (s *streamAPI) handler() http.Handler {
	r := chi.NewRouter()
	r.Post("/library/{libraryID}/videos", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.creates++
		s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"guid":"vid-1","videoLibraryId":7}`)
	})
	r.Put("/library/{libraryID}/videos/{videoID}", func(w http.ResponseWriter, r *http.Request) {
		n, _ := io.Copy(io.Discard, r.Body)
		s.mu.Lock()
		s.uploads++
		s.received = int(n)
		s.mu.Unlock()
		w.WriteHeader(s.uploadStatus)
	})
	return r
}

type scenario struct {
	pipeline *Pipeline
	api      *streamAPI
	hook     *hookRecorder
	hookURL  string
	paths    config.RecordingConfig
}

func newScenario(t *testing.T, uploadStatus int, withCallback bool) *scenario {
	t.Helper()
	dir := t.TempDir()

	api := &streamAPI{uploadStatus: uploadStatus}
	apiSrv := httptest.NewServer(api.handler())
	t.Cleanup(apiSrv.Close)

	hook := &hookRecorder{}
	hookSrv := httptest.NewServer(hook)
	t.Cleanup(hookSrv.Close)

	paths := config.RecordingConfig{
		ArtifactPath: filepath.Join(dir, "published", "video", "{meetingId}", "video-0.m4v"),
		MetadataPath: filepath.Join(dir, "raw", "{meetingId}", "events.xml"),
	}

	attr := ""
	if withCallback {
		attr = ` int-bunny-ready-url="` + hookSrv.URL + `/ready"`
	}
	mdPath := paths.MetadataPathFor(testMeetingID)
	require.NoError(t, os.MkdirAll(filepath.Dir(mdPath), 0o755))
	require.NoError(t, os.WriteFile(mdPath, []byte(`<recording><metadata meetingName="sync"`+attr+`/></recording>`), 0o600))

	logger := zaptest.NewLogger(t)
	client := bunny.New(bunny.Config{BaseURL: apiSrv.URL, LibraryID: "7", APIKey: "key", HTTPClient: apiSrv.Client()}, logger)

	return &scenario{
		pipeline: New(Params{
			Registrar:    client,
			Streamer:     client,
			Notifier:     callback.NewNotifier(hookSrv.Client(), 0, logger),
			Paths:        paths,
			LoadMetadata: metadata.Load,
			Logger:       logger,
			TitlePrefix:  "BBB Recording ",
		}),
		api:     api,
		hook:    hook,
		hookURL: hookSrv.URL,
		paths:   paths,
	}
}

func (s *scenario) writeArtifact(t *testing.T, content []byte) {
	t.Helper()
	path := s.paths.ArtifactPathFor(testMeetingID)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o600))
}

func TestScenarioSuccess(t *testing.T) {
	s := newScenario(t, http.StatusOK, true)
	content := []byte("0123456789abcdef0123456789abcdef")
	s.writeArtifact(t, content)

	outcome := s.pipeline.Run(t.Context(), Request{MeetingID: testMeetingID, Format: "video"})
	require.Equal(t, OutcomeSuccess, outcome.Kind, outcome.Reason)

	require.Len(t, s.hook.payloads, 1)
	payload := s.hook.payloads[0]
	assert.Equal(t, "success", payload["status"])
	assert.Equal(t, testMeetingID, payload["meetingId"])
	assert.Equal(t, "vid-1", payload["bunnyId"])
	assert.Equal(t, float64(len(content)), payload["fileSizeRaw"])
	assert.Equal(t, "32.00 B", payload["fileSizeReadable"])
	assert.GreaterOrEqual(t, payload["uploadDurationSeconds"].(float64), 0.0)
	assert.Equal(t, len(content), s.api.received)
}

func TestScenarioUploadRejected(t *testing.T) {
	s := newScenario(t, http.StatusInternalServerError, true)
	s.writeArtifact(t, []byte("data"))

	outcome := s.pipeline.Run(t.Context(), Request{MeetingID: testMeetingID, Format: "video"})
	require.Equal(t, OutcomeFailure, outcome.Kind)

	require.Len(t, s.hook.payloads, 1)
	payload := s.hook.payloads[0]
	assert.Equal(t, "fail", payload["status"])
	assert.Equal(t, testMeetingID, payload["meetingId"])
	assert.Equal(t, "bunny upload error: unexpected status 500 Internal Server Error", payload["reason"])
	assert.NotContains(t, payload, "bunnyId")
}

func TestScenarioMissingArtifactSkipsRegistration(t *testing.T) {
	s := newScenario(t, http.StatusOK, true)

	outcome := s.pipeline.Run(t.Context(), Request{MeetingID: testMeetingID, Format: "video"})
	require.Equal(t, OutcomeFailure, outcome.Kind)

	assert.Equal(t, 0, s.api.creates)
	require.Len(t, s.hook.payloads, 1)
	assert.Contains(t, s.hook.payloads[0]["reason"], s.paths.ArtifactPathFor(testMeetingID))
}

func TestScenarioWithoutCallback(t *testing.T) {
	s := newScenario(t, http.StatusOK, false)
	s.writeArtifact(t, []byte("data"))

	outcome := s.pipeline.Run(t.Context(), Request{MeetingID: testMeetingID, Format: "video"})

	assert.Equal(t, OutcomeSuccess, outcome.Kind)
	assert.False(t, outcome.Notified)
	assert.Empty(t, s.hook.payloads)
	assert.Equal(t, 1, s.api.uploads)
}
