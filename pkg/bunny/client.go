// Package bunny talks to the Bunny Stream video API.
package bunny

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// DefaultBaseURL is the Bunny Stream API host.
const DefaultBaseURL = "https://video.bunnycdn.com"

// Config carries the library-scoped credentials for the API.
type Config struct {
	BaseURL   string
	LibraryID string
	APIKey    string
	// Timeout bounds each request. Zero leaves it to the transport.
	Timeout time.Duration
	// HTTPClient overrides the default traced client.
	HTTPClient *http.Client
}

// Video is a remote video object allocated by CreateVideo.
type Video struct {
	ID    string
	Title string
}

// TransferResult describes a completed upload.
type TransferResult struct {
	BytesTransferred int64
	Elapsed          time.Duration
}

// Client creates video objects and streams their content.
type Client struct {
	httpClient *http.Client
	baseURL    string
	libraryID  string
	apiKey     string
	logger     *zap.Logger
}

// New constructs a Client.
func New(cfg Config, logger *zap.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		libraryID:  cfg.LibraryID,
		apiKey:     cfg.APIKey,
		logger:     logger,
	}
}

func (c *Client) videosURL() string {
	return fmt.Sprintf("%s/library/%s/videos", c.baseURL, c.libraryID)
}

type createVideoRequest struct {
	Title string `json:"title"`
}

type createVideoResponse struct {
	GUID string `json:"guid"`
}

// CreateVideo registers a new video object in the library and returns its id.
func (c *Client) CreateVideo(ctx context.Context, title string) (*Video, error) {
	payload, err := json.Marshal(createVideoRequest{Title: title})
	if err != nil {
		return nil, fmt.Errorf("marshal create video request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.videosURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build create video request: %w", err)
	}
	req.Header.Set("AccessKey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RegistrationError{Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RegistrationError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RegistrationError{StatusCode: resp.StatusCode, Message: responseMessage(resp.StatusCode, body)}
	}

	var created createVideoResponse
	if err := json.Unmarshal(body, &created); err != nil || created.GUID == "" {
		return nil, &RegistrationError{StatusCode: resp.StatusCode, Message: responseMessage(resp.StatusCode, body)}
	}

	c.logger.Debug("bunny video created", zap.String("video_id", created.GUID), zap.String("title", title))
	return &Video{ID: created.GUID, Title: title}, nil
}

// UploadVideo streams the file at path into video. The file length is sent
// as Content-Length and the body is never held in memory.
func (c *Client) UploadVideo(ctx context.Context, video *Video, path string) (*TransferResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ArtifactNotFoundError{Path: path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return nil, &ArtifactNotFoundError{Path: path, Err: err}
	}
	size := info.Size()

	var body io.Reader = f
	if size == 0 {
		body = http.NoBody
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.videosURL()+"/"+video.ID, body)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.ContentLength = size
	req.Header.Set("AccessKey", c.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UploadError{Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)
	elapsed := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UploadError{StatusCode: resp.StatusCode, Message: responseMessage(resp.StatusCode, respBody)}
	}
	if readErr != nil {
		c.logger.Warn("read upload response", zap.String("video_id", video.ID), zap.Error(readErr))
	}

	c.logger.Debug("bunny video uploaded",
		zap.String("video_id", video.ID),
		zap.Int64("bytes", size),
		zap.Duration("elapsed", elapsed),
	)
	return &TransferResult{BytesTransferred: size, Elapsed: elapsed}, nil
}
