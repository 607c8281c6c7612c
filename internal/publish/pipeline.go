// Package publish uploads a rendered recording to Bunny Stream and reports
// the result to the meeting's callback endpoint.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/your-org/bunnyhook/pkg/bunny"
	"github.com/your-org/bunnyhook/pkg/bytesize"
	"github.com/your-org/bunnyhook/pkg/callback"
	"github.com/your-org/bunnyhook/pkg/metadata"
	"github.com/your-org/bunnyhook/pkg/storage/objectstore"
)

const tracerName = "github.com/your-org/bunnyhook/internal/publish"

// DefaultVideoFormat is the playback format whose artifact is uploaded.
const DefaultVideoFormat = "video"

// Registrar allocates remote video objects.
type Registrar interface {
	CreateVideo(ctx context.Context, title string) (*bunny.Video, error)
}

// Streamer uploads an artifact into a registered video object.
type Streamer interface {
	UploadVideo(ctx context.Context, video *bunny.Video, path string) (*bunny.TransferResult, error)
}

// Notifier delivers the status callback. It reports whether a request was
// attempted and never fails.
type Notifier interface {
	Notify(ctx context.Context, url, status, meetingID string, data map[string]any) bool
}

// EventPublisher emits outcome events.
type EventPublisher interface {
	Publish(ctx context.Context, key []byte, value []byte, headers map[string]string) error
}

// ReceiptStore archives outcome receipts.
type ReceiptStore interface {
	Put(ctx context.Context, obj objectstore.Object, reader io.Reader, size int64) error
}

// Paths maps a meeting id to the files the pipeline reads.
type Paths interface {
	ArtifactPathFor(meetingID string) string
	MetadataPathFor(meetingID string) string
}

// MetadataLoader reads meeting metadata from path.
type MetadataLoader func(path string) (metadata.Metadata, error)

// Request identifies one invocation of the hook.
type Request struct {
	MeetingID string
	Format    string
}

// Pipeline runs the upload-and-notify sequence for a single recording.
type Pipeline struct {
	registrar     Registrar
	streamer      Streamer
	notifier      Notifier
	paths         Paths
	loadMetadata  MetadataLoader
	publisher     EventPublisher
	receipts      ReceiptStore
	logger        *zap.Logger
	tracer        trace.Tracer
	videoFormat   string
	titlePrefix   string
	callbackKey   string
	receiptPrefix string
	now           func() time.Time
	newRunID      func() string
}

// Params carries the collaborators and settings for New.
type Params struct {
	Registrar    Registrar
	Streamer     Streamer
	Notifier     Notifier
	Paths        Paths
	LoadMetadata MetadataLoader
	// Publisher and Receipts are optional side channels.
	Publisher     EventPublisher
	Receipts      ReceiptStore
	Logger        *zap.Logger
	VideoFormat   string
	TitlePrefix   string
	CallbackKey   string
	ReceiptPrefix string
}

// New constructs a Pipeline.
func New(p Params) *Pipeline {
	pl := &Pipeline{
		registrar:     p.Registrar,
		streamer:      p.Streamer,
		notifier:      p.Notifier,
		paths:         p.Paths,
		loadMetadata:  p.LoadMetadata,
		publisher:     p.Publisher,
		receipts:      p.Receipts,
		logger:        p.Logger,
		tracer:        otel.Tracer(tracerName),
		videoFormat:   p.VideoFormat,
		titlePrefix:   p.TitlePrefix,
		callbackKey:   p.CallbackKey,
		receiptPrefix: p.ReceiptPrefix,
		now:           time.Now,
		newRunID:      uuid.NewString,
	}
	if pl.loadMetadata == nil {
		pl.loadMetadata = metadata.Load
	}
	if pl.logger == nil {
		pl.logger = zap.NewNop()
	}
	if pl.videoFormat == "" {
		pl.videoFormat = DefaultVideoFormat
	}
	if pl.callbackKey == "" {
		pl.callbackKey = metadata.CallbackURLKey
	}
	return pl
}

// Run executes the pipeline once. It never retries a step and makes at
// most one callback attempt. The returned Outcome is terminal.
func (p *Pipeline) Run(ctx context.Context, req Request) Outcome {
	if req.Format != p.videoFormat {
		p.logger.Info("skipping bunny stream upload",
			zap.String("meeting_id", req.MeetingID),
			zap.String("format", req.Format),
			zap.String("video_format", p.videoFormat),
		)
		return skipped(req.MeetingID)
	}

	runID := p.newRunID()
	logger := p.logger.With(zap.String("meeting_id", req.MeetingID), zap.String("run_id", runID))
	logger.Info("start uploading to bunny")

	ctx, span := p.tracer.Start(ctx, "publish.run", trace.WithAttributes(
		attribute.String("meeting.id", req.MeetingID),
		attribute.String("run.id", runID),
	))
	defer span.End()

	callbackURL := ""
	md, err := p.loadMetadata(p.paths.MetadataPathFor(req.MeetingID))
	if err != nil {
		logger.Warn("meeting metadata unavailable", zap.Error(err))
	} else if url, ok := md.Lookup(p.callbackKey); ok {
		callbackURL = url
	}

	var (
		outcome Outcome
		size    int64
	)
	if err == nil {
		outcome, size = p.upload(ctx, logger, runID, req.MeetingID)
	} else {
		outcome = failed(runID, req.MeetingID, err)
	}

	if outcome.Kind == OutcomeFailure {
		span.RecordError(outcome.Err)
		span.SetStatus(codes.Error, outcome.Reason)
		logger.Error("process failed", zap.String("reason", outcome.Reason))
	} else {
		span.SetAttributes(attribute.String("bunny.video_id", outcome.VideoID))
		logger.Info("upload finished",
			zap.String("video_id", outcome.VideoID),
			zap.Int64("bytes", outcome.BytesTransferred),
			zap.Duration("elapsed", outcome.Elapsed),
		)
	}

	outcome.Notified = p.notify(ctx, callbackURL, outcome, size)
	p.emit(ctx, logger, outcome, size)
	return outcome
}

// upload runs locate, register and stream. It returns the outcome and the
// artifact size in bytes.
func (p *Pipeline) upload(ctx context.Context, logger *zap.Logger, runID, meetingID string) (Outcome, int64) {
	artifact := p.paths.ArtifactPathFor(meetingID)
	info, err := os.Stat(artifact)
	if err != nil || info.IsDir() {
		return failed(runID, meetingID, &bunny.ArtifactNotFoundError{Path: artifact, Err: err}), 0
	}
	size := info.Size()
	logger.Info("artifact located",
		zap.String("path", artifact),
		zap.Int64("bytes", size),
		zap.String("size", bytesize.Format(size)),
	)

	regCtx, regSpan := p.tracer.Start(ctx, "publish.register")
	video, err := p.registrar.CreateVideo(regCtx, p.TitleFor(meetingID))
	endSpan(regSpan, err)
	if err != nil {
		return failed(runID, meetingID, err), size
	}
	logger.Info("bunny video created", zap.String("video_id", video.ID))

	upCtx, upSpan := p.tracer.Start(ctx, "publish.upload", trace.WithAttributes(
		attribute.String("bunny.video_id", video.ID),
		attribute.Int64("artifact.size", size),
	))
	res, err := p.streamer.UploadVideo(upCtx, video, artifact)
	endSpan(upSpan, err)
	if err != nil {
		return failed(runID, meetingID, err), size
	}

	return succeeded(runID, meetingID, video.ID, res.BytesTransferred, res.Elapsed), size
}

func (p *Pipeline) notify(ctx context.Context, url string, o Outcome, size int64) bool {
	ctx, span := p.tracer.Start(ctx, "publish.notify", trace.WithAttributes(
		attribute.String("callback.status", o.Kind.String()),
		attribute.Bool("callback.configured", url != ""),
	))
	defer span.End()

	if o.Kind == OutcomeSuccess {
		return p.notifier.Notify(ctx, url, callback.StatusSuccess, o.MeetingID, map[string]any{
			"bunnyId":               o.VideoID,
			"fileSizeRaw":           size,
			"fileSizeReadable":      bytesize.Format(size),
			"uploadDurationSeconds": o.UploadSeconds(),
		})
	}
	return p.notifier.Notify(ctx, url, callback.StatusFail, o.MeetingID, map[string]any{
		"reason": o.Reason,
	})
}

// emit sends the outcome to the optional event and receipt sinks. Errors
// are logged only.
func (p *Pipeline) emit(ctx context.Context, logger *zap.Logger, o Outcome, size int64) {
	if p.publisher == nil && p.receipts == nil {
		return
	}

	event := OutcomeEvent{
		RunID:             o.RunID,
		MeetingID:         o.MeetingID,
		Status:            o.Kind.String(),
		Reason:            o.Reason,
		CallbackAttempted: o.Notified,
		OccurredAt:        p.now().UTC(),
	}
	if o.Kind == OutcomeSuccess {
		event.VideoID = o.VideoID
		event.SizeBytes = size
		event.SizeReadable = bytesize.Format(size)
		event.UploadDurationSeconds = o.UploadSeconds()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error("marshal outcome event", zap.Error(err))
		return
	}

	if p.publisher != nil {
		headers := map[string]string{
			"event_type": eventType(o),
			"meeting_id": o.MeetingID,
			"run_id":     o.RunID,
		}
		if err := p.publisher.Publish(ctx, []byte(o.MeetingID), payload, headers); err != nil {
			logger.Warn("publish outcome event failed", zap.Error(err))
		}
	}

	if p.receipts != nil {
		obj := objectstore.Object{
			Key:         path.Join(p.receiptPrefix, o.MeetingID, o.RunID+".json"),
			ContentType: "application/json",
			Metadata: map[string]string{
				"meeting_id": o.MeetingID,
				"status":     o.Kind.String(),
			},
		}
		if err := p.receipts.Put(ctx, obj, bytes.NewReader(payload), int64(len(payload))); err != nil {
			logger.Warn("store outcome receipt failed", zap.String("key", obj.Key), zap.Error(err))
		}
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// TitleFor returns the Bunny video title used for a meeting.
func (p *Pipeline) TitleFor(meetingID string) string {
	return fmt.Sprintf("%s%s", p.titlePrefix, meetingID)
}
