package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs        []kafkago.Message
	err         error
	closed      bool
	hadDeadline bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	_, f.hadDeadline = ctx.Deadline()
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestPublish(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w, writeTimeout: time.Second}

	err := p.Publish(t.Context(), []byte("abc123"), []byte(`{"status":"success"}`), map[string]string{
		"event_type": "recording.upload.succeeded",
	})
	require.NoError(t, err)

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, []byte("abc123"), msg.Key)
	assert.Equal(t, []byte(`{"status":"success"}`), msg.Value)
	assert.Equal(t, []kafkago.Header{{Key: "event_type", Value: []byte("recording.upload.succeeded")}}, msg.Headers)
	assert.False(t, msg.Time.IsZero())
	assert.True(t, w.hadDeadline)

	require.NoError(t, p.Close(t.Context()))
	assert.True(t, w.closed)
}

func TestPublishError(t *testing.T) {
	p := &Producer{writer: &fakeWriter{err: errors.New("broker down")}}
	assert.EqualError(t, p.Publish(t.Context(), nil, nil, nil), "broker down")
}

func TestCompressionFromString(t *testing.T) {
	assert.Equal(t, kafkago.Gzip, CompressionFromString("GZIP"))
	assert.Equal(t, kafkago.Lz4, CompressionFromString("lz4"))
	assert.Equal(t, kafkago.Zstd, CompressionFromString("zstd"))
	assert.Equal(t, kafkago.Snappy, CompressionFromString("unknown"))
}

func TestNewProducer(t *testing.T) {
	p := NewProducer(ProducerConfig{Brokers: []string{"localhost:9092"}, Topic: "t", WriteTimeout: time.Second})
	w, ok := p.writer.(*kafkago.Writer)
	require.True(t, ok)
	assert.Equal(t, "t", w.Topic)
	assert.Equal(t, 1, w.BatchSize)
}
