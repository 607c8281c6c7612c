package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// MeetingIDPlaceholder is substituted into the recording path templates.
const MeetingIDPlaceholder = "{meetingId}"

// Config captures the full runtime configuration for the post-publish hook.
type Config struct {
	App       AppConfig
	Bunny     BunnyConfig
	Recording RecordingConfig
	Callback  CallbackConfig
	Kafka     KafkaConfig
	Storage   StorageConfig
	Tracing   TracingConfig
}

type AppConfig struct {
	Name        string   `env:"APP_NAME" envDefault:"bunnyhook-post-publish"`
	Environment string   `env:"APP_ENV" envDefault:"production"`
	Version     string   `env:"APP_VERSION" envDefault:"0.1.0"`
	LogLevel    string   `env:"APP_LOG_LEVEL" envDefault:"info"`
	LogOutputs  []string `env:"APP_LOG_OUTPUTS" envSeparator:"," envDefault:"stdout"`
}

type BunnyConfig struct {
	LibraryID   string        `env:"BUNNY_STREAM_LIB_ID,required,notEmpty"`
	APIKey      string        `env:"BUNNY_STREAM_API_KEY,required,notEmpty"`
	BaseURL     string        `env:"BUNNY_STREAM_BASE_URL" envDefault:"https://video.bunnycdn.com"`
	TitlePrefix string        `env:"BUNNY_VIDEO_TITLE_PREFIX" envDefault:"BBB Recording "`
	Timeout     time.Duration `env:"BUNNY_HTTP_TIMEOUT" envDefault:"0s"`
}

type RecordingConfig struct {
	VideoFormat  string `env:"RECORDING_VIDEO_FORMAT" envDefault:"video"`
	ArtifactPath string `env:"RECORDING_ARTIFACT_PATH" envDefault:"/var/bigbluebutton/published/video/{meetingId}/video-0.m4v"`
	MetadataPath string `env:"RECORDING_METADATA_PATH" envDefault:"/var/bigbluebutton/recording/raw/{meetingId}/events.xml"`
}

type CallbackConfig struct {
	MetadataKey string        `env:"CALLBACK_METADATA_KEY" envDefault:"int-bunny-ready-url"`
	Timeout     time.Duration `env:"CALLBACK_TIMEOUT" envDefault:"30s"`
}

type KafkaConfig struct {
	Brokers          []string      `env:"KAFKA_BROKERS" envSeparator:","`
	OutcomeTopic     string        `env:"KAFKA_OUTCOME_TOPIC" envDefault:"recordings.bunny.outcome"`
	Retries          int           `env:"KAFKA_RETRIES" envDefault:"1"`
	CompressionCodec string        `env:"KAFKA_COMPRESSION_CODEC" envDefault:"snappy"`
	BatchTimeout     time.Duration `env:"KAFKA_BATCH_TIMEOUT" envDefault:"10ms"`
	WriteTimeout     time.Duration `env:"KAFKA_WRITE_TIMEOUT" envDefault:"10s"`
}

type StorageConfig struct {
	Provider      string `env:"STORAGE_PROVIDER" envDefault:"minio"`
	Endpoint      string `env:"STORAGE_ENDPOINT"`
	Region        string `env:"STORAGE_REGION" envDefault:"us-east-1"`
	Bucket        string `env:"STORAGE_BUCKET" envDefault:"bunnyhook-receipts"`
	AccessKey     string `env:"STORAGE_ACCESS_KEY"`
	SecretKey     string `env:"STORAGE_SECRET_KEY"`
	UseSSL        bool   `env:"STORAGE_USE_SSL" envDefault:"true"`
	ReceiptPrefix string `env:"STORAGE_RECEIPT_PREFIX" envDefault:"receipts"`
}

type TracingConfig struct {
	Endpoint     string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure     bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	SampleRatio  float64 `env:"OTEL_TRACES_SAMPLER_RATIO" envDefault:"1.0"`
	ResourceAttr string  `env:"OTEL_RESOURCE_ATTRIBUTES" envDefault:"service.namespace=bigbluebutton"`
}

// Load parses environment variables into Config. It fails when the Bunny
// library id or API key is missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadRecording parses only the recording settings. It needs no secrets,
// so it can gate on the playback format before Load is called.
func LoadRecording() (RecordingConfig, error) {
	return env.ParseAs[RecordingConfig]()
}

// ArtifactPathFor returns the rendered video location for a meeting.
func (r RecordingConfig) ArtifactPathFor(meetingID string) string {
	return strings.ReplaceAll(r.ArtifactPath, MeetingIDPlaceholder, meetingID)
}

// MetadataPathFor returns the events.xml location for a meeting.
func (r RecordingConfig) MetadataPathFor(meetingID string) string {
	return strings.ReplaceAll(r.MetadataPath, MeetingIDPlaceholder, meetingID)
}

// Enabled reports whether outcome events should be published.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// Enabled reports whether outcome receipts should be archived.
func (s StorageConfig) Enabled() bool {
	return s.Endpoint != ""
}
