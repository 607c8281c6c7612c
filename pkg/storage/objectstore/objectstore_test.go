package objectstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUnsupportedProvider(t *testing.T) {
	_, err := New(Config{Provider: "ftp"})
	assert.EqualError(t, err, "unsupported object store provider: ftp")
}

func TestNewMinio(t *testing.T) {
	cl, err := New(Config{
		Provider:  "minio",
		Endpoint:  "http://localhost:9000/",
		Bucket:    "receipts",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
	})
	require.NoError(t, err)

	mc, ok := cl.(*minioClient)
	require.True(t, ok)
	assert.Equal(t, "receipts", mc.bucket)
	assert.Equal(t, "localhost:9000", mc.client.EndpointURL().Host)
	assert.Equal(t, "http", mc.client.EndpointURL().Scheme)
	assert.NoError(t, cl.Close())
}

func TestSplitEndpoint(t *testing.T) {
	tests := []struct {
		in         string
		useSSL     bool
		wantHost   string
		wantSecure bool
	}{
		{in: "https://s3.amazonaws.com", useSSL: false, wantHost: "s3.amazonaws.com", wantSecure: true},
		{in: "http://minio:9000", useSSL: true, wantHost: "minio:9000", wantSecure: false},
		{in: "minio:9000", useSSL: true, wantHost: "minio:9000", wantSecure: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			host, secure := splitEndpoint(tt.in, tt.useSSL)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantSecure, secure)
		})
	}
}
