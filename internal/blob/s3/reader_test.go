package s3blob

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// fakeS3 serves path-style HEAD/GET requests for a single stored object.
func fakeS3(t *testing.T, bucket, key, body string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/"+bucket+"/"+key {
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		if r.Method == http.MethodGet {
			_, _ = io.WriteString(w, body)
		}
	}))
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), ClientConfig{
		Endpoint:       srv.URL,
		Region:         "us-east-1",
		Bucket:         bucket,
		AccessKey:      "test",
		SecretKey:      "test",
		ForcePathStyle: true,
		HTTPClient:     srv.Client(),
	})
	require.NoError(t, err)
	return c
}

func TestReaderExists(t *testing.T) {
	r := NewReader(fakeS3(t, "archive", "archive/arb_checks/2025-01-31.jsonl", "{}\n"))

	ok, err := r.Exists(context.Background(), "archive/arb_checks/2025-01-31.jsonl")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Exists(context.Background(), "archive/arb_checks/2025-02-01.jsonl")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReaderGet(t *testing.T) {
	r := NewReader(fakeS3(t, "archive", "day.jsonl", "{\"id\":\"a\"}\n"))

	rc, err := r.Get(context.Background(), "day.jsonl")
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "{\"id\":\"a\"}\n", string(b))

	_, err = r.Get(context.Background(), "other.jsonl")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(context.Background(), ClientConfig{Region: "us-east-1"})
	assert.Error(t, err)
	_, err = New(context.Background(), ClientConfig{Bucket: "b"})
	assert.Error(t, err)
}
