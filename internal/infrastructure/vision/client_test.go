package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promolens/backend/internal/domain"
)

func sampleResponse() annotateResponse {
	return annotateResponse{
		Responses: []domain.Annotation{{
			FullTextAnnotation: domain.TextAnnotation{
				Pages: []domain.Page{{
					Blocks: []domain.Block{{
						BoundingBox: domain.BoundingPoly{Vertices: []domain.Vertex{
							{X: 10, Y: 10}, {X: 110, Y: 10}, {X: 110, Y: 40}, {X: 10, Y: 40},
						}},
						Paragraphs: []domain.Paragraph{{
							Words: []domain.Word{{Symbols: []domain.Symbol{{Text: "$"}, {Text: "3"}, {Text: "."}, {Text: "99"}}}},
						}},
					}},
				}},
			},
		}},
	}
}

func TestNewClient(t *testing.T) {
	client := NewClient("test-api-key", "https://api.example.com", 5, 2, nil)

	assert.NotNil(t, client)
	assert.Equal(t, "test-api-key", client.apiKey)
	assert.Equal(t, "https://api.example.com", client.baseURL)
	assert.NotNil(t, client.httpClient)
	assert.NotNil(t, client.rateLimiter)
	assert.False(t, client.debug)
	assert.Equal(t, "vision", client.Name())
}

func TestNewClient_DefaultBaseURL(t *testing.T) {
	client := NewClient("k", "", 0, 0, nil)
	assert.Equal(t, DefaultBaseURL, client.baseURL)
}

func TestSetDebug(t *testing.T) {
	client := NewClient("test-api-key", "https://api.example.com", 0, 0, nil)

	client.SetDebug(true)
	assert.True(t, client.debug)

	client.SetDebug(false)
	assert.False(t, client.debug)
}

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, 1000 * time.Millisecond},
		{3, 2000 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			assert.Equal(t, tt.expected, exponentialBackoff(tt.attempt))
		})
	}
}

func TestAnnotateContent_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/images:annotate", r.URL.Path)
		assert.Equal(t, "test-api-key", r.URL.Query().Get("key"))

		var req annotateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Requests, 1)
		assert.Equal(t, "TEXT_DETECTION", req.Requests[0].Features[0].Type)
		decoded, err := base64.StdEncoding.DecodeString(req.Requests[0].Image.Content)
		require.NoError(t, err)
		assert.Equal(t, "jpeg-bytes", string(decoded))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sampleResponse())
	}))
	defer server.Close()

	client := NewClient("test-api-key", server.URL, 0, 0, nil)

	annotation, err := client.AnnotateContent(context.Background(), []byte("jpeg-bytes"))

	require.NoError(t, err)
	require.Len(t, annotation.FullTextAnnotation.Pages, 1)
	assert.Len(t, annotation.FullTextAnnotation.Pages[0].Blocks, 1)
}

func TestAnnotate_ReadsImageFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(sampleResponse())
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "page_1.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg"), 0o644))

	client := NewClient("k", server.URL, 0, 0, nil)
	annotation, err := client.Annotate(context.Background(), path)

	require.NoError(t, err)
	assert.NotNil(t, annotation)

	_, err = client.Annotate(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"))
	assert.Error(t, err)
}

func TestAnnotateContent_ServerError_Retries(t *testing.T) {
	attempts := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(sampleResponse())
	}))
	defer server.Close()

	client := NewClient("k", server.URL, 0, 0, nil)

	annotation, err := client.AnnotateContent(context.Background(), []byte("x"))

	require.NoError(t, err)
	assert.NotNil(t, annotation)
	assert.Equal(t, 3, attempts)
}

func TestAnnotateContent_ClientError_NoRetry(t *testing.T) {
	attempts := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient("k", server.URL, 0, 0, nil)

	annotation, err := client.AnnotateContent(context.Background(), []byte("x"))

	assert.Nil(t, annotation)
	assert.ErrorIs(t, err, domain.ErrOCRFailure)
	assert.Equal(t, 1, attempts)
}

func TestAnnotateContent_TooManyRequests_Retries(t *testing.T) {
	attempts := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(sampleResponse())
	}))
	defer server.Close()

	client := NewClient("k", server.URL, 0, 0, nil)

	_, err := client.AnnotateContent(context.Background(), []byte("x"))

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestAnnotateContent_AllAttemptsFail(t *testing.T) {
	attempts := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient("k", server.URL, 0, 0, nil)

	_, err := client.AnnotateContent(context.Background(), []byte("x"))

	assert.ErrorIs(t, err, domain.ErrOCRFailure)
	assert.Equal(t, maxAttempts, attempts)
}

func TestAnnotateContent_PerImageError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(annotateResponse{
			Responses: []domain.Annotation{{Error: &domain.Status{Code: 3, Message: "Bad image data."}}},
		})
	}))
	defer server.Close()

	client := NewClient("k", server.URL, 0, 0, nil)

	_, err := client.AnnotateContent(context.Background(), []byte("x"))

	assert.ErrorIs(t, err, domain.ErrOCRFailure)
	assert.Contains(t, err.Error(), "Bad image data.")
}

func TestAnnotateContent_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient("k", server.URL, 0, 0, nil)

	_, err := client.AnnotateContent(context.Background(), []byte("x"))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode response")
}

func TestAnnotateContent_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient("k", server.URL, 0, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.AnnotateContent(ctx, []byte("x"))

	assert.ErrorIs(t, err, context.Canceled)
}
