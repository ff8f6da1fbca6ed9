// ABOUTME: Tests for the speech client against a stub HTTP server
// ABOUTME: Covers request shape, success decoding, and error surfacing

package voice

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Options{
		BaseURL:         srv.URL,
		APIKey:          "test-key",
		TranscribeModel: "whisper-1",
		SpeechModel:     "tts-1",
		SpeechVoice:     "alloy",
	}, nil)
}

func TestClient_Transcribe(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))

		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, []byte("fake-ogg"), data)

		json.NewEncoder(w).Encode(map[string]string{"text": "hello from voice"})
	})

	text, err := c.Transcribe(context.Background(), []byte("fake-ogg"))
	require.NoError(t, err)
	assert.Equal(t, "hello from voice", text)
}

func TestClient_Transcribe_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusServiceUnavailable)
	})

	_, err := c.Transcribe(context.Background(), []byte("fake-ogg"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")
}

func TestClient_Synthesize(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/speech", r.URL.Path)

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "tts-1", payload["model"])
		assert.Equal(t, "alloy", payload["voice"])
		assert.Equal(t, "read this aloud", payload["input"])

		w.Write([]byte("fake-audio"))
	})

	audio, err := c.Synthesize(context.Background(), "read this aloud")
	require.NoError(t, err)
	assert.Equal(t, []byte("fake-audio"), audio)
}

func TestClient_Synthesize_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})

	_, err := c.Synthesize(context.Background(), "read this aloud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}
