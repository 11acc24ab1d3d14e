package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiSynthesize(t *testing.T) {
	pcm := []byte{0, 1, 2, 3}
	var got geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/"+geminiDefaultModel+":generateContent", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		resp := map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{map[string]any{
					"inlineData": map[string]any{
						"mimeType": "audio/L16;rate=24000",
						"data":     base64.StdEncoding.EncodeToString(pcm),
					},
				}}},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := NewGeminiProvider(ProviderConfig{APIKey: "k"})
	p.baseURL = srv.URL + "/models/"

	out, err := p.Synthesize(context.Background(), "hello", Voice{ID: "Kore"})
	require.NoError(t, err)
	assert.Equal(t, pcm, out)
	assert.Equal(t, []string{"AUDIO"}, got.GenerationConfig.ResponseModalities)
	require.NotNil(t, got.GenerationConfig.SpeechConfig.VoiceConfig)
	assert.Equal(t, "Kore", got.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName)
	assert.Equal(t, "hello", got.Contents[0].Parts[0].Text)
}

func TestGeminiSynthesizeNoAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	p := NewGeminiProvider(ProviderConfig{APIKey: "k"})
	p.baseURL = srv.URL + "/"

	_, err := p.Synthesize(context.Background(), "hello", Voice{ID: "Kore"})
	assert.ErrorContains(t, err, "no audio data")
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	perm := errors.New("bad request")
	err := WithRetry(context.Background(), func() error {
		calls++
		return perm
	})
	assert.ErrorIs(t, err, perm)
	assert.Equal(t, 1, calls)
}

func TestWithRetryRecovers(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		if calls == 1 {
			return &RetryableError{StatusCode: http.StatusServiceUnavailable}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestGoogleVoiceName(t *testing.T) {
	assert.Equal(t, "en-US-Chirp3-HD-Kore", googleVoiceName("en-US", "Kore"))
	assert.Equal(t, "pt-BR-Chirp3-HD-Puck", googleVoiceName("pt-BR", "Puck"))
	assert.Equal(t, "en-GB-Chirp3-HD-Orus", googleVoiceName("en-US", "en-GB-Chirp3-HD-Orus"))
}

func TestAvailableVoices(t *testing.T) {
	for _, name := range ProviderNames() {
		voices, err := AvailableVoices(name)
		require.NoError(t, err, name)

		defaults := map[string]string{}
		for _, v := range voices {
			if v.DefaultFor != "" {
				defaults[v.DefaultFor] = v.Name
			}
		}
		assert.Equal(t, map[string]string{"short": "Puck", "medium": "Kore", "long": "Fenrir"}, defaults, name)
	}

	_, err := AvailableVoices("polly")
	assert.Error(t, err)
}

func TestNewProviderValidation(t *testing.T) {
	_, err := NewProvider("gemini", ProviderConfig{})
	assert.Error(t, err)

	_, err = NewProvider("gemini-vertex", ProviderConfig{})
	assert.ErrorContains(t, err, "GCP_PROJECT")

	_, err = NewProvider("elevenlabs", ProviderConfig{})
	assert.Error(t, err)

	s, err := NewProvider("gemini", ProviderConfig{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "gemini", s.Name())
}
