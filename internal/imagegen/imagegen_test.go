package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImagenGenerate(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	var got imagenRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/"+imagenDefaultModel+":predict", r.URL.Path)
		assert.Equal(t, "k", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"predictions":[{"mimeType":"image/jpeg","bytesBase64Encoded":"` +
			base64.StdEncoding.EncodeToString(jpeg) + `"}]}`))
	}))
	defer srv.Close()

	g := NewImagen(Config{APIKey: "k"})
	g.baseURL = srv.URL + "/models/"

	img, err := g.Generate(context.Background(), "a lighthouse", AspectTall)
	require.NoError(t, err)
	assert.Equal(t, jpeg, img)
	assert.Equal(t, "a lighthouse", got.Instances[0].Prompt)
	assert.Equal(t, "9:16", got.Parameters.AspectRatio)
	assert.Equal(t, 1, got.Parameters.SampleCount)
	assert.Equal(t, "image/jpeg", got.Parameters.OutputOptions.MimeType)
}

func TestImagenFilteredPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	g := NewImagen(Config{APIKey: "k"})
	g.baseURL = srv.URL + "/"

	_, err := g.Generate(context.Background(), "x", AspectWide)
	assert.ErrorContains(t, err, "no image")
}

func TestPollinationsGenerate(t *testing.T) {
	body := bytes.Repeat([]byte{0xAB}, 512)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/prompt/a quiet harbor", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "1920", q.Get("width"))
		assert.Equal(t, "1080", q.Get("height"))
		assert.Equal(t, "flux", q.Get("model"))
		assert.Equal(t, "true", q.Get("nologo"))
		assert.NotEmpty(t, q.Get("seed"))
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	p := NewPollinations(Config{})
	p.baseURL = srv.URL + "/prompt/"

	img, err := p.Generate(context.Background(), "a quiet harbor", AspectWide)
	require.NoError(t, err)
	assert.Equal(t, body, img)
}

func TestPollinationsRejectsTinyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>err</html>"))
	}))
	defer srv.Close()

	p := NewPollinations(Config{})
	p.baseURL = srv.URL + "/prompt/"

	_, err := p.Generate(context.Background(), "x", AspectTall)
	assert.Error(t, err)
}

func TestAspectSize(t *testing.T) {
	w, h := AspectWide.Size()
	assert.Equal(t, [2]int{1920, 1080}, [2]int{w, h})
	w, h = AspectTall.Size()
	assert.Equal(t, [2]int{1080, 1920}, [2]int{w, h})
	assert.Equal(t, seedFor("same"), seedFor("same"))
}

func TestNewGenerator(t *testing.T) {
	_, err := NewGenerator(Config{Provider: "imagen"})
	assert.Error(t, err)

	g, err := NewGenerator(Config{Provider: "pollinations"})
	require.NoError(t, err)
	assert.Equal(t, "pollinations", g.Name())

	_, err = NewGenerator(Config{Provider: "dalle"})
	assert.Error(t, err)
}
