package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHubServer(t *testing.T, known ...string) *httptest.Server {
	t.Helper()
	models := map[string]bool{}
	for _, m := range known {
		models["/api/models/"+m] = true
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !models[r.URL.Path] {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"id":"ok","pipeline_tag":"summarization"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHuggingFaceFactoryRequiresToken(t *testing.T) {
	f := NewHuggingFaceFactory(HuggingFaceConfig{})
	_, err := f(context.Background(), "t5-small")
	assert.ErrorContains(t, err, "token")
}

func TestHuggingFaceFactoryProbesHub(t *testing.T) {
	hub := newHubServer(t, "t5-small")
	f := NewHuggingFaceFactory(HuggingFaceConfig{Token: "hf_test", HubURL: hub.URL})

	_, err := f(context.Background(), "facebook/bart-large-cnn")
	assert.ErrorContains(t, err, "status code: 404")

	b, err := f(context.Background(), "t5-small")
	require.NoError(t, err)
	assert.Equal(t, "huggingface:t5-small", b.Name())
}

func TestHuggingFaceLoaderFallsBackOnMissingModel(t *testing.T) {
	hub := newHubServer(t, "t5-small")
	l := NewLoader(FamilyHuggingFace, nil, NewHuggingFaceFactory(HuggingFaceConfig{Token: "hf_test", HubURL: hub.URL}), nil)

	b, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "huggingface:t5-small", b.Name())
}

func TestHuggingFaceGenerateSendsDeterministicRequest(t *testing.T) {
	hub := newHubServer(t, "facebook/bart-large-cnn")
	var got hfRequest
	inference := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/facebook/bart-large-cnn", r.URL.Path)
		assert.Equal(t, "Bearer hf_test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`[{"summary_text":"Both lower lungs show infection."}]`))
	}))
	defer inference.Close()

	f := NewHuggingFaceFactory(HuggingFaceConfig{Token: "hf_test", HubURL: hub.URL, InferenceURL: inference.URL})
	b, err := f(context.Background(), "facebook/bart-large-cnn")
	require.NoError(t, err)

	out, err := b.Generate(context.Background(), Request{Text: "report text", MaxLength: 150, MinLength: 50})
	require.NoError(t, err)
	assert.Equal(t, "Both lower lungs show infection.", out)
	assert.Equal(t, "report text", got.Inputs)
	assert.Equal(t, 150, got.Parameters.MaxLength)
	assert.Equal(t, 50, got.Parameters.MinLength)
	assert.False(t, got.Parameters.DoSample)
}

func TestHuggingFaceGenerateRetriesServerErrors(t *testing.T) {
	noSleep(t)
	hub := newHubServer(t, "t5-small")
	var calls atomic.Int32
	inference := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, `{"error":"Model t5-small is currently loading"}`, http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[{"generated_text":"short summary"}]`))
	}))
	defer inference.Close()

	f := NewHuggingFaceFactory(HuggingFaceConfig{Token: "hf_test", HubURL: hub.URL, InferenceURL: inference.URL})
	b, err := f(context.Background(), "t5-small")
	require.NoError(t, err)

	out, err := b.Generate(context.Background(), Request{Text: "x", MaxLength: 10, MinLength: 5})
	require.NoError(t, err)
	assert.Equal(t, "short summary", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHuggingFaceGenerateClientErrorIsNotRetried(t *testing.T) {
	noSleep(t)
	hub := newHubServer(t, "t5-small")
	var calls atomic.Int32
	inference := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer inference.Close()

	f := NewHuggingFaceFactory(HuggingFaceConfig{Token: "hf_test", HubURL: hub.URL, InferenceURL: inference.URL})
	b, err := f(context.Background(), "t5-small")
	require.NoError(t, err)

	_, err = b.Generate(context.Background(), Request{Text: "x"})
	assert.ErrorContains(t, err, "status code: 400")
	assert.Equal(t, int32(1), calls.Load())
}
