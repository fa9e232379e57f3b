package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mjournal/internal/config"
)

func TestResolveProvider(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.EmbeddingConfig
		want string
	}{
		{name: "empty", cfg: config.EmbeddingConfig{}, want: ProviderLocal},
		{name: "local", cfg: config.EmbeddingConfig{Provider: "local"}, want: ProviderLocal},
		{name: "openai without key", cfg: config.EmbeddingConfig{Provider: "openai"}, want: ProviderLocal},
		{name: "openai with key", cfg: config.EmbeddingConfig{Provider: "openai", OpenAI: config.OpenAIConfig{APIKey: "sk"}}, want: ProviderOpenAI},
		{name: "gemini blank key", cfg: config.EmbeddingConfig{Provider: "gemini", Gemini: config.GeminiConfig{APIKey: "  "}}, want: ProviderLocal},
		{name: "gemini with key", cfg: config.EmbeddingConfig{Provider: "Gemini", Gemini: config.GeminiConfig{APIKey: "g"}}, want: ProviderGemini},
		{name: "key for other provider", cfg: config.EmbeddingConfig{Provider: "openai", Gemini: config.GeminiConfig{APIKey: "g"}}, want: ProviderLocal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ResolveProvider(tc.cfg))
		})
	}
}

func TestNewGateway_OpenAIWithoutKeyMatchesLocal(t *testing.T) {
	ctx := context.Background()
	downgraded, err := NewGateway(ctx, config.EmbeddingConfig{Provider: "openai"})
	require.NoError(t, err)
	require.Equal(t, ProviderLocal, downgraded.Provider())
	require.Equal(t, "openai", downgraded.Configured())

	local, err := NewGateway(ctx, config.EmbeddingConfig{Provider: "local"})
	require.NoError(t, err)

	a, err := downgraded.Embed(ctx, "shipping the parser today", TaskRetrievalDocument)
	require.NoError(t, err)
	b, err := local.Embed(ctx, "shipping the parser today", TaskRetrievalDocument)
	require.NoError(t, err)
	require.Equal(t, b, a)
	require.Equal(t, local.Dimension(), downgraded.Dimension())
}

type openAITestServer struct {
	calls atomic.Int32
	fail  atomic.Bool
	vec   []float32
}

func (s *openAITestServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.calls.Add(1)
	w.Header().Set("Content-Type", "application/json")
	if s.fail.Load() {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded","type":"insufficient_quota"}}`))
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"object": "list",
		"model":  "text-embedding-3-small",
		"data": []map[string]interface{}{
			{"object": "embedding", "index": 0, "embedding": s.vec},
		},
		"usage": map[string]int{"prompt_tokens": 1, "total_tokens": 1},
	})
}

func TestGateway_OpenAIFailureFallsBackPerCall(t *testing.T) {
	ctx := context.Background()
	remote := &openAITestServer{vec: []float32{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5}}
	srv := httptest.NewServer(remote)
	defer srv.Close()

	g, err := NewGateway(ctx, config.EmbeddingConfig{
		Provider: "openai",
		OpenAI:   config.OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Dimension: 8},
	})
	require.NoError(t, err)
	require.Equal(t, ProviderOpenAI, g.Provider())
	require.Equal(t, 8, g.Dimension())

	remote.fail.Store(true)
	vec, err := g.Embed(ctx, "standup notes", TaskRetrievalDocument)
	require.NoError(t, err)
	want, err := NewLocalEmbedder(8).Embed(ctx, "standup notes", TaskRetrievalDocument)
	require.NoError(t, err)
	require.Equal(t, want, vec)

	remote.fail.Store(false)
	vec, err = g.Embed(ctx, "standup notes", TaskRetrievalDocument)
	require.NoError(t, err)
	require.Equal(t, remote.vec, vec)
	require.Equal(t, ProviderOpenAI, g.Provider())
	require.EqualValues(t, 2, remote.calls.Load())
}

func TestGateway_GeminiFailureFallsBackWithGeminiDimension(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"denied","status":"PERMISSION_DENIED"}}`))
	}))
	defer srv.Close()

	g, err := NewGateway(ctx, config.EmbeddingConfig{
		Provider: "gemini",
		Gemini:   config.GeminiConfig{APIKey: "g-test", BaseURL: srv.URL},
	})
	require.NoError(t, err)
	require.Equal(t, 768, g.Dimension())

	vec, err := g.Embed(ctx, "how the week went", TaskRetrievalQuery)
	require.NoError(t, err)
	require.Len(t, vec, 768)
}

func TestNewGateway_UnknownModelNeedsDimension(t *testing.T) {
	_, err := NewGateway(context.Background(), config.EmbeddingConfig{
		Provider: "openai",
		OpenAI:   config.OpenAIConfig{APIKey: "sk", Model: "custom-embedder"},
	})
	require.Error(t, err)
}

func TestNewGateway_RemoteWrapperApplied(t *testing.T) {
	wrapped := false
	_, err := NewGateway(context.Background(), config.EmbeddingConfig{
		Provider: "openai",
		OpenAI:   config.OpenAIConfig{APIKey: "sk"},
	}, WithRemoteWrapper(func(e IEmbedder) IEmbedder {
		wrapped = true
		return e
	}))
	require.NoError(t, err)
	require.True(t, wrapped)
}
