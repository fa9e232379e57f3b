package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mjournal/internal/config"
)

const (
	ProviderLocal  = "local"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type gatewayOptions struct {
	wrapRemote func(IEmbedder) IEmbedder
}

type GatewayOption func(*gatewayOptions)

// WithRemoteWrapper decorates the remote embedder, e.g. with a cache. The local fallback is
// never wrapped.
func WithRemoteWrapper(fn func(IEmbedder) IEmbedder) GatewayOption {
	return func(o *gatewayOptions) {
		o.wrapRemote = fn
	}
}

// Gateway maps text to vectors. The effective provider and the dimension are decided once in
// NewGateway and never change afterwards.
type Gateway struct {
	configured string
	provider   string
	dimension  int
	embedder   IEmbedder
}

// ResolveProvider returns the provider a gateway built from cfg will use. Remote providers
// without an API key resolve to local.
func ResolveProvider(cfg config.EmbeddingConfig) string {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderOpenAI:
		if strings.TrimSpace(cfg.OpenAI.APIKey) != "" {
			return ProviderOpenAI
		}
	case ProviderGemini:
		if strings.TrimSpace(cfg.Gemini.APIKey) != "" {
			return ProviderGemini
		}
	}
	return ProviderLocal
}

func NewGateway(ctx context.Context, cfg config.EmbeddingConfig, opts ...GatewayOption) (*Gateway, error) {
	o := &gatewayOptions{}
	for _, opt := range opts {
		opt(o)
	}
	configured := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if configured == "" {
		configured = ProviderLocal
	}
	g := &Gateway{configured: configured, provider: ResolveProvider(cfg)}
	if g.provider != configured {
		logutil.GetLogger(ctx).Warn("embedding provider requested without api key, using local embeddings",
			zap.String("requested", configured))
	}

	var (
		args  interface{}
		model string
	)
	switch g.provider {
	case ProviderLocal:
		g.dimension = cfg.Local.Dimension
		if g.dimension <= 0 {
			g.dimension = DefaultLocalDimension
		}
		g.embedder = NewLocalEmbedder(g.dimension)
		return g, nil
	case ProviderOpenAI:
		args, model = cfg.OpenAI, cfg.OpenAI.Model
		if model == "" {
			model = DefaultOpenAIModel
		}
		g.dimension = modelDimension(model, cfg.OpenAI.Dimension)
	case ProviderGemini:
		args, model = cfg.Gemini, cfg.Gemini.Model
		if model == "" {
			model = DefaultGeminiModel
		}
		g.dimension = modelDimension(model, cfg.Gemini.Dimension)
	}
	if g.dimension <= 0 {
		return nil, fmt.Errorf("embedding.%s.dimension is required for model %s", g.provider, model)
	}
	provider, err := NewEmbedProvider(g.provider, args)
	if err != nil {
		return nil, fmt.Errorf("init %s embedder: %w", g.provider, err)
	}
	remote := NewEmbedder(provider, model)
	if o.wrapRemote != nil {
		remote = o.wrapRemote(remote)
	}
	local := NewLocalEmbedder(g.dimension)
	g.embedder = NewGroupEmbedder([]EmbedderEntry{
		{Name: model, Embedder: remote},
		{Name: local.ModelName(), Embedder: local},
	})
	logutil.GetLogger(ctx).Info("embedding gateway ready",
		zap.String("provider", g.provider),
		zap.String("model", model),
		zap.Int("dimension", g.dimension),
	)
	return g, nil
}

// Embed never fails because of the remote provider: a failed remote call is answered by the
// local embedder for that call only.
func (g *Gateway) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return g.embedder.Embed(ctx, text, taskType)
}

func (g *Gateway) ModelName() string {
	return g.embedder.ModelName()
}

func (g *Gateway) Provider() string {
	return g.provider
}

func (g *Gateway) Configured() string {
	return g.configured
}

func (g *Gateway) Dimension() int {
	return g.dimension
}
