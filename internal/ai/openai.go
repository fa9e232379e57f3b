package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sashabaranov/go-openai"
)

const (
	DefaultOpenAIModel = string(openai.SmallEmbedding3)
	// openAIMaxInputTokens is the input limit of the text-embedding-3 family.
	openAIMaxInputTokens = 8191
)

type openAIConfig struct {
	APIKey    string `json:"api_key"`
	BaseURL   string `json:"base_url"`
	Dimension int    `json:"dimension"`
}

type openAIEmbedProvider struct {
	client    *openai.Client
	dimension int

	encOnce sync.Once
	enc     *tiktoken.Tiktoken
}

func (p *openAIEmbedProvider) Name() string {
	return "openai"
}

func (p *openAIEmbedProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	_ = taskType
	if p.client == nil {
		return nil, ErrUnavailable
	}
	req := openai.EmbeddingRequest{
		Input:      []string{p.truncate(model, text)},
		Model:      openai.EmbeddingModel(model),
		Dimensions: p.dimension,
	}
	resp, err := p.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai create embeddings: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai response has no embeddings")
	}
	return resp.Data[0].Embedding, nil
}

// truncate cuts text to the model's token budget. Every token covers at least one byte, so
// short inputs skip the tokenizer entirely.
func (p *openAIEmbedProvider) truncate(model string, text string) string {
	if len(text) <= openAIMaxInputTokens {
		return text
	}
	p.encOnce.Do(func() {
		enc, err := tiktoken.EncodingForModel(model)
		if err != nil {
			enc, err = tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
		}
		if err == nil {
			p.enc = enc
		}
	})
	if p.enc == nil {
		return text
	}
	tokens := p.enc.Encode(text, nil, nil)
	if len(tokens) <= openAIMaxInputTokens {
		return text
	}
	return p.enc.Decode(tokens[:openAIMaxInputTokens])
}

func createOpenAIEmbedFactory(args interface{}) (IEmbedProvider, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	provider := &openAIEmbedProvider{dimension: cfg.Dimension}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return provider, nil
	}
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	provider.client = openai.NewClientWithConfig(clientCfg)
	return provider, nil
}

func init() {
	RegisterEmbed("openai", createOpenAIEmbedFactory)
}
