// Package llm constructs clients for the OpenAI-compatible chat and
// embedding endpoints the chat pipeline talks to. Chat and extraction run
// against a Groq-hosted endpoint by default; embeddings against any
// OpenAI-compatible embedding server (typically a local one).
package llm

import (
	"fmt"
	"net/http"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"webrag/pkg/config"
	"webrag/pkg/utils"
)

// placeholderToken stands in for the API key when talking to local embedding
// servers, which require a bearer token header but ignore its value.
const placeholderToken = "not-needed"

// embeddingRequestTimeout bounds a single embedding batch call.
const embeddingRequestTimeout = 2 * time.Minute

// NewChatModel builds a chat completion client for the configured endpoint.
// model overrides cfg.Model when non-empty, so callers can switch models
// without touching the config. The API key comes from the environment
// variable named in cfg.APIKeyEnv and must be present.
func NewChatModel(cfg config.LLMConfig, model string) (*openai.LLM, error) {
	if model == "" {
		model = cfg.Model
	}
	key := cfg.ResolveAPIKey()
	if key == "" {
		return nil, fmt.Errorf("%w (reads %s)", utils.ErrAPIKeyNotSet, cfg.APIKeyEnv)
	}

	client, err := openai.New(
		openai.WithToken(key),
		openai.WithModel(model),
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model client: %w", err)
	}
	return client, nil
}

// NewEmbedder builds an embedding client for the configured endpoint. An
// unset API key falls back to a placeholder token rather than failing,
// since local embedding servers accept any value.
func NewEmbedder(cfg config.EmbeddingConfig) (*embeddings.EmbedderImpl, error) {
	key := cfg.ResolveAPIKey()
	if key == "" {
		key = placeholderToken
	}

	client, err := openai.New(
		openai.WithToken(key),
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithEmbeddingModel(cfg.Model),
		openai.WithHTTPClient(&http.Client{Timeout: embeddingRequestTimeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}
