package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsKnownChatModel(t *testing.T) {
	tests := []struct {
		name     string
		model    string
		expected bool
	}{
		{"default model", "deepseek-r1-distill-llama-70b", true},
		{"versatile model", "llama-3.3-70b-versatile", true},
		{"mixtral", "mixtral-8x7b-32768", true},
		{"unknown model", "gpt-oss-120b", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsKnownChatModel(tt.model))
		})
	}
}

func TestLLMConfig_ResolveAPIKey(t *testing.T) {
	t.Setenv("WEBRAG_TEST_LLM_KEY", "gsk_test123")

	cfg := LLMConfig{APIKeyEnv: "WEBRAG_TEST_LLM_KEY"}
	assert.Equal(t, "gsk_test123", cfg.ResolveAPIKey())

	cfg.APIKeyEnv = "WEBRAG_TEST_LLM_KEY_UNSET"
	assert.Empty(t, cfg.ResolveAPIKey())
}

func TestEmbeddingConfig_ResolveAPIKey(t *testing.T) {
	t.Setenv("WEBRAG_TEST_EMBED_KEY", "local")

	cfg := EmbeddingConfig{APIKeyEnv: "WEBRAG_TEST_EMBED_KEY"}
	assert.Equal(t, "local", cfg.ResolveAPIKey())
}
