package providers

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/phrazzld/goalforge/internal/config"
	"github.com/phrazzld/goalforge/internal/domain"
	"github.com/phrazzld/goalforge/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name    string
		cfg     config.LLMConfig
		want    generation.ProviderName
		wantErr error
	}{
		{
			name: "openai",
			cfg:  config.LLMConfig{Provider: "openai", OpenAIAPIKey: "k", Timeout: time.Second},
			want: generation.ProviderOpenAI,
		},
		{
			name: "anthropic",
			cfg:  config.LLMConfig{Provider: "anthropic", AnthropicAPIKey: "k", Timeout: time.Second},
			want: generation.ProviderAnthropic,
		},
		{
			name: "gemini",
			cfg:  config.LLMConfig{Provider: "gemini", GeminiAPIKey: "k", Timeout: time.Second},
			want: generation.ProviderGemini,
		},
		{
			name:    "unknown",
			cfg:     config.LLMConfig{Provider: "llama"},
			wantErr: generation.ErrUnknownProvider,
		},
		{
			name:    "missing key",
			cfg:     config.LLMConfig{Provider: "openai"},
			wantErr: generation.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := New(context.Background(), logger, tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Name())
		})
	}
}

func TestForRoles(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name     string
		cfg      config.LLMConfig
		want     map[domain.AIRole]generation.ProviderName
		wantSame bool
		wantErr  error
	}{
		{
			name: "all roles share the default",
			cfg:  config.LLMConfig{Provider: "openai", OpenAIAPIKey: "k", Timeout: time.Second},
			want: map[domain.AIRole]generation.ProviderName{
				domain.AIRolePlanner:       generation.ProviderOpenAI,
				domain.AIRoleTaskGenerator: generation.ProviderOpenAI,
				domain.AIRoleMentor:        generation.ProviderOpenAI,
				domain.AIRoleEvaluator:     generation.ProviderOpenAI,
			},
			wantSame: true,
		},
		{
			name: "evaluator override",
			cfg: config.LLMConfig{
				Provider:        "openai",
				Model:           "gpt-4o-mini",
				OpenAIAPIKey:    "k",
				AnthropicAPIKey: "k",
				Timeout:         time.Second,
				Roles:           config.LLMRoles{Evaluator: "anthropic"},
			},
			want: map[domain.AIRole]generation.ProviderName{
				domain.AIRolePlanner:       generation.ProviderOpenAI,
				domain.AIRoleTaskGenerator: generation.ProviderOpenAI,
				domain.AIRoleMentor:        generation.ProviderOpenAI,
				domain.AIRoleEvaluator:     generation.ProviderAnthropic,
			},
		},
		{
			name: "override without its key",
			cfg: config.LLMConfig{
				Provider:     "openai",
				OpenAIAPIKey: "k",
				Timeout:      time.Second,
				Roles:        config.LLMRoles{Mentor: "anthropic"},
			},
			wantErr: generation.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ForRoles(context.Background(), logger, tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for role, name := range tt.want {
				assert.Equal(t, name, got[role].Name(), role)
			}
			if tt.wantSame {
				assert.Same(t, got[domain.AIRolePlanner], got[domain.AIRoleEvaluator])
			}
		})
	}
}
