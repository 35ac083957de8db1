// Package providers selects the generation.Provider implementation named in
// the configuration.
package providers

import (
	"context"
	"log/slog"

	"github.com/phrazzld/goalforge/internal/config"
	"github.com/phrazzld/goalforge/internal/domain"
	"github.com/phrazzld/goalforge/internal/generation"
	"github.com/phrazzld/goalforge/internal/platform/anthropic"
	"github.com/phrazzld/goalforge/internal/platform/gemini"
	"github.com/phrazzld/goalforge/internal/platform/openai"
)

// New builds the provider for cfg.Provider.
func New(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (generation.Provider, error) {
	name, err := generation.ParseProviderName(cfg.Provider)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "initializing AI provider", "provider", name, "model", cfg.Model)

	switch name {
	case generation.ProviderGemini:
		return gemini.New(ctx, logger, cfg)
	case generation.ProviderOpenAI:
		return openai.New(logger, cfg, nil)
	case generation.ProviderAnthropic:
		return anthropic.New(logger, cfg, nil)
	}
	return nil, generation.ErrUnknownProvider
}

// ForRoles builds the provider of every generation role. Roles without an
// override share the default provider, and each backend is built once.
// A role on another backend than cfg.Provider uses that backend's default
// model and endpoint.
func ForRoles(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (map[domain.AIRole]generation.Provider, error) {
	byRole := map[domain.AIRole]string{
		domain.AIRolePlanner:       cfg.Roles.Planner,
		domain.AIRoleTaskGenerator: cfg.Roles.TaskGenerator,
		domain.AIRoleMentor:        cfg.Roles.Mentor,
		domain.AIRoleEvaluator:     cfg.Roles.Evaluator,
	}

	built := make(map[string]generation.Provider)
	out := make(map[domain.AIRole]generation.Provider, len(byRole))
	for role, name := range byRole {
		if name == "" {
			name = cfg.Provider
		}
		if p, ok := built[name]; ok {
			out[role] = p
			continue
		}

		roleCfg := cfg
		if name != cfg.Provider {
			roleCfg.Provider = name
			roleCfg.Model = ""
			roleCfg.BaseURL = ""
		}
		p, err := New(ctx, logger, roleCfg)
		if err != nil {
			return nil, err
		}
		built[name] = p
		out[role] = p
	}
	return out, nil
}
