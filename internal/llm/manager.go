package llm

import (
	"github.com/askdb/askdb/internal/config"
)

// NewService builds the Service for the configured provider. The rules
// provider is always valid and needs no credentials.
func NewService(cfg config.LLMConfig) (Service, error) {
	if cfg.Provider == ProviderRules {
		return NewFallbackService(), nil
	}

	return NewClient(cfg)
}
