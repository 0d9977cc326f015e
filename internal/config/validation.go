package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration shared by every mode of operation.
// It wraps sentinel errors so callers can branch with errors.Is.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.OpenRouterAPIKey) == "" {
		return fmt.Errorf("%w: OPENROUTER_API_KEY is required", ErrMissingAPIKey)
	}
	if err := validateModelName(c.ChatModel); err != nil {
		return fmt.Errorf("chat_model: %w", err)
	}
	if err := validateModelName(c.EmbeddingModel); err != nil {
		return fmt.Errorf("embedding_model: %w", err)
	}
	if err := validateURL(c.QdrantURL); err != nil {
		return fmt.Errorf("%w: %v", ErrMissingQdrantURL, err)
	}
	if err := validateCollection(c.QdrantCollection); err != nil {
		return err
	}
	return nil
}

// ValidateServe checks everything the HTTP server mode needs, which adds the
// session store on top of the shared requirements.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("%w: DATABASE_URL is required for serve mode", ErrMissingDatabaseURL)
	}
	return nil
}

// validateModelName rejects empty or whitespace-only model identifiers.
// OpenRouter model names are provider-qualified ("openai/text-embedding-3-small").
func validateModelName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("%w: empty", ErrInvalidModelName)
	}
	if strings.ContainsAny(trimmed, " \t\n") {
		return fmt.Errorf("%w: %q contains whitespace", ErrInvalidModelName, name)
	}
	return nil
}

// validateURL requires an absolute http(s) URL.
func validateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("empty URL")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

// validateCollection keeps collection names to the safe charset Qdrant
// accepts in URL paths.
func validateCollection(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidCollection)
	}
	for _, r := range name {
		ok := r == '-' || r == '_' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidCollection, name, r)
		}
	}
	return nil
}
