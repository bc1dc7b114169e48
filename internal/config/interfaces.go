package config

import "context"

// SecretProvider resolves secret references to plaintext values. The
// reference format is provider specific (an env var name, a file path).
type SecretProvider interface {
	// GetSecrets returns a map of reference -> value for every reference it
	// could resolve. Unresolvable references are omitted, not errors.
	GetSecrets(ctx context.Context, refs []string) (map[string]string, error)
}
