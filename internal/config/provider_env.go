package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Secret provider names accepted in SECRET_PROVIDER.
const (
	SecretProviderEnv  = "env"
	SecretProviderFile = "file"
)

// DefaultSecretsDir is where FileProvider looks for relative references when
// SECRETS_DIR is unset.
const DefaultSecretsDir = "/run/secrets"

// NewSecretProviderFromEnv selects the SecretProvider named by
// SECRET_PROVIDER (default "env"). The file provider is rooted at
// SECRETS_DIR.
func NewSecretProviderFromEnv() (SecretProvider, error) {
	switch name := strings.ToLower(strings.TrimSpace(os.Getenv("SECRET_PROVIDER"))); name {
	case "", SecretProviderEnv:
		return NewEnvVarProvider(), nil
	case SecretProviderFile:
		dir := os.Getenv("SECRETS_DIR")
		if dir == "" {
			dir = DefaultSecretsDir
		}
		return NewFileProvider(dir), nil
	default:
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: fmt.Sprintf("SECRET_PROVIDER must be %q or %q, got %q", SecretProviderEnv, SecretProviderFile, name),
		}
	}
}

// EnvVarProvider resolves each reference as the name of another environment
// variable. Used for local development and CI.
type EnvVarProvider struct{}

// NewEnvVarProvider creates a new EnvVarProvider.
func NewEnvVarProvider() *EnvVarProvider {
	return &EnvVarProvider{}
}

// GetSecrets looks every reference up with os.LookupEnv.
func (p *EnvVarProvider) GetSecrets(_ context.Context, refs []string) (map[string]string, error) {
	result := make(map[string]string, len(refs))
	for _, ref := range refs {
		if val, ok := os.LookupEnv(ref); ok {
			result[ref] = val
		}
	}
	return result, nil
}

// FileProvider resolves references as paths to mounted secret files
// (container secrets, Lambda extensions writing to /tmp). Relative paths are
// resolved against Dir.
type FileProvider struct {
	Dir string
}

// NewFileProvider creates a FileProvider rooted at dir.
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{Dir: dir}
}

// GetSecrets reads each referenced file and trims surrounding whitespace.
// Missing files are omitted; other read errors abort.
func (p *FileProvider) GetSecrets(ctx context.Context, refs []string) (map[string]string, error) {
	result := make(map[string]string, len(refs))
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := ref
		if !filepath.IsAbs(path) {
			path = filepath.Join(p.Dir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read secret %s: %w", ref, err)
		}
		result[ref] = strings.TrimSpace(string(data))
	}
	return result, nil
}
