package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvidersSatisfySecretProvider(t *testing.T) {
	var _ SecretProvider = (*EnvVarProvider)(nil)
	var _ SecretProvider = (*FileProvider)(nil)
}

func TestEnvVarProvider_GetSecrets(t *testing.T) {
	t.Setenv("FARMADVISORY_TEST_SECRET_A", "value-alpha")
	os.Unsetenv("FARMADVISORY_TEST_SECRET_MISSING")

	result, err := NewEnvVarProvider().GetSecrets(context.Background(),
		[]string{"FARMADVISORY_TEST_SECRET_A", "FARMADVISORY_TEST_SECRET_MISSING"})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"FARMADVISORY_TEST_SECRET_A": "value-alpha"}, result)
}

func TestFileProvider_GetSecrets(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "owm_key"), []byte("  abc123\n"), 0o600))
	abs := filepath.Join(dir, "absolute_key")
	require.NoError(t, os.WriteFile(abs, []byte("xyz"), 0o600))

	result, err := NewFileProvider(dir).GetSecrets(context.Background(), []string{"owm_key", abs, "missing"})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"owm_key": "abc123", abs: "xyz"}, result)
}

func TestFileProvider_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFileProvider(t.TempDir()).GetSecrets(ctx, []string{"any"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewSecretProviderFromEnv(t *testing.T) {
	t.Run("default is env", func(t *testing.T) {
		t.Setenv("SECRET_PROVIDER", "")
		p, err := NewSecretProviderFromEnv()
		require.NoError(t, err)
		assert.IsType(t, &EnvVarProvider{}, p)
	})

	t.Run("file rooted at SECRETS_DIR", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("SECRET_PROVIDER", "File")
		t.Setenv("SECRETS_DIR", dir)
		p, err := NewSecretProviderFromEnv()
		require.NoError(t, err)
		require.IsType(t, &FileProvider{}, p)
		assert.Equal(t, dir, p.(*FileProvider).Dir)
	})

	t.Run("file default dir", func(t *testing.T) {
		t.Setenv("SECRET_PROVIDER", "file")
		t.Setenv("SECRETS_DIR", "")
		p, err := NewSecretProviderFromEnv()
		require.NoError(t, err)
		assert.Equal(t, DefaultSecretsDir, p.(*FileProvider).Dir)
	})

	t.Run("unknown provider", func(t *testing.T) {
		t.Setenv("SECRET_PROVIDER", "ssm")
		_, err := NewSecretProviderFromEnv()
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, ErrValidation, cfgErr.Type)
	})
}

func TestResolveSecretRefs_FileProvider(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "owm_api_key"), []byte("file-key\n"), 0o600))

	env := fakeEnv{
		"APP_ENV":                "prod",
		"OWM_API_KEY_SECRET_REF": "owm_api_key",
	}
	require.NoError(t, resolveSecretRefs(NewFileProvider(dir), env.deps()))
	assert.Equal(t, "file-key", env["OWM_API_KEY"])
}
