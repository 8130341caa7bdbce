package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"resumeflow/internal/errors"

	"github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLogical struct {
	secrets map[string]*api.Secret
	err     error
}

func (f *fakeLogical) Read(path string) (*api.Secret, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.secrets[path], nil
}

func kv2(data map[string]any, version any) *api.Secret {
	return &api.Secret{Data: map[string]any{
		"data":     data,
		"metadata": map[string]any{"version": version},
	}}
}

func TestParseVersionValue(t *testing.T) {
	tests := []struct {
		name        string
		input       any
		expected    int64
		expectError bool
	}{
		{name: "int64 value", input: int64(42), expected: 42},
		{name: "float64 value", input: float64(42.0), expected: 42},
		{name: "string value", input: "42", expected: 42},
		{name: "invalid string value", input: "not-a-number", expectError: true},
		{name: "unsupported type", input: []string{"42"}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseVersionValue(tt.input, "test/path")
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestResolveVaultToken(t *testing.T) {
	dir := t.TempDir()
	tokenFile := filepath.Join(dir, "token")
	require.NoError(t, os.WriteFile(tokenFile, []byte("  file-token\n"), 0o600))

	tests := []struct {
		name        string
		config      VaultConfig
		expected    string
		expectError bool
	}{
		{name: "inline token wins", config: VaultConfig{Token: "inline", TokenFile: tokenFile}, expected: "inline"},
		{name: "token from file", config: VaultConfig{TokenFile: tokenFile}, expected: "file-token"},
		{name: "missing file", config: VaultConfig{TokenFile: filepath.Join(dir, "nope")}, expectError: true},
		{name: "no token", config: VaultConfig{}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := resolveVaultToken(tt.config, errors.NewNopLogger())
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, token)
		})
	}
}

func TestGetSecretV2(t *testing.T) {
	vc := &VaultClient{logical: &fakeLogical{secrets: map[string]*api.Secret{
		"secret/data/ok":      kv2(map[string]any{"token": "abc"}, "3"),
		"secret/data/nometa":  {Data: map[string]any{"data": map[string]any{}}},
		"secret/data/notkvv2": {Data: map[string]any{"token": "abc"}},
	}}}

	secret, err := vc.GetSecretV2("secret/data/ok")
	require.NoError(t, err)
	assert.Equal(t, int64(3), secret.Version)
	assert.Equal(t, "abc", secret.Data["token"])

	_, err = vc.GetSecretV2("secret/data/nometa")
	assert.ErrorContains(t, err, "metadata")

	_, err = vc.GetSecretV2("secret/data/notkvv2")
	assert.ErrorContains(t, err, "KVv2")

	_, err = vc.GetSecretV2("secret/data/missing")
	assert.ErrorContains(t, err, "not found")

	var nilClient *VaultClient
	_, err = nilClient.GetSecretV2("secret/data/ok")
	assert.Error(t, err)
}

func TestGetStringSecret(t *testing.T) {
	vc := &VaultClient{
		logical: &fakeLogical{secrets: map[string]*api.Secret{
			"secret/data/app": kv2(map[string]any{"token": "s3cr3t-token-value", "n": 7}, float64(1)),
		}},
		logger: errors.NewNopLogger(),
	}

	value, err := vc.GetStringSecret("secret/data/app", "token")
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t-token-value", value)

	_, err = vc.GetStringSecret("secret/data/app", "absent")
	assert.ErrorContains(t, err, "not found")

	_, err = vc.GetStringSecret("secret/data/app", "n")
	assert.ErrorContains(t, err, "not a string")
}

func TestApplySecretsSetsAdminToken(t *testing.T) {
	vc := &VaultClient{logical: &fakeLogical{secrets: map[string]*api.Secret{
		"secret/data/resumeflow": kv2(map[string]any{"token": "from-vault"}, int64(2)),
	}}}

	cfg := &Config{
		Workflow: WorkflowConfig{AdminToken: "from-env"},
		Vault:    VaultConfig{Enabled: true, Secrets: VaultSecrets{AdminToken: "secret/data/resumeflow"}},
	}
	require.NoError(t, applySecrets(vc, cfg, errors.NewNopLogger()))
	assert.Equal(t, "from-vault", cfg.Workflow.AdminToken)
}

func TestApplySecretsPropagatesReadFailure(t *testing.T) {
	vc := &VaultClient{logical: &fakeLogical{err: fmt.Errorf("permission denied")}}
	cfg := &Config{Vault: VaultConfig{Enabled: true, Secrets: VaultSecrets{AdminToken: "secret/data/x"}}}

	err := applySecrets(vc, cfg, nil)
	assert.ErrorContains(t, err, "permission denied")
	assert.Empty(t, cfg.Workflow.AdminToken)
}

func TestApplyVaultSecretsDisabled(t *testing.T) {
	cfg := &Config{Workflow: WorkflowConfig{AdminToken: "keep"}}
	require.NoError(t, ApplyVaultSecrets(cfg, errors.NewNopLogger()))
	assert.Equal(t, "keep", cfg.Workflow.AdminToken)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "abcd****mnop", maskSecret("abcdefghijklmnop"))
	assert.Equal(t, "****", maskSecret("short"))
	assert.Equal(t, "", maskSecret(""))
}
