package config

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GITHUB_API_TOKEN", "")

	c, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, []string{"iOS", "iPadOS"}, c.OSes)
	assert.Equal(t, 22, c.MinMajor)
	assert.Equal(t, "keys", c.KeysDir)
	assert.Equal(t, 1, c.Parallel)
	assert.Equal(t, 30*time.Second, c.HTTPTimeout)
	assert.Equal(t, 30*time.Minute, c.Tool.Timeout)
	assert.Equal(t, ".pem", c.Tool.KeyExt)
	assert.Equal(t, "index", c.Source.Type)
	assert.Equal(t, DefaultIndexURL, c.Source.IndexURL)
	assert.Equal(t, "commit", c.Detector.Strategy)
	assert.Equal(t, "rest", c.Detector.Commit)
	assert.Equal(t, "local", c.Store.Type)
	assert.Equal(t, "hash", c.Store.Naming)
	assert.Equal(t, "md5", c.Store.Digest)
	assert.Empty(t, c.APIToken)
}

func TestLoadOverrides(t *testing.T) {
	v := viper.New()
	v.Set("oses", []string{"macOS"})
	v.Set("min_major", 24)
	v.Set("http_timeout", "5s")
	v.Set("tool.key_ext", "key")
	v.Set("store.type", "sqlite")
	v.Set("keys_dir", "/tmp/keys")

	c, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, []string{"macOS"}, c.OSes)
	assert.Equal(t, 24, c.MinMajor)
	assert.Equal(t, 5*time.Second, c.HTTPTimeout)
	assert.Equal(t, ".key", c.Tool.KeyExt)
	assert.Equal(t, "/tmp/keys/keys.db", c.Store.Path)
}

func TestLoadTokenFallback(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GITHUB_API_TOKEN", "secret")

	c, err := LoadFrom(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "secret", c.APIToken)
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		set     map[string]any
		wantErr string
	}{
		{
			name:    "bad source",
			set:     map[string]any{"source.type": "ftp"},
			wantErr: "source.type",
		},
		{
			name:    "bad strategy",
			set:     map[string]any{"detector.strategy": "sometimes"},
			wantErr: "detector.strategy",
		},
		{
			name:    "graphql without token",
			set:     map[string]any{"detector.commit": "graphql"},
			wantErr: "requires api_token",
		},
		{
			name:    "postgres without dsn",
			set:     map[string]any{"store.type": "postgres"},
			wantErr: "store.dsn",
		},
		{
			name:    "tree none without dir",
			set:     map[string]any{"source.type": "tree", "source.tree.materialize": "none"},
			wantErr: "source.tree.dir",
		},
		{
			name:    "bad digest",
			set:     map[string]any{"store.digest": "crc32"},
			wantErr: "store.digest",
		},
		{
			name: "always needs no state file",
			set:  map[string]any{"detector.strategy": "always", "state_file": ""},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GITHUB_TOKEN", "")
			t.Setenv("GITHUB_API_TOKEN", "")
			v := viper.New()
			for k, val := range tt.set {
				v.Set(k, val)
			}
			_, err := LoadFrom(v)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), "error %q should mention %q", err, tt.wantErr)
		})
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GITHUB_API_TOKEN", "")

	c := Default()
	c.MinMajor = 23
	c.Tool.Timeout = 90 * time.Second
	c.APIToken = "ghp_secret"

	data, err := c.YAML(false)
	require.NoError(t, err)
	assert.Contains(t, string(data), "timeout: 1m30s")

	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(string(data))))
	got, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 23, got.MinMajor)
	assert.Equal(t, 90*time.Second, got.Tool.Timeout)
	assert.Equal(t, "ghp_secret", got.APIToken)
	assert.Equal(t, c.OSes, got.OSes)

	redacted, err := c.YAML(true)
	require.NoError(t, err)
	assert.NotContains(t, string(redacted), "ghp_secret")
}

func TestSchema(t *testing.T) {
	bts, err := Schema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(bts, &schema))
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "oses")
	assert.Contains(t, props, "min_major")
	assert.Contains(t, props, "store")
}
