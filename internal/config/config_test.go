package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://localhost:3001/api/v1", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Console.NoticeTTL)
	assert.Equal(t, time.Second, cfg.Console.CompletionReloadDelay)
	assert.Contains(t, cfg.Sandbox.Breeds, "Siamese")
}

func TestFromYAMLKeepsDefaultsForMissingKeys(t *testing.T) {
	cfg, err := FromYAML([]byte("api:\n  base_url: https://agency.example.com/api/v1\nconsole:\n  notice_ttl: 2s\n"))
	require.NoError(t, err)
	assert.Equal(t, "https://agency.example.com/api/v1", cfg.API.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Console.NoticeTTL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, "/api/v1", cfg.Sandbox.BasePath)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"relative url":   "api:\n  base_url: /api/v1\n",
		"bad scheme":     "api:\n  base_url: ftp://host/api\n",
		"zero timeout":   "api:\n  timeout: 0s\n",
		"duplicate":      "sandbox:\n  breeds: [Bengal, bengal]\n",
		"empty breeds":   "sandbox:\n  breeds: []\n",
		"base path":      "sandbox:\n  base_path: api\n",
		"negative delay": "console:\n  completion_reload_delay: -1s\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadOptionalAndLoad(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(dir)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(GenerateDefault()), 0o644))
	cfg, err = Load(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestApplyOverrides(t *testing.T) {
	v := viper.New()
	v.Set("api.base_url", "http://127.0.0.1:9000/api/v1")
	v.Set("api.token", "secret-token")
	v.Set("console.notice_ttl", "250ms")

	cfg := Default()
	require.NoError(t, cfg.ApplyOverrides(v))
	assert.Equal(t, "http://127.0.0.1:9000/api/v1", cfg.API.BaseURL)
	assert.Equal(t, "secret-token", cfg.API.Token)
	assert.Equal(t, 250*time.Millisecond, cfg.Console.NoticeTTL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)

	v.Set("api.base_url", "not a url")
	assert.Error(t, cfg.ApplyOverrides(v))
}
