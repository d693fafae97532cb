package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineCol(t *testing.T) {
	text := "{\n  \"a\": 1,\n  oops\n}\n"
	line, col, err := lineCol(strings.NewReader(text), int64(strings.Index(text, "oops")))
	require.NoError(t, err)
	assert.Equal(t, 3, line)
	assert.Equal(t, 2, col)

	line, col, err = lineCol(strings.NewReader(text), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, line)
	assert.Equal(t, 0, col)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "unsplash.com": {"access": "from-file"},
  "listen": ":9000",
  "auth": {"required": true}
}`), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Unsplash.AccessKey)
	assert.Equal(t, "https://api.unsplash.com", cfg.Unsplash.BaseUrl, "defaults survive partial objects")
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, dbFile, cfg.Database)
	assert.Equal(t, 86400, cfg.Cache.TTL)
	assert.True(t, cfg.Auth.Required)

	t.Setenv("UNSPLASH_ACCESS_KEY", "from-env")
	cfg, err = loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Unsplash.AccessKey)
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Setenv("UNSPLASH_ACCESS_KEY", "")
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
}

func TestLoadConfigSyntaxError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{\n  \"listen\": \":1\",\n  nope\n}"), 0o644))

	_, err := loadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Line: 3")
	var syntaxErr *json.SyntaxError
	assert.ErrorAs(t, err, &syntaxErr, "decode error stays wrapped")
}
