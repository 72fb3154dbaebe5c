package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd(&bytes.Buffer{}, &bytes.Buffer{})
	return cmd.ParseFlags(args)
}

func TestBuildConfigFlags(t *testing.T) {
	cmd := newRootCmd(&bytes.Buffer{}, &bytes.Buffer{})
	require.NoError(t, cmd.ParseFlags([]string{
		"--url", "https://a.test/", "-u", "https://b.test/",
		"--selector", "p.lead", "--intercept", "--allow", "document,xhr",
		"--timeout", "10s", "--concurrency", "2", "--headless",
	}))

	cfg, err := buildConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.test/", "https://b.test/"}, cfg.URLs)
	assert.Equal(t, "p.lead", cfg.Selector)
	assert.True(t, cfg.Intercept)
	assert.True(t, cfg.Headless)
	assert.Equal(t, []string{"document", "xhr"}, cfg.Allow)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, 2, cfg.Concurrency)
}

func TestBuildConfigFileThenFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("urls: [https://file.test/]\nselector: div.ok\nconcurrency: 3\n"), 0o644))

	cmd := newRootCmd(&bytes.Buffer{}, &bytes.Buffer{})
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--concurrency", "5"}))

	cfg, err := buildConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://file.test/"}, cfg.URLs)
	assert.Equal(t, "div.ok", cfg.Selector)
	assert.Equal(t, 5, cfg.Concurrency)
}

func TestBuildConfigErrors(t *testing.T) {
	cmd := newRootCmd(&bytes.Buffer{}, &bytes.Buffer{})
	require.NoError(t, cmd.ParseFlags(nil))
	_, err := buildConfig(cmd)
	assert.ErrorContains(t, err, "no target url")

	cmd = newRootCmd(&bytes.Buffer{}, &bytes.Buffer{})
	require.NoError(t, cmd.ParseFlags([]string{"--url", "https://a.test/", "--allow", "gif", "--intercept"}))
	_, err = buildConfig(cmd)
	assert.ErrorContains(t, err, "unknown resource type")

	assert.Error(t, parse(t, "--timeout", "soon"))
}

func TestRunRejectsBadLogLevel(t *testing.T) {
	cmd := newRootCmd(&bytes.Buffer{}, &bytes.Buffer{})
	require.NoError(t, cmd.ParseFlags([]string{"--url", "https://a.test/", "--log-level", "loud"}))
	cfg, err := buildConfig(cmd)
	require.NoError(t, err)

	var stderr bytes.Buffer
	assert.Error(t, run(cfg, &bytes.Buffer{}, &stderr))
}
