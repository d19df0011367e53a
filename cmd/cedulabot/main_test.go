package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/cedulabot/core/buildinfo"
	coretelegram "github.com/m3rciful/cedulabot/core/telegram"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitFailure, exitCode(errors.New("boom")))
	assert.Equal(t, exitConflict, exitCode(coretelegram.ErrTransportConflict))
	wrapped := fmt.Errorf("run: %w", errors.Join(coretelegram.ErrTransportConflict, errors.New("stop hook")))
	assert.Equal(t, exitConflict, exitCode(wrapped))
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Equal(t, buildinfo.String()+"\n", out.String())
}

func TestCheckCommand(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("API_URL", "https://lookup.example/api")
	t.Setenv("API_AUTH", "secret")
	t.Setenv("ALLOWED_USER_IDS", "1, 2")
	t.Setenv("CONFIG_PATH", "")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"check"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "run_mode: longpoll")
	assert.Contains(t, out.String(), "restricted: true (2 ids)")
	assert.NotContains(t, out.String(), "secret")
}

// unsetEnv clears keys for the test and restores them afterwards.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestCheckCommandReadsDotEnv(t *testing.T) {
	unsetEnv(t, "TELEGRAM_TOKEN", "API_URL", "API_AUTH", "ALLOWED_USER_IDS", "CONFIG_PATH")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("TELEGRAM_TOKEN=123:abc\nAPI_URL=https://lookup.example/api\nAPI_AUTH=secret\n"), 0o600))
	t.Chdir(dir)

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"check"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "run_mode: longpoll")
	assert.Contains(t, out.String(), "restricted: false (0 ids)")
}

func TestCheckCommandFailsWithoutToken(t *testing.T) {
	unsetEnv(t, "TELEGRAM_TOKEN", "CONFIG_PATH")
	t.Chdir(t.TempDir())
	assert.Equal(t, exitFailure, execute(newRootCmd(), []string{"check"}))
}
