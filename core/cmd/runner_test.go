package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/cedulabot/core/bootstrap"
	coreconfig "github.com/m3rciful/cedulabot/core/config"
	coretelegram "github.com/m3rciful/cedulabot/core/telegram"
)

type stubApp struct{ opts coretelegram.RunOptions }

func (s stubApp) TelegramRunOptions() (coretelegram.RunOptions, error) { return s.opts, nil }

func baseOptions(run func(context.Context, coretelegram.RunOptions) error) Options {
	return Options{
		EnvFiles: []string{filepath.Join(os.TempDir(), "cedulabot-missing.env")},
		LoadConfig: func(string) (*coreconfig.Config, error) {
			return &coreconfig.Config{}, nil
		},
		Bootstrap: func(context.Context, bootstrap.Options) (*bootstrap.Result, error) {
			return &bootstrap.Result{}, nil
		},
		NewApp: func(context.Context, *coreconfig.Config, *bootstrap.Result) (TelegramApp, error) {
			return stubApp{}, nil
		},
		ShutdownLogger: func() error { return nil },
		RunTelegram:    run,
	}
}

func TestRunPropagatesTransportConflict(t *testing.T) {
	opts := baseOptions(func(context.Context, coretelegram.RunOptions) error {
		return fmt.Errorf("%w: terminated by other getUpdates request", coretelegram.ErrTransportConflict)
	})

	err := Run(opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, coretelegram.ErrTransportConflict)
}

func TestRunWrapsLifecycleHooks(t *testing.T) {
	var started, stopped bool
	opts := baseOptions(func(ctx context.Context, ro coretelegram.RunOptions) error {
		require.NotNil(t, ro.Config)
		require.NoError(t, ro.OnStart(ctx, coretelegram.Runtime{}))
		require.NoError(t, ro.OnStop(ctx, coretelegram.Runtime{}))
		return nil
	})
	opts.NewApp = func(context.Context, *coreconfig.Config, *bootstrap.Result) (TelegramApp, error) {
		return stubApp{opts: coretelegram.RunOptions{
			OnStart: func(context.Context, coretelegram.Runtime) error { started = true; return nil },
			OnStop:  func(context.Context, coretelegram.Runtime) error { stopped = true; return nil },
		}}, nil
	}

	require.NoError(t, Run(opts))
	assert.True(t, started)
	assert.True(t, stopped)
}

func TestLoadEnvFiles(t *testing.T) {
	const key = "CEDULABOT_RUNNER_TEST_VALUE"
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=from-file\n"), 0o600))

	require.NoError(t, LoadEnvFiles([]string{path, filepath.Join(t.TempDir(), "absent.env")}))
	assert.Equal(t, "from-file", os.Getenv(key))
}

func TestRunRequiresNewApp(t *testing.T) {
	assert.Error(t, Run(Options{}))
}
