package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/storebot/core/config"
	coretelegram "github.com/m3rciful/storebot/core/telegram"
)

type fakeApp struct {
	closed bool
}

func (a *fakeApp) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{}, nil
}

func (a *fakeApp) Close() error {
	a.closed = true
	return nil
}

func TestRunContextWiresHooks(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("STOREBOT_TEST_CONFIG=from-env.yaml\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("STOREBOT_TEST_CONFIG") })

	app := &fakeApp{}
	var loaded string
	var started, stopped bool
	err := RunContext(context.Background(), Options{
		ConfigEnvVar: "STOREBOT_TEST_CONFIG",
		EnvFiles:     []string{filepath.Join(dir, "missing.env"), envFile},
		LoadConfig: func(path string) (*coreconfig.Config, error) {
			loaded = path
			return &coreconfig.Config{}, nil
		},
		Bootstrap: func(context.Context, *coreconfig.Config) (TelegramApp, error) {
			return app, nil
		},
		ShutdownLogger: func() error { return nil },
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			require.NoError(t, opts.OnStart(ctx, coretelegram.Runtime{}))
			started = true
			require.NoError(t, opts.OnStop(ctx, coretelegram.Runtime{}))
			stopped = true
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "from-env.yaml", loaded)
	assert.True(t, started)
	assert.True(t, stopped)
	assert.True(t, app.closed)
}

func TestRunContextErrors(t *testing.T) {
	assert.ErrorContains(t, RunContext(context.Background(), Options{}), "Bootstrap")

	boom := errors.New("no such file")
	err := RunContext(context.Background(), Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig:        func(string) (*coreconfig.Config, error) { return nil, boom },
		Bootstrap: func(context.Context, *coreconfig.Config) (TelegramApp, error) {
			t.Fatal("bootstrap must not run")
			return nil, nil
		},
	})
	assert.ErrorIs(t, err, boom)
}
