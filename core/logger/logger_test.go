package logger

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	coreconfig "github.com/m3rciful/storebot/core/config"
)

func TestSettingsDefaults(t *testing.T) {
	s := settingsFrom(nil)
	assert.Equal(t, formatJSON, s.format)
	assert.Equal(t, slog.LevelInfo, s.level)
	assert.Equal(t, defaultKeyOrder, s.keyOrder)
	assert.Equal(t, [2]int{1, 50}, [2]int{s.sampleN, s.sampleD})
	assert.Empty(t, s.file)
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := &coreconfig.Config{Logging: coreconfig.LoggingConfig{
		Level:       "Warning",
		Profile:     "DEV",
		KeysOrder:   " event, ts ,",
		DebugSample: "3/4",
		Dir:         "/var/log/storebot",
		BotFile:     "bot.log",
	}}
	s := settingsFrom(cfg)
	assert.Equal(t, formatKV, s.format)
	assert.Equal(t, slog.LevelWarn, s.level)
	assert.Equal(t, []string{"event", "ts"}, s.keyOrder)
	assert.Equal(t, [2]int{3, 4}, [2]int{s.sampleN, s.sampleD})
	assert.Equal(t, filepath.Join("/var/log/storebot", "bot.log"), s.file)
	assert.Equal(t, "dev", s.profile)

	cfg.Logging.Format = "json"
	cfg.Logging.Level = "debug"
	s = settingsFrom(cfg)
	assert.Equal(t, formatJSON, s.format)
	assert.Equal(t, slog.LevelDebug, s.level)
}
