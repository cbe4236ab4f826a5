package logger

import (
	"testing"

	"gamestats-pipeline/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestApplyLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	ApplyLevel(&config.Config{LogLevel: "warn"}, zerolog.Nop())
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	ApplyLevel(&config.Config{LogLevel: "shouting"}, zerolog.Nop())
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestSetLevel(t *testing.T) {
	assert.Equal(t, zerolog.ErrorLevel, SetLevel(zerolog.ErrorLevel).GetLevel())
	assert.Equal(t, zerolog.DebugLevel, New().GetLevel())
}
