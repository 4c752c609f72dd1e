package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		"warn":    logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"info":    logrus.InfoLevel,
		"unknown": logrus.InfoLevel,
	}
	for input, want := range tests {
		assert.Equal(t, want, parseLevel(input), input)
	}
}

func TestInitAndSetLevel(t *testing.T) {
	require.NoError(t, Init("warn", "json"))
	assert.Equal(t, logrus.WarnLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	SetLevel("debug")
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	entry := WithFields(map[string]interface{}{"chat_id": "c1"})
	assert.Equal(t, "c1", entry.Data["chat_id"])
}
