package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogger_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "insightsack.log")
	require.NoError(t, InitLogger("debug", path))
	t.Cleanup(func() { _ = InitLogger("info", "") })

	assert.Equal(t, logrus.DebugLevel, Log.GetLevel())
	Component("test").Debug("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "component=test")
	assert.Contains(t, string(data), "hello")
}

func TestInitLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	require.NoError(t, InitLogger("chatty", ""))
	assert.Equal(t, logrus.InfoLevel, Log.GetLevel())
}
