package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLevel(t *testing.T) {
	require.NoError(t, SetLevel("debug"))
	assert.Equal(t, logrus.DebugLevel, GetProjectLogger().Logger.GetLevel())

	require.NoError(t, SetLevel("info"))
	assert.Equal(t, logrus.InfoLevel, GetProjectLogger().Logger.GetLevel())

	assert.Error(t, SetLevel("loud"))
}

func TestProjectLoggerIsTagged(t *testing.T) {
	t.Parallel()

	assert.Equal(t, projectName, GetProjectLogger().Data["name"])
}
