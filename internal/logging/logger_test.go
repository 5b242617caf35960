package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLogLevel(t *testing.T) {
	defer SetLogLevel("info")

	require.NoError(t, SetLogLevel("debug"))
	assert.Equal(t, logrus.DebugLevel, GetLogger().GetLevel())
	assert.Error(t, SetLogLevel("loud"))
	assert.Equal(t, logrus.DebugLevel, GetLogger().GetLevel())
}

func TestOrDefault(t *testing.T) {
	assert.Same(t, GetLogger(), OrDefault(nil))

	own := logrus.New()
	assert.Same(t, own, OrDefault(own))
}

func TestSetOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetFormatter(&logrus.JSONFormatter{})
	defer func() {
		SetOutput(defaultOutput)
		SetFormatter(defaultFormatter())
	}()

	GetLogger().WithField("irq", "100").Info("Set IRQ affinity")
	assert.Contains(t, buf.String(), `"irq":"100"`)
	assert.Contains(t, buf.String(), `"msg":"Set IRQ affinity"`)
}
