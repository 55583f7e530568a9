package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureLevelAndFormat(t *testing.T) {
	l := GetLogger()
	prevLevel, prevFormatter, prevOut := l.GetLevel(), l.Formatter, l.Out
	t.Cleanup(func() {
		l.SetLevel(prevLevel)
		l.SetFormatter(prevFormatter)
		l.SetOutput(prevOut)
	})

	require.NoError(t, Configure("debug", "json"))
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())

	var buf bytes.Buffer
	SetOutput(&buf)
	l.WithFields(Fields{"at": "logging.test"}).Debug("configured")
	assert.Contains(t, buf.String(), `"msg":"configured"`)
	assert.Contains(t, buf.String(), `"at":"logging.test"`)
}

func TestConfigureRejectsUnknownValues(t *testing.T) {
	assert.Error(t, Configure("loud", ""))
	assert.Error(t, Configure("", "xml"))
}

func TestConfigureEmptyKeepsLevel(t *testing.T) {
	l := GetLogger()
	prev := l.GetLevel()
	require.NoError(t, Configure("", ""))
	assert.Equal(t, prev, l.GetLevel())
}
