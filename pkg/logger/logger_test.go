package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewCLIDefaultsToWarn(t *testing.T) {
	log, err := NewCLI(false)
	require.NoError(t, err)

	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
}

func TestNewCLIVerboseEnablesDebug(t *testing.T) {
	log, err := NewCLI(true)
	require.NoError(t, err)

	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNamedNilBaseIsNop(t *testing.T) {
	log := Named(nil, "component")
	require.NotNil(t, log)
	assert.False(t, log.Core().Enabled(zapcore.ErrorLevel))
}

func TestNamedAttachesComponent(t *testing.T) {
	base, err := NewCLI(false)
	require.NoError(t, err)

	child := Named(base, "svc.cart")
	require.NotNil(t, child)
	assert.NotSame(t, base, child)
}
