package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		verbose, console bool
		debug            bool
	}{
		{false, false, false},
		{true, false, true},
		{false, true, false},
		{true, true, true},
	}
	for _, tt := range tests {
		l, err := New(tt.verbose, tt.console)
		require.NoError(t, err)
		assert.Equal(t, tt.debug, l.Core().Enabled(zapcore.DebugLevel))
		assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	}
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := zap.NewExample()
	assert.Same(t, l, OrNop(l))
}
