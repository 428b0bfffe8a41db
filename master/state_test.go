package master

import (
	"testing"

	"github.com/arloliu/go-ecat/engine"
	"github.com/stretchr/testify/assert"
)

func TestState(t *testing.T) {
	tests := []struct {
		state   State
		str     string
		alState engine.ALState
	}{
		{InitState, "init", engine.ALStateInit},
		{PreOpState, "pre-op", engine.ALStatePreOp},
		{SafeOpState, "safe-op", engine.ALStateSafeOp},
		{OpState, "op", engine.ALStateOp},
	}

	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			assert.Equal(t, tt.str, tt.state.String())
			assert.Equal(t, tt.alState, tt.state.alState())
			assert.True(t, tt.state.IsValid())
		})
	}

	assert.True(t, InitState.IsInit())
	assert.True(t, PreOpState.IsPreOp())
	assert.True(t, SafeOpState.IsSafeOp())
	assert.True(t, OpState.IsOp())
	assert.False(t, OpState.IsPreOp())

	assert.Equal(t, "unknown", State(4).String())
	assert.False(t, State(4).IsValid())
}
