package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestALState_String(t *testing.T) {
	tests := []struct {
		state ALState
		want  string
	}{
		{ALStateInit, "INIT"},
		{ALStatePreOp, "PRE-OP"},
		{ALStateBootstrap, "BOOT"},
		{ALStateSafeOp, "SAFE-OP"},
		{ALStateOp, "OP"},
		{ALState(0x7f), "NONE"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.String())
		})
	}
}

func TestRegisterHelpers(t *testing.T) {
	ctx := context.Background()
	dev := &MockDevice{}
	dev.On("RegisterRead", ctx, RegSM1Status, mock.Anything).Return([]byte{0x0A}, nil).Once()
	dev.On("RegisterRead", ctx, RegALStatusCode, mock.Anything).Return([]byte{0x1B, 0x00}, nil).Once()
	dev.On("RegisterRead", ctx, RegDCSystemTime, mock.Anything).Return([]byte{0x01, 0x02, 0x03, 0x04}, nil).Once()
	dev.On("RegisterWrite", ctx, uint16(0x0420), []byte{0xE8, 0x03}).Return(nil).Once()

	v8, err := ReadRegisterU8(ctx, dev, RegSM1Status)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x0A), v8)

	v16, err := ReadRegisterU16(ctx, dev, RegALStatusCode)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x001B), v16)

	v32, err := ReadRegisterU32(ctx, dev, RegDCSystemTime)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x04030201), v32)

	require.NoError(t, WriteRegisterU16(ctx, dev, 0x0420, 1000))

	dev.AssertExpectations(t)
}

func TestRegisterHelpers_Error(t *testing.T) {
	ctx := context.Background()
	dev := &MockDevice{}
	dev.On("RegisterRead", ctx, RegALStatus, mock.Anything).Return(nil, ErrTimeout)

	_, err := ReadRegisterU16(ctx, dev, RegALStatus)
	assert.True(t, errors.Is(err, ErrTimeout))
}

func TestSDOHelpers(t *testing.T) {
	ctx := context.Background()
	dev := &MockDevice{}
	dev.On("SDORead", ctx, uint16(0x1C12), uint8(0), mock.Anything).Return([]byte{2}, nil)
	dev.On("SDORead", ctx, uint16(0x1C12), uint8(1), mock.Anything).Return([]byte{0x00, 0x16}, nil)
	dev.On("SDORead", ctx, uint16(0x1600), uint8(1), mock.Anything).Return([]byte{0x10, 0x01, 0x00, 0x70}, nil)

	n, err := ReadSDOU8(ctx, dev, 0x1C12, 0)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), n)

	idx, err := ReadSDOU16(ctx, dev, 0x1C12, 1)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1600), idx)

	mapping, err := ReadSDOU32(ctx, dev, 0x1600, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x70000110), mapping)
}
