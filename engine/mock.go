package engine

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockDevice is a testify mock implementing Device.
//
// Register and SDO reads copy the []byte returned as the first value of the expectation into the
// caller's buffer, so a sequence of register values can be scripted with repeated Once() calls:
//
//	dev.On("RegisterRead", mock.Anything, RegSM1Status, mock.Anything).Return([]byte{0x0A}, nil).Once()
type MockDevice struct {
	mock.Mock
}

var _ Device = (*MockDevice)(nil)

func (m *MockDevice) Identity() Identity {
	args := m.Called()
	return args.Get(0).(Identity)
}

func (m *MockDevice) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockDevice) ConfiguredAddress() uint16 {
	args := m.Called()
	return args.Get(0).(uint16)
}

func (m *MockDevice) AliasAddress() uint16 {
	args := m.Called()
	return args.Get(0).(uint16)
}

func (m *MockDevice) PortCount() uint8 {
	args := m.Called()
	return args.Get(0).(uint8)
}

func (m *MockDevice) MailboxProtocols() MailboxProtocol {
	args := m.Called()
	return args.Get(0).(MailboxProtocol)
}

func (m *MockDevice) InputSize() int {
	args := m.Called()
	return args.Int(0)
}

func (m *MockDevice) OutputSize() int {
	args := m.Called()
	return args.Int(0)
}

func (m *MockDevice) ReadInputs(dst []byte) int {
	args := m.Called(dst)
	return copyResult(args.Get(0), dst)
}

func (m *MockDevice) WriteOutputs(src []byte) int {
	args := m.Called(src)
	return args.Int(0)
}

func (m *MockDevice) InputByte(offset int) (byte, bool) {
	args := m.Called(offset)
	return args.Get(0).(byte), args.Bool(1)
}

func (m *MockDevice) OutputByte(offset int) (byte, bool) {
	args := m.Called(offset)
	return args.Get(0).(byte), args.Bool(1)
}

func (m *MockDevice) SetOutputByte(offset int, value byte) bool {
	args := m.Called(offset, value)
	return args.Bool(0)
}

func (m *MockDevice) SDORead(ctx context.Context, index uint16, subIndex uint8, buf []byte) (int, error) {
	args := m.Called(ctx, index, subIndex, buf)
	return copyResult(args.Get(0), buf), args.Error(1)
}

func (m *MockDevice) SDOWrite(ctx context.Context, index uint16, subIndex uint8, data []byte) error {
	args := m.Called(ctx, index, subIndex, data)
	return args.Error(0)
}

func (m *MockDevice) RegisterRead(ctx context.Context, address uint16, buf []byte) error {
	args := m.Called(ctx, address, buf)
	copyResult(args.Get(0), buf)

	return args.Error(1)
}

func (m *MockDevice) RegisterWrite(ctx context.Context, address uint16, data []byte) error {
	args := m.Called(ctx, address, data)
	return args.Error(0)
}

func (m *MockDevice) EEPROMRead(ctx context.Context, wordAddress uint16, buf []byte) (int, error) {
	args := m.Called(ctx, wordAddress, buf)
	return copyResult(args.Get(0), buf), args.Error(1)
}

func (m *MockDevice) EEPROMPDOs(ctx context.Context, dir Direction) ([]PDODescriptor, error) {
	args := m.Called(ctx, dir)
	pdos, _ := args.Get(0).([]PDODescriptor)

	return pdos, args.Error(1)
}

func (m *MockDevice) ALStatus(ctx context.Context) (ALState, uint16, error) {
	args := m.Called(ctx)
	return args.Get(0).(ALState), args.Get(1).(uint16), args.Error(2)
}

func copyResult(v any, dst []byte) int {
	data, ok := v.([]byte)
	if !ok {
		return 0
	}

	return copy(dst, data)
}
