//go:build linux

package rawsock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHtons(t *testing.T) {
	assert.Equal(t, uint16(0x0300), htons(0x0003))
	assert.Equal(t, uint16(0xA488), htons(0x88A4))
}

func TestAvailable_Stable(t *testing.T) {
	// the result depends on privileges, but repeated probes must agree and not leak descriptors
	first := Available()
	for i := 0; i < 16; i++ {
		assert.Equal(t, first, Available())
	}
}
