package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRC32C(t *testing.T) {
	// Check value from RFC 3720 appendix B.4: 32 bytes of zeros.
	assert.Equal(t, uint32(0x8a9136aa), CRC32C(make([]byte, 32)))

	h := NewCRC32C()
	_, _ = h.Write([]byte("semantic "))
	_, _ = h.Write([]byte("views"))
	assert.Equal(t, CRC32C([]byte("semantic views")), h.Sum32())
}
