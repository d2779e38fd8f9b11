package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/simaogato/indexfund-backend/internal/domain"
)

func TestEncodeCompact(t *testing.T) {
	tests := []struct {
		in   uint64
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x04}},
		{63, []byte{0xfc}},
		{64, []byte{0x01, 0x01}},
		{16383, []byte{0xfd, 0xff}},
		{16384, []byte{0x02, 0x00, 0x01, 0x00}},
		{1<<30 - 1, []byte{0xfe, 0xff, 0xff, 0xff}},
		{1 << 30, []byte{0x03, 0x00, 0x00, 0x00, 0x40}},
		{1 << 32, []byte{0x07, 0x00, 0x00, 0x00, 0x00, 0x01}},
		{^uint64(0), []byte{0x13, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, EncodeCompact(tt.in), "value %d", tt.in)
	}
}

func TestCompactBalanceEncoder_UnknownAsset(t *testing.T) {
	enc := NewCompactBalanceEncoder([]domain.AssetID{"DOT"})

	b, ok := enc.EncodeBalance("DOT", 1)
	assert.True(t, ok)
	assert.Equal(t, []byte{0x04}, b)

	_, ok = enc.EncodeBalance("KSM", 1)
	assert.False(t, ok)
}
