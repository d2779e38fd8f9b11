package remote

import (
	"encoding/binary"

	"github.com/simaogato/indexfund-backend/internal/domain"
)

// CompactBalanceEncoder encodes balances in the SCALE compact format used by
// substrate-based ledgers. Only the configured assets are encodable.
type CompactBalanceEncoder struct {
	assets map[domain.AssetID]bool
}

// NewCompactBalanceEncoder creates an encoder for the given assets
func NewCompactBalanceEncoder(assets []domain.AssetID) *CompactBalanceEncoder {
	e := &CompactBalanceEncoder{assets: make(map[domain.AssetID]bool, len(assets))}
	for _, a := range assets {
		e.assets[a] = true
	}
	return e
}

var _ domain.BalanceEncoder = (*CompactBalanceEncoder)(nil)

// EncodeBalance returns the compact encoding of balance, or false if the asset
// has no known destination encoding
func (e *CompactBalanceEncoder) EncodeBalance(asset domain.AssetID, balance domain.Balance) ([]byte, bool) {
	if !e.assets[asset] {
		return nil, false
	}
	return EncodeCompact(uint64(balance)), true
}

// EncodeCompact encodes v as a SCALE compact integer
func EncodeCompact(v uint64) []byte {
	switch {
	case v < 1<<6:
		return []byte{byte(v << 2)}
	case v < 1<<14:
		out := make([]byte, 2)
		binary.LittleEndian.PutUint16(out, uint16(v<<2)|0b01)
		return out
	case v < 1<<30:
		out := make([]byte, 4)
		binary.LittleEndian.PutUint32(out, uint32(v<<2)|0b10)
		return out
	}

	var le [8]byte
	binary.LittleEndian.PutUint64(le[:], v)
	n := 8
	for n > 4 && le[n-1] == 0 {
		n--
	}
	out := make([]byte, 0, n+1)
	out = append(out, byte(n-4)<<2|0b11)
	return append(out, le[:n]...)
}
