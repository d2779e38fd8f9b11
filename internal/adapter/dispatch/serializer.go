package dispatch

import (
	"context"
	"sync"

	"github.com/simaogato/indexfund-backend/internal/domain"
)

// Serializer runs entry points one at a time, each in its own transaction.
// Every inbound adapter (gRPC, stream consumers) shares one Serializer so the
// services never observe concurrent calls.
type Serializer struct {
	mu sync.Mutex
	tx domain.TxManager
}

// NewSerializer creates a new Serializer instance
func NewSerializer(tx domain.TxManager) *Serializer {
	return &Serializer{tx: tx}
}

// Do runs fn under the lock inside a transaction; the transaction commits
// only if fn succeeds
func (s *Serializer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx.WithinTx(ctx, fn)
}
