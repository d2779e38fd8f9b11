package messaging

import (
	"context"
	"fmt"

	"github.com/simaogato/indexfund-backend/internal/domain"
)

// Disabled is the MessageSender used when no transport is configured. Every
// send fails, so remote operations roll back instead of waiting forever.
type Disabled struct{}

func (Disabled) Send(_ context.Context, dest domain.Location, instr domain.RemoteInstruction) error {
	return fmt.Errorf("no transport for %s to %s: %w", instr.Kind, dest, domain.ErrSendFailed)
}

var _ domain.MessageSender = Disabled{}
