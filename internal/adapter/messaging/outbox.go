package messaging

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/simaogato/indexfund-backend/internal/domain"
)

const payloadField = "payload"

type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// outboundMessage is the wire form of a cross-consensus instruction
type outboundMessage struct {
	Destination   string `json:"destination"`
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	Asset         string `json:"asset"`
	Amount        string `json:"amount"`
	EncodedAmount string `json:"encoded_amount"`
	PalletIndex   uint8  `json:"pallet_index"`
	CallIndex     uint8  `json:"call_index"`
	Controller    string `json:"controller,omitempty"`
	Beneficiary   string `json:"beneficiary,omitempty"`
}

// Outbox implements domain.MessageSender by appending instructions to a
// redis stream. Delivery to the foreign chain is the relayer's job; Send
// only reports whether the stream accepted the message.
type Outbox struct {
	rdb    streamAdder
	stream string
	maxLen int64
}

// NewOutbox creates a new Outbox instance. maxLen caps the stream
// approximately; zero keeps every entry.
func NewOutbox(rdb streamAdder, stream string, maxLen int64) *Outbox {
	return &Outbox{rdb: rdb, stream: stream, maxLen: maxLen}
}

// Send appends the instruction to the outbound stream
func (o *Outbox) Send(ctx context.Context, dest domain.Location, instr domain.RemoteInstruction) error {
	msg := outboundMessage{
		Destination:   dest.String(),
		ID:            instr.ID.String(),
		Kind:          string(instr.Kind),
		Asset:         string(instr.Asset),
		Amount:        instr.Amount.String(),
		EncodedAmount: hex.EncodeToString(instr.EncodedAmount),
		PalletIndex:   instr.PalletIndex,
		CallIndex:     instr.CallIndex,
		Controller:    string(instr.Controller),
	}
	if !instr.Beneficiary.IsHere() {
		msg.Beneficiary = instr.Beneficiary.String()
	}

	res, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode instruction: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: o.stream,
		Values: map[string]interface{}{payloadField: string(res)},
	}
	if o.maxLen > 0 {
		args.MaxLen = o.maxLen
		args.Approx = true
	}

	entryID, err := o.rdb.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to append to %s: %w", o.stream, err)
	}

	log.Debug().Str("stream", o.stream).Str("entry", entryID).Str("kind", msg.Kind).
		Str("destination", msg.Destination).Str("instruction_id", msg.ID).Msg("instruction queued")
	return nil
}

var _ domain.MessageSender = (*Outbox)(nil)
