package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/simaogato/indexfund-backend/internal/domain"
)

// Confirmation kinds carried on the inbound stream
const (
	KindUnbondConfirmed   = "unbond_confirmed"
	KindUnbondedAvailable = "unbonded_available"
	KindTransferOutcome   = "transfer_outcome"
)

// Confirmation is the wire form of an inbound message from a foreign chain
type Confirmation struct {
	Kind         string `json:"kind"`
	RedemptionID string `json:"redemption_id,omitempty"`
	Asset        string `json:"asset,omitempty"`
	TransferID   string `json:"transfer_id,omitempty"`
	Success      bool   `json:"success,omitempty"`
}

// RedemptionReconciler advances redemptions on confirmations
type RedemptionReconciler interface {
	OnUnbondConfirmed(ctx context.Context, ref domain.WithdrawalRef) error
	OnUnbondedAvailable(ctx context.Context, ref domain.WithdrawalRef) error
}

// TransferReconciler settles reserve-withdraw-deposit transfers
type TransferReconciler interface {
	OnTransferOutcome(ctx context.Context, id uuid.UUID, success bool) error
}

// Runner serializes entry points; satisfied by dispatch.Serializer
type Runner interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

type streamGroupClient interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAutoClaim(ctx context.Context, a *redis.XAutoClaimArgs) *redis.XAutoClaimCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
}

// Consumer reads confirmations from a redis stream consumer group and routes
// them to the reconciliation entry points
type Consumer struct {
	rdb         streamGroupClient
	stream      string
	group       string
	name        string
	block       time.Duration
	runner      Runner
	redemptions RedemptionReconciler
	transfers   TransferReconciler

	// Entries that failed with a retryable error are reclaimed every
	// reclaimEvery once they have been idle for reclaimIdle
	reclaimEvery time.Duration
	reclaimIdle  time.Duration
	// Backoff after a batch with failures doubles from retryDelay up to maxRetryDelay
	retryDelay    time.Duration
	maxRetryDelay time.Duration
}

// NewConsumer creates a new Consumer instance
func NewConsumer(
	rdb streamGroupClient,
	stream, group, name string,
	runner Runner,
	redemptions RedemptionReconciler,
	transfers TransferReconciler,
) *Consumer {
	return &Consumer{
		rdb:         rdb,
		stream:      stream,
		group:       group,
		name:        name,
		block:       5 * time.Second,
		runner:      runner,
		redemptions: redemptions,
		transfers:   transfers,

		reclaimEvery:  30 * time.Second,
		reclaimIdle:   time.Minute,
		retryDelay:    500 * time.Millisecond,
		maxRetryDelay: 30 * time.Second,
	}
}

// Consume processes entries left pending by a previous run, then new ones,
// until ctx is cancelled
// Logic:
//  1. Replay this consumer's pending entries once, walking forward by ID
//  2. Read new entries (">") blocking up to c.block
//  3. Every reclaimEvery, claim entries idle for reclaimIdle and retry them
//  4. After a batch with retryable failures, back off before reading again
func (c *Consumer) Consume(ctx context.Context) error {
	err := c.rdb.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !isBusyGroup(err) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	log.Info().Str("stream", c.stream).Str("group", c.group).Msg("confirmation consumer started")

	cursor := "0"
	claimStart := "0-0"
	lastClaim := time.Now()
	failures := 0
	for {
		if ctx.Err() != nil {
			log.Debug().Msg("breaking the consumer loop")
			return nil
		}

		failed := 0
		if cursor == ">" && time.Since(lastClaim) >= c.reclaimEvery {
			lastClaim = time.Now()
			var n int
			claimStart, n = c.reclaim(ctx, claimStart)
			failed += n
		}

		streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.name,
			Streams:  []string{c.stream, cursor},
			Count:    64,
			Block:    c.block,
		}).Result()
		switch {
		case err == nil:
		case errors.Is(err, redis.Nil):
			streams = nil
		case ctx.Err() != nil:
			return nil
		default:
			log.Error().Err(err).Str("stream", c.stream).Msg("failed to read confirmations")
			if !sleep(ctx, time.Second) {
				return nil
			}
			continue
		}

		seen, last := 0, ""
		for _, s := range streams {
			if len(s.Messages) == 0 {
				continue
			}
			seen += len(s.Messages)
			last = s.Messages[len(s.Messages)-1].ID
			failed += c.Process(ctx, s.Messages)
		}
		if cursor != ">" {
			// history reads return entries after the cursor, so moving past
			// the last one never hands back an entry already tried
			if seen == 0 {
				cursor = ">"
			} else {
				cursor = last
			}
		}

		if failed == 0 {
			failures = 0
			continue
		}
		failures++
		if !sleep(ctx, c.backoff(failures)) {
			return nil
		}
	}
}

// reclaim takes over entries that stayed pending for reclaimIdle, from any
// consumer of the group, and processes them again. It returns the cursor for
// the next call and the number of entries that failed again.
func (c *Consumer) reclaim(ctx context.Context, start string) (string, int) {
	msgs, next, err := c.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.name,
		MinIdle:  c.reclaimIdle,
		Start:    start,
		Count:    64,
	}).Result()
	if err != nil {
		if ctx.Err() == nil {
			log.Error().Err(err).Str("stream", c.stream).Msg("failed to reclaim pending confirmations")
		}
		return start, 0
	}
	if len(msgs) > 0 {
		log.Info().Int("entries", len(msgs)).Msg("retrying pending confirmations")
	}
	if next == "" {
		next = "0-0"
	}
	return next, c.Process(ctx, msgs)
}

func (c *Consumer) backoff(failures int) time.Duration {
	d := c.retryDelay
	for i := 1; i < failures && d < c.maxRetryDelay; i++ {
		d *= 2
	}
	if d > c.maxRetryDelay {
		d = c.maxRetryDelay
	}
	return d
}

// sleep waits for d and reports false if ctx ended first
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Process dispatches a batch and acknowledges the entries that are done.
// Entries failing with a retryable error stay pending until reclaimed; the
// number of such entries is returned.
func (c *Consumer) Process(ctx context.Context, msgs []redis.XMessage) int {
	failed := 0
	for _, msg := range msgs {
		err := c.runner.Do(ctx, func(ctx context.Context) error {
			return c.Dispatch(ctx, msg)
		})
		if err != nil && !permanent(err) {
			log.Error().Err(err).Str("entry", msg.ID).Msg("confirmation failed, left pending")
			failed++
			continue
		}
		if err != nil {
			log.Warn().Err(err).Str("entry", msg.ID).Msg("confirmation rejected")
		}
		if err := c.rdb.XAck(ctx, c.stream, c.group, msg.ID).Err(); err != nil {
			log.Error().Err(err).Str("entry", msg.ID).Msg("failed to ack confirmation")
		}
	}
	return failed
}

// Dispatch decodes one stream entry and calls the matching entry point
func (c *Consumer) Dispatch(ctx context.Context, msg redis.XMessage) error {
	raw, ok := msg.Values[payloadField].(string)
	if !ok {
		return fmt.Errorf("entry %s has no payload: %w", msg.ID, domain.ErrInvalidArgument)
	}
	var conf Confirmation
	if err := json.Unmarshal([]byte(raw), &conf); err != nil {
		return fmt.Errorf("entry %s: %v: %w", msg.ID, err, domain.ErrInvalidArgument)
	}

	switch conf.Kind {
	case KindUnbondConfirmed, KindUnbondedAvailable:
		id, err := uuid.Parse(conf.RedemptionID)
		if err != nil {
			return fmt.Errorf("invalid redemption_id: %w", domain.ErrInvalidArgument)
		}
		ref := domain.WithdrawalRef{RedemptionID: id, Asset: domain.AssetID(conf.Asset)}
		if conf.Kind == KindUnbondConfirmed {
			return c.redemptions.OnUnbondConfirmed(ctx, ref)
		}
		return c.redemptions.OnUnbondedAvailable(ctx, ref)

	case KindTransferOutcome:
		id, err := uuid.Parse(conf.TransferID)
		if err != nil {
			return fmt.Errorf("invalid transfer_id: %w", domain.ErrInvalidArgument)
		}
		return c.transfers.OnTransferOutcome(ctx, id, conf.Success)
	}

	return fmt.Errorf("unknown confirmation kind %q: %w", conf.Kind, domain.ErrInvalidArgument)
}

// permanent reports whether retrying the entry cannot succeed
func permanent(err error) bool {
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrInvalidArgument) ||
		errors.Is(err, domain.ErrGovernance) ||
		errors.Is(err, domain.ErrInsufficientFunds) ||
		errors.Is(err, domain.ErrOverflow)
}

func isBusyGroup(err error) bool {
	return strings.HasPrefix(err.Error(), "BUSYGROUP")
}
