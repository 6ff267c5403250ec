package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dtroode/anonrelay-server/internal/logger"
	"github.com/dtroode/anonrelay-server/internal/model"
)

// maxEchoHops bounds the reply dereference chain: when the operator replies
// to a relay-generated echo instead of the forwarded copy itself, the router
// follows at most this many hops to the message the echo wrapped.
const maxEchoHops = 1

// RelayRouter owns the forwarded-message to user mapping.
type RelayRouter struct {
	forwards model.ForwardStore
	logger   *logger.Logger
	now      func() time.Time
}

func NewRelayRouter(forwards model.ForwardStore, logger *logger.Logger) *RelayRouter {
	return &RelayRouter{
		forwards: forwards,
		logger:   logger,
		now:      time.Now,
	}
}

// RecordForward persists the mapping from a forwarded message id to its
// originating user. Recording the same pair twice is a no-op; a duplicate id
// previously bound to a different user is overwritten and logged as an
// anomaly, never silently ignored.
func (r *RelayRouter) RecordForward(ctx context.Context, messageID, userID int64) error {
	prev, existed, err := r.forwards.Record(ctx, messageID, userID, r.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record forward mapping: %w", err)
	}

	if existed && prev != userID {
		r.logger.Warn("Relay router: forward mapping ownership conflict",
			"message_id", messageID,
			"previous_user_id", prev,
			"user_id", userID)
	}

	return nil
}

// ResolveReplyTarget returns the user an operator reply should be delivered
// to. It tries the replied-to message id directly, then walks at most
// maxEchoHops through relay-generated echoes before giving up with
// ErrNotFound.
func (r *RelayRouter) ResolveReplyTarget(ctx context.Context, reply model.OperatorReply) (int64, error) {
	candidate := reply.RepliedMessageID

	for hop := 0; ; hop++ {
		userID, err := r.forwards.Resolve(ctx, candidate)
		if err == nil {
			return userID, nil
		}
		if !errors.Is(err, model.ErrNotFound) {
			return 0, fmt.Errorf("failed to resolve reply target: %w", err)
		}

		if hop >= maxEchoHops || !reply.RepliedIsRelay || reply.EchoOfMessageID == 0 {
			return 0, model.ErrNotFound
		}
		candidate = reply.EchoOfMessageID
	}
}
