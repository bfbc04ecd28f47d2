package chat

import (
	"context"
	"fmt"

	"github.com/rakhisingh42/Chat-Application/internal/logger"
)

// BlockStore is the persistence surface the registry mutates and queries.
type BlockStore interface {
	AddBlock(ctx context.Context, blocker, blocked string) error
	RemoveBlock(ctx context.Context, blocker, blocked string) (int64, error)
	IsBlocked(ctx context.Context, blocker, blocked string) (bool, error)
}

// BlockRegistry centralizes the block-direction convention: a message from
// sender to receiver is suppressed iff the receiver has blocked the sender.
// All suppression lookups go through IsSuppressed so the (blocker, blocked)
// ordering is written down in exactly one place.
type BlockRegistry struct {
	store BlockStore
}

// NewBlockRegistry constructs a BlockRegistry over the given store.
func NewBlockRegistry(store BlockStore) *BlockRegistry {
	return &BlockRegistry{store: store}
}

// IsSuppressed reports whether a message from sender to receiver must be
// dropped. The lookup key is (blocker=receiver, blocked=sender).
func (r *BlockRegistry) IsSuppressed(ctx context.Context, sender, receiver string) (bool, error) {
	return r.store.IsBlocked(ctx, receiver, sender)
}

// Block records that blocker refuses messages from blocked. Blocking a pair
// that is already blocked surfaces the store's conflict error.
func (r *BlockRegistry) Block(ctx context.Context, blocker, blocked string) error {
	if err := r.store.AddBlock(ctx, blocker, blocked); err != nil {
		return err
	}
	logger.L.Info("user blocked", "blocker", blocker, "blocked", blocked)
	return nil
}

// Unblock removes the block for the exact pair. Unblocking a pair that was
// never blocked succeeds; the operation is idempotent.
func (r *BlockRegistry) Unblock(ctx context.Context, blocker, blocked string) error {
	removed, err := r.store.RemoveBlock(ctx, blocker, blocked)
	if err != nil {
		return fmt.Errorf("unblock %q -> %q: %w", blocker, blocked, err)
	}
	logger.L.Info("user unblocked", "blocker", blocker, "blocked", blocked, "removed", removed)
	return nil
}
