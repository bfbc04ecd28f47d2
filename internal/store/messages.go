package store

import (
	"context"
	"fmt"
)

// SaveMessage writes one message row, letting the database assign the id and
// timestamp, and returns the stored record. Failures propagate to the caller;
// nothing is retried.
func (s *Store) SaveMessage(ctx context.Context, msg Message) (Message, error) {
	msg.ID = 0
	if msg.Timestamp.IsZero() {
		msg.Timestamp = nowUTC()
	}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return Message{}, fmt.Errorf("insert message from %q to %q: %w", msg.Sender, msg.Receiver, err)
	}
	return msg, nil
}

// ListMessagesBetween returns the conversation history between two users in
// insertion order, covering both directions of the pair.
func (s *Store) ListMessagesBetween(ctx context.Context, userA, userB string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 100
	}
	var messages []Message
	err := s.db.WithContext(ctx).
		Where("(sender = ? AND receiver = ?) OR (sender = ? AND receiver = ?)", userA, userB, userB, userA).
		Order("id ASC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("list messages between %q and %q: %w", userA, userB, err)
	}
	return messages, nil
}
