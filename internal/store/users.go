package store

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"
)

// SaveUser records a username, ignoring the write when the username is
// already known. Called on every connect, so it must stay idempotent.
func (s *Store) SaveUser(ctx context.Context, username string) error {
	user := User{Username: username}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "username"}},
			DoNothing: true,
		}).
		Create(&user).Error
	if err != nil {
		return fmt.Errorf("upsert user %q: %w", username, err)
	}
	return nil
}

// ListUsers returns all known usernames in registration order.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}
