package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// AddBlock inserts a block record for the (blocker, blocked) pair. Inserting
// a pair that already exists returns ErrBlockExists.
func (s *Store) AddBlock(ctx context.Context, blocker, blocked string) error {
	var existing BlockedUser
	err := s.db.WithContext(ctx).
		Where("blocker = ? AND blocked = ?", blocker, blocked).
		First(&existing).Error
	switch {
	case err == nil:
		return ErrBlockExists
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("check block %q -> %q: %w", blocker, blocked, err)
	}

	record := BlockedUser{Blocker: blocker, Blocked: blocked, CreatedAt: nowUTC()}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		// A concurrent insert of the same pair can slip past the existence
		// check; the primary key violation is the same duplicate.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrBlockExists
		}
		return fmt.Errorf("insert block %q -> %q: %w", blocker, blocked, err)
	}
	return nil
}

// RemoveBlock deletes the block record matching the exact pair and reports
// how many rows were removed. Removing a non-existent block is a no-op.
func (s *Store) RemoveBlock(ctx context.Context, blocker, blocked string) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("blocker = ? AND blocked = ?", blocker, blocked).
		Delete(&BlockedUser{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete block %q -> %q: %w", blocker, blocked, result.Error)
	}
	return result.RowsAffected, nil
}

// IsBlocked reports whether a block record exists with the given blocker and
// blocked identities.
func (s *Store) IsBlocked(ctx context.Context, blocker, blocked string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&BlockedUser{}).
		Where("blocker = ? AND blocked = ?", blocker, blocked).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("query block %q -> %q: %w", blocker, blocked, err)
	}
	return count > 0, nil
}
