package db

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the write path of the mirror. Each Save method covers exactly
// one page of remote data and runs as a single transaction, so an
// interrupted crawl never leaves a page half-written.
type Store struct {
	db *gorm.DB
}

func NewStore(gdb *gorm.DB) *Store {
	return &Store{db: gdb}
}

// SaveUsers upserts one page of users.
func (s *Store) SaveUsers(users []User) error {
	if len(users) == 0 {
		return nil
	}
	err := s.withConflictRetry(func(tx *gorm.DB) error {
		return upsert(tx, &users, "id")
	})
	if err != nil {
		return fmt.Errorf("SaveUsers: %w", err)
	}
	return nil
}

// SaveChannel upserts one channel row.
func (s *Store) SaveChannel(ch Channel) error {
	err := s.withConflictRetry(func(tx *gorm.DB) error {
		return upsert(tx, &ch, "id")
	})
	if err != nil {
		return fmt.Errorf("SaveChannel %s: %w", ch.ID, err)
	}
	return nil
}

// SaveMessages upserts one page of messages together with their reactions.
// Reactions have no natural key, so the page's old reaction rows are
// deleted and the fresh set inserted; re-running a sync therefore cannot
// accumulate duplicates.
func (s *Store) SaveMessages(msgs []Message, reactions []Reaction) error {
	if len(msgs) == 0 {
		return nil
	}
	err := s.withConflictRetry(func(tx *gorm.DB) error {
		if err := upsert(tx, &msgs, "ts"); err != nil {
			return err
		}
		timestamps := make([]string, len(msgs))
		for i, m := range msgs {
			timestamps[i] = m.TS
		}
		if err := tx.Where("message_ts IN ?", timestamps).Delete(&Reaction{}).Error; err != nil {
			return err
		}
		if len(reactions) > 0 {
			return tx.Create(&reactions).Error
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("SaveMessages: %w", err)
	}
	return nil
}

// upsert inserts rows, overwriting non-key columns when the primary key
// already exists.
func upsert(tx *gorm.DB, value any, pkColumn string) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: pkColumn}},
		UpdateAll: true,
	}).Create(value).Error
}

// withConflictRetry runs fn in a transaction and retries it exactly once
// if a concurrent writer won a uniqueness race. The upsert clauses resolve
// ordinary key collisions; the residual window is two writers inserting
// the same row between each other's check and write.
func (s *Store) withConflictRetry(fn func(tx *gorm.DB) error) error {
	err := s.db.Transaction(fn)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return s.db.Transaction(fn)
	}
	return err
}
