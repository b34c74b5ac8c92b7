package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrOrderMismatch is returned by a reorder whose id list is not exactly
// the set of siblings under the parent.
var ErrOrderMismatch = errors.New("ordered ids do not match siblings")

// siblings describes an ordered child table and the column naming its parent.
type siblings struct {
	table  string
	parent string
}

// nextPosition returns the position appended after the last sibling.
// Gaps left by deletions are kept until the next reorder.
func (s siblings) nextPosition(db *gorm.DB, parentID uint) (int, error) {
	var last sql.NullInt64
	err := db.Table(s.table).
		Where(s.parent+" = ?", parentID).
		Select("MAX(position)").
		Row().
		Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("select position: %w", err)
	}
	if last.Valid {
		return int(last.Int64) + 1, nil
	}
	return 1, nil
}

// reorder renumbers the siblings 1..N in the given order. The id check and
// every update run in one transaction, so either all positions change or
// none do.
func (s siblings) reorder(db *gorm.DB, parentID uint, orderedIDs []uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var existing []uint
		if err := tx.Table(s.table).Where(s.parent+" = ?", parentID).Pluck("id", &existing).Error; err != nil {
			return fmt.Errorf("list siblings: %w", err)
		}
		if !sameSet(existing, orderedIDs) {
			return ErrOrderMismatch
		}
		for i, id := range orderedIDs {
			err := tx.Table(s.table).
				Where("id = ? AND "+s.parent+" = ?", id, parentID).
				Update("position", i+1).Error
			if err != nil {
				return fmt.Errorf("update position of %d: %w", id, err)
			}
		}
		return nil
	})
}

// sameSet reports whether ids is a duplicate-free permutation of existing.
func sameSet(existing, ids []uint) bool {
	if len(existing) != len(ids) {
		return false
	}
	remaining := make(map[uint]bool, len(existing))
	for _, id := range existing {
		remaining[id] = true
	}
	for _, id := range ids {
		if !remaining[id] {
			return false
		}
		delete(remaining, id)
	}
	return true
}
