package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories over one connection or transaction.
type Store struct {
	db *gorm.DB

	Users    *UserRepository
	Projects *ProjectRepository
	Members  *MembershipRepository
	Sections *SectionRepository
	Items    *ItemRepository
	Tags     *TagRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:       db,
		Users:    NewUserRepository(db),
		Projects: NewProjectRepository(db),
		Members:  NewMembershipRepository(db),
		Sections: NewSectionRepository(db),
		Items:    NewItemRepository(db),
		Tags:     NewTagRepository(db),
	}
}

// Transaction runs fn against a Store bound to a single database
// transaction. Any error returned by fn rolls the whole transaction back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}
