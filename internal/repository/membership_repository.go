package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"kanban/internal/model"
)

// MembershipRepository manages the project_members join rows.
type MembershipRepository struct {
	db *gorm.DB
}

func NewMembershipRepository(db *gorm.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

func (r *MembershipRepository) Find(ctx context.Context, projectID, userID uint) (*model.Membership, error) {
	var m model.Membership
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&m).Error
	if err != nil {
		return nil, fmt.Errorf("find membership %d/%d: %w", projectID, userID, translate(err))
	}
	return &m, nil
}

// Create inserts a membership. A second row for the same pair fails with
// ErrDuplicate.
func (r *MembershipRepository) Create(ctx context.Context, m *model.Membership) error {
	if err := r.db.WithContext(ctx).Omit("User").Create(m).Error; err != nil {
		return fmt.Errorf("create membership: %w", translate(err))
	}
	return nil
}

func (r *MembershipRepository) UpdateRole(ctx context.Context, projectID, userID uint, role model.Role) error {
	res := r.db.WithContext(ctx).Model(&model.Membership{}).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Update("role", role)
	if res.Error != nil {
		return fmt.Errorf("update membership role: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update membership role: %w", ErrNotFound)
	}
	return nil
}

func (r *MembershipRepository) Delete(ctx context.Context, projectID, userID uint) error {
	res := r.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Delete(&model.Membership{})
	if res.Error != nil {
		return fmt.Errorf("delete membership: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete membership: %w", ErrNotFound)
	}
	return nil
}

func (r *MembershipRepository) ListByProject(ctx context.Context, projectID uint) ([]model.Membership, error) {
	var members []model.Membership
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("project_id = ?", projectID).
		Order("id").
		Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}
