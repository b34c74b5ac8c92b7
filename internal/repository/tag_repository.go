package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"kanban/internal/model"
)

// TagRepository manages project tags.
type TagRepository struct {
	db *gorm.DB
}

func NewTagRepository(db *gorm.DB) *TagRepository {
	return &TagRepository{db: db}
}

func (r *TagRepository) Create(ctx context.Context, tag *model.Tag) error {
	if err := r.db.WithContext(ctx).Create(tag).Error; err != nil {
		return fmt.Errorf("create tag: %w", translate(err))
	}
	return nil
}

func (r *TagRepository) FindByID(ctx context.Context, id uint) (*model.Tag, error) {
	var tag model.Tag
	if err := r.db.WithContext(ctx).First(&tag, id).Error; err != nil {
		return nil, fmt.Errorf("find tag %d: %w", id, translate(err))
	}
	return &tag, nil
}

func (r *TagRepository) ListByProject(ctx context.Context, projectID uint) ([]model.Tag, error) {
	var tags []model.Tag
	if err := byName(r.db.WithContext(ctx)).Where("project_id = ?", projectID).Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

// IDsInProject returns the subset of ids naming tags of the project.
func (r *TagRepository) IDsInProject(ctx context.Context, projectID uint, ids []uint) ([]uint, error) {
	var found []uint
	if len(ids) == 0 {
		return found, nil
	}
	err := r.db.WithContext(ctx).Model(&model.Tag{}).
		Where("project_id = ? AND id IN ?", projectID, ids).
		Order("id").
		Pluck("id", &found).Error
	if err != nil {
		return nil, fmt.Errorf("check tags: %w", err)
	}
	return found, nil
}

// Update changes name or color. The project of a tag never changes.
func (r *TagRepository) Update(ctx context.Context, id uint, updates map[string]any) error {
	delete(updates, "project_id")
	res := r.db.WithContext(ctx).Model(&model.Tag{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update tag %d: %w", id, translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update tag %d: %w", id, ErrNotFound)
	}
	return nil
}

// Delete removes a tag; its item associations go with it.
func (r *TagRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.Tag{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete tag %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete tag %d: %w", id, ErrNotFound)
	}
	return nil
}
