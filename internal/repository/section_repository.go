package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"kanban/internal/model"
)

var sectionSiblings = siblings{table: "sections", parent: "project_id"}

// SectionRepository handles sections and their ordering within a project.
type SectionRepository struct {
	db *gorm.DB
}

func NewSectionRepository(db *gorm.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// Create appends the section after the project's last section.
func (r *SectionRepository) Create(ctx context.Context, section *model.Section) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pos, err := sectionSiblings.nextPosition(tx, section.ProjectID)
		if err != nil {
			return err
		}
		section.Position = pos
		if err := tx.Omit("Items").Create(section).Error; err != nil {
			return fmt.Errorf("create section: %w", translate(err))
		}
		return nil
	})
}

func (r *SectionRepository) FindByID(ctx context.Context, id uint) (*model.Section, error) {
	var section model.Section
	if err := r.db.WithContext(ctx).First(&section, id).Error; err != nil {
		return nil, fmt.Errorf("find section %d: %w", id, translate(err))
	}
	return &section, nil
}

// ListByProject returns the project's sections in position order.
func (r *SectionRepository) ListByProject(ctx context.Context, projectID uint) ([]model.Section, error) {
	var sections []model.Section
	if err := byPosition(r.db.WithContext(ctx)).Where("project_id = ?", projectID).Find(&sections).Error; err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return sections, nil
}

func (r *SectionRepository) Update(ctx context.Context, id uint, updates map[string]any) error {
	res := r.db.WithContext(ctx).Model(&model.Section{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update section %d: %w", id, translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update section %d: %w", id, ErrNotFound)
	}
	return nil
}

// Delete removes a section; its items go with it.
func (r *SectionRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.Section{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete section %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete section %d: %w", id, ErrNotFound)
	}
	return nil
}

// Reorder renumbers the project's sections to follow orderedIDs and returns
// them in their new order.
func (r *SectionRepository) Reorder(ctx context.Context, projectID uint, orderedIDs []uint) ([]model.Section, error) {
	if err := sectionSiblings.reorder(r.db.WithContext(ctx), projectID, orderedIDs); err != nil {
		if errors.Is(err, ErrOrderMismatch) {
			return nil, err
		}
		return nil, fmt.Errorf("reorder sections: %w", err)
	}
	return r.ListByProject(ctx, projectID)
}

// CountItems returns the raw item count of each section.
func (r *SectionRepository) CountItems(ctx context.Context, sectionIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(sectionIDs))
	if len(sectionIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		SectionID uint
		Total     int64
	}
	err := r.db.WithContext(ctx).Model(&model.Item{}).
		Select("section_id, COUNT(*) AS total").
		Where("section_id IN ?", sectionIDs).
		Group("section_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count section items: %w", err)
	}
	for _, row := range rows {
		counts[row.SectionID] = row.Total
	}
	return counts, nil
}
