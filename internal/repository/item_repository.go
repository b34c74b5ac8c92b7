package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"kanban/internal/model"
)

var itemSiblings = siblings{table: "items", parent: "section_id"}

// ItemRepository handles items, their ordering and their tag sets.
type ItemRepository struct {
	db *gorm.DB
}

func NewItemRepository(db *gorm.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

func withItemRelations(db *gorm.DB) *gorm.DB {
	return db.Preload("Creator").Preload("Assignee").Preload("Tags", byName)
}

// Create appends the item after the section's last item.
func (r *ItemRepository) Create(ctx context.Context, item *model.Item) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pos, err := itemSiblings.nextPosition(tx, item.SectionID)
		if err != nil {
			return err
		}
		item.Position = pos
		if err := tx.Omit("Creator", "Assignee", "Tags").Create(item).Error; err != nil {
			return fmt.Errorf("create item: %w", translate(err))
		}
		return nil
	})
}

// FindByID loads an item with creator, assignee and tags.
func (r *ItemRepository) FindByID(ctx context.Context, id uint) (*model.Item, error) {
	var item model.Item
	if err := withItemRelations(r.db.WithContext(ctx)).First(&item, id).Error; err != nil {
		return nil, fmt.Errorf("find item %d: %w", id, translate(err))
	}
	return &item, nil
}

// ListBySection returns the section's items with relations. Scopes narrow
// and order the query; without scopes items come back in position order.
func (r *ItemRepository) ListBySection(ctx context.Context, sectionID uint, scopes ...func(*gorm.DB) *gorm.DB) ([]model.Item, error) {
	db := withItemRelations(r.db.WithContext(ctx)).Where("items.section_id = ?", sectionID)
	if len(scopes) == 0 {
		db = db.Order("items.position ASC").Order("items.id ASC")
	}
	var items []model.Item
	if err := db.Scopes(scopes...).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// ListInProjects returns items of the given projects matching the scopes,
// ordered by due date.
func (r *ItemRepository) ListInProjects(ctx context.Context, projectIDs []uint, scopes ...func(*gorm.DB) *gorm.DB) ([]ProjectItem, error) {
	if len(projectIDs) == 0 {
		return nil, nil
	}
	var rows []ProjectItem
	err := r.db.WithContext(ctx).Model(&model.Item{}).
		Select("items.id, items.title, items.due_date, items.status, items.priority, projects.id AS project_id, projects.name AS project_name").
		Joins("JOIN sections ON sections.id = items.section_id").
		Joins("JOIN projects ON projects.id = sections.project_id").
		Where("projects.id IN ?", projectIDs).
		Scopes(scopes...).
		Order("items.due_date ASC").Order("items.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list project items: %w", err)
	}
	return rows, nil
}

// ProjectItem is a flattened item row annotated with its project.
type ProjectItem struct {
	ID          uint
	Title       string
	DueDate     model.Date
	Status      model.ItemStatus
	Priority    model.ItemPriority
	ProjectID   uint
	ProjectName string
}

func (r *ItemRepository) Update(ctx context.Context, id uint, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&model.Item{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update item %d: %w", id, translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update item %d: %w", id, ErrNotFound)
	}
	return nil
}

// ReplaceTags sets the item's tag set to exactly tagIDs. Callers validate
// the ids against the item's project first.
func (r *ItemRepository) ReplaceTags(ctx context.Context, itemID uint, tagIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM item_tags WHERE item_id = ?", itemID).Error; err != nil {
			return fmt.Errorf("clear item tags: %w", err)
		}
		for _, tagID := range tagIDs {
			if err := tx.Exec("INSERT INTO item_tags (item_id, tag_id) VALUES (?, ?)", itemID, tagID).Error; err != nil {
				return fmt.Errorf("attach tag %d: %w", tagID, err)
			}
		}
		return nil
	})
}

func (r *ItemRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.Item{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete item %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete item %d: %w", id, ErrNotFound)
	}
	return nil
}

// Reorder renumbers the section's items to follow orderedIDs and returns
// them in their new order with relations loaded.
func (r *ItemRepository) Reorder(ctx context.Context, sectionID uint, orderedIDs []uint) ([]model.Item, error) {
	if err := itemSiblings.reorder(r.db.WithContext(ctx), sectionID, orderedIDs); err != nil {
		if errors.Is(err, ErrOrderMismatch) {
			return nil, err
		}
		return nil, fmt.Errorf("reorder items: %w", err)
	}
	return r.ListBySection(ctx, sectionID)
}
