package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"kanban/internal/model"
)

// ProjectRepository handles projects and their eager-loaded aggregates.
type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func byPosition(db *gorm.DB) *gorm.DB { return db.Order("position ASC").Order("id ASC") }
func byName(db *gorm.DB) *gorm.DB     { return db.Order("name ASC") }
func byID(db *gorm.DB) *gorm.DB       { return db.Order("id ASC") }

func (r *ProjectRepository) Create(ctx context.Context, project *model.Project) error {
	if err := r.db.WithContext(ctx).Omit("Owner", "Members", "Sections", "Tags").Create(project).Error; err != nil {
		return fmt.Errorf("create project: %w", translate(err))
	}
	return nil
}

// FindByID loads the bare project row.
func (r *ProjectRepository) FindByID(ctx context.Context, id uint) (*model.Project, error) {
	var project model.Project
	if err := r.db.WithContext(ctx).First(&project, id).Error; err != nil {
		return nil, fmt.Errorf("find project %d: %w", id, translate(err))
	}
	return &project, nil
}

// FindWithRelations loads the project with owner, members, ordered sections
// and tags, plus section and item counts.
func (r *ProjectRepository) FindWithRelations(ctx context.Context, id uint) (*model.Project, error) {
	var project model.Project
	err := r.db.WithContext(ctx).
		Preload("Owner").
		Preload("Members", byID).
		Preload("Members.User").
		Preload("Sections", byPosition).
		Preload("Tags", byName).
		First(&project, id).Error
	if err != nil {
		return nil, fmt.Errorf("find project %d: %w", id, translate(err))
	}
	if err := r.fillCounts(ctx, []*model.Project{&project}); err != nil {
		return nil, err
	}
	return &project, nil
}

// FindBoard loads everything needed to render the board: the relations of
// FindWithRelations plus every section's items with creator, assignee and tags.
func (r *ProjectRepository) FindBoard(ctx context.Context, id uint) (*model.Project, error) {
	var project model.Project
	err := r.db.WithContext(ctx).
		Preload("Owner").
		Preload("Members", byID).
		Preload("Members.User").
		Preload("Sections", byPosition).
		Preload("Sections.Items", byPosition).
		Preload("Sections.Items.Creator").
		Preload("Sections.Items.Assignee").
		Preload("Sections.Items.Tags", byName).
		Preload("Tags", byName).
		First(&project, id).Error
	if err != nil {
		return nil, fmt.Errorf("find board %d: %w", id, translate(err))
	}
	if err := r.fillCounts(ctx, []*model.Project{&project}); err != nil {
		return nil, err
	}
	return &project, nil
}

// ListForUser returns one page of the projects the user owns or belongs
// to, newest first, and the total number of such projects.
func (r *ProjectRepository) ListForUser(ctx context.Context, userID uint, page, perPage int) ([]model.Project, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 15
	}
	db := r.db.WithContext(ctx)
	visible := db.Model(&model.Project{}).
		Where("owner_id = ? OR id IN (?)", userID,
			db.Model(&model.Membership{}).Select("project_id").Where("user_id = ?", userID))

	var total int64
	if err := visible.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count projects: %w", err)
	}

	var projects []model.Project
	err := visible.Session(&gorm.Session{}).
		Preload("Owner").
		Order("created_at DESC").Order("id DESC").
		Limit(perPage).Offset((page - 1) * perPage).
		Find(&projects).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list projects: %w", err)
	}

	refs := make([]*model.Project, len(projects))
	for i := range projects {
		refs[i] = &projects[i]
	}
	if err := r.fillCounts(ctx, refs); err != nil {
		return nil, 0, err
	}
	return projects, total, nil
}

// IDsForUser returns the ids of every project the user owns or belongs to.
func (r *ProjectRepository) IDsForUser(ctx context.Context, userID uint) ([]uint, error) {
	db := r.db.WithContext(ctx)
	var ids []uint
	err := db.Model(&model.Project{}).
		Where("owner_id = ? OR id IN (?)", userID,
			db.Model(&model.Membership{}).Select("project_id").Where("user_id = ?", userID)).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list project ids: %w", err)
	}
	return ids, nil
}

// Update applies column updates to a project.
func (r *ProjectRepository) Update(ctx context.Context, id uint, updates map[string]any) error {
	res := r.db.WithContext(ctx).Model(&model.Project{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update project %d: %w", id, translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update project %d: %w", id, ErrNotFound)
	}
	return nil
}

// SetOwner rewrites the denormalized owner reference.
func (r *ProjectRepository) SetOwner(ctx context.Context, id, ownerID uint) error {
	return r.Update(ctx, id, map[string]any{"owner_id": ownerID})
}

// Delete removes a project; sections, items, tags and memberships go with
// it through the foreign key cascades.
func (r *ProjectRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.Project{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete project %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete project %d: %w", id, ErrNotFound)
	}
	return nil
}

// NameTaken reports whether the owner already has a project with the name,
// ignoring the project exceptID.
func (r *ProjectRepository) NameTaken(ctx context.Context, ownerID uint, name string, exceptID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Project{}).
		Where("owner_id = ? AND name = ? AND id <> ?", ownerID, name, exceptID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check project name: %w", err)
	}
	return count > 0, nil
}

type projectCount struct {
	ProjectID uint
	Total     int64
}

func (r *ProjectRepository) fillCounts(ctx context.Context, projects []*model.Project) error {
	if len(projects) == 0 {
		return nil
	}
	ids := make([]uint, len(projects))
	for i, p := range projects {
		ids[i] = p.ID
	}
	db := r.db.WithContext(ctx)

	var sections []projectCount
	err := db.Model(&model.Section{}).
		Select("project_id, COUNT(*) AS total").
		Where("project_id IN ?", ids).
		Group("project_id").
		Scan(&sections).Error
	if err != nil {
		return fmt.Errorf("count sections: %w", err)
	}

	var items []projectCount
	err = db.Model(&model.Item{}).
		Select("sections.project_id AS project_id, COUNT(*) AS total").
		Joins("JOIN sections ON sections.id = items.section_id").
		Where("sections.project_id IN ?", ids).
		Group("sections.project_id").
		Scan(&items).Error
	if err != nil {
		return fmt.Errorf("count items: %w", err)
	}

	sectionTotals := make(map[uint]int64, len(sections))
	for _, c := range sections {
		sectionTotals[c.ProjectID] = c.Total
	}
	itemTotals := make(map[uint]int64, len(items))
	for _, c := range items {
		itemTotals[c.ProjectID] = c.Total
	}
	for _, p := range projects {
		p.SectionsCount = sectionTotals[p.ID]
		p.ItemsCount = itemTotals[p.ID]
	}
	return nil
}
