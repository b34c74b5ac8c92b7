package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"kanban/internal/filter"
	"kanban/internal/model"
	"kanban/internal/repository"
)

var projectColor = regexp.MustCompile(`^#([a-fA-F0-9]{6}|[a-fA-F0-9]{3})$`)

// defaultSections are created with every project.
var defaultSections = []struct {
	name   string
	status model.ItemStatus
}{
	{"To Do", model.StatusTodo},
	{"In Progress", model.StatusInProgress},
	{"Done", model.StatusDone},
}

// ProjectInput represents data required to create a project.
type ProjectInput struct {
	Name        string
	Description string
	Status      model.ProjectStatus
	StartDate   model.Date
	EndDate     model.Date
	Color       string
}

// ProjectPatch carries the fields to change; nil fields stay as they are.
// A zero date clears the date.
type ProjectPatch struct {
	Name        *string
	Description *string
	Status      *model.ProjectStatus
	StartDate   *model.Date
	EndDate     *model.Date
	Color       *string
}

// ProjectService wraps project lifecycle and board rendering.
type ProjectService struct {
	store  *repository.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewProjectService(store *repository.Store, logger *slog.Logger) *ProjectService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectService{store: store, logger: logger, now: time.Now}
}

// Create stores the project, makes the creator its owner member and adds
// the default status sections, all in one transaction.
func (s *ProjectService) Create(ctx context.Context, ownerID uint, input ProjectInput) (*model.Project, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Status == "" {
		input.Status = model.ProjectActive
	}
	v := &ValidationError{}
	validateProject(v, input.Name, input.Status, input.StartDate, input.EndDate, input.Color)
	if err := v.Err(); err != nil {
		return nil, err
	}

	project := model.Project{
		Name:        input.Name,
		Description: input.Description,
		Status:      input.Status,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		Color:       input.Color,
		OwnerID:     ownerID,
	}

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Projects.Create(ctx, &project); err != nil {
			return err
		}
		owner := model.Membership{ProjectID: project.ID, UserID: ownerID, Role: model.RoleOwner}
		if err := tx.Members.Create(ctx, &owner); err != nil {
			return err
		}
		for _, def := range defaultSections {
			value, err := filter.ByStatus(def.status).Value()
			if err != nil {
				return err
			}
			section := model.Section{
				ProjectID:   project.ID,
				Name:        def.name,
				FilterType:  model.FilterStatus,
				FilterValue: model.FilterValue(value),
			}
			if err := tx.Sections.Create(ctx, &section); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, invalidName()
		}
		return nil, fmt.Errorf("create project: %w", err)
	}

	s.logger.Info("project created", slog.Uint64("project_id", uint64(project.ID)), slog.Uint64("owner_id", uint64(ownerID)))
	return s.store.Projects.FindWithRelations(ctx, project.ID)
}

// List returns one page of the projects the user can see.
func (s *ProjectService) List(ctx context.Context, userID uint, page, perPage int) ([]model.Project, int64, error) {
	return s.store.Projects.ListForUser(ctx, userID, page, perPage)
}

// Board returns the project with its sections, each holding the items its
// filter and limit select, evaluated in memory over the preloaded items.
func (s *ProjectService) Board(ctx context.Context, userID, projectID uint) (*model.Project, error) {
	if _, err := require(ctx, s.store, userID, projectID, Access.CanView); err != nil {
		return nil, err
	}
	project, err := s.store.Projects.FindBoard(ctx, projectID)
	if err != nil {
		return nil, notFound(err, "project")
	}
	today := model.DateOf(s.now())
	for i := range project.Sections {
		section := &project.Sections[i]
		section.ItemsCount = int64(len(section.Items))
		plan, err := filter.ForSection(section, filter.Query{})
		if err != nil {
			s.logger.Warn("ignoring malformed section filter",
				slog.Uint64("section_id", uint64(section.ID)), slog.String("error", err.Error()))
		}
		section.Items = plan.Apply(section.Items, today)
	}
	return project, nil
}

// Update changes project fields. Owners and admins only.
func (s *ProjectService) Update(ctx context.Context, userID, projectID uint, patch ProjectPatch) (*model.Project, error) {
	access, err := require(ctx, s.store, userID, projectID, Access.CanUpdate)
	if err != nil {
		return nil, err
	}
	current := access.Project

	name, status := current.Name, current.Status
	start, end, color := current.StartDate, current.EndDate, current.Color
	updates := map[string]any{}
	if patch.Name != nil {
		name = strings.TrimSpace(*patch.Name)
		updates["name"] = name
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.Status != nil {
		status = *patch.Status
		updates["status"] = status
	}
	if patch.StartDate != nil {
		start = *patch.StartDate
		updates["start_date"] = start
	}
	if patch.EndDate != nil {
		end = *patch.EndDate
		updates["end_date"] = end
	}
	if patch.Color != nil {
		color = *patch.Color
		updates["color"] = color
	}

	v := &ValidationError{}
	validateProject(v, name, status, start, end, color)
	if err := v.Err(); err != nil {
		return nil, err
	}
	if patch.Name != nil {
		taken, err := s.store.Projects.NameTaken(ctx, current.OwnerID, name, current.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, invalidName()
		}
	}

	if len(updates) > 0 {
		if err := s.store.Projects.Update(ctx, projectID, updates); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return nil, invalidName()
			}
			return nil, notFound(err, "project")
		}
	}
	return s.store.Projects.FindWithRelations(ctx, projectID)
}

// Delete removes the project and, through cascades, everything in it.
// Only the owner may delete.
func (s *ProjectService) Delete(ctx context.Context, userID, projectID uint) error {
	if _, err := require(ctx, s.store, userID, projectID, Access.CanDelete); err != nil {
		return err
	}
	if err := s.store.Projects.Delete(ctx, projectID); err != nil {
		return notFound(err, "project")
	}
	s.logger.Info("project deleted", slog.Uint64("project_id", uint64(projectID)), slog.Uint64("user_id", uint64(userID)))
	return nil
}

func validateProject(v *ValidationError, name string, status model.ProjectStatus, start, end model.Date, color string) {
	switch {
	case name == "":
		v.Add("name", "is required")
	case len(name) > 255:
		v.Add("name", "must be at most 255 characters")
	}
	if !status.Valid() {
		v.Add("status", "must be one of active, archived, on_hold, completed")
	}
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		v.Add("start_date", "must not be after end_date")
	}
	if color != "" && !projectColor.MatchString(color) {
		v.Add("color", "must be a hex color such as #1e90ff")
	}
}

func invalidName() error {
	return fmt.Errorf("%w: you already have a project with this name", ErrConflict)
}
