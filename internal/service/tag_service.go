package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"kanban/internal/model"
	"kanban/internal/repository"
)

const defaultTagColor = "#3b82f6"

var tagColor = regexp.MustCompile(`^#[a-fA-F0-9]{6}$`)

// TagService manages a project's tag vocabulary.
type TagService struct {
	store  *repository.Store
	logger *slog.Logger
}

func NewTagService(store *repository.Store, logger *slog.Logger) *TagService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TagService{store: store, logger: logger}
}

func (s *TagService) List(ctx context.Context, actorID, projectID uint) ([]model.Tag, error) {
	if _, err := require(ctx, s.store, actorID, projectID, Access.CanView); err != nil {
		return nil, err
	}
	return s.store.Tags.ListByProject(ctx, projectID)
}

func (s *TagService) Get(ctx context.Context, actorID, tagID uint) (*model.Tag, error) {
	return s.load(ctx, actorID, tagID, Access.CanView)
}

// Create adds a tag. Names are unique within a project.
func (s *TagService) Create(ctx context.Context, actorID, projectID uint, name, color string) (*model.Tag, error) {
	if _, err := require(ctx, s.store, actorID, projectID, Access.CanUpdate); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if color == "" {
		color = defaultTagColor
	}
	v := &ValidationError{}
	validateTag(v, name, color)
	if err := v.Err(); err != nil {
		return nil, err
	}

	tag := model.Tag{ProjectID: projectID, Name: name, Color: color}
	if err := s.store.Tags.Create(ctx, &tag); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, duplicateTag()
		}
		return nil, err
	}
	return &tag, nil
}

// Update renames or recolors a tag. A tag never moves to another project.
func (s *TagService) Update(ctx context.Context, actorID, tagID uint, name, color *string) (*model.Tag, error) {
	tag, err := s.load(ctx, actorID, tagID, Access.CanUpdate)
	if err != nil {
		return nil, err
	}

	newName, newColor := tag.Name, tag.Color
	updates := map[string]any{}
	if name != nil {
		newName = strings.TrimSpace(*name)
		updates["name"] = newName
	}
	if color != nil {
		newColor = *color
		if newColor == "" {
			newColor = defaultTagColor
		}
		updates["color"] = newColor
	}
	v := &ValidationError{}
	validateTag(v, newName, newColor)
	if err := v.Err(); err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return tag, nil
	}

	if err := s.store.Tags.Update(ctx, tagID, updates); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, duplicateTag()
		}
		return nil, notFound(err, "tag")
	}
	return s.store.Tags.FindByID(ctx, tagID)
}

// Delete removes the tag from the project and from every item carrying it.
func (s *TagService) Delete(ctx context.Context, actorID, tagID uint) error {
	if _, err := s.load(ctx, actorID, tagID, Access.CanUpdate); err != nil {
		return err
	}
	if err := s.store.Tags.Delete(ctx, tagID); err != nil {
		return notFound(err, "tag")
	}
	return nil
}

func (s *TagService) load(ctx context.Context, actorID, tagID uint, allowed func(Access) bool) (*model.Tag, error) {
	tag, err := s.store.Tags.FindByID(ctx, tagID)
	if err != nil {
		return nil, notFound(err, "tag")
	}
	if _, err := require(ctx, s.store, actorID, tag.ProjectID, allowed); err != nil {
		return nil, err
	}
	return tag, nil
}

func validateTag(v *ValidationError, name, color string) {
	switch {
	case name == "":
		v.Add("name", "is required")
	case len(name) > 50:
		v.Add("name", "must be at most 50 characters")
	}
	if !tagColor.MatchString(color) {
		v.Add("color", "must be a #RRGGBB hex color")
	}
}

func duplicateTag() error {
	return fmt.Errorf("%w: the project already has a tag with this name", ErrConflict)
}
