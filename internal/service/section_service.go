package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"kanban/internal/filter"
	"kanban/internal/model"
	"kanban/internal/repository"
)

// SectionInput represents data required to create a section. FilterValue
// holds the raw JSON argument of the filter: a string or id for scalar
// filters, an object (or a string holding one) for date filters.
type SectionInput struct {
	Name        string
	FilterType  model.FilterType
	FilterValue json.RawMessage
	ItemLimit   *int
}

// SectionPatch changes a section. Setting FilterType replaces the whole
// filter with FilterType and FilterValue; a FilterValue alone is read
// against the section's current filter type. An ItemLimit of 0 removes the
// cap.
type SectionPatch struct {
	Name        *string
	FilterType  *model.FilterType
	FilterValue json.RawMessage
	ItemLimit   *int
}

type SectionService struct {
	store  *repository.Store
	logger *slog.Logger
}

func NewSectionService(store *repository.Store, logger *slog.Logger) *SectionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SectionService{store: store, logger: logger}
}

// List returns the project's sections in position order with their raw
// item counts.
func (s *SectionService) List(ctx context.Context, actorID, projectID uint) ([]model.Section, error) {
	if _, err := require(ctx, s.store, actorID, projectID, Access.CanView); err != nil {
		return nil, err
	}
	sections, err := s.store.Sections.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.fillCounts(ctx, sections); err != nil {
		return nil, err
	}
	return sections, nil
}

func (s *SectionService) Get(ctx context.Context, actorID, sectionID uint) (*model.Section, error) {
	section, _, err := s.load(ctx, actorID, sectionID, Access.CanView)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.Sections.CountItems(ctx, []uint{section.ID})
	if err != nil {
		return nil, err
	}
	section.ItemsCount = counts[section.ID]
	return section, nil
}

// Create appends a section to the project.
func (s *SectionService) Create(ctx context.Context, actorID, projectID uint, input SectionInput) (*model.Section, error) {
	if _, err := require(ctx, s.store, actorID, projectID, Access.CanUpdate); err != nil {
		return nil, err
	}

	v := &ValidationError{}
	name := strings.TrimSpace(input.Name)
	validateSectionName(v, name)
	validateItemLimit(v, input.ItemLimit)
	f := s.parseFilter(ctx, v, projectID, input.FilterType, input.FilterValue)
	if err := v.Err(); err != nil {
		return nil, err
	}
	value, err := f.Value()
	if err != nil {
		return nil, err
	}

	section := model.Section{
		ProjectID:   projectID,
		Name:        name,
		FilterType:  f.Kind,
		FilterValue: model.FilterValue(value),
		ItemLimit:   input.ItemLimit,
	}
	if err := s.store.Sections.Create(ctx, &section); err != nil {
		return nil, err
	}
	return &section, nil
}

func (s *SectionService) Update(ctx context.Context, actorID, sectionID uint, patch SectionPatch) (*model.Section, error) {
	section, _, err := s.load(ctx, actorID, sectionID, Access.CanUpdate)
	if err != nil {
		return nil, err
	}

	v := &ValidationError{}
	updates := map[string]any{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		validateSectionName(v, name)
		updates["name"] = name
	}
	if patch.ItemLimit != nil {
		if *patch.ItemLimit == 0 {
			updates["item_limit"] = nil
		} else {
			validateItemLimit(v, patch.ItemLimit)
			updates["item_limit"] = *patch.ItemLimit
		}
	}
	if patch.FilterType != nil || hasValue(patch.FilterValue) {
		kind := section.FilterType
		if patch.FilterType != nil {
			kind = *patch.FilterType
		} else if kind == model.FilterNone || kind == "" {
			v.Add("filter_value", "needs a filter_type")
		}
		f := s.parseFilter(ctx, v, section.ProjectID, kind, patch.FilterValue)
		value, err := f.Value()
		if err != nil {
			return nil, err
		}
		updates["filter_type"] = f.Kind
		updates["filter_value"] = model.FilterValue(value)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	if len(updates) > 0 {
		if err := s.store.Sections.Update(ctx, sectionID, updates); err != nil {
			return nil, notFound(err, "section")
		}
	}
	return s.Get(ctx, actorID, sectionID)
}

// Delete removes the section and its items.
func (s *SectionService) Delete(ctx context.Context, actorID, sectionID uint) error {
	if _, _, err := s.load(ctx, actorID, sectionID, Access.CanUpdate); err != nil {
		return err
	}
	if err := s.store.Sections.Delete(ctx, sectionID); err != nil {
		return notFound(err, "section")
	}
	return nil
}

// Reorder sets the project's section order. orderedIDs must name every
// section of the project exactly once.
func (s *SectionService) Reorder(ctx context.Context, actorID, projectID uint, orderedIDs []uint) ([]model.Section, error) {
	if _, err := require(ctx, s.store, actorID, projectID, Access.CanUpdate); err != nil {
		return nil, err
	}
	sections, err := s.store.Sections.Reorder(ctx, projectID, orderedIDs)
	if errors.Is(err, repository.ErrOrderMismatch) {
		return nil, ErrInvalidReorder
	}
	if err != nil {
		return nil, err
	}
	if err := s.fillCounts(ctx, sections); err != nil {
		return nil, err
	}
	return sections, nil
}

// load fetches a section and checks the actor's access to its project.
func (s *SectionService) load(ctx context.Context, actorID, sectionID uint, allowed func(Access) bool) (*model.Section, Access, error) {
	section, err := s.store.Sections.FindByID(ctx, sectionID)
	if err != nil {
		return nil, Access{}, notFound(err, "section")
	}
	access, err := require(ctx, s.store, actorID, section.ProjectID, allowed)
	if err != nil {
		return nil, Access{}, err
	}
	return section, access, nil
}

func (s *SectionService) fillCounts(ctx context.Context, sections []model.Section) error {
	ids := make([]uint, len(sections))
	for i := range sections {
		ids[i] = sections[i].ID
	}
	counts, err := s.store.Sections.CountItems(ctx, ids)
	if err != nil {
		return err
	}
	for i := range sections {
		sections[i].ItemsCount = counts[sections[i].ID]
	}
	return nil
}

// parseFilter validates a filter before it is stored: the value must parse
// for its type, a tag must belong to the project and an assignee must exist.
func (s *SectionService) parseFilter(ctx context.Context, v *ValidationError, projectID uint, kind model.FilterType, raw json.RawMessage) filter.Filter {
	f, err := filter.Parse(kind, raw)
	if err != nil {
		if !kind.Valid() && kind != "" {
			v.Add("filter_type", "%s", err.Error())
		} else {
			v.Add("filter_value", "%s", err.Error())
		}
		return filter.None
	}
	switch f.Kind {
	case model.FilterTag:
		found, err := s.store.Tags.IDsInProject(ctx, projectID, []uint{f.TagID})
		if err != nil || len(found) != 1 {
			v.Add("filter_value", "tag %d does not belong to the project", f.TagID)
		}
	case model.FilterAssignedTo:
		ok, err := s.store.Users.Exists(ctx, f.UserID)
		if err != nil || !ok {
			v.Add("filter_value", "user %d does not exist", f.UserID)
		}
	}
	return f
}

func validateSectionName(v *ValidationError, name string) {
	switch {
	case name == "":
		v.Add("name", "is required")
	case len(name) > 255:
		v.Add("name", "must be at most 255 characters")
	}
}

func validateItemLimit(v *ValidationError, limit *int) {
	if limit != nil && *limit < 1 {
		v.Add("item_limit", "must be at least 1")
	}
}

func hasValue(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
