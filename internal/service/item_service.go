package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"kanban/internal/filter"
	"kanban/internal/model"
	"kanban/internal/repository"
)

// ItemInput represents data required to create an item.
type ItemInput struct {
	Title       string
	Description string
	DueDate     model.Date
	Status      model.ItemStatus
	Priority    model.ItemPriority
	AssignedTo  *uint
	TagIDs      []uint
}

// ItemPatch changes an item; nil fields stay as they are. A zero DueDate
// clears the due date, an AssignedTo of 0 unassigns and an empty TagIDs
// removes every tag.
type ItemPatch struct {
	Title       *string
	Description *string
	DueDate     *model.Date
	Status      *model.ItemStatus
	Priority    *model.ItemPriority
	AssignedTo  *uint
	TagIDs      *[]uint
}

type ItemService struct {
	store  *repository.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewItemService(store *repository.Store, logger *slog.Logger) *ItemService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ItemService{store: store, logger: logger, now: time.Now}
}

// List returns the section's visible items: the section filter and the
// ad-hoc query are pushed into SQL, ordered by position and capped by the
// section's item limit.
func (s *ItemService) List(ctx context.Context, actorID, sectionID uint, q filter.Query) ([]model.Item, error) {
	section, err := s.store.Sections.FindByID(ctx, sectionID)
	if err != nil {
		return nil, notFound(err, "section")
	}
	if _, err := require(ctx, s.store, actorID, section.ProjectID, Access.CanView); err != nil {
		return nil, err
	}
	plan, err := filter.ForSection(section, q)
	if err != nil {
		s.logger.Warn("ignoring malformed section filter",
			slog.Uint64("section_id", uint64(section.ID)), slog.String("error", err.Error()))
	}
	return s.store.Items.ListBySection(ctx, sectionID, plan.Scope(model.DateOf(s.now())))
}

func (s *ItemService) Get(ctx context.Context, actorID, itemID uint) (*model.Item, error) {
	item, _, _, err := s.load(ctx, actorID, itemID)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Create appends an item to the section and attaches its tags in the same
// transaction. A tag from another project aborts the whole create.
func (s *ItemService) Create(ctx context.Context, actorID, sectionID uint, input ItemInput) (*model.Item, error) {
	section, err := s.store.Sections.FindByID(ctx, sectionID)
	if err != nil {
		return nil, notFound(err, "section")
	}
	if _, err := require(ctx, s.store, actorID, section.ProjectID, Access.CanUpdate); err != nil {
		return nil, err
	}

	if input.Status == "" {
		input.Status = model.StatusTodo
	}
	if input.Priority == "" {
		input.Priority = model.PriorityMedium
	}
	input.Title = strings.TrimSpace(input.Title)
	v := &ValidationError{}
	validateItem(v, input.Title, input.Status, input.Priority)
	if input.AssignedTo != nil && *input.AssignedTo == 0 {
		input.AssignedTo = nil
	}
	s.validateAssignee(ctx, v, input.AssignedTo)
	if err := v.Err(); err != nil {
		return nil, err
	}

	item := model.Item{
		SectionID:   sectionID,
		Title:       input.Title,
		Description: input.Description,
		DueDate:     input.DueDate,
		Status:      input.Status,
		Priority:    input.Priority,
		CreatorID:   actorID,
		AssignedTo:  input.AssignedTo,
	}
	if input.Status == model.StatusDone {
		now := s.now()
		item.CompletedAt = &now
	}

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Items.Create(ctx, &item); err != nil {
			return err
		}
		return syncTags(ctx, tx, section.ProjectID, item.ID, input.TagIDs)
	})
	if err != nil {
		return nil, err
	}
	return s.store.Items.FindByID(ctx, item.ID)
}

// Update applies the patch and, when TagIDs is set, replaces the tag set in
// the same transaction. Only the item's creator or a project manager may
// update.
func (s *ItemService) Update(ctx context.Context, actorID, itemID uint, patch ItemPatch) (*model.Item, error) {
	item, section, access, err := s.load(ctx, actorID, itemID)
	if err != nil {
		return nil, err
	}
	if !access.CanModifyItem(item) {
		return nil, ErrForbidden
	}

	title, status, priority := item.Title, item.Status, item.Priority
	updates := map[string]any{}
	if patch.Title != nil {
		title = strings.TrimSpace(*patch.Title)
		updates["title"] = title
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.DueDate != nil {
		updates["due_date"] = *patch.DueDate
	}
	if patch.Priority != nil {
		priority = *patch.Priority
		updates["priority"] = priority
	}
	if patch.Status != nil && *patch.Status != item.Status {
		status = *patch.Status
		updates["status"] = status
		switch {
		case status == model.StatusDone:
			updates["completed_at"] = s.now()
		case item.Status == model.StatusDone:
			updates["completed_at"] = nil
		}
	}

	v := &ValidationError{}
	validateItem(v, title, status, priority)
	if patch.AssignedTo != nil {
		if *patch.AssignedTo == 0 {
			updates["assigned_to"] = nil
		} else {
			s.validateAssignee(ctx, v, patch.AssignedTo)
			updates["assigned_to"] = *patch.AssignedTo
		}
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Items.Update(ctx, itemID, updates); err != nil {
			return notFound(err, "item")
		}
		if patch.TagIDs == nil {
			return nil
		}
		return syncTags(ctx, tx, section.ProjectID, itemID, *patch.TagIDs)
	})
	if err != nil {
		return nil, err
	}
	return s.store.Items.FindByID(ctx, itemID)
}

func (s *ItemService) Delete(ctx context.Context, actorID, itemID uint) error {
	item, _, access, err := s.load(ctx, actorID, itemID)
	if err != nil {
		return err
	}
	if !access.CanModifyItem(item) {
		return ErrForbidden
	}
	if err := s.store.Items.Delete(ctx, itemID); err != nil {
		return notFound(err, "item")
	}
	return nil
}

// Reorder sets the section's item order. orderedIDs must name every item
// of the section exactly once.
func (s *ItemService) Reorder(ctx context.Context, actorID, sectionID uint, orderedIDs []uint) ([]model.Item, error) {
	section, err := s.store.Sections.FindByID(ctx, sectionID)
	if err != nil {
		return nil, notFound(err, "section")
	}
	if _, err := require(ctx, s.store, actorID, section.ProjectID, Access.CanUpdate); err != nil {
		return nil, err
	}
	items, err := s.store.Items.Reorder(ctx, sectionID, orderedIDs)
	if errors.Is(err, repository.ErrOrderMismatch) {
		return nil, ErrInvalidReorder
	}
	return items, err
}

// load fetches an item with its section and the actor's view access.
func (s *ItemService) load(ctx context.Context, actorID, itemID uint) (*model.Item, *model.Section, Access, error) {
	item, err := s.store.Items.FindByID(ctx, itemID)
	if err != nil {
		return nil, nil, Access{}, notFound(err, "item")
	}
	section, err := s.store.Sections.FindByID(ctx, item.SectionID)
	if err != nil {
		return nil, nil, Access{}, notFound(err, "section")
	}
	access, err := require(ctx, s.store, actorID, section.ProjectID, Access.CanView)
	if err != nil {
		return nil, nil, Access{}, err
	}
	return item, section, access, nil
}

func (s *ItemService) validateAssignee(ctx context.Context, v *ValidationError, userID *uint) {
	if userID == nil {
		return
	}
	ok, err := s.store.Users.Exists(ctx, *userID)
	if err != nil || !ok {
		v.Add("assigned_to", "user %d does not exist", *userID)
	}
}

// syncTags replaces the item's tags after checking every id belongs to the
// project.
func syncTags(ctx context.Context, tx *repository.Store, projectID, itemID uint, tagIDs []uint) error {
	ids := dedupe(tagIDs)
	found, err := tx.Tags.IDsInProject(ctx, projectID, ids)
	if err != nil {
		return err
	}
	if len(found) != len(ids) {
		return fmt.Errorf("%w: %v", ErrInvalidTag, missing(ids, found))
	}
	return tx.Items.ReplaceTags(ctx, itemID, ids)
}

func validateItem(v *ValidationError, title string, status model.ItemStatus, priority model.ItemPriority) {
	switch {
	case title == "":
		v.Add("title", "is required")
	case len(title) > 255:
		v.Add("title", "must be at most 255 characters")
	}
	if !status.Valid() {
		v.Add("status", "must be one of todo, in_progress, done, blocked, archived")
	}
	if !priority.Valid() {
		v.Add("priority", "must be one of low, medium, high, urgent")
	}
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func missing(want, found []uint) []uint {
	have := make(map[uint]bool, len(found))
	for _, id := range found {
		have[id] = true
	}
	var out []uint
	for _, id := range want {
		if !have[id] {
			out = append(out, id)
		}
	}
	return out
}
