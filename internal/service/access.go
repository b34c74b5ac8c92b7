package service

import (
	"context"
	"errors"
	"fmt"

	"kanban/internal/model"
	"kanban/internal/repository"
)

// RoleOf returns the effective role of userID in project. The project's
// owner reference is authoritative: the owner is always RoleOwner whatever
// the membership table says, and a stale owner row held by anyone else
// never grants more than admin rights.
func RoleOf(userID uint, project *model.Project, membership *model.Membership) model.Role {
	if userID == project.OwnerID {
		return model.RoleOwner
	}
	if membership == nil || membership.UserID != userID || membership.ProjectID != project.ID {
		return model.RoleNone
	}
	if membership.Role == model.RoleOwner {
		return model.RoleAdmin
	}
	return membership.Role
}

// Access is a user's resolved standing in one project. Its methods answer
// capability questions and have no side effects.
type Access struct {
	Project *model.Project
	UserID  uint
	Role    model.Role
}

func (a Access) CanView() bool {
	switch a.Role {
	case model.RoleOwner, model.RoleAdmin, model.RoleEditor, model.RoleMember:
		return true
	}
	return false
}

// CanUpdate covers project fields and the project's sections, tags and items.
func (a Access) CanUpdate() bool {
	return a.Role == model.RoleOwner || a.Role == model.RoleAdmin
}

func (a Access) CanDelete() bool { return a.Role == model.RoleOwner }

func (a Access) CanAddMember() bool { return a.CanUpdate() }

// CanUpdateMemberRole forbids touching the owner, and forbids an admin from
// changing their own membership.
func (a Access) CanUpdateMemberRole(targetID uint) bool {
	return a.canManage(targetID)
}

// CanRemoveMember follows the same rules as CanUpdateMemberRole.
func (a Access) CanRemoveMember(targetID uint) bool {
	return a.canManage(targetID)
}

func (a Access) canManage(targetID uint) bool {
	if !a.CanUpdate() {
		return false
	}
	if targetID == a.Project.OwnerID {
		return false
	}
	if a.Role == model.RoleAdmin && targetID == a.UserID {
		return false
	}
	return true
}

// CanLeave is true for everyone but the owner, who has to transfer the
// project or delete it instead.
func (a Access) CanLeave() bool { return a.Role != model.RoleOwner }

func (a Access) CanTransferOwnership() bool { return a.Role == model.RoleOwner }

// CanModifyItem lets the item's creator or a project manager edit or delete it.
func (a Access) CanModifyItem(item *model.Item) bool {
	return item.CreatorID == a.UserID || a.CanUpdate()
}

// resolveAccess loads the project and the user's membership in it.
func resolveAccess(ctx context.Context, store *repository.Store, userID, projectID uint) (Access, error) {
	project, err := store.Projects.FindByID(ctx, projectID)
	if err != nil {
		return Access{}, notFound(err, "project")
	}
	membership, err := store.Members.Find(ctx, projectID, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		membership = nil
	case err != nil:
		return Access{}, err
	}
	return Access{
		Project: project,
		UserID:  userID,
		Role:    RoleOf(userID, project, membership),
	}, nil
}

// require resolves access and checks it against allowed.
func require(ctx context.Context, store *repository.Store, userID, projectID uint, allowed func(Access) bool) (Access, error) {
	access, err := resolveAccess(ctx, store, userID, projectID)
	if err != nil {
		return Access{}, err
	}
	if !allowed(access) {
		return Access{}, ErrForbidden
	}
	return access, nil
}

// notFound rewrites a repository miss into ErrNotFound for the named entity.
func notFound(err error, entity string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: %w", entity, ErrNotFound)
	}
	return err
}
