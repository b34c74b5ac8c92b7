package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kanban/internal/model"
	"kanban/internal/repository"
)

// MembershipService changes who belongs to a project and in which role.
type MembershipService struct {
	store  *repository.Store
	logger *slog.Logger
}

func NewMembershipService(store *repository.Store, logger *slog.Logger) *MembershipService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MembershipService{store: store, logger: logger}
}

// Members lists a project's memberships with their users.
func (s *MembershipService) Members(ctx context.Context, actorID, projectID uint) ([]model.Membership, error) {
	if _, err := require(ctx, s.store, actorID, projectID, Access.CanView); err != nil {
		return nil, err
	}
	return s.store.Members.ListByProject(ctx, projectID)
}

// AddMember attaches an existing user with an assignable role. A user who
// already belongs to the project yields ErrConflict.
func (s *MembershipService) AddMember(ctx context.Context, actorID, projectID, userID uint, role model.Role) (*model.Project, error) {
	if _, err := require(ctx, s.store, actorID, projectID, Access.CanAddMember); err != nil {
		return nil, err
	}
	if !role.Assignable() {
		return nil, invalid("role", "must be one of admin, editor, member")
	}
	exists, err := s.store.Users.Exists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, invalid("user_id", "no such user")
	}

	err = s.store.Members.Create(ctx, &model.Membership{ProjectID: projectID, UserID: userID, Role: role})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, fmt.Errorf("%w: user is already a member of the project", ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("member added",
		slog.Uint64("project_id", uint64(projectID)),
		slog.Uint64("user_id", uint64(userID)),
		slog.String("role", string(role)))
	return s.store.Projects.FindWithRelations(ctx, projectID)
}

// UpdateMemberRole changes a non-owner member's role.
func (s *MembershipService) UpdateMemberRole(ctx context.Context, actorID, projectID, userID uint, role model.Role) (*model.Project, error) {
	access, err := require(ctx, s.store, actorID, projectID, Access.CanUpdate)
	if err != nil {
		return nil, err
	}
	if !access.CanUpdateMemberRole(userID) {
		return nil, ErrForbidden
	}
	if !role.Assignable() {
		return nil, invalid("role", "must be one of admin, editor, member")
	}
	if err := s.store.Members.UpdateRole(ctx, projectID, userID, role); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotMember
		}
		return nil, err
	}
	s.logger.Info("member role changed",
		slog.Uint64("project_id", uint64(projectID)),
		slog.Uint64("user_id", uint64(userID)),
		slog.String("role", string(role)))
	return s.store.Projects.FindWithRelations(ctx, projectID)
}

// RemoveMember deletes a non-owner membership.
func (s *MembershipService) RemoveMember(ctx context.Context, actorID, projectID, userID uint) (*model.Project, error) {
	access, err := require(ctx, s.store, actorID, projectID, Access.CanUpdate)
	if err != nil {
		return nil, err
	}
	if !access.CanRemoveMember(userID) {
		return nil, ErrForbidden
	}
	if err := s.store.Members.Delete(ctx, projectID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotMember
		}
		return nil, err
	}
	s.logger.Info("member removed", slog.Uint64("project_id", uint64(projectID)), slog.Uint64("user_id", uint64(userID)))
	return s.store.Projects.FindWithRelations(ctx, projectID)
}

// LeaveProject removes the acting user's own membership. The owner cannot
// leave and has to transfer ownership or delete the project.
func (s *MembershipService) LeaveProject(ctx context.Context, actorID, projectID uint) error {
	access, err := resolveAccess(ctx, s.store, actorID, projectID)
	if err != nil {
		return err
	}
	if !access.CanLeave() {
		s.logger.Warn("owner tried to leave project", slog.Uint64("project_id", uint64(projectID)), slog.Uint64("user_id", uint64(actorID)))
		return ErrForbidden
	}
	if err := s.store.Members.Delete(ctx, projectID, actorID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotMember
		}
		return err
	}
	s.logger.Info("member left", slog.Uint64("project_id", uint64(projectID)), slog.Uint64("user_id", uint64(actorID)))
	return nil
}
