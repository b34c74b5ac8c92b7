package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kanban/internal/model"
	"kanban/internal/repository"
)

// TransferOwnership hands the project to another member. The new owner's
// row becomes owner and the old owner's row, if present, is demoted to
// admin. Everything commits together or not at all; a failure inside the
// transaction is reported as ErrTransferFailed.
func (s *MembershipService) TransferOwnership(ctx context.Context, actorID, projectID, newOwnerID uint) (*model.Project, error) {
	access, err := require(ctx, s.store, actorID, projectID, Access.CanTransferOwnership)
	if err != nil {
		return nil, err
	}
	if newOwnerID == 0 || newOwnerID == access.Project.OwnerID {
		return nil, ErrInvalidNewOwner
	}
	if _, err := s.store.Members.Find(ctx, projectID, newOwnerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidNewOwner
		}
		return nil, err
	}

	var oldOwnerID uint
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		project, err := tx.Projects.FindByID(ctx, projectID)
		if err != nil {
			return err
		}
		oldOwnerID = project.OwnerID

		if err := tx.Projects.SetOwner(ctx, projectID, newOwnerID); err != nil {
			return err
		}

		err = tx.Members.UpdateRole(ctx, projectID, newOwnerID, model.RoleOwner)
		if errors.Is(err, repository.ErrNotFound) {
			err = tx.Members.Create(ctx, &model.Membership{ProjectID: projectID, UserID: newOwnerID, Role: model.RoleOwner})
		}
		if err != nil {
			return err
		}

		if oldOwnerID == newOwnerID {
			return nil
		}
		err = tx.Members.UpdateRole(ctx, projectID, oldOwnerID, model.RoleAdmin)
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("previous owner had no membership row",
				slog.Uint64("project_id", uint64(projectID)), slog.Uint64("user_id", uint64(oldOwnerID)))
			return nil
		}
		return err
	})
	if err != nil {
		s.logger.Error("ownership transfer rolled back",
			slog.Uint64("project_id", uint64(projectID)),
			slog.Uint64("new_owner_id", uint64(newOwnerID)),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	s.logger.Info("ownership transferred",
		slog.Uint64("project_id", uint64(projectID)),
		slog.Uint64("from", uint64(oldOwnerID)),
		slog.Uint64("to", uint64(newOwnerID)))
	return s.store.Projects.FindWithRelations(ctx, projectID)
}
