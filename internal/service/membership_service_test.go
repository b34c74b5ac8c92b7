package service

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"kanban/internal/model"
)

func TestAddMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	carol := f.user(t, "carol")
	p := f.project(t, alice.ID, "Board")

	project, err := f.members.AddMember(ctx, alice.ID, p.ID, bob.ID, model.RoleEditor)
	if err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if len(project.Members) != 2 {
		t.Errorf("members = %d, want 2", len(project.Members))
	}

	if _, err := f.members.AddMember(ctx, alice.ID, p.ID, bob.ID, model.RoleMember); !errors.Is(err, ErrConflict) {
		t.Errorf("second add error = %v, want ErrConflict", err)
	}
	if got := f.roles(t, p.ID)[bob.ID]; got != model.RoleEditor {
		t.Errorf("bob's role = %q after failed re-add, want editor", got)
	}

	_, err = f.members.AddMember(ctx, alice.ID, p.ID, carol.ID, model.RoleOwner)
	fieldError(t, err, "role")

	_, err = f.members.AddMember(ctx, alice.ID, p.ID, 9999, model.RoleMember)
	fieldError(t, err, "user_id")

	if _, err := f.members.AddMember(ctx, bob.ID, p.ID, carol.ID, model.RoleMember); !errors.Is(err, ErrForbidden) {
		t.Errorf("editor add error = %v, want ErrForbidden", err)
	}
	if _, err := f.members.AddMember(ctx, alice.ID, 9999, carol.ID, model.RoleMember); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing project error = %v, want ErrNotFound", err)
	}
}

func TestUpdateMemberRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	carol := f.user(t, "carol")
	dave := f.user(t, "dave")
	p := f.project(t, alice.ID, "Board")
	f.join(t, alice.ID, p.ID, bob.ID, model.RoleAdmin)
	f.join(t, alice.ID, p.ID, carol.ID, model.RoleMember)

	if _, err := f.members.UpdateMemberRole(ctx, bob.ID, p.ID, carol.ID, model.RoleEditor); err != nil {
		t.Fatalf("admin promotes member: %v", err)
	}
	if got := f.roles(t, p.ID)[carol.ID]; got != model.RoleEditor {
		t.Errorf("carol's role = %q, want editor", got)
	}

	tests := []struct {
		name   string
		actor  uint
		target uint
		role   model.Role
		want   error
	}{
		{"admin demotes owner", bob.ID, alice.ID, model.RoleMember, ErrForbidden},
		{"admin changes own role", bob.ID, bob.ID, model.RoleMember, ErrForbidden},
		{"editor changes role", carol.ID, bob.ID, model.RoleMember, ErrForbidden},
		{"target not a member", alice.ID, dave.ID, model.RoleMember, ErrNotMember},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := f.roles(t, p.ID)
			_, err := f.members.UpdateMemberRole(ctx, tt.actor, p.ID, tt.target, tt.role)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			after := f.roles(t, p.ID)
			for id, role := range before {
				if after[id] != role {
					t.Errorf("user %d role changed from %q to %q", id, role, after[id])
				}
			}
		})
	}

	_, err := f.members.UpdateMemberRole(ctx, alice.ID, p.ID, carol.ID, model.RoleOwner)
	fieldError(t, err, "role")
	f.assertSingleOwner(t, p.ID, alice.ID)
}

func TestRemoveMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	carol := f.user(t, "carol")
	p := f.project(t, alice.ID, "Board")
	f.join(t, alice.ID, p.ID, bob.ID, model.RoleAdmin)
	f.join(t, alice.ID, p.ID, carol.ID, model.RoleMember)

	if _, err := f.members.RemoveMember(ctx, bob.ID, p.ID, alice.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("admin removes owner: error = %v, want ErrForbidden", err)
	}
	if _, err := f.members.RemoveMember(ctx, bob.ID, p.ID, bob.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("admin removes self: error = %v, want ErrForbidden", err)
	}
	if _, err := f.members.RemoveMember(ctx, alice.ID, p.ID, alice.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("owner removes self: error = %v, want ErrForbidden", err)
	}
	if len(f.roles(t, p.ID)) != 3 {
		t.Fatalf("membership changed after forbidden removals")
	}

	project, err := f.members.RemoveMember(ctx, bob.ID, p.ID, carol.ID)
	if err != nil {
		t.Fatalf("admin removes member: %v", err)
	}
	if len(project.Members) != 2 {
		t.Errorf("members = %d, want 2", len(project.Members))
	}
	if _, err := f.members.RemoveMember(ctx, alice.ID, p.ID, carol.ID); !errors.Is(err, ErrNotMember) {
		t.Errorf("removing a non-member: error = %v, want ErrNotMember", err)
	}
	if _, err := f.projects.Board(ctx, carol.ID, p.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("removed member still sees the board: %v", err)
	}
	f.assertSingleOwner(t, p.ID, alice.ID)
}

func TestLeaveProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	carol := f.user(t, "carol")
	p := f.project(t, alice.ID, "Board")
	f.join(t, alice.ID, p.ID, bob.ID, model.RoleAdmin)

	if err := f.members.LeaveProject(ctx, alice.ID, p.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("owner leave: error = %v, want ErrForbidden", err)
	}
	f.assertSingleOwner(t, p.ID, alice.ID)

	if err := f.members.LeaveProject(ctx, carol.ID, p.ID); !errors.Is(err, ErrNotMember) {
		t.Errorf("stranger leave: error = %v, want ErrNotMember", err)
	}

	if err := f.members.LeaveProject(ctx, bob.ID, p.ID); err != nil {
		t.Fatalf("admin leave: %v", err)
	}
	if _, ok := f.roles(t, p.ID)[bob.ID]; ok {
		t.Error("bob still has a membership row")
	}
}

func TestTransferOwnershipRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	p := f.project(t, alice.ID, "Board")
	f.join(t, alice.ID, p.ID, bob.ID, model.RoleEditor)

	project, err := f.members.TransferOwnership(ctx, alice.ID, p.ID, bob.ID)
	if err != nil {
		t.Fatalf("TransferOwnership: %v", err)
	}
	if project.OwnerID != bob.ID {
		t.Errorf("owner_id = %d, want %d", project.OwnerID, bob.ID)
	}
	f.assertSingleOwner(t, p.ID, bob.ID)
	if got := f.roles(t, p.ID)[alice.ID]; got != model.RoleAdmin {
		t.Errorf("previous owner's role = %q, want admin", got)
	}

	if _, err := f.members.TransferOwnership(ctx, alice.ID, p.ID, alice.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("former owner transfers: error = %v, want ErrForbidden", err)
	}
	if err := f.members.LeaveProject(ctx, bob.ID, p.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("new owner leaves: error = %v, want ErrForbidden", err)
	}

	if _, err := f.members.TransferOwnership(ctx, bob.ID, p.ID, alice.ID); err != nil {
		t.Fatalf("transfer back: %v", err)
	}
	f.assertSingleOwner(t, p.ID, alice.ID)
	if got := f.roles(t, p.ID)[bob.ID]; got != model.RoleAdmin {
		t.Errorf("bob's role after the round trip = %q, want admin", got)
	}
}

func TestTransferOwnershipRejectsBadTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	carol := f.user(t, "carol")
	p := f.project(t, alice.ID, "Board")
	f.join(t, alice.ID, p.ID, bob.ID, model.RoleAdmin)

	tests := []struct {
		name   string
		actor  uint
		target uint
		want   error
	}{
		{"to self", alice.ID, alice.ID, ErrInvalidNewOwner},
		{"to stranger", alice.ID, carol.ID, ErrInvalidNewOwner},
		{"to nobody", alice.ID, 0, ErrInvalidNewOwner},
		{"by admin", bob.ID, bob.ID, ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.members.TransferOwnership(ctx, tt.actor, p.ID, tt.target); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			f.assertSingleOwner(t, p.ID, alice.ID)
		})
	}
}

func TestTransferOwnershipRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	p := f.project(t, alice.ID, "Board")
	f.join(t, alice.ID, p.ID, bob.ID, model.RoleEditor)

	// Fail the demotion of the previous owner, the last write of the transfer.
	err := f.db.Callback().Update().Before("gorm:update").Register("test:fail_demotion", func(tx *gorm.DB) {
		if tx.Statement.Table != "project_members" {
			return
		}
		if values, ok := tx.Statement.Dest.(map[string]interface{}); ok && values["role"] == model.RoleAdmin {
			_ = tx.AddError(errors.New("disk full"))
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	_, err = f.members.TransferOwnership(ctx, alice.ID, p.ID, bob.ID)
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("error = %v, want ErrTransferFailed", err)
	}

	f.assertSingleOwner(t, p.ID, alice.ID)
	if got := f.roles(t, p.ID)[bob.ID]; got != model.RoleEditor {
		t.Errorf("bob's role = %q after rollback, want editor", got)
	}
}
