package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"gorm.io/gorm"

	"kanban/internal/model"
	"kanban/internal/repository"
)

var fixedNow = time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

type fixture struct {
	db       *gorm.DB
	store    *repository.Store
	users    *UserService
	projects *ProjectService
	members  *MembershipService
	sections *SectionService
	items    *ItemService
	tags     *TagService
	digests  *DigestService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repository.NewStore(db)
	f := &fixture{
		db:       db,
		store:    store,
		users:    NewUserService(store, logger),
		projects: NewProjectService(store, logger),
		members:  NewMembershipService(store, logger),
		sections: NewSectionService(store, logger),
		items:    NewItemService(store, logger),
		tags:     NewTagService(store, logger),
		digests:  NewDigestService(store, logger),
	}
	f.projects.now = func() time.Time { return fixedNow }
	f.items.now = func() time.Time { return fixedNow }
	return f
}

// user inserts an account directly; registration is covered separately.
func (f *fixture) user(t *testing.T, name string) *model.User {
	t.Helper()
	u := &model.User{Name: name, Email: name + "@example.com", PasswordHash: "x"}
	if err := f.store.Users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func (f *fixture) project(t *testing.T, ownerID uint, name string) *model.Project {
	t.Helper()
	p, err := f.projects.Create(context.Background(), ownerID, ProjectInput{Name: name})
	if err != nil {
		t.Fatalf("create project %s: %v", name, err)
	}
	return p
}

func (f *fixture) join(t *testing.T, actorID, projectID, userID uint, role model.Role) {
	t.Helper()
	if _, err := f.members.AddMember(context.Background(), actorID, projectID, userID, role); err != nil {
		t.Fatalf("add member %d as %s: %v", userID, role, err)
	}
}

func (f *fixture) section(t *testing.T, actorID, projectID uint, input SectionInput) *model.Section {
	t.Helper()
	s, err := f.sections.Create(context.Background(), actorID, projectID, input)
	if err != nil {
		t.Fatalf("create section %s: %v", input.Name, err)
	}
	return s
}

func (f *fixture) item(t *testing.T, actorID, sectionID uint, input ItemInput) *model.Item {
	t.Helper()
	it, err := f.items.Create(context.Background(), actorID, sectionID, input)
	if err != nil {
		t.Fatalf("create item %s: %v", input.Title, err)
	}
	return it
}

func (f *fixture) tag(t *testing.T, actorID, projectID uint, name string) *model.Tag {
	t.Helper()
	tag, err := f.tags.Create(context.Background(), actorID, projectID, name, "")
	if err != nil {
		t.Fatalf("create tag %s: %v", name, err)
	}
	return tag
}

// roles returns the stored membership roles of a project keyed by user.
func (f *fixture) roles(t *testing.T, projectID uint) map[uint]model.Role {
	t.Helper()
	members, err := f.store.Members.ListByProject(context.Background(), projectID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	out := make(map[uint]model.Role, len(members))
	for _, m := range members {
		out[m.UserID] = m.Role
	}
	return out
}

// assertSingleOwner checks that the owner reference and the membership
// table agree on exactly one owner.
func (f *fixture) assertSingleOwner(t *testing.T, projectID, want uint) {
	t.Helper()
	p, err := f.store.Projects.FindByID(context.Background(), projectID)
	if err != nil {
		t.Fatalf("find project: %v", err)
	}
	if p.OwnerID != want {
		t.Errorf("owner_id = %d, want %d", p.OwnerID, want)
	}
	owners := 0
	for userID, role := range f.roles(t, projectID) {
		if role == model.RoleOwner {
			owners++
			if userID != want {
				t.Errorf("user %d holds an owner row, want %d", userID, want)
			}
		}
	}
	if owners != 1 {
		t.Errorf("found %d owner rows, want 1", owners)
	}
}

func fieldError(t *testing.T, err error, field string) {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want a ValidationError", err)
	}
	if _, ok := verr.Fields[field]; !ok {
		t.Errorf("validation fields = %v, want %q", verr.Fields, field)
	}
}

func sectionByName(t *testing.T, sections []model.Section, name string) *model.Section {
	t.Helper()
	for i := range sections {
		if sections[i].Name == name {
			return &sections[i]
		}
	}
	t.Fatalf("no section named %q", name)
	return nil
}

func itemIDs(items []model.Item) []uint {
	out := make([]uint, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func sameIDs(a, b []uint) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func uintPtr(v uint) *uint { return &v }
func intPtr(v int) *int    { return &v }

func uintString(v uint) string { return strconv.FormatUint(uint64(v), 10) }
