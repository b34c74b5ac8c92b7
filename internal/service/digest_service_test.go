package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"kanban/internal/model"
)

type fakeSender struct {
	sent map[int64]string
	fail map[int64]bool
}

func (s *fakeSender) Send(chatID int64, text string) error {
	if s.fail[chatID] {
		return errors.New("chat blocked the bot")
	}
	if s.sent == nil {
		s.sent = make(map[int64]string)
	}
	s.sent[chatID] = text
	return nil
}

func (f *fixture) link(t *testing.T, userID uint, chatID int64) {
	t.Helper()
	if _, err := f.users.UpdateProfile(context.Background(), userID, ProfilePatch{TelegramChatID: &chatID}); err != nil {
		t.Fatalf("link chat: %v", err)
	}
}

func TestDigestBuild(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	p := f.project(t, alice.ID, "Launch <v2>")
	f.project(t, bob.ID, "Bob's")
	todo := sectionByName(t, p.Sections, "To Do")

	late := f.item(t, alice.ID, todo.ID, ItemInput{Title: "Fix <script>", DueDate: model.MustParseDate("2024-06-10")})
	f.item(t, alice.ID, todo.ID, ItemInput{Title: "Done late", DueDate: model.MustParseDate("2024-06-10"), Status: model.StatusDone})
	tomorrow := f.item(t, alice.ID, todo.ID, ItemInput{Title: "Tomorrow", DueDate: model.MustParseDate("2024-06-16")})
	today := f.item(t, alice.ID, todo.ID, ItemInput{Title: "Today", DueDate: model.MustParseDate("2024-06-15")})
	f.item(t, alice.ID, todo.ID, ItemInput{Title: "Archived today", DueDate: model.MustParseDate("2024-06-15"), Status: model.StatusArchived})
	f.item(t, alice.ID, todo.ID, ItemInput{Title: "Next week", DueDate: model.MustParseDate("2024-06-22")})
	f.item(t, alice.ID, todo.ID, ItemInput{Title: "Someday"})

	digest, err := f.digests.Build(ctx, alice.ID, fixedNow)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(digest.Overdue) != 1 || digest.Overdue[0].ID != late.ID {
		t.Errorf("overdue = %+v, want only %d", digest.Overdue, late.ID)
	}
	if digest.Overdue[0].ProjectName != "Launch <v2>" || digest.Overdue[0].ProjectID != p.ID {
		t.Errorf("overdue item project = %d %q", digest.Overdue[0].ProjectID, digest.Overdue[0].ProjectName)
	}
	var upcoming []uint
	for _, it := range digest.Upcoming {
		upcoming = append(upcoming, it.ID)
	}
	if want := []uint{today.ID, tomorrow.ID}; !sameIDs(upcoming, want) {
		t.Errorf("upcoming = %v, want %v", upcoming, want)
	}

	text := digest.Render()
	for _, want := range []string{"Fix &lt;script&gt;", "Launch &lt;v2&gt;", "2024-06-10", "Tomorrow"} {
		if !strings.Contains(text, want) {
			t.Errorf("rendered digest misses %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Someday") || strings.Contains(text, "Next week") {
		t.Errorf("rendered digest lists items outside the window:\n%s", text)
	}

	empty, err := f.digests.Build(ctx, bob.ID, fixedNow)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !empty.Empty() {
		t.Errorf("bob's digest should be empty: %+v", empty)
	}
}

func TestDigestSendAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	carol := f.user(t, "carol")
	dave := f.user(t, "dave")
	f.link(t, alice.ID, 100)
	f.link(t, bob.ID, 200)
	f.link(t, dave.ID, 400)

	p := f.project(t, alice.ID, "Board")
	f.join(t, alice.ID, p.ID, carol.ID, model.RoleMember)
	f.join(t, alice.ID, p.ID, dave.ID, model.RoleMember)
	todo := sectionByName(t, p.Sections, "To Do")
	f.item(t, alice.ID, todo.ID, ItemInput{Title: "Late", DueDate: model.MustParseDate("2024-06-01")})

	sender := &fakeSender{fail: map[int64]bool{400: true}}
	sent, err := f.digests.SendAll(ctx, sender, fixedNow)
	if err == nil {
		t.Error("expected the failed delivery to be reported")
	}
	if sent != 1 {
		t.Errorf("sent = %d, want 1", sent)
	}
	if _, ok := sender.sent[100]; !ok {
		t.Error("alice did not get her digest")
	}
	if _, ok := sender.sent[200]; ok {
		t.Error("bob has nothing due and should get no digest")
	}
}

func TestDigestSummaryForEmptyUser(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")

	text, err := f.digests.Summary(context.Background(), alice.ID, fixedNow)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if !strings.Contains(text, "nothing overdue") || !strings.Contains(text, "2024-06-15") {
		t.Errorf("unexpected summary:\n%s", text)
	}
}
