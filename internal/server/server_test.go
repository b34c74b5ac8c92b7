package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"kanban/internal/auth"
	"kanban/internal/model"
	"kanban/internal/repository"
	"kanban/internal/service"
)

func setupTestServer(t *testing.T) *Server {
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
	svc := Services{
		Users:    service.NewUserService(store, logger),
		Projects: service.NewProjectService(store, logger),
		Members:  service.NewMembershipService(store, logger),
		Sections: service.NewSectionService(store, logger),
		Items:    service.NewItemService(store, logger),
		Tags:     service.NewTagService(store, logger),
	}
	return New(svc, auth.NewTokens("test-secret", time.Hour), logger, 15)
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}

type session struct {
	token string
	user  model.User
}

func register(t *testing.T, srv *Server, name string) session {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/api/register", "", map[string]string{
		"name":     name,
		"email":    name + "@example.com",
		"password": "password123",
	})
	expectStatus(t, rec, http.StatusCreated)
	var resp tokenResponse
	decode(t, rec, &resp)
	if resp.Token == "" || resp.TokenType != "Bearer" {
		t.Fatalf("unexpected token response: %s", rec.Body.String())
	}
	return session{token: resp.Token, user: *resp.User}
}

type projectEnvelope struct {
	Project model.Project `json:"project"`
}

func createProject(t *testing.T, srv *Server, s session, name string) model.Project {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/api/projects", s.token, map[string]string{"name": name})
	expectStatus(t, rec, http.StatusCreated)
	var env projectEnvelope
	decode(t, rec, &env)
	return env.Project
}

func TestHealthz(t *testing.T) {
	srv := setupTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/healthz", "", nil)
	expectStatus(t, rec, http.StatusOK)
}

func TestRegisterLoginAndProfile(t *testing.T) {
	srv := setupTestServer(t)
	alice := register(t, srv, "alice")

	rec := doJSON(t, srv, http.MethodPost, "/api/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "password123",
	})
	expectStatus(t, rec, http.StatusOK)

	rec = doJSON(t, srv, http.MethodPost, "/api/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong-password",
	})
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = doJSON(t, srv, http.MethodGet, "/api/user", alice.token, nil)
	expectStatus(t, rec, http.StatusOK)
	var me struct {
		User model.User `json:"user"`
	}
	decode(t, rec, &me)
	if me.User.Email != "alice@example.com" {
		t.Errorf("email = %q", me.User.Email)
	}

	rec = doJSON(t, srv, http.MethodPatch, "/api/user", alice.token, map[string]any{"telegram_chat_id": 555})
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &me)
	if me.User.TelegramChatID == nil || *me.User.TelegramChatID != 555 {
		t.Errorf("telegram_chat_id = %v, want 555", me.User.TelegramChatID)
	}

	rec = doJSON(t, srv, http.MethodPatch, "/api/user", alice.token, map[string]any{"telegram_chat_id": nil})
	expectStatus(t, rec, http.StatusOK)
	me.User = model.User{}
	decode(t, rec, &me)
	if me.User.TelegramChatID != nil {
		t.Errorf("telegram_chat_id = %v, want unlinked", *me.User.TelegramChatID)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/register", "", map[string]string{
		"name": "again", "email": "alice@example.com", "password": "password123",
	})
	expectStatus(t, rec, http.StatusConflict)
}

func TestAuthRequired(t *testing.T) {
	srv := setupTestServer(t)

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, srv, http.MethodGet, "/api/projects", tt.token, nil)
			expectStatus(t, rec, http.StatusUnauthorized)
		})
	}

	other, _, err := auth.NewTokens("other-secret", time.Hour).Issue(1, "x@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	rec := doJSON(t, srv, http.MethodGet, "/api/projects", other, nil)
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestRegisterValidation(t *testing.T) {
	srv := setupTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/register", "", map[string]string{
		"name": "bob", "email": "not-an-email", "password": "password123",
	})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = doJSON(t, srv, http.MethodPost, "/api/register", "", map[string]string{
		"name": "bob", "email": "bob@example.com", "password": "short",
	})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	decode(t, rec, &body)
	if _, ok := body.Fields["password"]; !ok {
		t.Errorf("fields = %v, want password", body.Fields)
	}
}

func TestProjectEndpoints(t *testing.T) {
	srv := setupTestServer(t)
	alice := register(t, srv, "alice")
	bob := register(t, srv, "bob")

	project := createProject(t, srv, alice, "Launch")
	if len(project.Sections) != 3 || project.OwnerID != alice.user.ID {
		t.Fatalf("project = %+v", project)
	}
	path := fmt.Sprintf("/api/projects/%d", project.ID)

	rec := doJSON(t, srv, http.MethodPost, "/api/projects", alice.token, map[string]string{"name": "Launch"})
	expectStatus(t, rec, http.StatusConflict)

	rec = doJSON(t, srv, http.MethodGet, path, bob.token, nil)
	expectStatus(t, rec, http.StatusForbidden)

	rec = doJSON(t, srv, http.MethodGet, "/api/projects/9999", alice.token, nil)
	expectStatus(t, rec, http.StatusNotFound)

	rec = doJSON(t, srv, http.MethodGet, "/api/projects/abc", alice.token, nil)
	expectStatus(t, rec, http.StatusBadRequest)

	rec = doJSON(t, srv, http.MethodPost, path+"/members", alice.token, map[string]any{"user_id": bob.user.ID, "role": "editor"})
	expectStatus(t, rec, http.StatusOK)

	rec = doJSON(t, srv, http.MethodGet, path, bob.token, nil)
	expectStatus(t, rec, http.StatusOK)

	rec = doJSON(t, srv, http.MethodPut, path, bob.token, map[string]any{"name": "Mine now"})
	expectStatus(t, rec, http.StatusForbidden)

	rec = doJSON(t, srv, http.MethodPut, path, alice.token, map[string]any{"color": "red"})
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	rec = doJSON(t, srv, http.MethodPut, path, alice.token, map[string]any{"end_date": "2024-12-31", "description": "v2"})
	expectStatus(t, rec, http.StatusOK)
	var env projectEnvelope
	decode(t, rec, &env)
	if env.Project.EndDate.String() != "2024-12-31" || env.Project.Description != "v2" {
		t.Errorf("project = %+v", env.Project)
	}

	rec = doJSON(t, srv, http.MethodPut, path, alice.token, map[string]any{"end_date": nil})
	expectStatus(t, rec, http.StatusOK)
	env = projectEnvelope{}
	decode(t, rec, &env)
	if !env.Project.EndDate.IsZero() || env.Project.Description != "v2" {
		t.Errorf("clearing end_date touched other fields: %+v", env.Project)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/projects?per_page=1", bob.token, nil)
	expectStatus(t, rec, http.StatusOK)
	var list struct {
		Data []model.Project `json:"data"`
		Meta pageMeta        `json:"meta"`
	}
	decode(t, rec, &list)
	if len(list.Data) != 1 || list.Meta.Total != 1 || list.Meta.LastPage != 1 {
		t.Errorf("list = %+v", list)
	}

	rec = doJSON(t, srv, http.MethodDelete, path+"/leave", alice.token, nil)
	expectStatus(t, rec, http.StatusForbidden)

	rec = doJSON(t, srv, http.MethodDelete, path, bob.token, nil)
	expectStatus(t, rec, http.StatusForbidden)

	rec = doJSON(t, srv, http.MethodDelete, path, alice.token, nil)
	expectStatus(t, rec, http.StatusNoContent)
}

func TestMemberAndOwnershipEndpoints(t *testing.T) {
	srv := setupTestServer(t)
	alice := register(t, srv, "alice")
	bob := register(t, srv, "bob")
	carol := register(t, srv, "carol")
	project := createProject(t, srv, alice, "Launch")
	path := fmt.Sprintf("/api/projects/%d", project.ID)

	rec := doJSON(t, srv, http.MethodPost, path+"/members", alice.token, map[string]any{"user_id": bob.user.ID, "role": "admin"})
	expectStatus(t, rec, http.StatusOK)

	rec = doJSON(t, srv, http.MethodPost, path+"/members", alice.token, map[string]any{"user_id": bob.user.ID, "role": "member"})
	expectStatus(t, rec, http.StatusConflict)

	rec = doJSON(t, srv, http.MethodPost, path+"/members", alice.token, map[string]any{"user_id": carol.user.ID, "role": "owner"})
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	rec = doJSON(t, srv, http.MethodPatch, fmt.Sprintf("%s/members/%d", path, alice.user.ID), bob.token, map[string]any{"role": "member"})
	expectStatus(t, rec, http.StatusForbidden)

	rec = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("%s/members/%d", path, carol.user.ID), alice.token, nil)
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	rec = doJSON(t, srv, http.MethodPost, path+"/transfer-ownership", alice.token, map[string]any{"new_owner_id": carol.user.ID})
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	rec = doJSON(t, srv, http.MethodPost, path+"/transfer-ownership", alice.token, map[string]any{"new_owner_id": bob.user.ID})
	expectStatus(t, rec, http.StatusOK)
	var env projectEnvelope
	decode(t, rec, &env)
	if env.Project.OwnerID != bob.user.ID {
		t.Errorf("owner_id = %d, want %d", env.Project.OwnerID, bob.user.ID)
	}

	rec = doJSON(t, srv, http.MethodGet, path+"/members", alice.token, nil)
	expectStatus(t, rec, http.StatusOK)
	var members struct {
		Members []model.Membership `json:"members"`
	}
	decode(t, rec, &members)
	roles := map[uint]model.Role{}
	for _, m := range members.Members {
		roles[m.UserID] = m.Role
	}
	if roles[alice.user.ID] != model.RoleAdmin || roles[bob.user.ID] != model.RoleOwner {
		t.Errorf("roles = %v", roles)
	}

	rec = doJSON(t, srv, http.MethodDelete, path+"/leave", alice.token, nil)
	expectStatus(t, rec, http.StatusOK)
}

func TestSectionAndItemEndpoints(t *testing.T) {
	srv := setupTestServer(t)
	alice := register(t, srv, "alice")
	project := createProject(t, srv, alice, "Launch")
	other := createProject(t, srv, alice, "Other")
	projectPath := fmt.Sprintf("/api/projects/%d", project.ID)

	rec := doJSON(t, srv, http.MethodPost, projectPath+"/tags", alice.token, map[string]any{"name": "bug"})
	expectStatus(t, rec, http.StatusCreated)
	var tagEnv struct {
		Tag model.Tag `json:"tag"`
	}
	decode(t, rec, &tagEnv)

	rec = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/projects/%d/tags", other.ID), alice.token, map[string]any{"name": "bug"})
	expectStatus(t, rec, http.StatusCreated)
	var foreignEnv struct {
		Tag model.Tag `json:"tag"`
	}
	decode(t, rec, &foreignEnv)

	rec = doJSON(t, srv, http.MethodPost, projectPath+"/sections", alice.token, map[string]any{
		"name":         "Bugs",
		"filter_type":  "tag",
		"filter_value": fmt.Sprint(tagEnv.Tag.ID),
	})
	expectStatus(t, rec, http.StatusCreated)
	var sectionEnv struct {
		Section model.Section `json:"section"`
	}
	decode(t, rec, &sectionEnv)
	itemsPath := fmt.Sprintf("/api/sections/%d/items", sectionEnv.Section.ID)

	rec = doJSON(t, srv, http.MethodPost, projectPath+"/sections", alice.token, map[string]any{
		"name":         "Broken",
		"filter_type":  "date",
		"filter_value": map[string]any{"due_before": "soon"},
	})
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	rec = doJSON(t, srv, http.MethodPost, itemsPath, alice.token, map[string]any{"title": "tagged", "tag_ids": []uint{tagEnv.Tag.ID}})
	expectStatus(t, rec, http.StatusCreated)
	var itemEnv struct {
		Item model.Item `json:"item"`
	}
	decode(t, rec, &itemEnv)
	tagged := itemEnv.Item

	rec = doJSON(t, srv, http.MethodPost, itemsPath, alice.token, map[string]any{"title": "plain"})
	expectStatus(t, rec, http.StatusCreated)
	decode(t, rec, &itemEnv)
	plain := itemEnv.Item

	rec = doJSON(t, srv, http.MethodPost, itemsPath, alice.token, map[string]any{"title": "foreign", "tag_ids": []uint{foreignEnv.Tag.ID}})
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	rec = doJSON(t, srv, http.MethodGet, itemsPath, alice.token, nil)
	expectStatus(t, rec, http.StatusOK)
	var list struct {
		Items []model.Item `json:"items"`
	}
	decode(t, rec, &list)
	if len(list.Items) != 1 || list.Items[0].ID != tagged.ID {
		t.Errorf("section shows %d items, want only the tagged one", len(list.Items))
	}

	rec = doJSON(t, srv, http.MethodGet, itemsPath+"?status=someday", alice.token, nil)
	expectStatus(t, rec, http.StatusBadRequest)

	rec = doJSON(t, srv, http.MethodPatch, itemsPath, alice.token, map[string]any{"ordered_ids": []uint{plain.ID}})
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	rec = doJSON(t, srv, http.MethodPatch, itemsPath, alice.token, map[string]any{"ordered_ids": []uint{plain.ID, tagged.ID}})
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &list)
	if len(list.Items) != 2 || list.Items[0].ID != plain.ID || list.Items[0].Position != 1 {
		t.Errorf("reordered items = %+v", list.Items)
	}

	itemPath := fmt.Sprintf("/api/items/%d", tagged.ID)
	rec = doJSON(t, srv, http.MethodPut, itemPath, alice.token, map[string]any{"status": "done", "tag_ids": nil})
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &itemEnv)
	if itemEnv.Item.CompletedAt == nil || len(itemEnv.Item.Tags) != 0 {
		t.Errorf("item = %+v, want completed with no tags", itemEnv.Item)
	}

	rec = doJSON(t, srv, http.MethodDelete, itemPath, alice.token, nil)
	expectStatus(t, rec, http.StatusNoContent)
	rec = doJSON(t, srv, http.MethodGet, itemPath, alice.token, nil)
	expectStatus(t, rec, http.StatusNotFound)

	rec = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/tags/%d", tagEnv.Tag.ID), alice.token, nil)
	expectStatus(t, rec, http.StatusNoContent)
}
