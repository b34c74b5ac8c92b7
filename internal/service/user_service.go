package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"kanban/internal/auth"
	"kanban/internal/model"
	"kanban/internal/repository"
)

// UserService covers registration, login and profile changes.
type UserService struct {
	store  *repository.Store
	logger *slog.Logger
}

func NewUserService(store *repository.Store, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{store: store, logger: logger}
}

// Register creates a user with a hashed password.
func (s *UserService) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	v := &ValidationError{}
	switch {
	case name == "":
		v.Add("name", "is required")
	case len(name) > 255:
		v.Add("name", "must be at most 255 characters")
	}
	if _, err := mail.ParseAddress(email); err != nil || len(email) > 255 {
		v.Add("email", "must be a valid email address")
	}
	if len(password) < 8 {
		v.Add("password", "must be at least 8 characters")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := model.User{Name: name, Email: email, PasswordHash: hash}
	if err := s.store.Users.Create(ctx, &user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: email is already registered", ErrConflict)
		}
		return nil, err
	}
	s.logger.Info("user registered", slog.Uint64("user_id", uint64(user.ID)))
	return &user, nil
}

// Login returns the user whose credentials match.
func (s *UserService) Login(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.store.Users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	ok, err := auth.CheckPassword(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *UserService) Get(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.store.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return user, nil
}

// ProfilePatch changes the user's profile. A TelegramChatID of 0 unlinks
// the chat.
type ProfilePatch struct {
	Name           *string
	TelegramChatID *int64
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uint, patch ProfilePatch) (*model.User, error) {
	updates := map[string]any{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" || len(name) > 255 {
			return nil, invalid("name", "must be between 1 and 255 characters")
		}
		updates["name"] = name
	}
	if patch.TelegramChatID != nil {
		if *patch.TelegramChatID == 0 {
			updates["telegram_chat_id"] = nil
		} else {
			updates["telegram_chat_id"] = *patch.TelegramChatID
		}
	}
	if len(updates) > 0 {
		if err := s.store.Users.Update(ctx, userID, updates); err != nil {
			return nil, notFound(err, "user")
		}
	}
	return s.Get(ctx, userID)
}
