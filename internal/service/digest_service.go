package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"kanban/internal/filter"
	"kanban/internal/model"
	"kanban/internal/repository"
)

// upcomingDays is how far ahead the digest looks for due items.
const upcomingDays = 2

// Sender delivers a rendered digest to a chat.
type Sender interface {
	Send(chatID int64, text string) error
}

// DigestService builds the overdue and upcoming items summary of a user.
type DigestService struct {
	store  *repository.Store
	logger *slog.Logger
}

func NewDigestService(store *repository.Store, logger *slog.Logger) *DigestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DigestService{store: store, logger: logger}
}

// Digest is the content of one user's summary.
type Digest struct {
	Date     model.Date
	Overdue  []repository.ProjectItem
	Upcoming []repository.ProjectItem
}

func (d Digest) Empty() bool { return len(d.Overdue) == 0 && len(d.Upcoming) == 0 }

// Build collects the open items of every project the user belongs to that
// are overdue or due within the next few days.
func (s *DigestService) Build(ctx context.Context, userID uint, now time.Time) (Digest, error) {
	today := model.DateOf(now)
	digest := Digest{Date: today}

	projectIDs, err := s.store.Projects.IDsForUser(ctx, userID)
	if err != nil {
		return digest, err
	}

	overdue := filter.ByDate(filter.DatePredicate{Op: filter.Overdue})
	digest.Overdue, err = s.store.Items.ListInProjects(ctx, projectIDs, overdue.Scope(today))
	if err != nil {
		return digest, err
	}

	upcoming := filter.ByDate(filter.DatePredicate{
		Op:    filter.DueBetween,
		Start: today,
		End:   model.DateOf(now.AddDate(0, 0, upcomingDays)),
	})
	digest.Upcoming, err = s.store.Items.ListInProjects(ctx, projectIDs, upcoming.Scope(today), open)
	if err != nil {
		return digest, err
	}
	return digest, nil
}

// Summary renders the user's digest as Telegram HTML.
func (s *DigestService) Summary(ctx context.Context, userID uint, now time.Time) (string, error) {
	digest, err := s.Build(ctx, userID, now)
	if err != nil {
		return "", err
	}
	return digest.Render(), nil
}

// SendAll delivers a digest to every user with a linked chat and something
// to report. It returns how many digests were sent.
func (s *DigestService) SendAll(ctx context.Context, sender Sender, now time.Time) (int, error) {
	users, err := s.store.Users.ListWithTelegram(ctx)
	if err != nil {
		return 0, err
	}
	sent := 0
	var errs []error
	for _, user := range users {
		if user.TelegramChatID == nil {
			continue
		}
		digest, err := s.Build(ctx, user.ID, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("user %d: %w", user.ID, err))
			continue
		}
		if digest.Empty() {
			continue
		}
		if err := sender.Send(*user.TelegramChatID, digest.Render()); err != nil {
			s.logger.Error("send digest", slog.Uint64("user_id", uint64(user.ID)), slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("user %d: %w", user.ID, err))
			continue
		}
		sent++
	}
	s.logger.Info("digests sent", slog.Int("sent", sent), slog.Int("users", len(users)))
	return sent, errors.Join(errs...)
}

func (d Digest) Render() string {
	var b strings.Builder
	b.WriteString("📋 <b>Daily digest</b>\n")
	b.WriteString(fmt.Sprintf("🗓 %s\n\n", d.Date))

	b.WriteString("⚠️ <b>Overdue</b>\n")
	if len(d.Overdue) == 0 {
		b.WriteString("— nothing overdue\n")
	}
	for _, item := range d.Overdue {
		b.WriteString(formatDigestItem(item))
	}

	b.WriteString("\n⏳ <b>Due soon</b>\n")
	if len(d.Upcoming) == 0 {
		b.WriteString("— nothing due in the next days\n")
	}
	for _, item := range d.Upcoming {
		b.WriteString(formatDigestItem(item))
	}
	return strings.TrimSpace(b.String())
}

func formatDigestItem(item repository.ProjectItem) string {
	title := html.EscapeString(strings.TrimSpace(item.Title))
	project := html.EscapeString(strings.TrimSpace(item.ProjectName))
	line := fmt.Sprintf("• %s <i>(%s)</i>\n   ⏰ %s · %s", title, project, item.DueDate, item.Priority)
	return line + "\n"
}

func open(db *gorm.DB) *gorm.DB {
	return db.Where("items.status NOT IN ?", []string{string(model.StatusDone), string(model.StatusArchived)})
}
