package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"kanban/internal/auth"
	"kanban/internal/bot"
	"kanban/internal/config"
	"kanban/internal/repository"
	"kanban/internal/server"
	"kanban/internal/service"
)

var (
	addrFlag string
	dbFlag   string
	userFlag uint
	sendFlag bool
)

var rootCmd = &cobra.Command{
	Use:           "kanban",
	Short:         "Multi-user kanban board backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the digest scheduler and the Telegram bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg, newLogger())
	},
}

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Print one user's overdue digest, or send every digest now with --send",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return digest(cmd.Context(), cfg, newLogger())
	},
}

func init() {
	serveCmd.Flags().StringVar(&addrFlag, "addr", "", "HTTP listen address (overrides HTTP_ADDR)")
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "sqlite database path (overrides DATABASE_URL)")
	digestCmd.Flags().UintVar(&userFlag, "user", 0, "user id whose digest is printed")
	digestCmd.Flags().BoolVar(&sendFlag, "send", false, "deliver digests to every linked Telegram chat")

	rootCmd.AddCommand(serveCmd, digestCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if addrFlag != "" {
		cfg.HTTPAddr = addrFlag
	}
	if dbFlag != "" {
		cfg.DatabaseURL = dbFlag
	}
	return cfg, nil
}

func openStore(cfg config.Config) (*repository.Store, *gorm.DB, error) {
	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("db: %w", err)
	}
	return repository.NewStore(db), db, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeDB(db)

	svc := server.Services{
		Users:    service.NewUserService(store, logger),
		Projects: service.NewProjectService(store, logger),
		Members:  service.NewMembershipService(store, logger),
		Sections: service.NewSectionService(store, logger),
		Items:    service.NewItemService(store, logger),
		Tags:     service.NewTagService(store, logger),
	}
	digests := service.NewDigestService(store, logger)
	srv := server.New(svc, auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL), logger, cfg.ProjectsPerPage)

	if cfg.NotifierEnabled() {
		notifier, err := bot.New(cfg.TelegramToken, store.Users, digests, logger)
		if err != nil {
			return fmt.Errorf("bot: %w", err)
		}
		scheduler := service.NewSchedulerService(time.Local, logger)
		if err := scheduleDigests(scheduler, cfg, digests, notifier, logger); err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()

		go func() {
			if err := notifier.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("bot stopped with error", slog.String("error", err.Error()))
			}
		}()
	} else {
		logger.Info("TELEGRAM_TOKEN not set, digests disabled")
	}

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: srv.Engine(),
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server stopped unexpectedly: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", slog.String("error", err.Error()))
	}
	logger.Info("server stopped")
	return nil
}

func scheduleDigests(scheduler *service.SchedulerService, cfg config.Config, digests *service.DigestService, sender service.Sender, logger *slog.Logger) error {
	job := func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := digests.SendAll(jobCtx, sender, time.Now()); err != nil {
			logger.Error("digest run", slog.String("error", err.Error()))
		}
	}

	if cfg.DigestInterval > 0 {
		id, err := scheduler.ScheduleInterval(cfg.DigestInterval, job)
		if err != nil {
			return fmt.Errorf("schedule digests: %w", err)
		}
		logger.Info("digests scheduled", slog.Duration("every", cfg.DigestInterval), slog.Uint64("entry", uint64(id)))
		return nil
	}
	if _, err := scheduler.ScheduleDaily(cfg.DigestTime, job); err != nil {
		return fmt.Errorf("schedule digests: %w", err)
	}
	logger.Info("digests scheduled", slog.String("daily_at", cfg.DigestTime))
	return nil
}

func digest(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeDB(db)
	digests := service.NewDigestService(store, logger)

	if sendFlag {
		if !cfg.NotifierEnabled() {
			return errors.New("--send needs TELEGRAM_TOKEN")
		}
		notifier, err := bot.New(cfg.TelegramToken, store.Users, digests, logger)
		if err != nil {
			return fmt.Errorf("bot: %w", err)
		}
		sent, err := digests.SendAll(ctx, notifier, time.Now())
		fmt.Printf("sent %d digests\n", sent)
		return err
	}

	if userFlag == 0 {
		return errors.New("pass --user <id> or --send")
	}
	text, err := digests.Summary(ctx, userFlag, time.Now())
	if err != nil {
		return err
	}
	fmt.Println(text)
	return nil
}
