package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/example/interview-scheduler/internal/application"
	"github.com/example/interview-scheduler/internal/config"
	"github.com/example/interview-scheduler/internal/persistence/sqlite"
	"github.com/example/interview-scheduler/internal/reminder"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("failed to load interview timezone", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	policy, err := application.ParseCapacityPolicy(cfg.CapacityPolicy)
	if err != nil {
		logger.Error("failed to parse capacity policy", "error", err)
		os.Exit(1)
	}

	storage, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := storage.Migrate(ctx); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	mentors := make([]application.Mentor, 0, len(cfg.Mentors))
	for _, mentor := range cfg.Mentors {
		mentors = append(mentors, application.Mentor{
			ID:             mentor.ID,
			Name:           mentor.Name,
			MaxStudents:    mentor.MaxStudents,
			Specialization: mentor.Specialization,
		})
	}

	idGenerator := uuid.NewString
	now := time.Now
	slots := application.Slots(cfg.SlotStartHour, cfg.SlotEndHour)

	// The delivery collaborator is a transport concern; the process ships
	// with a logging sink until a messenger binding is attached.
	notifier := &logNotifier{logger: logger}

	registry := application.NewRegistryService(storage.Bookings, storage.Users, mentors, slots, policy, location, idGenerator, now, logger)
	assignments := application.NewAssignmentService(storage.Assignments, mentors, now, logger)
	dispatcher := application.NewDispatcher(notifier, storage.Users, cfg.AdminChannel, logger)
	stats := application.NewStatisticsService(storage.Bookings, storage.Users, location, now)
	scheduler := reminder.New(storage.Bookings, dispatcher, location, cfg.ReminderLead, now, logger)

	engine := application.NewEngine(registry, assignments, dispatcher, scheduler, stats, storage.Users, location, now, logger)
	_ = engine // handed to the transport binding

	if err := scheduler.Rebuild(ctx); err != nil {
		logger.Error("failed to rebuild reminder jobs", "error", err)
		os.Exit(1)
	}

	logger.Info("interview scheduler running",
		"timezone", cfg.Timezone,
		"slots", len(slots),
		"mentors", len(mentors),
		"capacity_policy", string(policy),
	)

	<-ctx.Done()

	logger.Info("shutting down")
	scheduler.Stop()
}

// logNotifier is the default delivery collaborator: it records every outbound
// notification in the process log.
type logNotifier struct {
	logger *slog.Logger
}

func (n *logNotifier) Send(_ context.Context, notification application.Notification) error {
	n.logger.Info("outbound notification",
		"recipient_class", string(notification.Class),
		"recipient_id", notification.RecipientID,
		"message", notification.Message,
	)
	return nil
}
