package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"volunteer-planner/internal/clock"
	"volunteer-planner/internal/config"
	"volunteer-planner/internal/notify"
	"volunteer-planner/internal/repository"
	"volunteer-planner/internal/service"
)

func main() {
	once := flag.Bool("once", false, "run one generate+remind batch and exit")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		logger.Error("db", slog.Any("error", err))
		os.Exit(1)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	memberRepo := repository.NewMemberRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	claimRepo := repository.NewClaimRepository(db)
	nagRepo := repository.NewNagRepository(db)

	notifier, err := buildNotifier(cfg, logger)
	if err != nil {
		logger.Error("notifier", slog.Any("error", err))
		os.Exit(1)
	}

	clk := clock.System{}
	eligibility := service.NewEligibilityService(memberRepo, claimRepo)
	claims := service.NewClaimService(taskRepo, claimRepo, memberRepo, eligibility, clk)
	generator := service.NewGeneratorService(templateRepo, taskRepo, clk, logger)
	var bcc []string
	if cfg.BCCAddress != "" {
		bcc = []string{cfg.BCCAddress}
	}
	reminders := service.NewReminderService(
		taskRepo, claimRepo, memberRepo, nagRepo,
		eligibility, claims, notifier, clk, cfg.Host, bcc, logger,
	)
	taggings := service.NewTaggingService(memberRepo, eligibility, notifier, clk, bcc, logger)

	runBatch := func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		created, err := generator.GenerateAll(jobCtx, cfg.HorizonDays)
		if err != nil {
			logger.Error("generate", slog.Any("error", err))
		}
		logger.Info("generation finished", slog.Int("created", created))
		if err := reminders.Run(jobCtx); err != nil {
			logger.Error("remind", slog.Any("error", err))
		}
		if err := taggings.SendNewTaggingsReports(jobCtx); err != nil {
			logger.Error("taggings report", slog.Any("error", err))
		}
	}

	if *once {
		runBatch()
		return
	}

	scheduler := service.NewSchedulerService(time.Local)
	if _, err := scheduler.ScheduleDaily(cfg.RunAt, runBatch); err != nil {
		logger.Error("schedule batch", slog.Any("error", err))
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	logger.Info("volunteer planner started", slog.String("run_at", cfg.RunAt), slog.Int("horizon_days", cfg.HorizonDays))
	<-ctx.Done()
	logger.Info("shutdown complete")
}

func buildNotifier(cfg config.Config, logger *slog.Logger) (notify.Notifier, error) {
	switch cfg.Notifier {
	case "smtp":
		n := &notify.SMTPNotifier{Addr: cfg.SMTPAddr, From: cfg.FromAddress}
		return n, nil
	case "telegram":
		return notify.NewTelegramNotifier(cfg.TelegramToken)
	default:
		return &notify.LogNotifier{Logger: logger}, nil
	}
}
