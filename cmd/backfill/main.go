package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/presence-api/internal/cli"
	"github.com/noah-isme/presence-api/internal/repository"
	"github.com/noah-isme/presence-api/internal/service"
	"github.com/noah-isme/presence-api/pkg/config"
	"github.com/noah-isme/presence-api/pkg/database"
	"github.com/noah-isme/presence-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr := logger.NewConsole(cfg.Log.Level)
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := cli.NewBackfillCommand(cfg.Backfill.DefaultStart, func(ctx context.Context) (cli.BackfillRunner, func(), error) {
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		loc := cfg.Location()
		holidays := service.LoadHolidayCalendar(cfg.Presence.HolidaysFile, loc, logr)
		logr.Info("holidays loaded", zap.Int("count", holidays.Len()), zap.String("timezone", loc.String()))

		presences := repository.NewPresenceRepository(db)
		users := repository.NewUserRepository(db)
		runner := service.NewBackfillService(users, presences, holidays, validator.New(), nil, logr, loc)
		return runner, func() {
			if err := db.Close(); err != nil {
				logr.Warn("failed to close database", zap.Error(err))
			}
		}, nil
	})

	if err := cmd.ExecuteContext(ctx); err != nil {
		logr.Error("backfill failed", zap.Error(err))
		_ = logr.Sync()
		stop()
		os.Exit(1)
	}
}
