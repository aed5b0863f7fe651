package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	appconfig "github.com/healthgpt/clinic-assistant/internal/config"
	"github.com/healthgpt/clinic-assistant/internal/schedule"
	"github.com/healthgpt/clinic-assistant/internal/scheduling"
	"github.com/healthgpt/clinic-assistant/pkg/logging"
)

// slotgen tiles the clinic week template onto the upcoming calendar and
// inserts the resulting slots, skipping any that already exist.
func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	var (
		weeks = flag.Int("weeks", cfg.SlotHorizonWeeks, "number of weeks to generate")
		from  = flag.String("from", "", "start date (YYYY-MM-DD), defaults to today")
	)
	flag.Parse()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	loc, err := time.LoadLocation(cfg.CalendarTimezone)
	if err != nil {
		logger.Error("invalid timezone", "error", err, "timezone", cfg.CalendarTimezone)
		os.Exit(1)
	}

	start := time.Now().In(loc)
	if *from != "" {
		start, err = time.ParseInLocation("2006-01-02", *from, loc)
		if err != nil {
			logger.Error("invalid -from date", "error", err)
			os.Exit(1)
		}
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	engine, err := scheduling.NewEngine(schedule.Clinic(), scheduling.NewPostgresStore(pool),
		time.Duration(cfg.SlotDurationMins)*time.Minute, loc, logger)
	if err != nil {
		logger.Error("failed to build slot engine", "error", err)
		os.Exit(1)
	}

	added, err := engine.GenerateSlots(ctx, start, *weeks)
	if err != nil {
		logger.Error("slot generation failed", "error", err)
		os.Exit(1)
	}

	logger.Info("slot generation complete",
		"from", start.Format("2006-01-02"),
		"weeks", *weeks,
		"added", added,
	)
}
