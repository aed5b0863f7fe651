package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/healthgpt/clinic-assistant/cmd/mainconfig"
	"github.com/healthgpt/clinic-assistant/internal/api/router"
	"github.com/healthgpt/clinic-assistant/internal/calendar"
	appconfig "github.com/healthgpt/clinic-assistant/internal/config"
	"github.com/healthgpt/clinic-assistant/internal/conversation"
	"github.com/healthgpt/clinic-assistant/internal/http/handlers"
	"github.com/healthgpt/clinic-assistant/internal/insurance"
	"github.com/healthgpt/clinic-assistant/internal/messaging"
	"github.com/healthgpt/clinic-assistant/internal/notify"
	"github.com/healthgpt/clinic-assistant/internal/observability/metrics"
	"github.com/healthgpt/clinic-assistant/internal/schedule"
	"github.com/healthgpt/clinic-assistant/internal/scheduling"
	"github.com/healthgpt/clinic-assistant/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic assistant API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	loc, err := time.LoadLocation(cfg.CalendarTimezone)
	if err != nil {
		logger.Error("invalid timezone, falling back to local", "error", err, "timezone", cfg.CalendarTimezone)
		loc = time.Local
	}

	// Slot storage: Postgres when configured, in-memory otherwise.
	var slotStore scheduling.Store
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		slotStore = scheduling.NewPostgresStore(pool)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory slot store")
		slotStore = scheduling.NewMemoryStore()
	}

	engine, err := scheduling.NewEngine(schedule.Clinic(), slotStore,
		time.Duration(cfg.SlotDurationMins)*time.Minute, loc, logger)
	if err != nil {
		logger.Error("failed to build slot engine", "error", err)
		os.Exit(1)
	}
	if added, err := engine.GenerateSlots(ctx, time.Now(), cfg.SlotHorizonWeeks); err != nil {
		logger.Error("initial slot generation failed", "error", err)
	} else {
		logger.Info("initial slot generation complete", "added", added)
	}

	manager := scheduling.NewManager(slotStore, logger)
	validator := insurance.NewValidator()

	// Session storage.
	var sessions conversation.SessionStore
	switch cfg.SessionStore {
	case "postgres":
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open postgres for sessions", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		sessions = conversation.NewPostgresSessionStore(db)
	default:
		redisOpts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient := redis.NewClient(redisOpts)
		defer func() { _ = redisClient.Close() }()
		sessions = conversation.NewRedisSessionStore(redisClient, cfg.SessionTTL)
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	dialogMetrics := metrics.NewDialogMetrics(registry)

	// Outbound messaging.
	var sender conversation.Sender
	if cfg.WhatsAppToken != "" && cfg.WhatsAppPhoneNumberID != "" {
		whatsapp, err := messaging.NewWhatsAppSender(messaging.WhatsAppConfig{
			Token:         cfg.WhatsAppToken,
			PhoneNumberID: cfg.WhatsAppPhoneNumberID,
			BaseURL:       cfg.WhatsAppAPIBaseURL,
		}, dialogMetrics, logger)
		if err != nil {
			logger.Error("failed to build whatsapp sender", "error", err)
			os.Exit(1)
		}
		sender = whatsapp
	} else {
		logger.Warn("WhatsApp credentials not set, replies will only be logged")
		sender = messaging.NewLogSender(logger)
	}

	orchestratorOpts := []conversation.OrchestratorOption{
		conversation.WithDialogMetrics(dialogMetrics),
		conversation.WithSchedulingLink(cfg.SchedulingLink),
		conversation.WithClinicName(cfg.ClinicName),
		conversation.WithCollaboratorTimeout(cfg.CollaboratorWait),
		conversation.WithListingWindow(time.Duration(cfg.SlotHorizonWeeks) * 7 * 24 * time.Hour),
	}

	// NLU: Bedrock primary, Gemini fallback.
	var llm conversation.LLMClient
	if cfg.BedrockModelID != "" {
		llm = conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))
	}
	if cfg.GeminiAPIKey != "" {
		gemini, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("failed to build gemini client", "error", err)
		} else if llm == nil {
			llm = gemini
		} else {
			llm = conversation.NewFallbackLLMClient(llm, gemini, logger)
		}
	}
	if llm != nil {
		extractor := conversation.NewLLMIntentExtractor(llm, cfg.BedrockModelID, cfg.CollaboratorWait, logger)
		orchestratorOpts = append(orchestratorOpts, conversation.WithIntentExtractor(extractor))
	} else {
		logger.Warn("no LLM configured, dialog will rely on keyword matching only")
	}

	// Calendar sync.
	var calSync calendar.Sync
	if cfg.GoogleCalendarID != "" {
		gcal, err := calendar.NewGoogleSync(ctx, calendar.GoogleConfig{
			CredentialsFile: cfg.GoogleCredentialsFile,
			CalendarID:      cfg.GoogleCalendarID,
			Timezone:        cfg.CalendarTimezone,
		}, logger)
		if err != nil {
			logger.Error("failed to build calendar sync, bookings will not sync", "error", err)
		} else {
			calSync = gcal
			orchestratorOpts = append(orchestratorOpts, conversation.WithCalendarSync(gcal))
		}
	}

	// Staff notifications.
	var emailSender notify.EmailSender
	switch cfg.EmailProvider {
	case "ses":
		emailSender = notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.ClinicName,
		}, logger)
	default:
		emailSender = notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	}
	notifier := notify.NewService(emailSender, cfg.ClinicStaffEmail, cfg.ClinicName, logger)
	orchestratorOpts = append(orchestratorOpts, conversation.WithStaffNotifier(notifier))

	orchestrator := conversation.NewOrchestrator(sessions, slotStore, manager, validator, sender, logger, orchestratorOpts...)

	// Queue + worker pool. SQS when a queue URL is configured, in-process otherwise.
	var queuePublisher *conversation.Publisher
	var worker *conversation.Worker
	if cfg.UseMemoryQueue || cfg.MessageQueueURL == "" {
		queue := conversation.NewMemoryQueue(256)
		queuePublisher = conversation.NewPublisher(queue, logger)
		worker = conversation.NewWorker(orchestrator, queue, logger,
			conversation.WithWorkerCount(cfg.WorkerCount))
	} else {
		queue := conversation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.MessageQueueURL)
		queuePublisher = conversation.NewPublisher(queue, logger)
		worker = conversation.NewWorker(orchestrator, queue, logger,
			conversation.WithWorkerCount(cfg.WorkerCount))
	}

	workerCtx, stopWorkers := context.WithCancel(ctx)
	worker.Start(workerCtx)

	webhook := messaging.NewWebhookHandler(cfg.WhatsAppVerifyToken, queuePublisher, dialogMetrics, logger)

	r := router.New(&router.Config{
		Logger:            logger,
		Webhook:           webhook,
		AdminSlots:        handlers.NewAdminSlotsHandler(engine, logger),
		AdminSessions:     handlers.NewAdminSessionsHandler(orchestrator, logger),
		AdminReservations: handlers.NewAdminReservationsHandler(manager, sessions, calSync, logger),
		AdminToken:        cfg.AdminToken,
		MetricsHandler:    promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	// Let in-flight dialog jobs finish before exiting.
	stopWorkers()
	worker.Wait()

	logger.Info("server stopped")
}
