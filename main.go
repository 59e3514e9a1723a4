package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reservas-backend/config"
	"reservas-backend/internal/api"
	"reservas-backend/internal/database"
	"reservas-backend/internal/notify"
	"reservas-backend/internal/payment/stub"
	"reservas-backend/internal/scheduler"
	"reservas-backend/internal/services"
	"reservas-backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	policy, err := config.LoadPolicy()
	if err != nil {
		log.Fatalf("failed to load policy: %v", err)
	}

	if err := logger.InitLogger(&logger.Config{
		Level:      cfg.LogLevel,
		Filename:   cfg.LogFilename,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAge,
		Compress:   cfg.LogCompress,
	}); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()
	lg := logger.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DSN(), lg)
	if err != nil {
		lg.Fatal("Failed to connect database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		lg.Fatal("Failed to migrate database", zap.Error(err))
	}

	// Without Redis the slot lock falls back to the database row lock and
	// the job guard only serializes within this process.
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = database.ConnectRedis(ctx, cfg)
		if err != nil {
			lg.Fatal("Failed to connect redis", zap.Error(err))
		}
		defer rdb.Close()
	} else {
		lg.Warn("REDIS_HOST not set, running without redis")
	}

	var next notify.Notifier = notify.NewLogNotifier(lg)
	if cfg.AMQPURL != "" {
		pub, err := notify.NewRabbitPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			lg.Fatal("Failed to connect rabbitmq", zap.Error(err))
		}
		defer pub.Close()
		next = pub
	}

	svc := services.New(services.Deps{
		DB:            db,
		Redis:         rdb,
		Policy:        policy,
		Gateway:       stub.New(),
		Notifier:      notify.NewRecorder(db, next, lg),
		Logger:        lg,
		PaymentSecret: cfg.PaymentSecret,
		JWTSecret:     cfg.JWTSecret,
	})

	// Jobs are registered even when the scheduler is off so the cron
	// endpoints can still trigger them.
	sched := scheduler.New(rdb, svc.Calendar.Location(), lg)
	if err := sched.Add(services.JobCloseSlots, cfg.SlotClosureSpec, svc.Reconciliation.CloseElapsedSlots); err != nil {
		lg.Fatal("Failed to schedule job", zap.Error(err))
	}
	if err := sched.Add(services.JobPenalizeDebts, cfg.DebtPenaltySpec, svc.Reconciliation.PenalizeDebts); err != nil {
		lg.Fatal("Failed to schedule job", zap.Error(err))
	}
	if cfg.SchedulerEnabled {
		sched.Start()
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(cfg, svc, sched, lg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lg.Info("Server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("Server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	lg.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("Server shutdown failed", zap.Error(err))
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		lg.Error("Scheduler shutdown failed", zap.Error(err))
	}
}
