package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/goalforge/internal/config"
	"github.com/phrazzld/goalforge/internal/domain"
	"github.com/phrazzld/goalforge/internal/events"
	"github.com/phrazzld/goalforge/internal/jobs"
	"github.com/phrazzld/goalforge/internal/metrics"
	"github.com/phrazzld/goalforge/internal/notify"
	"github.com/phrazzld/goalforge/internal/platform/postgres"
	"github.com/phrazzld/goalforge/internal/platform/providers"
	"github.com/phrazzld/goalforge/internal/platform/redisconn"
	"github.com/phrazzld/goalforge/internal/platform/redisqueue"
	"github.com/phrazzld/goalforge/internal/processor"
	"github.com/phrazzld/goalforge/internal/queue"
	"github.com/phrazzld/goalforge/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// queueConn is the Redis side of the worker: enough to enqueue and inspect
// jobs without touching the database.
type queueConn struct {
	redis    *redis.Client
	backend  queue.Backend
	client   *queue.Client
	enqueuer *jobs.Enqueuer
}

func openQueue(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*queueConn, error) {
	rdb, err := redisconn.Open(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("redis connection established", "addr", cfg.Redis.Addr)

	backend := redisqueue.New(rdb, cfg.Redis.KeyPrefix, cfg.Queue.PriorityStep, cfg.Queue.CompletedRetention)
	client := queue.NewClient(backend, jobs.Defaults(cfg.Queue), logger)
	return &queueConn{
		redis:    rdb,
		backend:  backend,
		client:   client,
		enqueuer: jobs.NewEnqueuer(client),
	}, nil
}

func (q *queueConn) close() error {
	return q.redis.Close()
}

// application holds the shared dependencies of a running worker.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB
	queue  *queueConn

	stores   *postgres.Stores
	events   events.Publisher
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

// newApplication opens the database and Redis connections and sets up the
// shared components. Call close when done.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	db, err := openDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	q, err := openQueue(ctx, cfg, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db, "goalforge"),
	)
	m, err := metrics.New(registry)
	if err != nil {
		_ = q.close()
		_ = db.Close()
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return &application{
		config:   cfg,
		logger:   logger,
		db:       db,
		queue:    q,
		stores:   postgres.NewStores(db, logger),
		events:   events.NewRedisPublisher(q.redis, events.Channel(cfg.Redis.KeyPrefix), logger),
		registry: registry,
		metrics:  m,
	}, nil
}

func (app *application) close() {
	if err := app.queue.close(); err != nil {
		app.logger.Error("failed to close redis connection", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("failed to close database connection", "error", err)
	}
}

// processors builds the three queue handlers.
func (app *application) processors(ctx context.Context) (map[string]queue.Handler, error) {
	byRole, err := providers.ForRoles(ctx, app.logger, app.config.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AI providers: %w", err)
	}

	planner, err := service.NewPlanner(byRole[domain.AIRolePlanner], app.logger)
	if err != nil {
		return nil, err
	}
	tasks, err := service.NewTaskGenerator(byRole[domain.AIRoleTaskGenerator], app.logger)
	if err != nil {
		return nil, err
	}
	mentor, err := service.NewMentor(byRole[domain.AIRoleMentor], app.logger)
	if err != nil {
		return nil, err
	}
	evaluator, err := service.NewEvaluator(byRole[domain.AIRoleEvaluator], app.logger)
	if err != nil {
		return nil, err
	}

	stores := app.stores.Bundle()
	aiJobs, err := processor.NewAIJobs(processor.AIJobsDeps{
		Tx:        app.stores,
		Stores:    stores,
		Planner:   planner,
		Mentor:    mentor,
		Evaluator: evaluator,
		Tasks:     tasks,
		Notifier:  app.queue.enqueuer,
		Events:    app.events,
		Observer:  app.metrics,
		Logger:    app.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ai job processor: %w", err)
	}

	maintenance, err := processor.NewMaintenance(stores, app.queue.enqueuer, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create maintenance processor: %w", err)
	}

	senders, err := app.senders()
	if err != nil {
		return nil, err
	}
	notifications, err := processor.NewNotifications(stores, app.logger, senders...)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification processor: %w", err)
	}

	return map[string]queue.Handler{
		jobs.QueueAIJobs:        jobs.AIJobHandler(aiJobs),
		jobs.QueueMaintenance:   jobs.MaintenanceHandler(maintenance),
		jobs.QueueNotifications: jobs.NotificationHandler(notifications),
	}, nil
}

// senders builds the enabled external notification channels.
func (app *application) senders() ([]notify.Sender, error) {
	var out []notify.Sender
	if app.config.Email.Enabled {
		s, err := notify.NewSendGridSender(app.config.Email, nil, app.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create email sender: %w", err)
		}
		out = append(out, s)
	}
	if app.config.Push.Enabled {
		s, err := notify.NewWebhookPushSender(app.config.Push, nil, app.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create push sender: %w", err)
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		app.logger.Warn("no external notification channels enabled; only in-app notifications are delivered")
	}
	return out, nil
}

// workers creates one queue worker per queue.
func (app *application) workers(handlers map[string]queue.Handler) ([]*queue.Worker, error) {
	observer := queue.Observers{
		app.metrics,
		events.NewFailureReporter(app.events, app.logger),
	}

	out := make([]*queue.Worker, 0, len(jobs.Queues))
	for _, name := range jobs.Queues {
		h, ok := handlers[name]
		if !ok {
			return nil, errors.New("no handler for queue " + name)
		}
		out = append(out, queue.NewWorker(app.queue.backend, jobs.WorkerConfig(app.config.Queue, name), h, app.logger, observer))
	}
	return out, nil
}

// healthChecks are the dependencies /healthz probes.
func (app *application) healthChecks() map[string]healthCheck {
	return map[string]healthCheck{
		"postgres": app.db.PingContext,
		"redis": func(ctx context.Context) error {
			return app.queue.redis.Ping(ctx).Err()
		},
	}
}
