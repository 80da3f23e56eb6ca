package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"animatevdo-backend/internal/logger"
	"animatevdo-backend/internal/services"
)

// Worker runs the asynq server that consumes recovery drain tasks.
type Worker struct {
	srv      *asynq.Server
	mux      *asynq.ServeMux
	recovery *services.RecoveryService
	log      *logger.Logger
}

func NewWorker(redisAddr, redisPassword string, concurrency int, recovery *services.RecoveryService, log *logger.Logger) *Worker {
	workerLog := log.With("component", "worker")

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     redisAddr,
			Password: redisPassword,
		},
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"default": 1,
			},
			Logger: &asynqLogger{log: workerLog},
		},
	)

	w := &Worker{
		srv:      srv,
		mux:      asynq.NewServeMux(),
		recovery: recovery,
		log:      workerLog,
	}
	w.mux.HandleFunc(TypeRecoveryDrain, w.handleRecoveryDrain)
	return w
}

// Start launches the worker loop. Non-blocking; stop with Shutdown.
func (w *Worker) Start() error {
	w.log.Info("starting recovery worker")
	return w.srv.Start(w.mux)
}

func (w *Worker) Shutdown() {
	w.srv.Shutdown()
}

func (w *Worker) handleRecoveryDrain(ctx context.Context, t *asynq.Task) error {
	var payload RecoveryPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal recovery payload: %v: %w", err, asynq.SkipRetry)
	}
	entryID, err := uuid.Parse(payload.EntryID)
	if err != nil {
		return fmt.Errorf("invalid recovery entry id %q: %v: %w", payload.EntryID, err, asynq.SkipRetry)
	}

	return w.recovery.ProcessEntry(ctx, entryID)
}

// asynqLogger adapts the zap wrapper to asynq's logging interface.
type asynqLogger struct {
	log *logger.Logger
}

func (l *asynqLogger) Debug(args ...interface{}) { l.log.Debug(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...interface{})  { l.log.Info(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...interface{})  { l.log.Warn(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }
func (l *asynqLogger) Fatal(args ...interface{}) { l.log.Fatal(fmt.Sprint(args...)) }
