package task

import (
	"context"
	"edumentor_backend/internal/config"
	"edumentor_backend/internal/service"
	"edumentor_backend/internal/util"
	"edumentor_backend/pkg/logger"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Worker runs the background pipeline on an asynq server embedded in the
// process. Delivery is at-least-once; both handlers are idempotent.
type Worker struct {
	server  *asynq.Server
	reports *service.ReportService
	plans   *service.StudyPlanService
}

func NewWorker(redisCfg *config.RedisConfig, tasksCfg *config.TasksConfig, reports *service.ReportService, plans *service.StudyPlanService) *Worker {
	server := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     redisCfg.Addr(),
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		},
		asynq.Config{
			Concurrency: tasksCfg.Concurrency,
			RetryDelayFunc: func(n int, err error, t *asynq.Task) time.Duration {
				// Exponential backoff with jitter; the LLM call dominates
				// latency and deserves breathing room between attempts.
				base := time.Duration(1<<uint(n)) * time.Second
				return base + time.Duration(rand.Int63n(int64(time.Second)))
			},
			Logger: asynqZapLogger{},
		},
	)

	return &Worker{server: server, reports: reports, plans: plans}
}

func (w *Worker) Start() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeReportGenerate, w.handleReportGenerate)
	mux.HandleFunc(TypeStudyPlanGenerate, w.handleStudyPlanGenerate)
	return w.server.Start(mux)
}

func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

func (w *Worker) handleReportGenerate(ctx context.Context, t *asynq.Task) error {
	var payload ReportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unreadable report payload: %v: %w", err, asynq.SkipRetry)
	}

	if err := w.reports.GenerateReports(ctx, payload.StudentID); err != nil {
		logger.Log.Error("report generation failed",
			zap.Uint("studentId", payload.StudentID), zap.Error(err))
		return err
	}
	return nil
}

func (w *Worker) handleStudyPlanGenerate(ctx context.Context, t *asynq.Task) error {
	var payload StudyPlanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unreadable study plan payload: %v: %w", err, asynq.SkipRetry)
	}

	err := w.plans.GeneratePlan(ctx, payload.AssessmentID)
	if err == nil {
		return nil
	}

	// A malformed provider response never fixes itself on retry; record
	// it as a defect and fail the task immediately.
	if errors.Is(err, util.ErrSchemaValidation) {
		w.plans.RecordPermanentFailure(payload.AssessmentID, err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	if lastAttempt(ctx) {
		w.plans.RecordPermanentFailure(payload.AssessmentID, err)
	}
	return err
}

// lastAttempt reports whether the current delivery is the task's final
// one under its retry budget.
func lastAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return false
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return false
	}
	return retried >= maxRetry
}

// asynqZapLogger routes asynq's own logging through the shared zap
// logger.
type asynqZapLogger struct{}

func (asynqZapLogger) Debug(args ...interface{}) { logger.Log.Sugar().Debug(args...) }
func (asynqZapLogger) Info(args ...interface{})  { logger.Log.Sugar().Info(args...) }
func (asynqZapLogger) Warn(args ...interface{})  { logger.Log.Sugar().Warn(args...) }
func (asynqZapLogger) Error(args ...interface{}) { logger.Log.Sugar().Error(args...) }
func (asynqZapLogger) Fatal(args ...interface{}) { logger.Log.Sugar().Fatal(args...) }
