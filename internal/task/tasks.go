package task

import (
	"context"
	"edumentor_backend/internal/config"
	"encoding/json"

	"github.com/hibiken/asynq"
)

// Task type names. Payloads carry ids only; the handlers load everything
// else fresh from the store.
const (
	TypeReportGenerate    = "report:generate"
	TypeStudyPlanGenerate = "study_plan:generate"
)

type ReportPayload struct {
	StudentID uint `json:"studentId"`
}

type StudyPlanPayload struct {
	AssessmentID uint `json:"assessmentId"`
}

// Client enqueues background work. It satisfies service.Enqueuer.
type Client struct {
	inner    *asynq.Client
	maxRetry int
}

func NewClient(redisCfg *config.RedisConfig, tasksCfg *config.TasksConfig) *Client {
	return &Client{
		inner: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     redisCfg.Addr(),
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		}),
		maxRetry: tasksCfg.MaxRetry,
	}
}

func (c *Client) EnqueueReport(ctx context.Context, studentID uint) error {
	payload, err := json.Marshal(ReportPayload{StudentID: studentID})
	if err != nil {
		return err
	}
	_, err = c.inner.EnqueueContext(ctx,
		asynq.NewTask(TypeReportGenerate, payload),
		asynq.MaxRetry(c.maxRetry),
	)
	return err
}

func (c *Client) EnqueueStudyPlan(ctx context.Context, assessmentID uint) error {
	payload, err := json.Marshal(StudyPlanPayload{AssessmentID: assessmentID})
	if err != nil {
		return err
	}
	_, err = c.inner.EnqueueContext(ctx,
		asynq.NewTask(TypeStudyPlanGenerate, payload),
		asynq.MaxRetry(c.maxRetry),
	)
	return err
}

func (c *Client) Close() error {
	return c.inner.Close()
}
