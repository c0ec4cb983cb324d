package service

import (
	"context"
	"edumentor_backend/internal/config"
	"edumentor_backend/internal/model"
	"edumentor_backend/internal/repository"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testDBSeq int64

func testConfig() *config.Config {
	return &config.Config{
		Diagnostic: config.DiagnosticConfig{
			MaxTotalQuestions:  20,
			MaxPerSubtopic:     5,
			MinDifficulty:      1,
			MaxDifficulty:      5,
			StartDifficulty:    3,
			MasteryStep:        0.15,
			SessionTTLMinutes:  60,
			ClaimTTLMinutes:    30,
			ThresholdSupport:   0.4,
			ThresholdDevelop:   0.65,
			ThresholdProficent: 0.85,
			RecencyWeight:      0.1,
		},
		StudyPlan: config.StudyPlanConfig{
			MinWeeks:        2,
			MaxWeeks:        12,
			LessonsPerWeek:  3,
			ProviderRetries: 1,
		},
		Tasks: config.TasksConfig{Concurrency: 1, MaxRetry: 3},
	}
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Subject{},
		&model.Topic{},
		&model.Subtopic{},
		&model.QuestionBankEntry{},
		&model.Assessment{},
		&model.AssessmentQuestion{},
		&model.StudentKnowledgeProfile{},
		&model.AssessmentReport{},
		&model.StudyPlan{},
		&model.StudyPlanCourse{},
	))
	return db
}

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

// seedTaxonomy writes two required subjects: math with two topics (three
// subtopics total) and reading with one.
func seedTaxonomy(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Create(&model.Subject{Code: "math", Name: "Mathematics", Required: true}).Error)
	require.NoError(t, db.Create(&model.Subject{Code: "reading", Name: "Reading", Required: true}).Error)

	require.NoError(t, db.Create(&model.Topic{SubjectCode: "math", Code: "arithmetic", Name: "Arithmetic", Order: 1}).Error)
	require.NoError(t, db.Create(&model.Topic{SubjectCode: "math", Code: "geometry", Name: "Geometry", Order: 2}).Error)
	require.NoError(t, db.Create(&model.Topic{SubjectCode: "reading", Code: "comprehension", Name: "Comprehension", Order: 1}).Error)

	require.NoError(t, db.Create(&model.Subtopic{TopicCode: "arithmetic", Code: "fractions", Name: "Fractions"}).Error)
	require.NoError(t, db.Create(&model.Subtopic{TopicCode: "arithmetic", Code: "decimals", Name: "Decimals"}).Error)
	require.NoError(t, db.Create(&model.Subtopic{TopicCode: "geometry", Code: "angles", Name: "Angles"}).Error)
	require.NoError(t, db.Create(&model.Subtopic{TopicCode: "comprehension", Code: "main_idea", Name: "Main Idea"}).Error)
}

var bankSeq int64

func seedQuestion(t *testing.T, db *gorm.DB, subject, topic, subtopic string, grade, difficulty int, answer string) *model.QuestionBankEntry {
	t.Helper()
	n := atomic.AddInt64(&bankSeq, 1)
	q := &model.QuestionBankEntry{
		SubjectCode:  subject,
		TopicCode:    topic,
		SubtopicCode: subtopic,
		GradeLevel:   grade,
		Difficulty:   difficulty,
		Content:      fmt.Sprintf("question %d", n),
		Answer:       answer,
		Signature:    fmt.Sprintf("sig-%d", n),
	}
	require.NoError(t, db.Create(q).Error)
	return q
}

// fakeEnqueuer records enqueued work instead of hitting a real queue.
type fakeEnqueuer struct {
	mu          sync.Mutex
	reportCalls []uint
	planCalls   []uint
	failEnqueue bool
}

func (f *fakeEnqueuer) EnqueueReport(ctx context.Context, studentID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEnqueue {
		return fmt.Errorf("queue unavailable")
	}
	f.reportCalls = append(f.reportCalls, studentID)
	return nil
}

func (f *fakeEnqueuer) EnqueueStudyPlan(ctx context.Context, assessmentID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEnqueue {
		return fmt.Errorf("queue unavailable")
	}
	f.planCalls = append(f.planCalls, assessmentID)
	return nil
}

func (f *fakeEnqueuer) reportCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reportCalls)
}

// fakeChat replays canned responses, one per call.
type fakeChat struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeChat) Chat(ctx context.Context, system, prompt string) (string, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "", fmt.Errorf("no canned response for call %d", i)
}

type diagnosticHarness struct {
	db         *gorm.DB
	rdb        *redis.Client
	cfg        *config.Config
	queue      *fakeEnqueuer
	sessions   *SessionService
	selector   *Selector
	completion *CompletionService
	diagnostic *DiagnosticService
	assessment *repository.AssessmentRepository
	bank       *repository.QuestionBankRepository
	taxonomy   *repository.TaxonomyRepository
	profile    *repository.ProfileRepository
	plans      *repository.StudyPlanRepository
}

func newDiagnosticHarness(t *testing.T) *diagnosticHarness {
	t.Helper()
	db := testDB(t)
	rdb := testRedis(t)
	cfg := testConfig()
	seedTaxonomy(t, db)

	assessmentRepo := repository.NewAssessmentRepository(db)
	bankRepo := repository.NewQuestionBankRepository(db)
	taxonomyRepo := repository.NewTaxonomyRepository(db)
	queue := &fakeEnqueuer{}

	sessions := NewSessionService(assessmentRepo, rdb, cfg)
	selector := NewSelector(bankRepo, taxonomyRepo, cfg)
	completion := NewCompletionService(assessmentRepo, taxonomyRepo, rdb, queue, cfg)
	diagnostic := NewDiagnosticService(sessions, selector, completion, assessmentRepo, bankRepo, taxonomyRepo, cfg)

	return &diagnosticHarness{
		db:         db,
		rdb:        rdb,
		cfg:        cfg,
		queue:      queue,
		sessions:   sessions,
		selector:   selector,
		completion: completion,
		diagnostic: diagnostic,
		assessment: assessmentRepo,
		bank:       bankRepo,
		taxonomy:   taxonomyRepo,
		profile:    repository.NewProfileRepository(db),
		plans:      repository.NewStudyPlanRepository(db),
	}
}
