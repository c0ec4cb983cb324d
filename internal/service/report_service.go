package service

import (
	"context"
	"edumentor_backend/internal/config"
	"edumentor_backend/internal/model"
	"edumentor_backend/internal/repository"
	"edumentor_backend/internal/util"
	"edumentor_backend/pkg/logger"
	"edumentor_backend/pkg/monitoring"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SubtopicMastery is one line of the mastery snapshot stored on the
// report and fed to the study plan prompt.
type SubtopicMastery struct {
	SubtopicCode string             `json:"subtopicCode"`
	Score        float64            `json:"score"`
	Label        model.MasteryLabel `json:"label"`
	GapPriority  int                `json:"gapPriority"`
	Answered     int                `json:"answered"`
}

// ReportService turns the full answer history of completed diagnostics
// into knowledge profiles and report snapshots. Every run computes fresh
// from the rows, so at-least-once delivery cannot double-count anything.
type ReportService struct {
	AssessmentRepo *repository.AssessmentRepository
	ProfileRepo    *repository.ProfileRepository
	TaxonomyRepo   *repository.TaxonomyRepository
	Completion     *CompletionService
	Queue          Enqueuer
	Cfg            *config.Config
}

func NewReportService(
	assessmentRepo *repository.AssessmentRepository,
	profileRepo *repository.ProfileRepository,
	taxonomyRepo *repository.TaxonomyRepository,
	completion *CompletionService,
	queue Enqueuer,
	cfg *config.Config,
) *ReportService {
	return &ReportService{
		AssessmentRepo: assessmentRepo,
		ProfileRepo:    profileRepo,
		TaxonomyRepo:   taxonomyRepo,
		Completion:     completion,
		Queue:          queue,
		Cfg:            cfg,
	}
}

func (s *ReportService) SetConfig(cfg *config.Config) {
	s.Cfg = cfg
}

// GenerateReports processes every completed diagnostic of the student:
// per-subtopic mastery, labels, gap ranking, profile upserts, and one
// immutable report snapshot per assessment. Study plan generation is
// enqueued per assessment afterwards.
func (s *ReportService) GenerateReports(ctx context.Context, studentID uint) error {
	assessments, err := s.AssessmentRepo.ListCompletedDiagnostics(studentID)
	if err != nil {
		return err
	}
	if len(assessments) == 0 {
		return fmt.Errorf("student %d has no completed diagnostics", studentID)
	}

	for i := range assessments {
		if err := s.generateForAssessment(ctx, &assessments[i]); err != nil {
			return err
		}
	}

	if err := s.Completion.MarkReportReady(ctx, studentID); err != nil {
		logger.Log.Warn("failed to set report-ready flag", zap.Error(err))
	}

	return nil
}

func (s *ReportService) generateForAssessment(ctx context.Context, assessment *model.Assessment) error {
	mastery, err := s.ComputeMastery(assessment)
	if err != nil {
		return err
	}

	for _, m := range mastery {
		profile := &model.StudentKnowledgeProfile{
			StudentID:    assessment.StudentID,
			SubjectCode:  assessment.SubjectCode,
			SubtopicCode: m.SubtopicCode,
			MasteryScore: m.Score,
			Label:        m.Label,
			GapPriority:  m.GapPriority,
		}
		if err := s.ProfileRepo.Upsert(profile); err != nil {
			return err
		}
	}

	// The snapshot is write-once; a re-delivered task finds the existing
	// report and moves straight on to plan dispatch.
	if _, err := s.ProfileRepo.FindReportByAssessment(assessment.ID); err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		snapshot, err := json.Marshal(mastery)
		if err != nil {
			return err
		}
		report := &model.AssessmentReport{
			AssessmentID: assessment.ID,
			StudentID:    assessment.StudentID,
			SubjectCode:  assessment.SubjectCode,
			Mastery:      snapshot,
			GapCount:     countGaps(mastery, s.Cfg.Diagnostic.ThresholdDevelop),
		}
		if err := s.ProfileRepo.CreateReport(report); err != nil {
			return err
		}
		monitoring.ReportsGenerated.Inc()
	}

	if err := s.AssessmentRepo.SetReportStatus(assessment.ID, model.PipelineReady); err != nil {
		return err
	}

	return s.Queue.EnqueueStudyPlan(ctx, assessment.ID)
}

// ComputeMastery derives per-subtopic mastery from the assessment's
// answer rows. Later answers weigh more: the i-th answer within a
// subtopic carries weight 1 + recency*i.
func (s *ReportService) ComputeMastery(assessment *model.Assessment) ([]SubtopicMastery, error) {
	rows, err := s.AssessmentRepo.ListQuestionRows(assessment.ID)
	if err != nil {
		return nil, err
	}

	d := s.Cfg.Diagnostic

	weightSum := map[string]float64{}
	scoreSum := map[string]float64{}
	answered := map[string]int{}
	for _, row := range rows {
		if row.AnsweredAt == nil {
			continue
		}
		w := 1.0 + d.RecencyWeight*float64(answered[row.SubtopicCode])
		weightSum[row.SubtopicCode] += w
		if row.IsCorrect {
			scoreSum[row.SubtopicCode] += w
		}
		answered[row.SubtopicCode]++
	}

	topicOrder, err := s.TaxonomyRepo.TopicOrderBySubtopic(assessment.SubjectCode)
	if err != nil {
		return nil, err
	}

	mastery := make([]SubtopicMastery, 0, len(weightSum))
	for subtopic, total := range weightSum {
		score := scoreSum[subtopic] / total
		mastery = append(mastery, SubtopicMastery{
			SubtopicCode: subtopic,
			Score:        score,
			Label:        s.LabelFor(score),
			Answered:     answered[subtopic],
		})
	}

	// Gap priority: weakest first, ties broken by the topic's declared
	// importance so earlier curriculum topics outrank later ones.
	sort.Slice(mastery, func(i, j int) bool {
		if mastery[i].Score != mastery[j].Score {
			return mastery[i].Score < mastery[j].Score
		}
		oi, oj := topicOrder[mastery[i].SubtopicCode], topicOrder[mastery[j].SubtopicCode]
		if oi != oj {
			return oi < oj
		}
		return mastery[i].SubtopicCode < mastery[j].SubtopicCode
	})
	for i := range mastery {
		mastery[i].GapPriority = i + 1
	}

	return mastery, nil
}

// LabelFor maps a score to its mastery tier. Thresholds come from config
// and are validated to be strictly increasing, so the mapping is
// monotonic by construction.
func (s *ReportService) LabelFor(score float64) model.MasteryLabel {
	d := s.Cfg.Diagnostic
	switch {
	case score < d.ThresholdSupport:
		return model.LabelNeedsSupport
	case score < d.ThresholdDevelop:
		return model.LabelDeveloping
	case score < d.ThresholdProficent:
		return model.LabelProficient
	default:
		return model.LabelAdvanced
	}
}

// ProfileFor returns the student's current knowledge profile across all
// subjects, ordered by gap priority.
func (s *ReportService) ProfileFor(studentID uint) ([]model.StudentKnowledgeProfile, error) {
	return s.ProfileRepo.ListByStudent(studentID)
}

// ReportFor returns the report snapshot for one assessment, scoped to
// the owning student.
func (s *ReportService) ReportFor(studentID, assessmentID uint) (*model.AssessmentReport, error) {
	report, err := s.ProfileRepo.FindReportByAssessment(assessmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("report for assessment %d: %w", assessmentID, util.ErrNotFound)
		}
		return nil, err
	}
	if report.StudentID != studentID {
		return nil, fmt.Errorf("report for assessment %d: %w", assessmentID, util.ErrNotFound)
	}
	return report, nil
}

func countGaps(mastery []SubtopicMastery, threshold float64) int {
	count := 0
	for _, m := range mastery {
		if m.Score < threshold {
			count++
		}
	}
	return count
}
