package repository

import (
	"edumentor_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type AssessmentRepository struct {
	DB *gorm.DB
}

func NewAssessmentRepository(db *gorm.DB) *AssessmentRepository {
	return &AssessmentRepository{DB: db}
}

func (r *AssessmentRepository) Create(a *model.Assessment) error {
	return r.DB.Create(a).Error
}

func (r *AssessmentRepository) Update(a *model.Assessment) error {
	return r.DB.Save(a).Error
}

func (r *AssessmentRepository) FindByID(id uint) (*model.Assessment, error) {
	var a model.Assessment
	err := r.DB.First(&a, id).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindActiveDiagnostic returns the single non-completed diagnostic for a
// (student, subject) pair, if one exists.
func (r *AssessmentRepository) FindActiveDiagnostic(studentID uint, subjectCode string) (*model.Assessment, error) {
	var a model.Assessment
	err := r.DB.
		Where("student_id = ? AND subject_code = ? AND type = ? AND status <> ?",
			studentID, subjectCode, model.AssessmentDiagnostic, model.AssessmentCompleted).
		Order("created_at desc").
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AssessmentRepository) FindLatestDiagnostic(studentID uint, subjectCode string) (*model.Assessment, error) {
	var a model.Assessment
	err := r.DB.
		Where("student_id = ? AND subject_code = ? AND type = ?",
			studentID, subjectCode, model.AssessmentDiagnostic).
		Order("created_at desc").
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AssessmentRepository) ListDiagnosticsByStudent(studentID uint) ([]model.Assessment, error) {
	var as []model.Assessment
	err := r.DB.
		Where("student_id = ? AND type = ?", studentID, model.AssessmentDiagnostic).
		Order("created_at asc").
		Find(&as).Error
	return as, err
}

func (r *AssessmentRepository) ListCompletedDiagnostics(studentID uint) ([]model.Assessment, error) {
	var as []model.Assessment
	err := r.DB.
		Where("student_id = ? AND type = ? AND status = ?",
			studentID, model.AssessmentDiagnostic, model.AssessmentCompleted).
		Order("created_at asc").
		Find(&as).Error
	return as, err
}

// MarkCompleted closes the run and clears the active marker so a fresh
// diagnostic for the pair can start later.
func (r *AssessmentRepository) MarkCompleted(a *model.Assessment) error {
	now := time.Now()
	a.Status = model.AssessmentCompleted
	a.CompletedAt = &now
	a.Active = nil
	return r.DB.Save(a).Error
}

func (r *AssessmentRepository) SetReportStatus(assessmentID uint, status model.PipelineStatus) error {
	return r.DB.Model(&model.Assessment{}).
		Where("id = ?", assessmentID).
		Update("report_status", status).Error
}

func (r *AssessmentRepository) SetPlanStatus(assessmentID uint, status model.PipelineStatus, planErr string) error {
	return r.DB.Model(&model.Assessment{}).
		Where("id = ?", assessmentID).
		Updates(map[string]interface{}{
			"plan_status": status,
			"plan_error":  planErr,
		}).Error
}

// Answer rows

func (r *AssessmentRepository) CreateQuestionRow(q *model.AssessmentQuestion) error {
	return r.DB.Create(q).Error
}

// AnswerQuestionRow records the student's answer on a still-unanswered row.
// The write is conditional on answered_at being NULL, so of two concurrent
// submissions for the same question exactly one sees claimed == true.
func (r *AssessmentRepository) AnswerQuestionRow(q *model.AssessmentQuestion) (bool, error) {
	res := r.DB.Model(&model.AssessmentQuestion{}).
		Where("id = ? AND answered_at IS NULL", q.ID).
		Updates(map[string]interface{}{
			"student_answer": q.StudentAnswer,
			"is_correct":     q.IsCorrect,
			"answered_at":    q.AnsweredAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListQuestionRows returns the asked questions of an assessment in ask
// order. Session rebuild depends on this ordering being deterministic.
func (r *AssessmentRepository) ListQuestionRows(assessmentID uint) ([]model.AssessmentQuestion, error) {
	var rows []model.AssessmentQuestion
	err := r.DB.
		Where("assessment_id = ?", assessmentID).
		Order("sequence asc").
		Find(&rows).Error
	return rows, err
}

func (r *AssessmentRepository) FindQuestionRow(assessmentID, questionID uint) (*model.AssessmentQuestion, error) {
	var row model.AssessmentQuestion
	err := r.DB.
		Where("assessment_id = ? AND question_id = ?", assessmentID, questionID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}
