package repository

import (
	"edumentor_backend/internal/model"

	"gorm.io/gorm"
)

type QuestionBankRepository struct {
	DB *gorm.DB
}

func NewQuestionBankRepository(db *gorm.DB) *QuestionBankRepository {
	return &QuestionBankRepository{DB: db}
}

// BankFilter narrows candidate lookup. Zero values mean "no constraint",
// so the selector's relaxation rules can drop criteria one at a time.
type BankFilter struct {
	SubjectCode      string
	TopicCode        string
	SubtopicCode     string
	GradeLevel       int
	Difficulty       int
	ExcludeIDs       []uint
	ExcludeSubtopics []string
}

func (r *QuestionBankRepository) FindCandidate(f BankFilter) (*model.QuestionBankEntry, error) {
	query := r.DB.Model(&model.QuestionBankEntry{})

	if f.SubjectCode != "" {
		query = query.Where("subject_code = ?", f.SubjectCode)
	}
	if f.TopicCode != "" {
		query = query.Where("topic_code = ?", f.TopicCode)
	}
	if f.SubtopicCode != "" {
		query = query.Where("subtopic_code = ?", f.SubtopicCode)
	}
	if f.GradeLevel > 0 {
		query = query.Where("grade_level = ?", f.GradeLevel)
	}
	if f.Difficulty > 0 {
		query = query.Where("difficulty = ?", f.Difficulty)
	}
	if len(f.ExcludeIDs) > 0 {
		query = query.Where("id NOT IN ?", f.ExcludeIDs)
	}
	if len(f.ExcludeSubtopics) > 0 {
		query = query.Where("subtopic_code NOT IN ?", f.ExcludeSubtopics)
	}

	var q model.QuestionBankEntry
	err := query.Order("id asc").First(&q).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// ListDifficulties returns the distinct difficulties that still have unused
// questions within a subtopic, used by the nearest-difficulty relaxation.
func (r *QuestionBankRepository) ListDifficulties(subtopicCode string, gradeLevel int, excludeIDs []uint) ([]int, error) {
	query := r.DB.Model(&model.QuestionBankEntry{}).
		Where("subtopic_code = ?", subtopicCode)
	if gradeLevel > 0 {
		query = query.Where("grade_level = ?", gradeLevel)
	}
	if len(excludeIDs) > 0 {
		query = query.Where("id NOT IN ?", excludeIDs)
	}

	var difficulties []int
	err := query.Distinct("difficulty").Order("difficulty asc").Pluck("difficulty", &difficulties).Error
	return difficulties, err
}

func (r *QuestionBankRepository) FindByID(id uint) (*model.QuestionBankEntry, error) {
	var q model.QuestionBankEntry
	err := r.DB.First(&q, id).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *QuestionBankRepository) FindByIDs(ids []uint) ([]model.QuestionBankEntry, error) {
	var qs []model.QuestionBankEntry
	err := r.DB.Where("id IN ?", ids).Find(&qs).Error
	return qs, err
}

func (r *QuestionBankRepository) Create(q *model.QuestionBankEntry) error {
	return r.DB.Create(q).Error
}
