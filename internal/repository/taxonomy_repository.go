package repository

import (
	"edumentor_backend/internal/model"

	"gorm.io/gorm"
)

type TaxonomyRepository struct {
	DB *gorm.DB
}

func NewTaxonomyRepository(db *gorm.DB) *TaxonomyRepository {
	return &TaxonomyRepository{DB: db}
}

func (r *TaxonomyRepository) ListRequiredSubjects() ([]model.Subject, error) {
	var subjects []model.Subject
	err := r.DB.Where("required = ?", true).Order("code asc").Find(&subjects).Error
	return subjects, err
}

func (r *TaxonomyRepository) FindSubject(code string) (*model.Subject, error) {
	var s model.Subject
	err := r.DB.Where("code = ?", code).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *TaxonomyRepository) ListSubtopicsBySubject(subjectCode string) ([]model.Subtopic, error) {
	var subtopics []model.Subtopic
	err := r.DB.
		Joins("JOIN topics ON topics.code = subtopics.topic_code").
		Where("topics.subject_code = ?", subjectCode).
		Order("topics.`order` asc, subtopics.code asc").
		Find(&subtopics).Error
	return subtopics, err
}

func (r *TaxonomyRepository) FindSubtopic(code string) (*model.Subtopic, error) {
	var st model.Subtopic
	err := r.DB.Where("code = ?", code).First(&st).Error
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// TopicOrderBySubtopic maps subtopic code -> the owning topic's declared
// order, the tiebreak for gap-priority ranking.
func (r *TaxonomyRepository) TopicOrderBySubtopic(subjectCode string) (map[string]int, error) {
	type row struct {
		SubtopicCode string
		TopicOrder   int
	}
	var rows []row
	err := r.DB.Model(&model.Subtopic{}).
		Select("subtopics.code as subtopic_code, topics.`order` as topic_order").
		Joins("JOIN topics ON topics.code = subtopics.topic_code").
		Where("topics.subject_code = ?", subjectCode).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	orders := make(map[string]int, len(rows))
	for _, r := range rows {
		orders[r.SubtopicCode] = r.TopicOrder
	}
	return orders, nil
}
