package model

import "encoding/json"

// QuestionBankEntry is an immutable bank question. The composite unique
// index on (subtopic_code, signature, difficulty) deduplicates imports.
type QuestionBankEntry struct {
	BaseModel
	SubjectCode  string          `gorm:"size:50;index:idx_bank_lookup;not null" json:"subjectCode"`
	TopicCode    string          `gorm:"size:50;index;not null" json:"topicCode"`
	SubtopicCode string          `gorm:"size:50;index:idx_bank_lookup;uniqueIndex:idx_bank_signature;not null" json:"subtopicCode"`
	GradeLevel   int             `gorm:"index:idx_bank_lookup;not null" json:"gradeLevel"`
	Difficulty   int             `gorm:"index:idx_bank_lookup;uniqueIndex:idx_bank_signature;not null" json:"difficulty"`
	Content      string          `gorm:"type:text;not null" json:"content"`
	Options      json.RawMessage `gorm:"type:json" json:"options"`
	Answer       string          `gorm:"type:text" json:"-"`
	Signature    string          `gorm:"size:64;uniqueIndex:idx_bank_signature;not null" json:"-"`
}

func (QuestionBankEntry) TableName() string {
	return "question_bank_entries"
}
