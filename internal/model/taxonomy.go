package model

// Subject is one diagnosable area of the curriculum. Rows with
// Required=true gate the cross-subject completion check.
type Subject struct {
	BaseModel
	Code     string `gorm:"size:50;uniqueIndex;not null" json:"code"`
	Name     string `gorm:"size:100;not null" json:"name"`
	Required bool   `gorm:"default:true" json:"required"`
	MinGrade int    `gorm:"default:1" json:"minGrade"`
	MaxGrade int    `gorm:"default:12" json:"maxGrade"`
}

func (Subject) TableName() string {
	return "subjects"
}

// Topic sits between subject and subtopic. Order doubles as the topic's
// declared importance and breaks ties in gap-priority ranking.
type Topic struct {
	BaseModel
	SubjectCode string `gorm:"size:50;index;not null" json:"subjectCode"`
	Code        string `gorm:"size:50;uniqueIndex;not null" json:"code"`
	Name        string `gorm:"size:100;not null" json:"name"`
	Order       int    `gorm:"default:0" json:"order"`
}

func (Topic) TableName() string {
	return "topics"
}

type Subtopic struct {
	BaseModel
	TopicCode string `gorm:"size:50;index;not null" json:"topicCode"`
	Code      string `gorm:"size:50;uniqueIndex;not null" json:"code"`
	Name      string `gorm:"size:100;not null" json:"name"`
}

func (Subtopic) TableName() string {
	return "subtopics"
}
