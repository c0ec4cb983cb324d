package database

import (
	"edumentor_backend/internal/config"
	"edumentor_backend/internal/model"
	"fmt"
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})

	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Println("Database migration completed")

	seedTaxonomy(db)

	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
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
	)
}

// seedTaxonomy inserts a starter curriculum when the subjects table is
// empty so a fresh install can run a diagnostic end to end.
func seedTaxonomy(db *gorm.DB) {
	var count int64
	db.Model(&model.Subject{}).Count(&count)
	if count > 0 {
		return
	}

	subjects := []model.Subject{
		{Code: "math", Name: "Mathematics", Required: true, MinGrade: 1, MaxGrade: 12},
		{Code: "reading", Name: "Reading", Required: true, MinGrade: 1, MaxGrade: 12},
		{Code: "science", Name: "Science", Required: false, MinGrade: 3, MaxGrade: 12},
	}
	for i := range subjects {
		db.Create(&subjects[i])
	}

	topics := []model.Topic{
		{SubjectCode: "math", Code: "arithmetic", Name: "Arithmetic", Order: 1},
		{SubjectCode: "math", Code: "fractions", Name: "Fractions", Order: 2},
		{SubjectCode: "math", Code: "geometry", Name: "Geometry", Order: 3},
		{SubjectCode: "reading", Code: "comprehension", Name: "Comprehension", Order: 1},
		{SubjectCode: "reading", Code: "vocabulary", Name: "Vocabulary", Order: 2},
	}
	for i := range topics {
		db.Create(&topics[i])
	}

	subtopics := []model.Subtopic{
		{TopicCode: "arithmetic", Code: "addition", Name: "Addition"},
		{TopicCode: "arithmetic", Code: "multiplication", Name: "Multiplication"},
		{TopicCode: "fractions", Code: "equivalent_fractions", Name: "Equivalent Fractions"},
		{TopicCode: "fractions", Code: "fraction_ops", Name: "Fraction Operations"},
		{TopicCode: "geometry", Code: "shapes", Name: "Shapes"},
		{TopicCode: "comprehension", Code: "main_idea", Name: "Main Idea"},
		{TopicCode: "comprehension", Code: "inference", Name: "Inference"},
		{TopicCode: "vocabulary", Code: "context_clues", Name: "Context Clues"},
	}
	for i := range subtopics {
		db.Create(&subtopics[i])
	}
}
