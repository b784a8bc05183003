package repository

import (
	"encoding/json"
	"time"

	"quiz_mentor_backend/internal/model"

	"gorm.io/gorm"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

// Create 测验与题目在同一事务内落库；校验不通过的测验不会走到这里
func (r *QuizRepository) Create(quiz *model.Quiz) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		return tx.Create(quiz).Error
	})
}

func (r *QuizRepository) FindByID(id string) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("quiz_questions.order asc")
	}).Where("id = ?", id).First(&quiz).Error
	return &quiz, err
}

func (r *QuizRepository) ListByUser(userID uint, courseID *uint, page, limit int) ([]model.Quiz, int64, error) {
	var quizzes []model.Quiz
	var total int64
	query := r.DB.Model(&model.Quiz{}).Where("user_id = ?", userID)
	if courseID != nil {
		query = query.Where("course_id = ?", *courseID)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&quizzes).Error
	return quizzes, total, err
}

func (r *QuizRepository) MarkStarted(id string) error {
	now := time.Now()
	return r.DB.Model(&model.Quiz{}).
		Where("id = ? AND status = ?", id, model.QuizStatusNotStarted).
		Updates(map[string]interface{}{
			"status":     model.QuizStatusInProgress,
			"started_at": now,
		}).Error
}

// MarkCompleted 只允许从非completed状态迁入，保证已完成测验不可变
func (r *QuizRepository) MarkCompleted(id string, score, elapsedSeconds int, answers map[string][]string) error {
	// serializer:json 只在结构体字段写入时生效，map形式的Updates需自行序列化
	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return err
	}
	now := time.Now()
	result := r.DB.Model(&model.Quiz{}).
		Where("id = ? AND status <> ?", id, model.QuizStatusCompleted).
		Updates(map[string]interface{}{
			"status":            model.QuizStatusCompleted,
			"score":             score,
			"elapsed_time":      elapsedSeconds,
			"submitted_answers": string(answersJSON),
			"completed_at":      now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *QuizRepository) MarkAbandoned(id string) error {
	return r.DB.Model(&model.Quiz{}).
		Where("id = ? AND status IN ?", id, []model.QuizStatus{model.QuizStatusNotStarted, model.QuizStatusInProgress}).
		Update("status", model.QuizStatusAbandoned).Error
}
