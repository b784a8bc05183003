package repository

import (
	"errors"
	"time"

	"quiz_mentor_backend/internal/model"

	"gorm.io/gorm"
)

type LearningTargetRepository struct {
	DB *gorm.DB
}

func NewLearningTargetRepository(db *gorm.DB) *LearningTargetRepository {
	return &LearningTargetRepository{DB: db}
}

// FindOrCreate 按（课程,用户,归一化主题）取行，不存在则建pending行
// 并发下撞上唯一索引时回读已有行，保证同键只有一行
func (r *LearningTargetRepository) FindOrCreate(courseID, userID uint, subTopic, normalized string) (*model.LearningTarget, error) {
	var target model.LearningTarget
	err := r.DB.Where(
		"course_id = ? AND user_id = ? AND normalized_sub_topic_name = ?",
		courseID, userID, normalized,
	).First(&target).Error
	if err == nil {
		return &target, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	target = model.LearningTarget{
		CourseID:               courseID,
		UserID:                 userID,
		SubTopicName:           subTopic,
		NormalizedSubTopicName: normalized,
		Status:                 model.TargetPending,
		FirstEncountered:       time.Now(),
	}
	if err := r.DB.Create(&target).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			var existing model.LearningTarget
			if ferr := r.DB.Where(
				"course_id = ? AND user_id = ? AND normalized_sub_topic_name = ?",
				courseID, userID, normalized,
			).First(&existing).Error; ferr == nil {
				return &existing, nil
			}
		}
		return nil, err
	}
	return &target, nil
}

func (r *LearningTargetRepository) FindByID(id uint) (*model.LearningTarget, error) {
	var target model.LearningTarget
	err := r.DB.First(&target, id).Error
	return &target, err
}

func (r *LearningTargetRepository) ListByCourseUser(courseID, userID uint, statuses []model.TargetStatus) ([]model.LearningTarget, error) {
	var targets []model.LearningTarget
	query := r.DB.Where("course_id = ? AND user_id = ?", courseID, userID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	err := query.Order("first_encountered asc").Find(&targets).Error
	return targets, err
}

// CountByStatus 按状态统计目标数，用于前端判断可用的测验类型
func (r *LearningTargetRepository) CountByStatus(courseID, userID uint) (map[model.TargetStatus]int64, error) {
	type row struct {
		Status model.TargetStatus
		Count  int64
	}
	var rows []row
	err := r.DB.Model(&model.LearningTarget{}).
		Select("status, count(*) as count").
		Where("course_id = ? AND user_id = ?", courseID, userID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[model.TargetStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// ErrAlreadyApplied 同一测验对该目标已结算过，幂等跳过
var ErrAlreadyApplied = errors.New("quiz already applied to learning target")

// ApplyAttempt 单个目标的结算：先插幂等保护行，再原子自增计数器并更新状态
// 整个操作在一个事务内；计数器走SQL表达式自增，不读缓存值回写
func (r *LearningTargetRepository) ApplyAttempt(quizID string, targetID uint, scorePercent int, newStatus model.TargetStatus, counterColumn string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		guard := model.QuizTargetApplication{
			QuizID:           quizID,
			LearningTargetID: targetID,
			ScorePercent:     scorePercent,
			ResultStatus:     newStatus,
		}
		if err := tx.Create(&guard).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyApplied
			}
			return err
		}

		now := time.Now()
		return tx.Model(&model.LearningTarget{}).
			Where("id = ?", targetID).
			Updates(map[string]interface{}{
				"status":                     newStatus,
				counterColumn:                gorm.Expr(counterColumn+" + 1"),
				"last_attempt_score_percent": scorePercent,
				"last_attempt":               now,
			}).Error
	})
}
