package service

import "quiz_mentor_backend/internal/model"

// 管线服务通过窄接口访问持久层，测试里用内存实现替换；
// repository 包的具体类型天然满足这些接口

type QuizStore interface {
	Create(quiz *model.Quiz) error
	FindByID(id string) (*model.Quiz, error)
	ListByUser(userID uint, courseID *uint, page, limit int) ([]model.Quiz, int64, error)
	MarkStarted(id string) error
	MarkCompleted(id string, score, elapsedSeconds int, answers map[string][]string) error
	MarkAbandoned(id string) error
}

type TargetStore interface {
	FindOrCreate(courseID, userID uint, subTopic, normalized string) (*model.LearningTarget, error)
	ListByCourseUser(courseID, userID uint, statuses []model.TargetStatus) ([]model.LearningTarget, error)
	CountByStatus(courseID, userID uint) (map[model.TargetStatus]int64, error)
	ApplyAttempt(quizID string, targetID uint, scorePercent int, newStatus model.TargetStatus, counterColumn string) error
}
