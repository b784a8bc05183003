package service

import (
	"errors"

	"quiz_mentor_backend/internal/model"
	"quiz_mentor_backend/internal/util"

	"gorm.io/gorm"
)

// QuizService 测验生命周期：查询、开始、放弃。生成与判分分别在
// QuizGeneratorService / QuizGraderService
type QuizService struct {
	QuizRepo QuizStore
}

func NewQuizService(quizRepo QuizStore) *QuizService {
	return &QuizService{QuizRepo: quizRepo}
}

func (s *QuizService) Get(userID uint, quizID string) (*model.Quiz, error) {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuizNotFound
		}
		return nil, err
	}
	if quiz.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	return quiz, nil
}

func (s *QuizService) List(userID uint, courseID *uint, page, limit int) ([]model.Quiz, int64, error) {
	return s.QuizRepo.ListByUser(userID, courseID, page, limit)
}

func (s *QuizService) Start(userID uint, quizID string) (*model.Quiz, error) {
	quiz, err := s.Get(userID, quizID)
	if err != nil {
		return nil, err
	}
	if quiz.Status == model.QuizStatusCompleted {
		return nil, ErrQuizAlreadyCompleted
	}
	if err := s.QuizRepo.MarkStarted(quizID); err != nil {
		return nil, err
	}
	return s.Get(userID, quizID)
}

func (s *QuizService) Abandon(userID uint, quizID string) error {
	quiz, err := s.Get(userID, quizID)
	if err != nil {
		return err
	}
	if quiz.Status == model.QuizStatusCompleted {
		return ErrQuizAlreadyCompleted
	}
	return s.QuizRepo.MarkAbandoned(quizID)
}

// SanitizeForLearner 作答期间不下发正确答案与解析；完成后原样返回
func SanitizeForLearner(quiz *model.Quiz) *model.Quiz {
	if quiz.Status == model.QuizStatusCompleted {
		return quiz
	}
	sanitized := *quiz
	sanitized.Questions = make([]model.QuizQuestion, len(quiz.Questions))
	for i, q := range quiz.Questions {
		question := q
		question.Explanation = ""
		question.Options = make([]model.QuizOption, len(q.Options))
		for j, opt := range q.Options {
			question.Options[j] = model.QuizOption{ID: opt.ID, Text: opt.Text}
		}
		sanitized.Questions[i] = question
	}
	return &sanitized
}
