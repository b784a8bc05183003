package service

import (
	"fmt"
	"time"

	"quiz_mentor_backend/internal/config"
	"quiz_mentor_backend/internal/model"
	"quiz_mentor_backend/internal/repository"

	"gorm.io/gorm"
)

// 内存版 QuizStore / TargetStore，让管线服务的测试不碰数据库

type appliedAttempt struct {
	QuizID       string
	TargetID     uint
	ScorePercent int
	NewStatus    model.TargetStatus
	Counter      string
}

type fakeTargetStore struct {
	targets map[string]*model.LearningTarget // 归一化主题名 -> 目标行
	applies []appliedAttempt
	nextID  uint

	findErr  error
	applyErr error
	listErr  error
}

func newFakeTargetStore(targets ...model.LearningTarget) *fakeTargetStore {
	s := &fakeTargetStore{targets: make(map[string]*model.LearningTarget)}
	for i := range targets {
		t := targets[i]
		if t.ID == 0 {
			s.nextID++
			t.ID = s.nextID
		} else if t.ID > s.nextID {
			s.nextID = t.ID
		}
		s.targets[t.NormalizedSubTopicName] = &t
	}
	return s
}

func (s *fakeTargetStore) FindOrCreate(courseID, userID uint, subTopic, normalized string) (*model.LearningTarget, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if t, ok := s.targets[normalized]; ok {
		copied := *t
		return &copied, nil
	}
	s.nextID++
	t := &model.LearningTarget{
		CourseID:               courseID,
		UserID:                 userID,
		SubTopicName:           subTopic,
		NormalizedSubTopicName: normalized,
		Status:                 model.TargetPending,
		FirstEncountered:       time.Now(),
	}
	t.ID = s.nextID
	s.targets[normalized] = t
	copied := *t
	return &copied, nil
}

func (s *fakeTargetStore) ListByCourseUser(courseID, userID uint, statuses []model.TargetStatus) ([]model.LearningTarget, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	want := make(map[model.TargetStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	var out []model.LearningTarget
	for _, t := range s.targets {
		if t.CourseID != courseID || t.UserID != userID {
			continue
		}
		if len(want) > 0 && !want[t.Status] {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (s *fakeTargetStore) CountByStatus(courseID, userID uint) (map[model.TargetStatus]int64, error) {
	counts := make(map[model.TargetStatus]int64)
	for _, t := range s.targets {
		if t.CourseID == courseID && t.UserID == userID {
			counts[t.Status]++
		}
	}
	return counts, nil
}

func (s *fakeTargetStore) ApplyAttempt(quizID string, targetID uint, scorePercent int, newStatus model.TargetStatus, counterColumn string) error {
	if s.applyErr != nil {
		return s.applyErr
	}
	for _, a := range s.applies {
		if a.QuizID == quizID && a.TargetID == targetID {
			return repository.ErrAlreadyApplied
		}
	}
	s.applies = append(s.applies, appliedAttempt{
		QuizID:       quizID,
		TargetID:     targetID,
		ScorePercent: scorePercent,
		NewStatus:    newStatus,
		Counter:      counterColumn,
	})
	for _, t := range s.targets {
		if t.ID == targetID {
			t.Status = newStatus
			switch counterColumn {
			case "success_count":
				t.SuccessCount++
			case "medium_count":
				t.MediumCount++
			default:
				t.FailCount++
			}
		}
	}
	return nil
}

type completedCall struct {
	QuizID         string
	Score          int
	ElapsedSeconds int
	Answers        map[string][]string
}

type fakeQuizStore struct {
	quizzes   map[string]*model.Quiz
	created   []*model.Quiz
	completed []completedCall

	createErr   error
	completeErr error
}

func newFakeQuizStore(quizzes ...*model.Quiz) *fakeQuizStore {
	s := &fakeQuizStore{quizzes: make(map[string]*model.Quiz)}
	for _, q := range quizzes {
		s.quizzes[q.ID] = q
	}
	return s
}

func (s *fakeQuizStore) Create(quiz *model.Quiz) error {
	if s.createErr != nil {
		return s.createErr
	}
	if quiz.ID == "" {
		quiz.ID = fmt.Sprintf("quiz-%d", len(s.quizzes)+1)
	}
	s.quizzes[quiz.ID] = quiz
	s.created = append(s.created, quiz)
	return nil
}

func (s *fakeQuizStore) FindByID(id string) (*model.Quiz, error) {
	q, ok := s.quizzes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return q, nil
}

func (s *fakeQuizStore) ListByUser(userID uint, courseID *uint, page, limit int) ([]model.Quiz, int64, error) {
	var out []model.Quiz
	for _, q := range s.quizzes {
		if q.UserID != userID {
			continue
		}
		if courseID != nil && (q.CourseID == nil || *q.CourseID != *courseID) {
			continue
		}
		out = append(out, *q)
	}
	return out, int64(len(out)), nil
}

func (s *fakeQuizStore) MarkStarted(id string) error {
	q, ok := s.quizzes[id]
	if !ok || q.Status != model.QuizStatusNotStarted {
		return gorm.ErrRecordNotFound
	}
	q.Status = model.QuizStatusInProgress
	now := time.Now()
	q.StartedAt = &now
	return nil
}

func (s *fakeQuizStore) MarkCompleted(id string, score, elapsedSeconds int, answers map[string][]string) error {
	if s.completeErr != nil {
		return s.completeErr
	}
	q, ok := s.quizzes[id]
	if !ok || q.Status == model.QuizStatusCompleted {
		return gorm.ErrRecordNotFound
	}
	q.Status = model.QuizStatusCompleted
	q.Score = &score
	q.ElapsedTime = &elapsedSeconds
	q.SubmittedAnswers = answers
	now := time.Now()
	q.CompletedAt = &now
	s.completed = append(s.completed, completedCall{
		QuizID:         id,
		Score:          score,
		ElapsedSeconds: elapsedSeconds,
		Answers:        answers,
	})
	return nil
}

func (s *fakeQuizStore) MarkAbandoned(id string) error {
	q, ok := s.quizzes[id]
	if !ok || q.Status == model.QuizStatusCompleted {
		return gorm.ErrRecordNotFound
	}
	q.Status = model.QuizStatusAbandoned
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Quiz: config.QuizConfig{
			MasteryThreshold:     80,
			MediumThreshold:      50,
			MaxGenerateAttempts:  3,
			DifficultyTolerance:  1,
			MaxQuestionCount:     30,
			DefaultQuestionCount: 10,
		},
	}
}
