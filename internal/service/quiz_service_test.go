package service

import (
	"testing"

	"quiz_mentor_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeForLearner_StripsAnswersBeforeCompletion(t *testing.T) {
	quiz := gradableQuiz(model.QuizTypeQuick)
	sanitized := SanitizeForLearner(quiz)

	require.Len(t, sanitized.Questions, len(quiz.Questions))
	for _, q := range sanitized.Questions {
		assert.Empty(t, q.Explanation)
		for _, opt := range q.Options {
			assert.False(t, opt.IsCorrect)
			assert.NotEmpty(t, opt.Text)
		}
	}

	// 原测验不受影响，判分仍能拿到正确答案
	assert.NotEmpty(t, quiz.Questions[0].CorrectOptionIDs())
	assert.NotEmpty(t, quiz.Questions[0].Explanation)
}

func TestSanitizeForLearner_CompletedQuizKeepsAnswers(t *testing.T) {
	quiz := gradableQuiz(model.QuizTypeQuick)
	quiz.Status = model.QuizStatusCompleted

	sanitized := SanitizeForLearner(quiz)
	assert.True(t, sanitized.Questions[0].Options[0].IsCorrect, "完成后可以复盘正确答案")
	assert.NotEmpty(t, sanitized.Questions[0].Explanation)
}

func TestQuizService_StartAndAbandon(t *testing.T) {
	quiz := gradableQuiz(model.QuizTypeQuick)
	quiz.Status = model.QuizStatusNotStarted
	store := newFakeQuizStore(quiz)
	svc := NewQuizService(store)

	started, err := svc.Start(7, "quiz-1")
	require.NoError(t, err)
	assert.Equal(t, model.QuizStatusInProgress, started.Status)

	require.NoError(t, svc.Abandon(7, "quiz-1"))
	assert.Equal(t, model.QuizStatusAbandoned, quiz.Status)
}

func TestQuizService_AbandonCompletedFails(t *testing.T) {
	quiz := gradableQuiz(model.QuizTypeQuick)
	quiz.Status = model.QuizStatusCompleted
	svc := NewQuizService(newFakeQuizStore(quiz))

	assert.ErrorIs(t, svc.Abandon(7, "quiz-1"), ErrQuizAlreadyCompleted)
}
