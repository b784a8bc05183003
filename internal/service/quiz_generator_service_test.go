package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"quiz_mentor_backend/internal/llm"
	"quiz_mentor_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newGenerator(mock *llm.MockProvider, quizzes *fakeQuizStore, targets *fakeTargetStore) *QuizGeneratorService {
	return NewQuizGeneratorService(mock, quizzes, targets, testConfig(), zap.NewNop())
}

// questionsPayload 构造能通过校验的模型应答
func questionsPayload(subTopic, difficulty string, count int) json.RawMessage {
	questions := make([]GeneratedQuestion, count)
	for i := range questions {
		questions[i] = GeneratedQuestion{
			Text: fmt.Sprintf("Question number %d about %s?", i+1, subTopic),
			Type: string(model.QuestionSingleChoice),
			Options: []GeneratedOption{
				{Text: "right", IsCorrect: true},
				{Text: "wrong", IsCorrect: false},
				{Text: "also wrong", IsCorrect: false},
			},
			SubTopic:    subTopic,
			Difficulty:  difficulty,
			Explanation: "because",
		}
	}
	data, _ := json.Marshal(map[string]any{"questions": questions})
	return data
}

func quickRequest(subTopic string, count int) QuizGenerationRequest {
	return QuizGenerationRequest{
		QuizType:          model.QuizTypeQuick,
		SelectedSubTopics: []string{subTopic},
		Preferences: model.QuizPreferences{
			QuestionCount: count,
			Difficulty:    model.DifficultyEasy,
		},
	}
}

func TestGenerate_QuickQuizSuccess(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: questionsPayload("Binary Trees", "easy", 2)})
	quizzes := newFakeQuizStore()
	svc := newGenerator(mock, quizzes, newFakeTargetStore())

	quiz, err := svc.Generate(context.Background(), 7, quickRequest("Binary Trees", 2))
	require.NoError(t, err)
	require.NotNil(t, quiz)

	assert.Equal(t, 1, mock.CallCount())
	require.Len(t, quizzes.created, 1, "通过校验才落库")
	assert.Equal(t, model.QuizTypeQuick, quiz.QuizType)
	assert.Equal(t, model.QuizStatusNotStarted, quiz.Status)
	assert.NotEmpty(t, quiz.ID)

	require.Len(t, quiz.Questions, 2)
	q := quiz.Questions[0]
	assert.Equal(t, "binary trees", q.NormalizedSubTopic)
	assert.Equal(t, 0, q.Order)
	require.Len(t, q.Options, 3)
	assert.Equal(t, "a", q.Options[0].ID, "选项id是字母序号")
	assert.Equal(t, "b", q.Options[1].ID)
	assert.True(t, q.Options[0].IsCorrect)
}

// 快速测验不携带个性化子类型，请求里带了也在落库前清掉
func TestGenerate_QuickQuizDropsPersonalizedType(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: questionsPayload("Binary Trees", "easy", 2)})
	quizzes := newFakeQuizStore()
	svc := newGenerator(mock, quizzes, newFakeTargetStore())

	req := quickRequest("Binary Trees", 2)
	pType := model.QuizComprehensive
	req.PersonalizedQuizType = &pType

	quiz, err := svc.Generate(context.Background(), 7, req)
	require.NoError(t, err)
	assert.Nil(t, quiz.PersonalizedQuizType)
	require.Len(t, quizzes.created, 1)
	assert.Nil(t, quizzes.created[0].PersonalizedQuizType)
}

func TestGenerate_SendsSchemaAndPlanPrompt(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: questionsPayload("Binary Trees", "easy", 2)})
	svc := newGenerator(mock, newFakeQuizStore(), newFakeTargetStore())

	_, err := svc.Generate(context.Background(), 7, quickRequest("Binary Trees", 2))
	require.NoError(t, err)

	require.Equal(t, 1, mock.CallCount())
	sent := mock.Calls[0]
	require.NotNil(t, sent.Schema)
	assert.Equal(t, "quiz_questions", sent.Schema.Name)
	assert.Contains(t, sent.Messages[0].Content, "Binary Trees")
	assert.Contains(t, sent.Messages[0].Content, "Generate exactly 2 quiz questions")
	assert.Greater(t, sent.MaxTokens, 0)
}

// 题数不对的输出触发重试；次数用尽后携带违规清单失败
func TestGenerate_CountMismatchExhaustsRetries(t *testing.T) {
	short := questionsPayload("Binary Trees", "easy", 1)
	mock := llm.NewMockProvider(
		llm.MockResponse{Content: short},
		llm.MockResponse{Content: short},
		llm.MockResponse{Content: short},
	)
	quizzes := newFakeQuizStore()
	svc := newGenerator(mock, quizzes, newFakeTargetStore())

	quiz, err := svc.Generate(context.Background(), 7, quickRequest("Binary Trees", 2))
	require.Error(t, err)
	assert.Nil(t, quiz)
	assert.Equal(t, 3, mock.CallCount(), "配置的尝试上限是3")
	assert.Empty(t, quizzes.created, "半成品绝不落库")

	var exhausted *GenerationExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	require.NotEmpty(t, exhausted.Violations)
	assert.Equal(t, CheckCountMismatch, exhausted.Violations[0].Check)
}

// 瞬时供应商错误计入重试，下一次成功则正常产出
func TestGenerate_TransientErrorThenSuccess(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockResponse{Err: &llm.ErrProviderUnavailable{}},
		llm.MockResponse{Content: questionsPayload("Binary Trees", "easy", 2)},
	)
	svc := newGenerator(mock, newFakeQuizStore(), newFakeTargetStore())

	quiz, err := svc.Generate(context.Background(), 7, quickRequest("Binary Trees", 2))
	require.NoError(t, err)
	assert.Len(t, quiz.Questions, 2)
	assert.Equal(t, 2, mock.CallCount())
}

// 鉴权/配额类永久错误立即上抛，不浪费剩余尝试
func TestGenerate_PermanentErrorFailsFast(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"auth failed", &llm.ErrAuthFailed{}},
		{"quota exceeded", &llm.ErrQuotaExceeded{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mock := llm.NewMockProvider(llm.MockResponse{Err: tc.err})
			quizzes := newFakeQuizStore()
			svc := newGenerator(mock, quizzes, newFakeTargetStore())

			_, err := svc.Generate(context.Background(), 7, quickRequest("Binary Trees", 2))
			require.Error(t, err)
			assert.Equal(t, 1, mock.CallCount())
			assert.Empty(t, quizzes.created)

			var exhausted *GenerationExhaustedError
			assert.False(t, errors.As(err, &exhausted), "永久失败不是重试耗尽")
		})
	}
}

// 非法JSON按瞬时错误重试
func TestGenerate_MalformedJSONRetried(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockResponse{Content: json.RawMessage(`not json at all`)},
		llm.MockResponse{Content: questionsPayload("Binary Trees", "easy", 2)},
	)
	svc := newGenerator(mock, newFakeQuizStore(), newFakeTargetStore())

	quiz, err := svc.Generate(context.Background(), 7, quickRequest("Binary Trees", 2))
	require.NoError(t, err)
	assert.Len(t, quiz.Questions, 2)
	assert.Equal(t, 2, mock.CallCount())
}

func TestGenerate_NoTopicsNoProviderCall(t *testing.T) {
	mock := llm.NewMockProvider()
	svc := newGenerator(mock, newFakeQuizStore(), newFakeTargetStore())

	// 快速测验没有选题
	req := quickRequest("", 2)
	req.SelectedSubTopics = nil
	_, err := svc.Generate(context.Background(), 7, req)
	assert.ErrorIs(t, err, ErrNoTopicsAvailable)

	// 弱项特训但没有任何弱项目标
	courseID := uint(3)
	pType := model.QuizWeakTopicFocused
	_, err = svc.Generate(context.Background(), 7, QuizGenerationRequest{
		QuizType:             model.QuizTypePersonalized,
		CourseID:             &courseID,
		PersonalizedQuizType: &pType,
		Preferences:          model.QuizPreferences{QuestionCount: 5},
	})
	assert.ErrorIs(t, err, ErrNoTopicsAvailable)

	assert.Equal(t, 0, mock.CallCount(), "没有主题时不触发模型调用")
}

func TestGenerate_PersonalizedUsesCourseTargets(t *testing.T) {
	targets := newFakeTargetStore(
		model.LearningTarget{CourseID: 3, UserID: 7, SubTopicName: "Graphs",
			NormalizedSubTopicName: "graphs", Status: model.TargetFailed},
		model.LearningTarget{CourseID: 3, UserID: 7, SubTopicName: "Arrays",
			NormalizedSubTopicName: "arrays", Status: model.TargetMastered},
	)
	mock := llm.NewMockProvider(llm.MockResponse{Content: questionsPayload("Graphs", "easy", 3)})
	svc := newGenerator(mock, newFakeQuizStore(), targets)

	courseID := uint(3)
	pType := model.QuizWeakTopicFocused
	quiz, err := svc.Generate(context.Background(), 7, QuizGenerationRequest{
		QuizType:             model.QuizTypePersonalized,
		CourseID:             &courseID,
		PersonalizedQuizType: &pType,
		Preferences:          model.QuizPreferences{QuestionCount: 3, Difficulty: model.DifficultyEasy},
	})
	require.NoError(t, err)
	assert.Equal(t, model.QuizTypePersonalized, quiz.QuizType)

	prompt := mock.Calls[0].Messages[0].Content
	assert.Contains(t, prompt, "Graphs", "弱项主题进入提示词")
	assert.NotContains(t, prompt, "Arrays", "已掌握主题不出现在弱项特训中")
}

func TestGenerate_TargetListErrorPropagates(t *testing.T) {
	targets := newFakeTargetStore()
	targets.listErr = errors.New("db gone")
	mock := llm.NewMockProvider()
	svc := newGenerator(mock, newFakeQuizStore(), targets)

	courseID := uint(3)
	pType := model.QuizComprehensive
	_, err := svc.Generate(context.Background(), 7, QuizGenerationRequest{
		QuizType:             model.QuizTypePersonalized,
		CourseID:             &courseID,
		PersonalizedQuizType: &pType,
		Preferences:          model.QuizPreferences{QuestionCount: 5},
	})
	require.Error(t, err)
	assert.Equal(t, 0, mock.CallCount())
}

func TestNormalizeRequest_Validation(t *testing.T) {
	svc := newGenerator(llm.NewMockProvider(), newFakeQuizStore(), newFakeTargetStore())
	courseID := uint(3)
	pType := model.QuizComprehensive

	cases := []struct {
		name string
		req  QuizGenerationRequest
	}{
		{"personalized without type", QuizGenerationRequest{
			QuizType: model.QuizTypePersonalized, CourseID: &courseID}},
		{"personalized without course", QuizGenerationRequest{
			QuizType: model.QuizTypePersonalized, PersonalizedQuizType: &pType}},
		{"question count over max", QuizGenerationRequest{
			QuizType:          model.QuizTypeQuick,
			SelectedSubTopics: []string{"Graphs"},
			Preferences:       model.QuizPreferences{QuestionCount: 31}}},
		{"unknown difficulty", QuizGenerationRequest{
			QuizType:          model.QuizTypeQuick,
			SelectedSubTopics: []string{"Graphs"},
			Preferences:       model.QuizPreferences{QuestionCount: 5, Difficulty: "brutal"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := tc.req
			require.Error(t, svc.normalizeRequest(&req))
		})
	}
}

func TestNormalizeRequest_Defaults(t *testing.T) {
	svc := newGenerator(llm.NewMockProvider(), newFakeQuizStore(), newFakeTargetStore())
	req := QuizGenerationRequest{
		QuizType:          model.QuizTypeQuick,
		SelectedSubTopics: []string{"Graphs"},
	}
	require.NoError(t, svc.normalizeRequest(&req))
	assert.Equal(t, 10, req.Preferences.QuestionCount, "未指定时用默认题数")
	assert.Equal(t, model.DifficultyMixed, req.Preferences.Difficulty, "未指定难度默认 mixed")
}
