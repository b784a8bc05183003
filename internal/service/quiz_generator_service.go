package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"quiz_mentor_backend/internal/config"
	"quiz_mentor_backend/internal/llm"
	"quiz_mentor_backend/internal/model"
	"quiz_mentor_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// ErrNoTopicsAvailable 解析后的主题集合为空。用户侧可恢复：
// 先上传资料或手动选题，不触发任何模型调用
var ErrNoTopicsAvailable = errors.New("没有可用的子主题，请先上传课程资料或手动选择主题")

// GenerationExhaustedError 重试次数用尽。携带最后一次的失败原因与
// 违规清单，调用方可展示"未能生成合格测验"的诊断详情
type GenerationExhaustedError struct {
	Attempts   int
	LastErr    error
	Violations ValidationErrors
}

func (e *GenerationExhaustedError) Error() string {
	return fmt.Sprintf("quiz generation exhausted after %d attempt(s): %v", e.Attempts, e.LastErr)
}

func (e *GenerationExhaustedError) Unwrap() error { return e.LastErr }

// QuizGenerationRequest 测验生成入参，本服务对外的唯一结构化接口
type QuizGenerationRequest struct {
	QuizType             model.QuizType              `json:"quizType" binding:"required,oneof=quick personalized"`
	CourseID             *uint                       `json:"courseId"`
	PersonalizedQuizType *model.PersonalizedQuizType `json:"personalizedQuizType"`
	SelectedSubTopics    []string                    `json:"selectedSubTopics"`
	Preferences          model.QuizPreferences       `json:"preferences"`
	StyleHints           string                      `json:"styleHints"`
}

type QuizGeneratorService struct {
	Provider   llm.Provider
	QuizRepo   QuizStore
	TargetRepo TargetStore
	Cfg        *config.Config
	Log        *zap.Logger
}

func NewQuizGeneratorService(
	provider llm.Provider,
	quizRepo QuizStore,
	targetRepo TargetStore,
	cfg *config.Config,
	log *zap.Logger,
) *QuizGeneratorService {
	return &QuizGeneratorService{
		Provider:   provider,
		QuizRepo:   quizRepo,
		TargetRepo: targetRepo,
		Cfg:        cfg,
		Log:        log,
	}
}

var quizResponseSchema = &llm.Schema{
	Name:        "quiz_questions",
	Description: "Generated quiz questions",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"text": map[string]any{"type": "string"},
						"type": map[string]any{
							"type": "string",
							"enum": []string{"single_choice", "multiple_choice", "true_false"},
						},
						"options": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"text":      map[string]any{"type": "string"},
									"isCorrect": map[string]any{"type": "boolean"},
								},
								"required":             []string{"text", "isCorrect"},
								"additionalProperties": false,
							},
						},
						"subTopic": map[string]any{"type": "string"},
						"difficulty": map[string]any{
							"type": "string",
							"enum": []string{"easy", "medium", "hard"},
						},
						"explanation": map[string]any{"type": "string"},
					},
					"required":             []string{"text", "type", "options", "subTopic", "difficulty", "explanation"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"questions"},
		"additionalProperties": false,
	},
}

// Generate 生成一份测验：
//  1. 按掌握度状态解析出题计划，空计划直接失败，不调用模型；
//  2. 同一份计划下循环 生成→解析→校验，上限来自配置；
//  3. 永久性失败（鉴权/配额）立即上抛，可重试失败与校验不通过计入重试；
//  4. 通过校验才落库，半成品绝不持久化。
func (s *QuizGeneratorService) Generate(ctx context.Context, userID uint, req QuizGenerationRequest) (*model.Quiz, error) {
	start := time.Now()
	defer func() {
		monitoring.GenerationDuration.Observe(time.Since(start).Seconds())
	}()

	if err := s.normalizeRequest(&req); err != nil {
		return nil, err
	}

	var targets []model.LearningTarget
	if req.CourseID != nil {
		var err error
		targets, err = s.TargetRepo.ListByCourseUser(*req.CourseID, userID, nil)
		if err != nil {
			return nil, fmt.Errorf("读取掌握度状态: %w", err)
		}
	}

	var personalizedType model.PersonalizedQuizType
	if req.PersonalizedQuizType != nil {
		personalizedType = *req.PersonalizedQuizType
	}
	plan := ResolveTopicPlan(
		targets,
		req.QuizType,
		personalizedType,
		req.SelectedSubTopics,
		req.Preferences.QuestionCount,
		req.Preferences.PrioritizeWeakAndMediumTopics,
	)
	if len(plan) == 0 {
		return nil, ErrNoTopicsAvailable
	}

	mix := ExpandDifficultyMix(req.Preferences.Difficulty, req.Preferences.QuestionCount)
	system, prompt := BuildQuizPrompt(plan, mix, req.Preferences.QuestionCount, req.StyleHints)
	validator := NewQuizValidator(s.Cfg.Quiz.DifficultyTolerance)

	maxAttempts := s.Cfg.Quiz.MaxGenerateAttempts
	var lastErr error
	var lastViolations ValidationErrors

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		questions, err := s.generateOnce(ctx, system, prompt, req.Preferences.QuestionCount)
		if err != nil {
			if !llm.IsRetryable(err) {
				// 鉴权/配额/取消这类永久失败重试也无济于事
				monitoring.GenerationAttempts.WithLabelValues("provider_error").Inc()
				return nil, err
			}
			monitoring.GenerationAttempts.WithLabelValues("provider_error").Inc()
			s.Log.Warn("测验生成调用失败，准备重试",
				zap.Int("attempt", attempt), zap.Error(err))
			lastErr = err
			continue
		}

		// 重试始终复用同一份计划，失败不是计划的问题而是输出的问题
		if violations := validator.Validate(questions, req.Preferences.QuestionCount, mix, plan); len(violations) > 0 {
			monitoring.GenerationAttempts.WithLabelValues("validation_failed").Inc()
			for _, v := range violations {
				monitoring.ValidationFailures.WithLabelValues(v.Check).Inc()
			}
			s.Log.Warn("模型输出未通过校验",
				zap.Int("attempt", attempt),
				zap.Int("violations", len(violations)),
				zap.String("first", violations[0].Error()))
			lastErr = violations
			lastViolations = violations
			continue
		}

		quiz := s.assembleQuiz(userID, req, questions)
		if err := s.QuizRepo.Create(quiz); err != nil {
			return nil, fmt.Errorf("保存测验: %w", err)
		}
		monitoring.GenerationAttempts.WithLabelValues("success").Inc()
		s.Log.Info("测验生成成功",
			zap.String("quizId", quiz.ID),
			zap.Int("attempt", attempt),
			zap.Int("questions", len(quiz.Questions)))
		return quiz, nil
	}

	return nil, &GenerationExhaustedError{
		Attempts:   maxAttempts,
		LastErr:    lastErr,
		Violations: lastViolations,
	}
}

// normalizeRequest 填默认值并做入参合法性检查
func (s *QuizGeneratorService) normalizeRequest(req *QuizGenerationRequest) error {
	if req.QuizType == model.QuizTypePersonalized {
		if req.PersonalizedQuizType == nil {
			return errors.New("personalized quiz requires personalizedQuizType")
		}
		if req.CourseID == nil {
			return errors.New("personalized quiz requires courseId")
		}
	}
	if req.QuizType == model.QuizTypeQuick {
		// 快速测验不携带个性化子类型，落库前清掉
		req.PersonalizedQuizType = nil
		if len(req.SelectedSubTopics) == 0 {
			return ErrNoTopicsAvailable
		}
	}
	if req.Preferences.QuestionCount <= 0 {
		req.Preferences.QuestionCount = s.Cfg.Quiz.DefaultQuestionCount
	}
	if req.Preferences.QuestionCount > s.Cfg.Quiz.MaxQuestionCount {
		return fmt.Errorf("questionCount exceeds maximum of %d", s.Cfg.Quiz.MaxQuestionCount)
	}
	switch req.Preferences.Difficulty {
	case model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard, model.DifficultyMixed:
	case "":
		req.Preferences.Difficulty = model.DifficultyMixed
	default:
		return fmt.Errorf("unknown difficulty %q", req.Preferences.Difficulty)
	}
	return nil
}

func (s *QuizGeneratorService) generateOnce(ctx context.Context, system, prompt string, questionCount int) ([]GeneratedQuestion, error) {
	resp, err := s.Provider.Generate(ctx, llm.Request{
		System:      system,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Schema:      quizResponseSchema,
		MaxTokens:   512 + 320*questionCount,
		Temperature: 0.7,
	})
	if err != nil {
		return nil, err
	}
	var payload struct {
		Questions []GeneratedQuestion `json:"questions"`
	}
	if err := json.Unmarshal(resp.Content, &payload); err != nil {
		return nil, &llm.ErrInvalidResponse{Content: resp.Content, Err: err}
	}
	return payload.Questions, nil
}

// assembleQuiz 校验通过的载荷映射为持久化模型；选项id用字母序号，
// 判分只比对id集合
func (s *QuizGeneratorService) assembleQuiz(userID uint, req QuizGenerationRequest, questions []GeneratedQuestion) *model.Quiz {
	quiz := &model.Quiz{
		UUIDBase:             model.UUIDBase{ID: model.GenerateUUID()},
		UserID:               userID,
		CourseID:             req.CourseID,
		QuizType:             req.QuizType,
		PersonalizedQuizType: req.PersonalizedQuizType,
		SelectedSubTopics:    req.SelectedSubTopics,
		Preferences:          req.Preferences,
		Status:               model.QuizStatusNotStarted,
	}
	for i, q := range questions {
		options := make([]model.QuizOption, len(q.Options))
		for j, opt := range q.Options {
			options[j] = model.QuizOption{
				ID:        fmt.Sprintf("%c", 'a'+j),
				Text:      opt.Text,
				IsCorrect: opt.IsCorrect,
			}
		}
		quiz.Questions = append(quiz.Questions, model.QuizQuestion{
			QuizID:             quiz.ID,
			Text:               q.Text,
			Type:               model.QuestionType(q.Type),
			Options:            options,
			SubTopic:           q.SubTopic,
			NormalizedSubTopic: NormalizeSubTopic(q.SubTopic),
			Difficulty:         model.Difficulty(q.Difficulty),
			Explanation:        q.Explanation,
			Order:              i,
		})
	}
	return quiz
}
