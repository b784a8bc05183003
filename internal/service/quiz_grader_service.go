package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"quiz_mentor_backend/internal/model"
	"quiz_mentor_backend/internal/util"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrQuizNotFound         = errors.New("quiz not found")
	ErrQuizAlreadyCompleted = errors.New("quiz already completed")
	ErrUnknownQuestion      = errors.New("answer references unknown question")
)

const analysisCacheTTL = 24 * time.Hour

// TopicPerformance 按归一化子主题聚合的作答表现，结算的输入
type TopicPerformance struct {
	SubTopic           string `json:"subTopic"`
	NormalizedSubTopic string `json:"normalizedSubTopic"`
	Total              int    `json:"total"`
	Correct            int    `json:"correct"`
	ScorePercent       int    `json:"scorePercent"`
}

// DifficultyPerformance 按难度聚合的作答表现
type DifficultyPerformance struct {
	Difficulty   model.Difficulty `json:"difficulty"`
	Total        int              `json:"total"`
	Correct      int              `json:"correct"`
	ScorePercent int              `json:"scorePercent"`
}

// QuestionResult 单题判分明细，复盘界面用
type QuestionResult struct {
	QuestionID      string   `json:"questionId"`
	Correct         bool     `json:"correct"`
	SelectedOptions []string `json:"selectedOptions"`
	CorrectOptions  []string `json:"correctOptions"`
	Explanation     string   `json:"explanation"`
}

// GradingResult 一次判分的完整输出
type GradingResult struct {
	QuizID                string                  `json:"quizId"`
	Score                 int                     `json:"score"`
	CorrectCount          int                     `json:"correctCount"`
	TotalQuestions        int                     `json:"totalQuestions"`
	TopicPerformance      []TopicPerformance      `json:"topicPerformance"`
	DifficultyPerformance []DifficultyPerformance `json:"difficultyPerformance"`
	QuestionResults       []QuestionResult        `json:"questionResults"`
	GradedAt              time.Time               `json:"gradedAt"`
}

type QuizGraderService struct {
	QuizRepo QuizStore
	Targets  *LearningTargetService
	Redis    *redis.Client
	Log      *zap.Logger
}

func NewQuizGraderService(quizRepo QuizStore, targets *LearningTargetService, rdb *redis.Client, log *zap.Logger) *QuizGraderService {
	return &QuizGraderService{QuizRepo: quizRepo, Targets: targets, Redis: rdb, Log: log}
}

// Grade 判分并完成测验。答案先整体校验（引用不存在题目的提交直接
// 拒绝），任何状态变更之前不会部分更新掌握度。个性化测验在落分后
// 结算学习目标；结算本身幂等，失败后可安全重试
func (s *QuizGraderService) Grade(ctx context.Context, userID uint, quizID string, answers map[string][]string, elapsedSeconds int) (*GradingResult, error) {
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
	if quiz.Status == model.QuizStatusCompleted {
		// 上次提交可能在落分之后、结算之前失败。结算按 (quizId, target)
		// 幂等，这里基于落库答案补结算一次，已结算过的目标不会重复计数
		if quiz.QuizType == model.QuizTypePersonalized {
			recomputed := gradeQuestions(quiz, quiz.SubmittedAnswers)
			if err := s.Targets.SettleQuiz(quiz, recomputed.TopicPerformance); err != nil {
				return nil, fmt.Errorf("测验已完成但掌握度结算失败: %w", err)
			}
		}
		return nil, ErrQuizAlreadyCompleted
	}

	// 先整卷校验答案，再进入任何写路径
	known := make(map[string]bool, len(quiz.Questions))
	for _, q := range quiz.Questions {
		known[q.ID] = true
	}
	for questionID := range answers {
		if !known[questionID] {
			return nil, fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
		}
	}

	result := gradeQuestions(quiz, answers)

	if err := s.QuizRepo.MarkCompleted(quiz.ID, result.Score, elapsedSeconds, answers); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 并发提交：另一请求已完成该测验
			return nil, ErrQuizAlreadyCompleted
		}
		return nil, err
	}

	// 只有已完成的个性化测验才驱动状态机；结算按 (quizId, target)
	// 幂等，这里失败后重新结算不会重复计数
	if err := s.Targets.SettleQuiz(quiz, result.TopicPerformance); err != nil {
		return nil, fmt.Errorf("测验已完成但掌握度结算失败: %w", err)
	}

	s.cacheAnalysis(ctx, result)
	return result, nil
}

// gradeQuestions 单次遍历完成判分与两个维度的聚合，O(n)。
// 多选不给部分分：选中集合与正确集合完全相等才算对
func gradeQuestions(quiz *model.Quiz, answers map[string][]string) *GradingResult {
	result := &GradingResult{
		QuizID:         quiz.ID,
		TotalQuestions: len(quiz.Questions),
		GradedAt:       time.Now(),
	}

	topicIndex := make(map[string]int)
	diffIndex := make(map[model.Difficulty]int)

	for i := range quiz.Questions {
		q := &quiz.Questions[i]
		correctIDs := q.CorrectOptionIDs()
		selected := answers[q.ID]
		correct := sameIDSet(selected, correctIDs)
		if correct {
			result.CorrectCount++
		}

		result.QuestionResults = append(result.QuestionResults, QuestionResult{
			QuestionID:      q.ID,
			Correct:         correct,
			SelectedOptions: selected,
			CorrectOptions:  correctIDs,
			Explanation:     q.Explanation,
		})

		ti, ok := topicIndex[q.NormalizedSubTopic]
		if !ok {
			ti = len(result.TopicPerformance)
			topicIndex[q.NormalizedSubTopic] = ti
			result.TopicPerformance = append(result.TopicPerformance, TopicPerformance{
				SubTopic:           q.SubTopic,
				NormalizedSubTopic: q.NormalizedSubTopic,
			})
		}
		result.TopicPerformance[ti].Total++
		if correct {
			result.TopicPerformance[ti].Correct++
		}

		di, ok := diffIndex[q.Difficulty]
		if !ok {
			di = len(result.DifficultyPerformance)
			diffIndex[q.Difficulty] = di
			result.DifficultyPerformance = append(result.DifficultyPerformance, DifficultyPerformance{
				Difficulty: q.Difficulty,
			})
		}
		result.DifficultyPerformance[di].Total++
		if correct {
			result.DifficultyPerformance[di].Correct++
		}
	}

	result.Score = roundedPercent(result.CorrectCount, result.TotalQuestions)
	for i := range result.TopicPerformance {
		tp := &result.TopicPerformance[i]
		tp.ScorePercent = roundedPercent(tp.Correct, tp.Total)
	}
	for i := range result.DifficultyPerformance {
		dp := &result.DifficultyPerformance[i]
		dp.ScorePercent = roundedPercent(dp.Correct, dp.Total)
	}
	return result
}

func roundedPercent(correct, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}

// sameIDSet 集合相等比较，忽略顺序与重复
func sameIDSet(a, b []string) bool {
	setA := make(map[string]bool, len(a))
	for _, id := range a {
		setA[id] = true
	}
	setB := make(map[string]bool, len(b))
	for _, id := range b {
		setB[id] = true
	}
	if len(setA) != len(setB) {
		return false
	}
	for id := range setA {
		if !setB[id] {
			return false
		}
	}
	return true
}

func analysisCacheKey(quizID string) string {
	return "quiz:analysis:" + quizID
}

// cacheAnalysis 缓存失败只记日志，判分结果已经落库
func (s *QuizGraderService) cacheAnalysis(ctx context.Context, result *GradingResult) {
	if s.Redis == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.Redis.Set(ctx, analysisCacheKey(result.QuizID), data, analysisCacheTTL).Err(); err != nil {
		s.Log.Warn("写入测验分析缓存失败", zap.String("quizId", result.QuizID), zap.Error(err))
	}
}

// GetAnalysis 读取测验分析。缓存未命中时基于落库的提交答案重算，
// 已完成测验不可变，重算结果与首次判分一致。
// 归属校验先于缓存读取：缓存命中不能绕过权限检查
func (s *QuizGraderService) GetAnalysis(ctx context.Context, userID uint, quizID string) (*GradingResult, error) {
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
	if quiz.Status != model.QuizStatusCompleted {
		return nil, errors.New("quiz not completed yet")
	}

	if s.Redis != nil {
		if data, err := s.Redis.Get(ctx, analysisCacheKey(quizID)).Bytes(); err == nil {
			var cached GradingResult
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	result := gradeQuestions(quiz, quiz.SubmittedAnswers)
	s.cacheAnalysis(ctx, result)
	return result, nil
}
