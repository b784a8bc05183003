package service

import (
	"errors"
	"fmt"

	"quiz_mentor_backend/internal/config"
	"quiz_mentor_backend/internal/model"
	"quiz_mentor_backend/internal/repository"
	"quiz_mentor_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// MasteryThresholds 状态机阈值，满足 0 < Medium < Mastery <= 100
type MasteryThresholds struct {
	Mastery int
	Medium  int
}

// NextStatus 掌握度状态机的全部迁移逻辑。纯函数，对任意输入都有
// 确定结果；单次作答即可迁移，包括从 mastered 回退
func NextStatus(scorePercent int, t MasteryThresholds) model.TargetStatus {
	switch {
	case scorePercent >= t.Mastery:
		return model.TargetMastered
	case scorePercent >= t.Medium:
		return model.TargetMedium
	default:
		return model.TargetFailed
	}
}

// counterColumn 每种结果状态对应一个只增计数器
func counterColumn(status model.TargetStatus) string {
	switch status {
	case model.TargetMastered:
		return "success_count"
	case model.TargetMedium:
		return "medium_count"
	default:
		return "fail_count"
	}
}

type LearningTargetService struct {
	Repo TargetStore
	Cfg  *config.Config
	Log  *zap.Logger
}

func NewLearningTargetService(repo TargetStore, cfg *config.Config, log *zap.Logger) *LearningTargetService {
	return &LearningTargetService{Repo: repo, Cfg: cfg, Log: log}
}

// Thresholds 每次结算时读取，配置热更新后下一次结算即生效
func (s *LearningTargetService) Thresholds() MasteryThresholds {
	return MasteryThresholds{
		Mastery: s.Cfg.Quiz.MasteryThreshold,
		Medium:  s.Cfg.Quiz.MediumThreshold,
	}
}

// EnsureTargets 文档主题检测后的懒建：已存在的行原样返回，
// 新行以 pending、零计数器建档，firstEncountered 只在建行时写入
func (s *LearningTargetService) EnsureTargets(courseID, userID uint, topics []DetectedTopic) ([]model.LearningTarget, error) {
	targets := make([]model.LearningTarget, 0, len(topics))
	for _, topic := range topics {
		target, err := s.Repo.FindOrCreate(courseID, userID, topic.SubTopic, topic.NormalizedSubTopic)
		if err != nil {
			return targets, fmt.Errorf("建档子主题 %q: %w", topic.SubTopic, err)
		}
		targets = append(targets, *target)
	}
	return targets, nil
}

// SettleQuiz 个性化测验完成后按主题结算掌握度。快速测验在这里短路，
// 绝不触碰目标行。对每个 (quizId, target) 幂等：重复结算被唯一索引
// 挡下后跳过，计数器不会二次累加
func (s *LearningTargetService) SettleQuiz(quiz *model.Quiz, performance []TopicPerformance) error {
	if quiz.QuizType != model.QuizTypePersonalized || quiz.CourseID == nil {
		return nil
	}
	thresholds := s.Thresholds()
	for _, tp := range performance {
		target, err := s.Repo.FindOrCreate(*quiz.CourseID, quiz.UserID, tp.SubTopic, tp.NormalizedSubTopic)
		if err != nil {
			return fmt.Errorf("读取学习目标 %q: %w", tp.SubTopic, err)
		}
		next := NextStatus(tp.ScorePercent, thresholds)
		err = s.Repo.ApplyAttempt(quiz.ID, target.ID, tp.ScorePercent, next, counterColumn(next))
		if errors.Is(err, repository.ErrAlreadyApplied) {
			s.Log.Debug("该测验已对此目标结算过，跳过",
				zap.String("quizId", quiz.ID), zap.Uint("targetId", target.ID))
			continue
		}
		if err != nil {
			return fmt.Errorf("结算学习目标 %q: %w", tp.SubTopic, err)
		}
		monitoring.TargetTransitions.WithLabelValues(string(target.Status), string(next)).Inc()
		s.Log.Info("掌握度状态更新",
			zap.String("quizId", quiz.ID),
			zap.String("subTopic", tp.NormalizedSubTopic),
			zap.String("from", string(target.Status)),
			zap.String("to", string(next)),
			zap.Int("scorePercent", tp.ScorePercent))
	}
	return nil
}

// ListByCourse 按状态过滤列出用户在某课程下的学习目标
func (s *LearningTargetService) ListByCourse(courseID, userID uint, statuses []model.TargetStatus) ([]model.LearningTarget, error) {
	return s.Repo.ListByCourseUser(courseID, userID, statuses)
}

// TargetStats 各状态的目标数，前端据此决定可用的出题模式
type TargetStats struct {
	Pending  int64 `json:"pending"`
	Failed   int64 `json:"failed"`
	Medium   int64 `json:"medium"`
	Mastered int64 `json:"mastered"`
	Total    int64 `json:"total"`
}

func (s *LearningTargetService) Stats(courseID, userID uint) (*TargetStats, error) {
	counts, err := s.Repo.CountByStatus(courseID, userID)
	if err != nil {
		return nil, err
	}
	stats := &TargetStats{
		Pending:  counts[model.TargetPending],
		Failed:   counts[model.TargetFailed],
		Medium:   counts[model.TargetMedium],
		Mastered: counts[model.TargetMastered],
	}
	stats.Total = stats.Pending + stats.Failed + stats.Medium + stats.Mastered
	return stats, nil
}
