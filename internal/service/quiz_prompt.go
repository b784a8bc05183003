package service

import (
	"fmt"
	"strings"

	"quiz_mentor_backend/internal/model"
)

// TopicAllocation 单个子主题的出题配额，提示词与校验共用同一份计划
type TopicAllocation struct {
	SubTopic           string             `json:"subTopic"`
	NormalizedSubTopic string             `json:"normalizedSubTopic"`
	Status             model.TargetStatus `json:"status"`
	QuestionCount      int                `json:"questionCount"`
}

// difficultyOrder mixed难度展开与提示词渲染的固定顺序
var difficultyOrder = []model.Difficulty{model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard}

// ResolveTopicPlan 把当前掌握度状态解析成出题计划。纯函数，不做I/O。
//
// 过滤规则：
//   - quick：selected 即主题集合，已有目标行的带出其状态，没有的视作 pending；
//   - weakTopicFocused：status ∈ {failed, medium}；
//   - newTopicFocused：status = pending；
//   - comprehensive：全部；selected 非空时先按其收窄候选池。
//
// comprehensive 且 prioritizeWeak 时，60% 的题量分给 {failed, medium}
// 主题（向上取整，平分时偏向弱项桶），其余给剩下的主题。
// 主题数多于题数时，排序靠后的主题配额为 0，校验阶段对其豁免覆盖检查。
func ResolveTopicPlan(
	targets []model.LearningTarget,
	quizType model.QuizType,
	personalizedType model.PersonalizedQuizType,
	selected []string,
	questionCount int,
	prioritizeWeak bool,
) []TopicAllocation {
	byKey := make(map[string]*model.LearningTarget, len(targets))
	for i := range targets {
		byKey[targets[i].NormalizedSubTopicName] = &targets[i]
	}

	var pool []TopicAllocation
	if quizType == model.QuizTypeQuick {
		// 快速测验完全由用户选题驱动，不依赖已有目标行
		seen := make(map[string]bool, len(selected))
		for _, raw := range selected {
			key := NormalizeSubTopic(raw)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			entry := TopicAllocation{SubTopic: strings.TrimSpace(raw), NormalizedSubTopic: key, Status: model.TargetPending}
			if t, ok := byKey[key]; ok {
				entry.SubTopic = t.SubTopicName
				entry.Status = t.Status
			}
			pool = append(pool, entry)
		}
	} else {
		restrict := make(map[string]bool, len(selected))
		for _, raw := range selected {
			if key := NormalizeSubTopic(raw); key != "" {
				restrict[key] = true
			}
		}
		for _, t := range targets {
			if len(restrict) > 0 && !restrict[t.NormalizedSubTopicName] {
				continue
			}
			if !topicEligible(t.Status, personalizedType) {
				continue
			}
			pool = append(pool, TopicAllocation{
				SubTopic:           t.SubTopicName,
				NormalizedSubTopic: t.NormalizedSubTopicName,
				Status:             t.Status,
			})
		}
	}
	if len(pool) == 0 {
		return nil
	}

	if quizType == model.QuizTypePersonalized && personalizedType == model.QuizComprehensive && prioritizeWeak {
		allocateWeighted(pool, questionCount)
	} else {
		allocateEven(pool, questionCount)
	}
	return pool
}

func topicEligible(status model.TargetStatus, personalizedType model.PersonalizedQuizType) bool {
	switch personalizedType {
	case model.QuizWeakTopicFocused:
		return status == model.TargetFailed || status == model.TargetMedium
	case model.QuizNewTopicFocused:
		return status == model.TargetPending
	default:
		return true
	}
}

// allocateEven n题平均分给k个主题，余数从前往后各+1
func allocateEven(pool []TopicAllocation, n int) {
	if len(pool) == 0 {
		return
	}
	base := n / len(pool)
	rem := n % len(pool)
	for i := range pool {
		pool[i].QuestionCount = base
		if i < rem {
			pool[i].QuestionCount++
		}
	}
}

// allocateWeighted 60/40分配：弱项桶（failed/medium）拿 ceil(0.6n)，
// 其余给非弱项桶；某一桶为空时全部题量归另一桶
func allocateWeighted(pool []TopicAllocation, n int) {
	var weak, rest []int // pool下标
	for i := range pool {
		if pool[i].Status == model.TargetFailed || pool[i].Status == model.TargetMedium {
			weak = append(weak, i)
		} else {
			rest = append(rest, i)
		}
	}
	if len(weak) == 0 || len(rest) == 0 {
		allocateEven(pool, n)
		return
	}
	weakShare := (n*6 + 9) / 10 // ceil(0.6n)
	if weakShare > n {
		weakShare = n
	}
	distribute(pool, weak, weakShare)
	distribute(pool, rest, n-weakShare)
}

func distribute(pool []TopicAllocation, indexes []int, n int) {
	if len(indexes) == 0 {
		return
	}
	base := n / len(indexes)
	rem := n % len(indexes)
	for i, idx := range indexes {
		pool[idx].QuestionCount = base
		if i < rem {
			pool[idx].QuestionCount++
		}
	}
}

// ExpandDifficultyMix 把请求难度展开为各档的精确题数，给校验器一个可检的目标。
// mixed按三等分展开，余数依次补给 easy、medium、hard
func ExpandDifficultyMix(difficulty model.Difficulty, n int) map[model.Difficulty]int {
	if difficulty != model.DifficultyMixed {
		return map[model.Difficulty]int{difficulty: n}
	}
	mix := make(map[model.Difficulty]int, 3)
	base := n / 3
	rem := n % 3
	for i, d := range difficultyOrder {
		mix[d] = base
		if i < rem {
			mix[d]++
		}
	}
	return mix
}

const quizGenerationSystem = "You are an experienced exam author for an online learning platform. " +
	"Write clear, unambiguous quiz questions strictly about the requested sub-topics. Every question " +
	"must have plausible distractors, exactly the requested number of correct options for its type, " +
	"and a short explanation of the correct answer. Never repeat a question."

// BuildQuizPrompt 把出题计划渲染成提示词。纯函数；mix 按固定难度顺序
// 渲染，保证同一计划生成的提示词逐字节一致（重试复用同一份计划）
func BuildQuizPrompt(plan []TopicAllocation, mix map[model.Difficulty]int, questionCount int, styleHints string) (system, user string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate exactly %d quiz questions.\n\nSub-topics and question allocation:\n", questionCount)
	for _, t := range plan {
		if t.QuestionCount == 0 {
			continue
		}
		fmt.Fprintf(&b, "- %q: %d question(s) (learner status: %s)\n", t.SubTopic, t.QuestionCount, t.Status)
	}

	b.WriteString("\nDifficulty distribution (exact counts):\n")
	for _, d := range difficultyOrder {
		if count, ok := mix[d]; ok && count > 0 {
			fmt.Fprintf(&b, "- %s: %d\n", d, count)
		}
	}

	b.WriteString("\nQuestion types allowed: single_choice, multiple_choice, true_false.\n")
	b.WriteString("Rules:\n")
	b.WriteString("- single_choice and true_false questions have exactly one correct option;\n")
	b.WriteString("- multiple_choice questions have at least one correct option;\n")
	b.WriteString("- true_false questions have exactly the two options \"True\" and \"False\";\n")
	b.WriteString("- set each question's subTopic to one of the sub-topic names listed above, verbatim;\n")
	b.WriteString("- cover every listed sub-topic at least once.\n")
	if styleHints != "" {
		b.WriteString("\nStyle hints: " + styleHints + "\n")
	}
	return quizGenerationSystem, b.String()
}
