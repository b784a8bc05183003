package service

import (
	"strings"
	"testing"

	"quiz_mentor_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func target(name string, status model.TargetStatus) model.LearningTarget {
	return model.LearningTarget{
		SubTopicName:           name,
		NormalizedSubTopicName: NormalizeSubTopic(name),
		Status:                 status,
	}
}

func planCounts(plan []TopicAllocation) map[string]int {
	out := make(map[string]int, len(plan))
	for _, p := range plan {
		out[p.NormalizedSubTopic] = p.QuestionCount
	}
	return out
}

func planTotal(plan []TopicAllocation) int {
	total := 0
	for _, p := range plan {
		total += p.QuestionCount
	}
	return total
}

func TestResolveTopicPlan_QuickUsesSelectedTopics(t *testing.T) {
	targets := []model.LearningTarget{
		target("Binary Trees", model.TargetMedium),
	}
	plan := ResolveTopicPlan(targets, model.QuizTypeQuick, "", []string{"Binary Trees", "Sorting", "binary-trees"}, 4, false)

	require.Len(t, plan, 2, "归一化后重复的选题只保留一个")
	assert.Equal(t, "binary trees", plan[0].NormalizedSubTopic)
	assert.Equal(t, model.TargetMedium, plan[0].Status, "有目标行的带出其状态")
	assert.Equal(t, model.TargetPending, plan[1].Status, "没有目标行的视作 pending")
	assert.Equal(t, 4, planTotal(plan))
}

func TestResolveTopicPlan_WeakTopicFocused(t *testing.T) {
	targets := []model.LearningTarget{
		target("Graphs", model.TargetFailed),
		target("Sorting", model.TargetMedium),
		target("Recursion", model.TargetPending),
		target("Arrays", model.TargetMastered),
	}
	weak := model.QuizWeakTopicFocused
	plan := ResolveTopicPlan(targets, model.QuizTypePersonalized, weak, nil, 6, false)

	require.Len(t, plan, 2)
	for _, p := range plan {
		assert.Contains(t, []model.TargetStatus{model.TargetFailed, model.TargetMedium}, p.Status)
	}
	assert.Equal(t, 6, planTotal(plan))
}

func TestResolveTopicPlan_NewTopicFocused(t *testing.T) {
	targets := []model.LearningTarget{
		target("Graphs", model.TargetFailed),
		target("Recursion", model.TargetPending),
		target("Pointers", model.TargetPending),
	}
	plan := ResolveTopicPlan(targets, model.QuizTypePersonalized, model.QuizNewTopicFocused, nil, 4, false)

	require.Len(t, plan, 2)
	for _, p := range plan {
		assert.Equal(t, model.TargetPending, p.Status)
	}
}

func TestResolveTopicPlan_SelectedRestrictsPersonalizedPool(t *testing.T) {
	targets := []model.LearningTarget{
		target("Graphs", model.TargetFailed),
		target("Sorting", model.TargetMedium),
		target("Recursion", model.TargetPending),
	}
	plan := ResolveTopicPlan(targets, model.QuizTypePersonalized, model.QuizComprehensive, []string{"Graphs"}, 5, false)

	require.Len(t, plan, 1)
	assert.Equal(t, "graphs", plan[0].NormalizedSubTopic)
	assert.Equal(t, 5, plan[0].QuestionCount)
}

func TestResolveTopicPlan_NoEligibleTopics(t *testing.T) {
	targets := []model.LearningTarget{
		target("Arrays", model.TargetMastered),
	}
	plan := ResolveTopicPlan(targets, model.QuizTypePersonalized, model.QuizWeakTopicFocused, nil, 5, false)
	assert.Empty(t, plan)

	plan = ResolveTopicPlan(nil, model.QuizTypeQuick, "", nil, 5, false)
	assert.Empty(t, plan)
}

// 10题、2个弱项主题+2个新主题、优先弱项 → 弱项桶6题、其余4题
func TestResolveTopicPlan_WeightedSixtyForty(t *testing.T) {
	targets := []model.LearningTarget{
		target("Graphs", model.TargetFailed),
		target("Sorting", model.TargetMedium),
		target("Recursion", model.TargetPending),
		target("Pointers", model.TargetPending),
	}
	plan := ResolveTopicPlan(targets, model.QuizTypePersonalized, model.QuizComprehensive, nil, 10, true)
	require.Len(t, plan, 4)

	counts := planCounts(plan)
	assert.Equal(t, 3, counts["graphs"])
	assert.Equal(t, 3, counts["sorting"])
	assert.Equal(t, 2, counts["recursion"])
	assert.Equal(t, 2, counts["pointers"])
	assert.Equal(t, 10, planTotal(plan))
}

// 权重取整向弱项倾斜：5题 → ceil(0.6*5)=3 给弱项
func TestResolveTopicPlan_WeightedRoundingFavorsWeak(t *testing.T) {
	targets := []model.LearningTarget{
		target("Graphs", model.TargetFailed),
		target("Recursion", model.TargetPending),
	}
	plan := ResolveTopicPlan(targets, model.QuizTypePersonalized, model.QuizComprehensive, nil, 5, true)

	counts := planCounts(plan)
	assert.Equal(t, 3, counts["graphs"])
	assert.Equal(t, 2, counts["recursion"])
}

// 某一桶为空时退化为平均分配，不允许题量丢失
func TestResolveTopicPlan_WeightedEmptyBucketFallsBack(t *testing.T) {
	targets := []model.LearningTarget{
		target("Graphs", model.TargetFailed),
		target("Sorting", model.TargetMedium),
	}
	plan := ResolveTopicPlan(targets, model.QuizTypePersonalized, model.QuizComprehensive, nil, 7, true)

	counts := planCounts(plan)
	assert.Equal(t, 4, counts["graphs"])
	assert.Equal(t, 3, counts["sorting"])
	assert.Equal(t, 7, planTotal(plan))
}

// 主题数多于题数：排序靠后的主题拿0题，总量不变，配额不为负
func TestResolveTopicPlan_MoreTopicsThanQuestions(t *testing.T) {
	selected := []string{"A1", "B2", "C3", "D4", "E5"}
	plan := ResolveTopicPlan(nil, model.QuizTypeQuick, "", selected, 3, false)
	require.Len(t, plan, 5)

	zero := 0
	for _, p := range plan {
		assert.GreaterOrEqual(t, p.QuestionCount, 0)
		if p.QuestionCount == 0 {
			zero++
		}
	}
	assert.Equal(t, 2, zero)
	assert.Equal(t, 3, planTotal(plan))
}

func TestExpandDifficultyMix(t *testing.T) {
	cases := []struct {
		name       string
		difficulty model.Difficulty
		n          int
		want       map[model.Difficulty]int
	}{
		{"single difficulty", model.DifficultyHard, 7, map[model.Difficulty]int{model.DifficultyHard: 7}},
		{"mixed divisible", model.DifficultyMixed, 9, map[model.Difficulty]int{
			model.DifficultyEasy: 3, model.DifficultyMedium: 3, model.DifficultyHard: 3,
		}},
		{"mixed remainder 1 goes to easy", model.DifficultyMixed, 10, map[model.Difficulty]int{
			model.DifficultyEasy: 4, model.DifficultyMedium: 3, model.DifficultyHard: 3,
		}},
		{"mixed remainder 2 goes to easy+medium", model.DifficultyMixed, 11, map[model.Difficulty]int{
			model.DifficultyEasy: 4, model.DifficultyMedium: 4, model.DifficultyHard: 3,
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExpandDifficultyMix(tc.difficulty, tc.n)
			assert.Equal(t, tc.want, got)

			total := 0
			for _, c := range got {
				total += c
			}
			assert.Equal(t, tc.n, total)
		})
	}
}

func TestBuildQuizPrompt_Deterministic(t *testing.T) {
	plan := []TopicAllocation{
		{SubTopic: "Graphs", NormalizedSubTopic: "graphs", Status: model.TargetFailed, QuestionCount: 3},
		{SubTopic: "Sorting", NormalizedSubTopic: "sorting", Status: model.TargetPending, QuestionCount: 2},
		{SubTopic: "Extra", NormalizedSubTopic: "extra", Status: model.TargetPending, QuestionCount: 0},
	}
	mix := ExpandDifficultyMix(model.DifficultyMixed, 5)

	system1, user1 := BuildQuizPrompt(plan, mix, 5, "avoid trick questions")
	system2, user2 := BuildQuizPrompt(plan, mix, 5, "avoid trick questions")
	assert.Equal(t, system1, system2)
	assert.Equal(t, user1, user2, "同一计划必须渲染出逐字节一致的提示词")

	assert.Contains(t, user1, `"Graphs": 3 question(s)`)
	assert.Contains(t, user1, "Generate exactly 5 quiz questions")
	assert.Contains(t, user1, "avoid trick questions")
	assert.NotContains(t, user1, "Extra", "配额为0的主题不进提示词")
	assert.True(t, strings.Index(user1, "easy") < strings.Index(user1, "hard"), "难度按固定顺序渲染")
}
