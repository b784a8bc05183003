package service

import (
	"fmt"
	"strings"

	"quiz_mentor_backend/internal/model"
)

// 校验检查项，指标与错误详情共用
const (
	CheckStructural        = "structural"
	CheckCountMismatch     = "count_mismatch"
	CheckDifficultyMix     = "difficulty_mix"
	CheckDuplicateQuestion = "duplicate_question"
	CheckTopicCoverage     = "topic_coverage"
)

// ValidationError 模型输出的单条违规；QuestionIndex 为 -1 表示整卷级问题
type ValidationError struct {
	Check         string `json:"check"`
	Message       string `json:"message"`
	QuestionIndex int    `json:"questionIndex"`
}

func (e ValidationError) Error() string {
	if e.QuestionIndex >= 0 {
		return fmt.Sprintf("%s (question %d): %s", e.Check, e.QuestionIndex, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Check, e.Message)
}

// ValidationErrors 一次校验发现的全部违规。校验器不在首错处停下，
// 调用方拿到完整清单后决定重试还是放弃
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return fmt.Sprintf("quiz validation failed with %d violation(s): %s", len(e), strings.Join(msgs, "; "))
}

// GeneratedOption / GeneratedQuestion 模型返回的原始题目载荷，
// 通过校验后才映射为持久化的 QuizQuestion
type GeneratedOption struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

type GeneratedQuestion struct {
	Text        string            `json:"text"`
	Type        string            `json:"type"`
	Options     []GeneratedOption `json:"options"`
	SubTopic    string            `json:"subTopic"`
	Difficulty  string            `json:"difficulty"`
	Explanation string            `json:"explanation"`
}

// QuizValidator 对照出题计划校验模型输出。Tolerance 是 mixed 难度下
// 各档允许的±题数偏差
type QuizValidator struct {
	Tolerance int
}

func NewQuizValidator(tolerance int) *QuizValidator {
	return &QuizValidator{Tolerance: tolerance}
}

var knownQuestionTypes = map[string]model.QuestionType{
	string(model.QuestionSingleChoice):   model.QuestionSingleChoice,
	string(model.QuestionMultipleChoice): model.QuestionMultipleChoice,
	string(model.QuestionTrueFalse):      model.QuestionTrueFalse,
}

var knownDifficulties = map[string]model.Difficulty{
	string(model.DifficultyEasy):   model.DifficultyEasy,
	string(model.DifficultyMedium): model.DifficultyMedium,
	string(model.DifficultyHard):   model.DifficultyHard,
}

// Validate 按固定顺序检查：结构、题数、难度分布、重复题、主题覆盖。
// 返回全部违规而不是首个，空切片表示通过
func (v *QuizValidator) Validate(
	questions []GeneratedQuestion,
	requestedCount int,
	mix map[model.Difficulty]int,
	plan []TopicAllocation,
) ValidationErrors {
	var errs ValidationErrors

	// (a) 结构检查
	for i, q := range questions {
		errs = append(errs, v.checkStructure(i, q)...)
	}

	// (b) 题数必须精确等于请求值
	if len(questions) != requestedCount {
		errs = append(errs, ValidationError{
			Check:         CheckCountMismatch,
			Message:       fmt.Sprintf("expected %d questions, got %d", requestedCount, len(questions)),
			QuestionIndex: -1,
		})
	}

	// (c) 难度分布在容差内
	actual := make(map[model.Difficulty]int)
	for _, q := range questions {
		if d, ok := knownDifficulties[q.Difficulty]; ok {
			actual[d]++
		}
	}
	for _, d := range difficultyOrder {
		target, expected := mix[d]
		got := actual[d]
		if !expected && got == 0 {
			continue
		}
		if diff := got - target; diff > v.Tolerance || diff < -v.Tolerance {
			errs = append(errs, ValidationError{
				Check:         CheckDifficultyMix,
				Message:       fmt.Sprintf("difficulty %s: expected %d±%d questions, got %d", d, target, v.Tolerance, got),
				QuestionIndex: -1,
			})
		}
	}

	// (d) 归一化后文本相同视作重复题
	seenText := make(map[string]int, len(questions))
	for i, q := range questions {
		key := NormalizeSubTopic(q.Text)
		if key == "" {
			continue
		}
		if first, ok := seenText[key]; ok {
			errs = append(errs, ValidationError{
				Check:         CheckDuplicateQuestion,
				Message:       fmt.Sprintf("near-identical to question %d", first),
				QuestionIndex: i,
			})
			continue
		}
		seenText[key] = i
	}

	// (e) 主题覆盖。配额为0的主题（主题数多于题数时出现）豁免
	covered := make(map[string]bool, len(questions))
	for _, q := range questions {
		covered[NormalizeSubTopic(q.SubTopic)] = true
	}
	for _, t := range plan {
		if t.QuestionCount == 0 {
			continue
		}
		if !covered[t.NormalizedSubTopic] {
			errs = append(errs, ValidationError{
				Check:         CheckTopicCoverage,
				Message:       fmt.Sprintf("requested sub-topic %q not covered by any question", t.SubTopic),
				QuestionIndex: -1,
			})
		}
	}

	return errs
}

func (v *QuizValidator) checkStructure(index int, q GeneratedQuestion) ValidationErrors {
	var errs ValidationErrors
	fail := func(msg string) {
		errs = append(errs, ValidationError{Check: CheckStructural, Message: msg, QuestionIndex: index})
	}

	if strings.TrimSpace(q.Text) == "" {
		fail("empty question text")
	}
	qType, ok := knownQuestionTypes[q.Type]
	if !ok {
		fail(fmt.Sprintf("unknown question type %q", q.Type))
		return errs
	}
	if _, ok := knownDifficulties[q.Difficulty]; !ok {
		fail(fmt.Sprintf("unknown difficulty %q", q.Difficulty))
	}
	if len(q.Options) < 2 {
		fail(fmt.Sprintf("needs at least 2 options, got %d", len(q.Options)))
		return errs
	}
	if qType == model.QuestionTrueFalse && len(q.Options) != 2 {
		fail(fmt.Sprintf("true_false question must have exactly 2 options, got %d", len(q.Options)))
	}

	correct := 0
	for _, opt := range q.Options {
		if strings.TrimSpace(opt.Text) == "" {
			fail("empty option text")
		}
		if opt.IsCorrect {
			correct++
		}
	}
	switch qType {
	case model.QuestionSingleChoice, model.QuestionTrueFalse:
		if correct != 1 {
			fail(fmt.Sprintf("%s question must have exactly 1 correct option, got %d", qType, correct))
		}
	case model.QuestionMultipleChoice:
		if correct < 1 {
			fail("multiple_choice question must have at least 1 correct option")
		}
	}
	return errs
}
