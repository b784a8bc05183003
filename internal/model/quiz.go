package model

import "time"

type QuizType string

const (
	QuizTypeQuick        QuizType = "quick"        // 快速测验，不影响掌握度
	QuizTypePersonalized QuizType = "personalized" // 完成后驱动掌握度状态机
)

type PersonalizedQuizType string

const (
	QuizWeakTopicFocused PersonalizedQuizType = "weakTopicFocused"
	QuizNewTopicFocused  PersonalizedQuizType = "newTopicFocused"
	QuizComprehensive    PersonalizedQuizType = "comprehensive"
)

type QuizStatus string

const (
	QuizStatusNotStarted QuizStatus = "not_started"
	QuizStatusInProgress QuizStatus = "in_progress"
	QuizStatusCompleted  QuizStatus = "completed"
	QuizStatusAbandoned  QuizStatus = "abandoned"
)

type QuestionType string

const (
	QuestionSingleChoice   QuestionType = "single_choice"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyMixed  Difficulty = "mixed" // 仅请求侧取值，落库题目为具体难度
)

// QuizPreferences 生成请求偏好，随测验一并持久化
type QuizPreferences struct {
	QuestionCount                 int        `json:"questionCount"`
	Difficulty                    Difficulty `json:"difficulty"`
	TimeLimit                     int        `json:"timeLimit,omitempty"` // 分钟，0为不限时
	PrioritizeWeakAndMediumTopics bool       `json:"prioritizeWeakAndMediumTopics,omitempty"`
}

// swagger:model Quiz
type Quiz struct {
	UUIDBase
	UserID               uint                  `gorm:"index;type:bigint unsigned" json:"userId"`
	CourseID             *uint                 `gorm:"index;type:bigint unsigned" json:"courseId,omitempty"`
	QuizType             QuizType              `gorm:"size:20;not null" json:"quizType"`
	PersonalizedQuizType *PersonalizedQuizType `gorm:"size:30" json:"personalizedQuizType,omitempty"`
	SelectedSubTopics    []string              `gorm:"serializer:json" json:"selectedSubTopics,omitempty"`
	Preferences          QuizPreferences       `gorm:"serializer:json" json:"preferences"`
	Questions            []QuizQuestion        `gorm:"foreignKey:QuizID" json:"questions"`
	Status               QuizStatus            `gorm:"size:20;default:'not_started'" json:"status"`
	SubmittedAnswers     map[string][]string   `gorm:"serializer:json" json:"-"` // questionId -> 选中选项id，提交时写入
	Score                *int                  `json:"score,omitempty"`
	ElapsedTime          *int                  `json:"elapsedTime,omitempty"` // 秒
	StartedAt            *time.Time            `json:"startedAt,omitempty"`
	CompletedAt          *time.Time            `json:"completedAt,omitempty"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// QuizOption 单个选项；IsCorrect 不下发给学生端（由controller裁剪）
type QuizOption struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// swagger:model QuizQuestion
type QuizQuestion struct {
	UUIDBase
	QuizID             string       `gorm:"index;type:varchar(36)" json:"quizId"`
	Text               string       `gorm:"type:text;not null" json:"text"`
	Type               QuestionType `gorm:"size:30;not null" json:"type"`
	Options            []QuizOption `gorm:"serializer:json" json:"options"`
	SubTopic           string       `gorm:"size:255" json:"subTopic"`
	NormalizedSubTopic string       `gorm:"size:255;index" json:"normalizedSubTopic"`
	Difficulty         Difficulty   `gorm:"size:10" json:"difficulty"`
	Explanation        string       `gorm:"type:text" json:"explanation"`
	Order              int          `gorm:"default:0" json:"order"`
}

func (QuizQuestion) TableName() string {
	return "quiz_questions"
}

// CorrectOptionIDs 返回正确选项的id集合
func (q *QuizQuestion) CorrectOptionIDs() []string {
	var ids []string
	for _, opt := range q.Options {
		if opt.IsCorrect {
			ids = append(ids, opt.ID)
		}
	}
	return ids
}
