package model

import "time"

type TargetStatus string

const (
	TargetPending  TargetStatus = "pending"  // 已检测到，尚无作答记录
	TargetFailed   TargetStatus = "failed"   // 最近一次低于 medium 阈值
	TargetMedium   TargetStatus = "medium"   // 介于 medium 与 mastery 阈值之间
	TargetMastered TargetStatus = "mastered" // 达到 mastery 阈值
)

// LearningTarget 每个（课程, 用户, 归一化子主题）唯一一行
// 计数器只增不减；FirstEncountered 建行时写入后不再修改
// swagger:model LearningTarget
type LearningTarget struct {
	BaseModel
	CourseID                uint         `gorm:"uniqueIndex:uniq_course_user_topic;type:bigint unsigned" json:"courseId"`
	UserID                  uint         `gorm:"uniqueIndex:uniq_course_user_topic;type:bigint unsigned" json:"userId"`
	SubTopicName            string       `gorm:"size:255;not null" json:"subTopicName"`
	NormalizedSubTopicName  string       `gorm:"size:255;uniqueIndex:uniq_course_user_topic;not null" json:"normalizedSubTopicName"`
	Status                  TargetStatus `gorm:"size:20;default:'pending'" json:"status"`
	FailCount               int          `gorm:"default:0" json:"failCount"`
	MediumCount             int          `gorm:"default:0" json:"mediumCount"`
	SuccessCount            int          `gorm:"default:0" json:"successCount"`
	LastAttemptScorePercent *int         `json:"lastAttemptScorePercent,omitempty"`
	LastAttempt             *time.Time   `json:"lastAttempt,omitempty"`
	FirstEncountered        time.Time    `json:"firstEncountered"`
}

func (LearningTarget) TableName() string {
	return "learning_targets"
}

// QuizTargetApplication 幂等保护：同一测验对同一目标只结算一次
// (quiz_id, learning_target_id) 唯一索引是并发下不重复计数的依据
type QuizTargetApplication struct {
	BaseModel
	QuizID           string       `gorm:"uniqueIndex:uniq_quiz_target;type:varchar(36)" json:"quizId"`
	LearningTargetID uint         `gorm:"uniqueIndex:uniq_quiz_target;type:bigint unsigned" json:"learningTargetId"`
	ScorePercent     int          `json:"scorePercent"`
	ResultStatus     TargetStatus `gorm:"size:20" json:"resultStatus"`
}

func (QuizTargetApplication) TableName() string {
	return "quiz_target_applications"
}
