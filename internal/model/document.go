package model

const (
	DocumentStatusUploaded  = "uploaded"  // 文件已入库，尚未提取主题
	DocumentStatusIngested  = "ingested"  // 主题提取完成
	DocumentStatusNoTopics  = "no_topics" // 提取完成但未识别出任何主题
	DocumentStatusFailed    = "failed"
	DocumentStatusExtracted = "extracted" // 文本已提取，主题检测进行中
)

// Document 课程资料文件，纯文本内容是主题检测的输入
// swagger:model Document
type Document struct {
	UUIDBase
	CourseID   uint   `gorm:"index;type:bigint unsigned" json:"courseId"`
	UploaderID uint   `gorm:"index;type:bigint unsigned" json:"uploaderId"`
	Name       string `gorm:"size:255;not null" json:"name"`
	ObjectKey  string `gorm:"size:512" json:"objectKey"` // 存储后端中的对象路径
	MimeType   string `gorm:"size:100" json:"mimeType"`
	Size       int64  `gorm:"default:0" json:"size"`
	CharCount  int    `gorm:"default:0" json:"charCount"` // 提取出的纯文本长度
	TopicCount int    `gorm:"default:0" json:"topicCount"`
	Status     string `gorm:"size:20;default:'uploaded'" json:"status"`
	Error      string `gorm:"type:text" json:"error,omitempty"`
}

func (Document) TableName() string {
	return "documents"
}
