package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"quiz_mentor_backend/internal/llm"

	"go.uber.org/zap"
)

// 超长文档截断后再送检测，避免撑爆上下文窗口
const topicDetectionMaxChars = 24000

// DetectedTopic 从文档文本中识别出的一个候选子主题
type DetectedTopic struct {
	SubTopic           string  `json:"subTopic"`           // 展示名，保留原始大小写
	NormalizedSubTopic string  `json:"normalizedSubTopic"` // 归一化键，跨测验匹配用
	Confidence         float64 `json:"confidence"`
}

// NormalizeSubTopic 子主题归一化：小写、标点替换为空格、连续空白折叠。
// 归一化结果是 LearningTarget 的唯一键，必须稳定——同一主题在不同文档里
// 被再次检出时要映射到已有行而不是建新行
func NormalizeSubTopic(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

type TopicDetectorService struct {
	Provider llm.Provider
	Log      *zap.Logger
}

func NewTopicDetectorService(provider llm.Provider, log *zap.Logger) *TopicDetectorService {
	return &TopicDetectorService{Provider: provider, Log: log}
}

var topicListSchema = &llm.Schema{
	Name:        "topic_list",
	Description: "Sub-topics extracted from course material",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"topics": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":       map[string]any{"type": "string"},
						"confidence": map[string]any{"type": "number"},
					},
					"required":             []string{"name", "confidence"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"topics"},
		"additionalProperties": false,
	},
}

const topicDetectionSystem = "You are a curriculum analyst. Extract the distinct sub-topics a student " +
	"would need to master from the given course material. Return concise noun-phrase topic names " +
	"(2-5 words each) with a confidence between 0 and 1. Do not invent topics that are not covered " +
	"by the text."

// Detect 从文档纯文本中提取子主题。空文本返回空列表而不是错误——
// "未检出主题"是合法终态，由调用方引导用户手动选题
func (s *TopicDetectorService) Detect(ctx context.Context, documentText string) ([]DetectedTopic, error) {
	text := strings.TrimSpace(documentText)
	if text == "" {
		return nil, nil
	}
	if runes := []rune(text); len(runes) > topicDetectionMaxChars {
		text = string(runes[:topicDetectionMaxChars])
	}

	resp, err := s.Provider.Generate(ctx, llm.Request{
		System: topicDetectionSystem,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "Course material:\n\n" + text},
		},
		Schema:    topicListSchema,
		MaxTokens: 2048,
	})
	if err != nil {
		return nil, fmt.Errorf("主题检测调用失败: %w", err)
	}

	var payload struct {
		Topics []struct {
			Name       string  `json:"name"`
			Confidence float64 `json:"confidence"`
		} `json:"topics"`
	}
	if err := json.Unmarshal(resp.Content, &payload); err != nil {
		return nil, fmt.Errorf("解析主题检测结果: %w", err)
	}

	// 同一文档内归一化后相同的主题去重，保留最高置信度
	seen := make(map[string]int, len(payload.Topics))
	var topics []DetectedTopic
	for _, t := range payload.Topics {
		normalized := NormalizeSubTopic(t.Name)
		if normalized == "" {
			continue
		}
		if i, ok := seen[normalized]; ok {
			if t.Confidence > topics[i].Confidence {
				topics[i].Confidence = t.Confidence
			}
			continue
		}
		seen[normalized] = len(topics)
		topics = append(topics, DetectedTopic{
			SubTopic:           strings.TrimSpace(t.Name),
			NormalizedSubTopic: normalized,
			Confidence:         t.Confidence,
		})
	}

	s.Log.Info("主题检测完成",
		zap.Int("chars", len(text)),
		zap.Int("topics", len(topics)),
		zap.String("model", resp.Model))
	return topics, nil
}
