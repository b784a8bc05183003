package service

import (
	"context"
	"encoding/json"
	"testing"

	"quiz_mentor_backend/internal/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNormalizeSubTopic(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "Differential Equations", "differential equations"},
		{"strips punctuation", "differential equations.", "differential equations"},
		{"collapses whitespace", "  binary\t trees \n", "binary trees"},
		{"hyphen becomes space", "red-black trees", "red black trees"},
		{"keeps digits", "IPv4 Addressing", "ipv4 addressing"},
		{"unicode letters survive", "微积分 基础", "微积分 基础"},
		{"punctuation only", "?!,;", ""},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeSubTopic(tc.in))
		})
	}
}

// 归一化必须幂等：对已归一化的键再归一化不能变
func TestNormalizeSubTopic_Idempotent(t *testing.T) {
	inputs := []string{"Differential Equations!", "  Red-Black   Trees ", "graphs & trees", "微积分（基础）"}
	for _, in := range inputs {
		once := NormalizeSubTopic(in)
		assert.Equal(t, once, NormalizeSubTopic(once), "input %q", in)
	}
}

// 变体写法必须归一到同一个键，否则掌握度会裂成多行
func TestNormalizeSubTopic_VariantsCollapse(t *testing.T) {
	assert.Equal(t,
		NormalizeSubTopic("Differential Equations"),
		NormalizeSubTopic("differential equations."))
	assert.Equal(t,
		NormalizeSubTopic("Binary   Trees"),
		NormalizeSubTopic("binary-trees"))
}

func TestTopicDetector_EmptyTextSkipsProvider(t *testing.T) {
	mock := llm.NewMockProvider()
	svc := NewTopicDetectorService(mock, zap.NewNop())

	for _, text := range []string{"", "   ", "\n\t"} {
		topics, err := svc.Detect(context.Background(), text)
		require.NoError(t, err)
		assert.Nil(t, topics)
	}
	assert.Equal(t, 0, mock.CallCount(), "空文本不应触发模型调用")
}

func TestTopicDetector_DedupesByNormalizedName(t *testing.T) {
	payload := `{"topics":[
		{"name":"Differential Equations","confidence":0.7},
		{"name":"differential equations.","confidence":0.9},
		{"name":"Laplace Transforms","confidence":0.8},
		{"name":"?!","confidence":0.5}
	]}`
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(payload)})
	svc := NewTopicDetectorService(mock, zap.NewNop())

	topics, err := svc.Detect(context.Background(), "course material about ODEs")
	require.NoError(t, err)
	require.Len(t, topics, 2)

	assert.Equal(t, "Differential Equations", topics[0].SubTopic, "保留首次出现的展示名")
	assert.Equal(t, "differential equations", topics[0].NormalizedSubTopic)
	assert.Equal(t, 0.9, topics[0].Confidence, "去重保留最高置信度")
	assert.Equal(t, "laplace transforms", topics[1].NormalizedSubTopic)
	assert.Equal(t, 1, mock.CallCount())
}

func TestTopicDetector_ProviderErrorPropagates(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrAuthFailed{}})
	svc := NewTopicDetectorService(mock, zap.NewNop())

	topics, err := svc.Detect(context.Background(), "some text")
	require.Error(t, err)
	assert.Nil(t, topics)
}

func TestTopicDetector_TruncatesLongInput(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(`{"topics":[]}`)})
	svc := NewTopicDetectorService(mock, zap.NewNop())

	long := make([]rune, topicDetectionMaxChars+5000)
	for i := range long {
		long[i] = 'a'
	}
	_, err := svc.Detect(context.Background(), string(long))
	require.NoError(t, err)

	require.Equal(t, 1, mock.CallCount())
	sent := mock.Calls[0].Messages[0].Content
	assert.LessOrEqual(t, len([]rune(sent)), topicDetectionMaxChars+len("Course material:\n\n"))
}
