package llm

import (
	"context"
	"encoding/json"
)

// Provider 统一的大模型调用入口；管线其余组件只依赖本包的请求/响应类型，
// 供应商SDK的类型不得越过该边界
type Provider interface {
	// Generate 发送一次生成请求。Request.Schema 非空时，供应商使用其原生的
	// 结构化输出机制，返回的 Content 为已通过校验的JSON
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID 返回当前配置使用的模型标识
	ModelID() string
}

// Request 一次生成请求
type Request struct {
	// System 系统提示词，设定模型角色与约束
	System string

	// Messages 对话消息；本系统的生成都是单轮，通常只有一条user消息
	Messages []Message

	// Schema 期望的JSON结构。非空时供应商侧强制结构化输出
	Schema *Schema

	// MaxTokens 响应token上限
	MaxTokens int

	// Temperature 随机性，0.0-1.0；不设置时为0（确定性输出）
	Temperature float64
}

type Message struct {
	Role    Role
	Content string
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema 期望模型返回的JSON结构定义
type Schema struct {
	// Name 标识该schema（Anthropic作为工具名，OpenAI作为schema名）
	Name string

	// Description 给模型的说明
	Description string

	// Definition JSON Schema 定义
	Definition map[string]any
}

// Response 模型输出
type Response struct {
	// Content 生成内容；请求带Schema时为通过校验的JSON
	Content json.RawMessage

	// Usage 本次请求的token消耗
	Usage Usage

	// Model 实际服务请求的模型
	Model string

	// StopReason 归一化为 "end" / "max_tokens" / "error"
	StopReason string
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
