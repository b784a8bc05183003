package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"quiz_mentor_backend/internal/config"
)

func fastRetryConfig() config.AIRetryConfig {
	return config.AIRetryConfig{
		MaxAttempts: 3,
		InitialWait: time.Millisecond,
		MaxWait:     5 * time.Millisecond,
		Multiplier:  2,
	}
}

func okResponse() MockResponse {
	return MockResponse{Content: json.RawMessage(`{"ok":true}`)}
}

func TestRetry_TransientErrorThenSuccess(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("503")}},
		okResponse(),
	)
	p := WithRetry(mock, fastRetryConfig())

	resp, err := p.Generate(context.Background(), Request{MaxTokens: 16})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Content) != `{"ok":true}` {
		t.Errorf("unexpected content %s", resp.Content)
	}
	if mock.CallCount() != 2 {
		t.Errorf("expected 2 calls, got %d", mock.CallCount())
	}
}

func TestRetry_PermanentErrorNotRetried(t *testing.T) {
	authErr := &ErrAuthFailed{Err: errors.New("401")}
	mock := NewMockProvider(MockResponse{Err: authErr})
	p := WithRetry(mock, fastRetryConfig())

	_, err := p.Generate(context.Background(), Request{})
	var got *ErrAuthFailed
	if !errors.As(err, &got) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
	if mock.CallCount() != 1 {
		t.Errorf("expected 1 call, got %d", mock.CallCount())
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	unavailable := MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("503")}}
	mock := NewMockProvider(unavailable, unavailable, unavailable, unavailable)
	p := WithRetry(mock, fastRetryConfig())

	_, err := p.Generate(context.Background(), Request{})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if mock.CallCount() != 3 {
		t.Errorf("expected 3 calls, got %d", mock.CallCount())
	}
}

// schema不符的响应只额外重试一次
func TestRetry_InvalidResponseRetriedOnce(t *testing.T) {
	invalid := MockResponse{Err: &ErrInvalidResponse{Err: errors.New("schema mismatch")}}
	mock := NewMockProvider(invalid, invalid, invalid)
	p := WithRetry(mock, fastRetryConfig())

	_, err := p.Generate(context.Background(), Request{})
	var got *ErrInvalidResponse
	if !errors.As(err, &got) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
	if mock.CallCount() != 2 {
		t.Errorf("expected 2 calls (original + one retry), got %d", mock.CallCount())
	}
}

func TestRetry_InvalidResponseThenSuccess(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Err: &ErrInvalidResponse{Err: errors.New("schema mismatch")}},
		okResponse(),
	)
	p := WithRetry(mock, fastRetryConfig())

	if _, err := p.Generate(context.Background(), Request{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRetry_HonorsRetryAfter(t *testing.T) {
	const retryAfter = 40 * time.Millisecond
	mock := NewMockProvider(
		MockResponse{Err: &ErrRateLimit{RetryAfter: retryAfter, Err: errors.New("429")}},
		okResponse(),
	)
	p := WithRetry(mock, fastRetryConfig())

	start := time.Now()
	if _, err := p.Generate(context.Background(), Request{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < retryAfter {
		t.Errorf("expected to wait at least %s, waited %s", retryAfter, elapsed)
	}
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Err: &ErrRateLimit{RetryAfter: time.Hour, Err: errors.New("429")}},
		okResponse(),
	)
	p := WithRetry(mock, fastRetryConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Generate(ctx, Request{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if mock.CallCount() != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", mock.CallCount())
	}
}

func TestRetry_PreservesModelID(t *testing.T) {
	p := WithRetry(NewMockProvider(), fastRetryConfig())
	if p.ModelID() != "mock" {
		t.Errorf("expected model id to pass through, got %q", p.ModelID())
	}
}
