package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	tests := []struct {
		name     string
		config   ClientConfig
		wantType string
		wantErr  error
	}{
		{"anthropic", ClientConfig{Provider: "anthropic", APIKey: "k"}, "*llm.AnthropicClient", nil},
		{"openai", ClientConfig{Provider: "openai", APIKey: "k"}, "*llm.OpenAIClient", nil},
		{"ollama needs no key", ClientConfig{Provider: "ollama"}, "*llm.OpenAIClient", nil},
		{"mock", ClientConfig{Provider: "mock"}, "*llm.MockClient", nil},
		{"anthropic without key", ClientConfig{Provider: "anthropic"}, "", ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewClient(tt.config)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("NewClient() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewClient() error = %v", err)
			}
			if got := fmt.Sprintf("%T", g); got != tt.wantType {
				t.Errorf("NewClient() type = %s, want %s", got, tt.wantType)
			}
		})
	}

	if _, err := NewClient(ClientConfig{Provider: "palm"}); err == nil || !strings.Contains(err.Error(), "unknown") {
		t.Errorf("unknown provider error = %v", err)
	}
}

func TestMockClient(t *testing.T) {
	m := NewMockClient().WithResponse(`{"escalation_score": 3}`)

	out, err := m.Generate(t.Context(), Request{User: "a"})
	if err != nil || out != `{"escalation_score": 3}` {
		t.Errorf("Generate() = %q, %v", out, err)
	}

	boom := errors.New("boom")
	m.WithError(boom)
	if _, err := m.Generate(t.Context(), Request{User: "b"}); !errors.Is(err, boom) {
		t.Errorf("Generate() error = %v, want boom", err)
	}

	m.WithResponder(func(req Request) (string, error) { return "echo " + req.User, nil })
	if out, _ := m.Generate(t.Context(), Request{User: "c"}); out != "echo c" {
		t.Errorf("responder output = %q", out)
	}

	if m.CallCount() != 3 {
		t.Errorf("CallCount() = %d, want 3", m.CallCount())
	}
	if m.Calls[2].User != "c" {
		t.Errorf("Calls[2].User = %q", m.Calls[2].User)
	}

	m.Reset()
	if m.CallCount() != 0 || !m.Available() {
		t.Error("Reset() should clear calls and restore availability")
	}
}

func TestMockClient_DelayHonorsContext(t *testing.T) {
	m := NewMockClient().WithDelay(time.Hour)
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()

	_, err := m.Generate(ctx, Request{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Generate() error = %v, want DeadlineExceeded", err)
	}
}

func TestMockClient_Concurrent(t *testing.T) {
	m := NewMockClient().WithResponse("ok")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Generate(context.Background(), Request{})
		}()
	}
	wg.Wait()
	if m.CallCount() != 20 {
		t.Errorf("CallCount() = %d, want 20", m.CallCount())
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"raw object", `{"a": 1}`, `{"a": 1}`},
		{"padded object", "  \n{\"a\": 1}\n ", `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"generic fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"prose around fence", "Here you go:\n```json\n{\"a\": 1}\n```\nThanks", `{"a": 1}`},
		{"array", `[1, 2]`, `[1, 2]`},
		{"plain prose", "I would escalate.", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.input); got != tt.want {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
