package llm

import (
	"context"
	"fmt"

	"github.com/oocana-go/oocana/internal/domain/flow"
)

// BuiltinWorker wraps a Client as an in-process "llm" executor: a
// Task node with executor="llm" fires here directly instead of over the
// broker's TCP framing. It reads conventional handle names off the input
// bundle ("model", "prompt", "system", "temperature", "max_tokens") and
// emits a single "text" output plus "usage".
type BuiltinWorker struct {
	client Client
}

// NewBuiltinWorker builds the in-process llm executor over an existing Client.
func NewBuiltinWorker(client Client) *BuiltinWorker {
	return &BuiltinWorker{client: client}
}

// Run implements internal/infrastructure/broker.BuiltinWorker.
func (w *BuiltinWorker) Run(ctx context.Context, bundle map[flow.HandleName]interface{}) (map[flow.HandleName]interface{}, error) {
	prompt, _ := bundle["prompt"].(string)
	if prompt == "" {
		return nil, fmt.Errorf("llm builtin: missing required input %q", "prompt")
	}
	model, _ := bundle["model"].(string)
	if model == "" {
		model = "gpt-4o-mini"
	}
	system, _ := bundle["system"].(string)

	messages := make([]Message, 0, 2)
	if system != "" {
		messages = append(messages, Message{Role: "system", Content: system})
	}
	messages = append(messages, Message{Role: "user", Content: prompt})

	req := CompletionRequest{Model: model, Messages: messages}
	if temp, ok := numeric(bundle["temperature"]); ok {
		req.Temperature = float32(temp)
	}
	if maxTokens, ok := numeric(bundle["max_tokens"]); ok {
		req.MaxTokens = int(maxTokens)
	}

	resp, err := w.client.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	return map[flow.HandleName]interface{}{
		"text": resp.Content,
		"usage": map[string]interface{}{
			"prompt_tokens":     resp.Usage.PromptTokens,
			"completion_tokens": resp.Usage.CompletionTokens,
			"total_tokens":      resp.Usage.TotalTokens,
		},
	}, nil
}

func numeric(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	default:
		return 0, false
	}
}
