package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fin-ai-tgbot-go/internal/config"
	"github.com/fin-ai-tgbot-go/internal/models"
	"github.com/sirupsen/logrus"
)

// Service is the AI provider boundary: one conversation turn in, text
// or tool calls out.
type Service interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatReply, error)
}

// ChatRequest carries everything one provider call needs.
type ChatRequest struct {
	System string
	Turns  []models.Turn
	Tools  []models.ToolDef
}

// ChatReply is the provider's answer: assistant text, tool calls, or both.
type ChatReply struct {
	Content   string
	ToolCalls []models.ToolCall
}

// HasToolCalls reports whether the model asked for tool execution.
func (r *ChatReply) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// clientError marks a 4xx response; retrying those wastes quota.
type clientError struct {
	status int
	body   string
}

func (e *clientError) Error() string {
	return fmt.Sprintf("AI request failed with client error %d: %s", e.status, e.body)
}

// Client implements Service against an OpenAI-compatible chat
// completions endpoint.
type Client struct {
	cfg        *config.ProviderConfig
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient creates a provider client from config
func NewClient(cfg *config.ProviderConfig, logger *logrus.Logger) *Client {
	logger.WithFields(logrus.Fields{
		"baseURL": cfg.BaseURL,
		"model":   cfg.Model,
	}).Info("AI provider initialized")

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger,
	}
}

// Chat sends the conversation and retries transient failures with
// exponential backoff. Client errors (4xx) fail immediately.
func (c *Client) Chat(ctx context.Context, req *ChatRequest) (*ChatReply, error) {
	maxRetries := c.cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		reply, err := c.chatAttempt(ctx, req, attempt)
		if err == nil {
			return reply, nil
		}

		var cErr *clientError
		if errors.As(err, &cErr) {
			return nil, err
		}

		lastErr = err
		c.logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"error":   err.Error(),
		}).Warn("AI request failed, retrying...")

		if attempt < maxRetries {
			// Exponential backoff: 2s, 4s, 8s
			waitTime := time.Duration(2<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(waitTime):
			}
		}
	}

	return nil, fmt.Errorf("all retry attempts failed: %w", lastErr)
}

// chatAttempt performs a single request attempt
func (c *Client) chatAttempt(ctx context.Context, req *ChatRequest, attempt int) (*ChatReply, error) {
	reqBody := map[string]interface{}{
		"model":       c.cfg.Model,
		"messages":    c.wireMessages(req),
		"max_tokens":  c.cfg.MaxTokens,
		"temperature": c.cfg.Temperature,
	}
	if len(req.Tools) > 0 {
		reqBody["tools"] = wireTools(req.Tools)
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// Per-attempt timeout so a stuck request does not eat the whole
	// retry budget.
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	url := fmt.Sprintf("%s/chat/completions", strings.TrimSuffix(c.cfg.BaseURL, "/"))
	httpReq, err := http.NewRequestWithContext(reqCtx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.cfg.APIKey))

	c.logger.WithFields(logrus.Fields{
		"model":   c.cfg.Model,
		"turns":   len(req.Turns),
		"attempt": attempt,
	}).Debug("Sending AI request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.WithFields(logrus.Fields{
			"status":  resp.StatusCode,
			"body":    string(body),
			"attempt": attempt,
		}).Error("AI request failed")

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, &clientError{status: resp.StatusCode, body: string(body)}
		}
		return nil, fmt.Errorf("AI request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return parseReply(body)
}

// wireMessages converts turns to the chat completions message format.
func (c *Client) wireMessages(req *ChatRequest) []map[string]interface{} {
	messages := make([]map[string]interface{}, 0, len(req.Turns)+1)
	if req.System != "" {
		messages = append(messages, map[string]interface{}{
			"role":    models.RoleSystem,
			"content": req.System,
		})
	}

	for _, turn := range req.Turns {
		msg := map[string]interface{}{
			"role":    turn.Role,
			"content": turn.Content,
		}
		if len(turn.ToolCalls) > 0 {
			calls := make([]map[string]interface{}, 0, len(turn.ToolCalls))
			for _, call := range turn.ToolCalls {
				calls = append(calls, map[string]interface{}{
					"id":   call.ID,
					"type": "function",
					"function": map[string]interface{}{
						"name":      call.Name,
						"arguments": string(call.Arguments),
					},
				})
			}
			msg["tool_calls"] = calls
		}
		if turn.ToolCallID != "" {
			msg["tool_call_id"] = turn.ToolCallID
		}
		if turn.Name != "" {
			msg["name"] = turn.Name
		}
		messages = append(messages, msg)
	}
	return messages
}

func wireTools(tools []models.ToolDef) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(tools))
	for _, tool := range tools {
		out = append(out, map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name":        tool.Name,
				"description": tool.Description,
				"parameters":  json.RawMessage(tool.Parameters),
			},
		})
	}
	return out
}

func parseReply(body []byte) (*ChatReply, error) {
	var result struct {
		Choices []struct {
			Message struct {
				Content   string `json:"content"`
				ToolCalls []struct {
					ID       string `json:"id"`
					Function struct {
						Name      string `json:"name"`
						Arguments string `json:"arguments"`
					} `json:"function"`
				} `json:"tool_calls"`
			} `json:"message"`
		} `json:"choices"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if result.Error.Message != "" {
		return nil, fmt.Errorf("AI error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("no response from AI")
	}

	message := result.Choices[0].Message
	reply := &ChatReply{Content: message.Content}
	for _, call := range message.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, models.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: json.RawMessage(call.Function.Arguments),
		})
	}
	if reply.Content == "" && len(reply.ToolCalls) == 0 {
		return nil, fmt.Errorf("no response from AI")
	}
	return reply, nil
}
