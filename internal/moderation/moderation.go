package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vme50/paygate/internal/config"
	"github.com/vme50/paygate/pkg/logger"
)

const (
	requestTimeout = 30 * time.Second
	temperature    = 0.3
)

const systemPrompt = `You are a content moderation assistant. Analyze the user's message and decide whether it contains any of the following:
- Spam or marketing/promotional content
- Harassment, threats or abusive language
- Misleading or deceptive content
- Inappropriate or offensive content

Be strict but fair. Legitimate business inquiries, even short ones, should pass.

Return ONLY JSON, nothing else:
{
  "isAppropriate": true/false,
  "reason": "a short explanation if inappropriate, empty string otherwise"
}`

// Result is the moderation verdict for one message.
type Result struct {
	IsAppropriate bool   `json:"isAppropriate"`
	Reason        string `json:"reason"`
	// Warning is set when the moderation service was unreachable and the
	// message was admitted by the fail-open policy.
	Warning string `json:"warning,omitempty"`
}

// Service calls an OpenAI-compatible chat completion API to classify
// prospective messages before payment is requested.
//
// The gate fails open: if the upstream call errors or its reply cannot be
// parsed, the message is treated as appropriate. Blocking legitimate senders
// on a degraded dependency is worse than occasionally admitting one bad
// message, and a paid submission is a strong spam deterrent on its own.
type Service struct {
	logger *logger.Logger

	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func NewService(cfg *config.Config, logger *logger.Logger) *Service {
	return &Service{
		logger:  logger,
		apiKey:  cfg.ModerationAPIKey,
		baseURL: strings.TrimSuffix(cfg.ModerationBaseURL, "/"),
		model:   cfg.ModerationModel,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

// Check classifies a prospective message. It never returns an error: any
// upstream failure yields an approving result per the fail-open policy.
func (s *Service) Check(ctx context.Context, message, name, contact string) *Result {
	reply, err := s.complete(ctx, message, name, contact)
	if err != nil {
		s.logger.Error("Moderation call failed, admitting message", "error", err)
		return &Result{IsAppropriate: true, Reason: "", Warning: "Moderation service unavailable"}
	}

	var result Result
	if err := json.Unmarshal([]byte(stripCodeFences(reply)), &result); err != nil {
		s.logger.Error("Failed to parse moderation reply, admitting message", "error", err, "reply", reply)
		return &Result{IsAppropriate: true, Reason: ""}
	}

	return &Result{IsAppropriate: result.IsAppropriate, Reason: result.Reason}
}

func (s *Service) complete(ctx context.Context, message, name, contact string) (string, error) {
	if name == "" {
		name = "not provided"
	}
	if contact == "" {
		contact = "not provided"
	}
	userPrompt := fmt.Sprintf("Sender info:\nName: %s\nContact: %s\nMessage: %s", name, contact, message)

	body, err := json.Marshal(chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}

	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}

// stripCodeFences removes markdown code-fence wrapping some models put
// around JSON replies.
func stripCodeFences(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}
