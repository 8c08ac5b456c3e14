package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Settings describe the provider-agnostic enrichment backend: any endpoint
// speaking the chat-completions shape works.
type Settings struct {
	Provider    string
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float64
	TargetLang  string
}

type Translator interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

var _ Translator = (*ChatTranslator)(nil)

type ChatTranslator struct {
	settings Settings
	hc       *http.Client
}

func NewChatTranslator(settings Settings, httpClient *http.Client) *ChatTranslator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &ChatTranslator{
		settings: settings,
		hc:       httpClient,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (t *ChatTranslator) Translate(ctx context.Context, text, targetLang string) (string, error) {
	tag, err := language.Parse(targetLang)
	if err != nil {
		return "", fmt.Errorf("invalid target language %q: %w", targetLang, err)
	}

	body := chatRequest{
		Model: t.settings.Model,
		Messages: []chatMessage{
			{Role: "system", Content: fmt.Sprintf(
				"You are a translator. Translate the user's text into %s. Preserve formatting. Output only the translation.", tag.String())},
			{Role: "user", Content: text},
		},
		Temperature: t.settings.Temperature,
	}

	b, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := strings.TrimRight(t.settings.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if t.settings.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.settings.APIKey)
	}

	resp, err := t.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("translation request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("translation request failed: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	return extractText(respBody)
}

// extractText pulls the completion text out of the common response shapes:
// choices[].message.content (openai-like), choices[].text, or a top-level
// "response"/"text" field.
func extractText(respBody []byte) (string, error) {
	var parsed struct {
		Choices []struct {
			Text    string `json:"text"`
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Response string `json:"response"`
		Text     string `json:"text"`
	}

	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse translation response: %w", err)
	}

	if len(parsed.Choices) > 0 {
		if c := parsed.Choices[0].Message.Content; c != "" {
			return strings.TrimSpace(c), nil
		}
		if c := parsed.Choices[0].Text; c != "" {
			return strings.TrimSpace(c), nil
		}
	}
	if parsed.Response != "" {
		return strings.TrimSpace(parsed.Response), nil
	}
	if parsed.Text != "" {
		return strings.TrimSpace(parsed.Text), nil
	}

	return "", fmt.Errorf("translation response contained no text")
}
