package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ChatCompletionsProvider talks to any OpenAI-compatible /chat/completions
// endpoint with Bearer auth.
type ChatCompletionsProvider struct {
	name        string
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
}

type ChatCompletionsConfig struct {
	Name        string
	APIKey      string
	BaseURL     string
	Model       string
	Temperature *float64
	MaxTokens   int
	HTTPClient  *http.Client
}

func NewChatCompletionsProvider(cfg ChatCompletionsConfig) *ChatCompletionsProvider {
	if cfg.Name == "" {
		cfg.Name = ProviderOpenAI
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	temperature := DefaultTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &ChatCompletionsProvider{
		name:        cfg.Name,
		apiKey:      strings.TrimSpace(cfg.APIKey),
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		temperature: temperature,
		maxTokens:   cfg.MaxTokens,
		client:      cfg.HTTPClient,
	}
}

func (p *ChatCompletionsProvider) Name() string     { return p.name }
func (p *ChatCompletionsProvider) Model() string    { return p.model }
func (p *ChatCompletionsProvider) Configured() bool { return p.apiKey != "" }

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Stream      bool            `json:"stream"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// openAIResponse accepts the standard choices envelope and the flatter
// content/messages shapes some compatible gateways return.
type openAIResponse struct {
	Content json.RawMessage `json:"content"`
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Messages []struct {
		Content json.RawMessage `json:"content"`
	} `json:"messages"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (r openAIResponse) text() string {
	if s := rawText(r.Content); s != "" {
		return s
	}
	if len(r.Choices) > 0 {
		if s := rawText(r.Choices[0].Message.Content); s != "" {
			return s
		}
	}
	if len(r.Messages) > 0 {
		return rawText(r.Messages[0].Content)
	}
	return ""
}

// rawText reads a content field that is either a string or a list of
// {type, text} parts.
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err == nil {
		var b strings.Builder
		for _, part := range parts {
			b.WriteString(part.Text)
		}
		return b.String()
	}
	return ""
}

func (p *ChatCompletionsProvider) Complete(ctx context.Context, pr Prompt) (string, error) {
	reqBody := openAIRequest{
		Model: p.model,
		Messages: []openAIMessage{
			{Role: "system", Content: pr.System},
			{Role: "user", Content: pr.User},
		},
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s request: %w", p.name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%s returned status %d: %s", p.name, resp.StatusCode, snippet(respBody))
	}

	var parsed openAIResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("parsing %s response: %w", p.name, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("%s api error: %s", p.name, parsed.Error.Message)
	}
	text := parsed.text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%s returned no content", p.name)
	}
	return text, nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
