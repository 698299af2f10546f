// Package extract calls the hosted text-extraction model that turns free
// text into candidate asset rows. Its output is raw rows only; the caller
// runs them through the same normalizer as manual and spreadsheet input.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrExtraction marks every failure of the extraction collaborator so
// callers can distinguish it from storage errors.
var ErrExtraction = errors.New("extraction failed")

// ErrNoCandidates is returned when the model produced no usable rows.
var ErrNoCandidates = fmt.Errorf("%w: no candidate records found", ErrExtraction)

const systemPrompt = `You extract IT hardware asset records from free text.
Respond with only a JSON array. Each element is an object with these keys:
"model", "serialNumber", "site", "country", "comments", "status".
"status" must be one of: Normal, RMARequested, RMAShipped, RMAEligible,
RMANotEligible, Deprecated, Unknown. Omit keys you cannot determine.`

// Config configures the extraction client.
type Config struct {
	// Endpoint is the OpenAI-compatible API base, e.g. https://api.openai.com/v1.
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	http  *resty.Client
	model string
}

// NewClient builds the extraction client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.Endpoint, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		httpClient.SetAuthToken(cfg.APIKey)
	}
	return &Client{http: httpClient, model: cfg.Model}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Extract sends the free text to the model and returns candidate rows in
// the same raw-mapping shape spreadsheet parsing produces.
func (c *Client) Extract(ctx context.Context, text string) ([]map[string]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty input text", ErrExtraction)
	}

	var out chatResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model: c.model,
			Messages: []chatMessage{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: text},
			},
		}).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: upstream returned %s", ErrExtraction, resp.Status())
	}
	if len(out.Choices) == 0 {
		return nil, ErrNoCandidates
	}

	rows, err := parseCandidates(out.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoCandidates
	}
	return rows, nil
}

// parseCandidates accepts either a bare JSON array or an object wrapping
// one under an "assets" key, since models vary in how they follow the
// array-only instruction.
func parseCandidates(content string) ([]map[string]string, error) {
	content = strings.TrimSpace(content)
	// Strip a markdown code fence when the model adds one.
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}

	var raw []map[string]any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		var wrapper struct {
			Assets []map[string]any `json:"assets"`
		}
		if err2 := json.Unmarshal([]byte(content), &wrapper); err2 != nil || wrapper.Assets == nil {
			return nil, fmt.Errorf("%w: unparseable model output", ErrExtraction)
		}
		raw = wrapper.Assets
	}

	rows := make([]map[string]string, 0, len(raw))
	for _, candidate := range raw {
		row := map[string]string{}
		for key, value := range candidate {
			switch v := value.(type) {
			case string:
				row[key] = v
			case float64:
				row[key] = strconv.FormatFloat(v, 'f', -1, 64)
			case bool:
				row[key] = fmt.Sprintf("%t", v)
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows, nil
}
