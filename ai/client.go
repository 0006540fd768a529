// Package ai wraps the Gemini generateContent endpoint for best-effort
// todo enrichment. The model is treated as untrusted: any failure is
// collapsed to a fixed default at the exported boundary, so callers never
// see an error from this package.
package ai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"taskwise-api/domain"
)

const (
	defaultEndpoint = "https://generativelanguage.googleapis.com"

	// Model error bodies are bounded before reading; they only feed logs.
	maxErrorBodySize = 4 << 10
	maxResponseSize  = 1 << 20
)

// Client calls the hosted generative model. A single attempt per request,
// no retry, no caching of results.
type Client struct {
	httpClient *http.Client
	endpoint   string
	model      string
	apiKey     string
	logger     *log.Logger
}

// NewClient creates a suggestion client for the given model. Timeouts are
// left to the injected transport defaults.
func NewClient(apiKey, model string, logger *log.Logger) *Client {
	return &Client{
		httpClient: &http.Client{},
		endpoint:   defaultEndpoint,
		model:      model,
		apiKey:     apiKey,
		logger:     logger,
	}
}

// Categorize derives a category, priority and tag suggestion for a todo
// draft. On any failure it returns the fixed default suggestion.
func (c *Client) Categorize(ctx context.Context, title, description string) domain.Suggestion {
	suggestion, err := c.categorize(ctx, title, description)
	if err != nil {
		c.logger.WithFields(log.Fields{"op": "categorize", "error": err.Error()}).Warn("suggestion call failed, using fallback")
		return domain.DefaultSuggestion()
	}
	return suggestion
}

// GenerateSubtasks derives 2-4 short actionable subtasks for a todo draft.
// On any failure it returns an empty list.
func (c *Client) GenerateSubtasks(ctx context.Context, title, description string) []string {
	subtasks, err := c.generateSubtasks(ctx, title, description)
	if err != nil {
		c.logger.WithFields(log.Fields{"op": "subtasks", "error": err.Error()}).Warn("suggestion call failed, using fallback")
		return []string{}
	}
	return subtasks
}

func (c *Client) categorize(ctx context.Context, title, description string) (domain.Suggestion, error) {
	prompt := fmt.Sprintf(`Analyze this task and respond with ONLY a valid JSON object (no markdown, no code blocks, just the JSON):

Title: %s
Description: %s

Return format: {"category": "%s", "priority": "high|medium|low", "suggestedTags": ["tag1", "tag2"]}

Rules:
- Choose the most appropriate category
- Priority should be based on urgency and importance
- Suggest 2-3 relevant tags
- Return ONLY the JSON object, nothing else`,
		title, orNoDescription(description), strings.Join(domain.SuggestionCategories, "|"))

	text, err := c.generate(ctx, prompt)
	if err != nil {
		return domain.Suggestion{}, err
	}

	var suggestion domain.Suggestion
	if err := sonic.Unmarshal([]byte(stripCodeFences(text)), &suggestion); err != nil {
		return domain.Suggestion{}, fmt.Errorf("parse suggestion: %w", err)
	}
	if suggestion.SuggestedTags == nil {
		suggestion.SuggestedTags = []string{}
	}
	return suggestion, nil
}

func (c *Client) generateSubtasks(ctx context.Context, title, description string) ([]string, error) {
	prompt := fmt.Sprintf(`Generate 2-4 actionable subtasks for this main task. Respond with ONLY a valid JSON array (no markdown):

Title: %s
Description: %s

Return format: ["subtask 1", "subtask 2", "subtask 3"]

Each subtask should be:
- Specific and actionable
- A logical step toward completing the main task
- Concise (under 50 characters)

Return ONLY the JSON array, nothing else`,
		title, orNoDescription(description))

	text, err := c.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var subtasks []string
	if err := sonic.Unmarshal([]byte(stripCodeFences(text)), &subtasks); err != nil {
		return nil, fmt.Errorf("parse subtasks: %w", err)
	}
	return subtasks, nil
}

type generateRequest struct {
	Contents []generateContent `json:"contents"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type generatePart struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// generate performs a single generateContent call and returns the first
// candidate's text.
func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	body, err := sonic.Marshal(generateRequest{
		Contents: []generateContent{{Parts: []generatePart{{Text: prompt}}}},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.endpoint, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return "", fmt.Errorf("model returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed generateResponse
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(resp.Body, maxResponseSize))
	if err := dec.Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode model response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("model returned no candidates")
	}
	return strings.TrimSpace(parsed.Candidates[0].Content.Parts[0].Text), nil
}

// stripCodeFences removes markdown code fence markers the model sometimes
// wraps its JSON in.
func stripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func orNoDescription(description string) string {
	if description == "" {
		return "No description"
	}
	return description
}
