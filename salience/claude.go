package salience

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultClaudeModel = "claude-3-5-haiku-latest"

const claudeSystemPrompt = `You extract keywords from web page text. Respond with JSON only, no prose, no code fences:
{"lang":"<iso 639-1>","keywords":[{"phrase":"...","score":0.0,"type":"topic|entity|term"}]}
Rules: at most 15 keywords, scores in [0,1], phrases lowercase, prefer multi-word phrases over single tokens.`

// ClaudeExtractor implements Extractor against the Anthropic Messages API.
// It is strictly best-effort: every failure mode (missing key, timeout,
// refusal, non-JSON output) surfaces as an error that the Engine logs and
// ignores.
type ClaudeExtractor struct {
	client  *anthropic.Client
	model   anthropic.Model
	timeout time.Duration
}

// ClaudeOption configures a ClaudeExtractor.
type ClaudeOption func(*ClaudeExtractor)

// WithModel overrides the default model.
func WithModel(model string) ClaudeOption {
	return func(c *ClaudeExtractor) { c.model = anthropic.Model(model) }
}

// WithTimeout bounds each extraction call. Default: 15s.
func WithTimeout(d time.Duration) ClaudeOption {
	return func(c *ClaudeExtractor) { c.timeout = d }
}

// NewClaudeExtractor creates an extractor. apiKey may be empty, in which
// case Extract fails closed on first use rather than at construction.
// Callers decide at startup whether to wire a nil Extractor instead.
func NewClaudeExtractor(apiKey string, opts ...ClaudeOption) *ClaudeExtractor {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	c := &ClaudeExtractor{
		client:  &client,
		model:   defaultClaudeModel,
		timeout: 15 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Extract implements Extractor.
func (c *ClaudeExtractor) Extract(ctx context.Context, text, langHint string) (*Extraction, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	user := text
	if langHint != "" {
		user = "Language hint: " + langHint + "\n\n" + text
	}

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Type: "text", Text: claudeSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("salience: claude call: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			sb.WriteString(b.Text)
		}
	}

	raw := strings.TrimSpace(sb.String())
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("salience: claude returned empty response")
	}

	var ext Extraction
	if err := json.Unmarshal([]byte(raw), &ext); err != nil {
		return nil, fmt.Errorf("salience: claude returned malformed JSON: %w", err)
	}
	if len(ext.Keywords) > maxSemanticKeywords {
		ext.Keywords = ext.Keywords[:maxSemanticKeywords]
	}
	return &ext, nil
}
