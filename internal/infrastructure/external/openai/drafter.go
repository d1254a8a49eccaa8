package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/garyjia/cpq-approval/internal/application/port"
)

// Config holds the quote drafter settings
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// QuoteDrafter implements port.QuoteDrafter using OpenAI chat completions.
// Without an API key, or when the model call or its output fails, it falls
// back to keyword matching so quote generation keeps working.
type QuoteDrafter struct {
	client  *openai.Client
	prompts *PromptConfig
	cfg     Config
	now     func() time.Time
	logger  *zap.Logger
}

// NewQuoteDrafter creates a new quote drafter
func NewQuoteDrafter(cfg Config, prompts *PromptConfig, logger *zap.Logger) *QuoteDrafter {
	d := &QuoteDrafter{
		prompts: prompts,
		cfg:     cfg,
		now:     time.Now,
		logger:  logger,
	}

	if cfg.APIKey != "" {
		clientCfg := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
		if cfg.Timeout > 0 {
			clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
		}
		d.client = openai.NewClientWithConfig(clientCfg)
	} else {
		logger.Warn("OpenAI API key not set, quote drafting uses keyword matching")
	}

	return d
}

// draftResponse accepts both "product_name" and "name" for items
type draftResponse struct {
	CustomerName    string  `json:"customer_name"`
	CustomerEmail   string  `json:"customer_email"`
	CustomerCompany string  `json:"customer_company"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	DiscountPercent float64 `json:"discount_percent"`
	Items           []struct {
		ProductName     string  `json:"product_name"`
		Name            string  `json:"name"`
		Description     string  `json:"description"`
		Quantity        float64 `json:"quantity"`
		UnitPrice       float64 `json:"unit_price"`
		DiscountPercent float64 `json:"discount_percent"`
	} `json:"items"`
}

// Draft turns a natural-language request into a quote draft
func (d *QuoteDrafter) Draft(ctx context.Context, prompt string) (*port.QuoteDraft, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("prompt is empty")
	}

	if d.client == nil {
		return KeywordDraft(prompt), nil
	}

	draft, err := d.complete(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		d.logger.Warn("AI quote drafting failed, using keyword fallback", zap.Error(err))
		return KeywordDraft(prompt), nil
	}

	d.logger.Info("Quote drafted",
		zap.String("customer", draft.CustomerName),
		zap.Int("items", len(draft.Items)),
		zap.Float64("discount_percent", draft.DiscountPercent))

	return draft, nil
}

func (d *QuoteDrafter) complete(ctx context.Context, prompt string) (*port.QuoteDraft, error) {
	tmpl := d.prompts.QuoteDraft

	user, err := renderTemplate(tmpl.UserTemplate, map[string]string{
		"Prompt": prompt,
		"Today":  d.now().Format("2006-01-02"),
	})
	if err != nil {
		return nil, err
	}

	temperature := tmpl.Temperature
	if d.cfg.Temperature > 0 {
		temperature = d.cfg.Temperature
	}
	maxTokens := tmpl.MaxTokens
	if d.cfg.MaxTokens > 0 {
		maxTokens = d.cfg.MaxTokens
	}

	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       d.cfg.Model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: tmpl.System},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content

	var parsed draftResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		// Models sometimes wrap the object in prose or code fences
		jsonStr := extractJSON(content)
		if jsonStr == "" {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return parsed.toDraft(), nil
}

func (r *draftResponse) toDraft() *port.QuoteDraft {
	draft := &port.QuoteDraft{
		CustomerName:    strings.TrimSpace(r.CustomerName),
		CustomerEmail:   strings.TrimSpace(r.CustomerEmail),
		CustomerCompany: strings.TrimSpace(r.CustomerCompany),
		Title:           r.Title,
		Description:     r.Description,
		DiscountPercent: r.DiscountPercent,
		Items:           make([]port.DraftItem, 0, len(r.Items)),
	}
	for _, it := range r.Items {
		name := it.ProductName
		if name == "" {
			name = it.Name
		}
		draft.Items = append(draft.Items, port.DraftItem{
			ProductName:     name,
			Description:     it.Description,
			Quantity:        int(it.Quantity),
			UnitPrice:       it.UnitPrice,
			DiscountPercent: it.DiscountPercent,
		})
	}
	return draft
}

// KeywordDraft builds a single-item draft from keywords in the prompt
func KeywordDraft(prompt string) *port.QuoteDraft {
	lower := strings.ToLower(prompt)
	words := strings.Fields(prompt)

	quantity := 1
	for _, w := range words {
		if n, err := strconv.Atoi(w); err == nil && n > 0 {
			quantity = n
			break
		}
	}

	var product string
	var unitPrice float64
	switch {
	case strings.Contains(lower, "license") || strings.Contains(lower, "software"):
		product, unitPrice = "Software License", 2000
	case strings.Contains(lower, "support"):
		product, unitPrice = "Support Package", 5000
	case strings.Contains(lower, "training"):
		product, unitPrice = "Training Services", 1500
	default:
		product, unitPrice = "Professional Services", 200
	}

	// The customer is the first non-numeric word after the last "for"
	customer := ""
	for i := len(words) - 2; i >= 0; i-- {
		if strings.EqualFold(words[i], "for") {
			for _, w := range words[i+1:] {
				if _, err := strconv.Atoi(w); err != nil {
					customer = strings.Trim(w, ".,;:!?")
					break
				}
			}
			break
		}
	}

	description := prompt
	if len(description) > 100 {
		description = description[:100] + "..."
	}

	return &port.QuoteDraft{
		CustomerName: customer,
		Title:        "Quote for " + product,
		Description:  "Generated from: " + description,
		Items: []port.DraftItem{{
			ProductName: product,
			Description: "AI-generated quote item",
			Quantity:    quantity,
			UnitPrice:   unitPrice,
		}},
	}
}

// extractJSON returns the first balanced JSON object in content
func extractJSON(content string) string {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return ""
	}
	end := findJSONEnd(content, start)
	if end <= start {
		return ""
	}
	return content[start:end]
}

// findJSONEnd finds the end of JSON content starting at a given position
func findJSONEnd(content string, start int) int {
	braceCount := 0
	inString := false
	escapeNext := false

	for i := start; i < len(content); i++ {
		char := content[i]

		if escapeNext {
			escapeNext = false
			continue
		}
		if char == '\\' && inString {
			escapeNext = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch char {
		case '{':
			braceCount++
		case '}':
			braceCount--
			if braceCount == 0 {
				return i + 1
			}
		}
	}

	return -1
}

// Verify interface compliance
var _ port.QuoteDrafter = (*QuoteDrafter)(nil)
