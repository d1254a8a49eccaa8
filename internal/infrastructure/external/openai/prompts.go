package openai

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed default_prompts.yaml
var defaultPrompts []byte

// PromptTemplate is one chat prompt with its model parameters
type PromptTemplate struct {
	Temperature  float32 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
	System       string  `yaml:"system"`
	UserTemplate string  `yaml:"user_template"`
}

// PromptConfig holds the prompts used by the quote drafter
type PromptConfig struct {
	QuoteDraft PromptTemplate `yaml:"quote_draft"`
}

// LoadPrompts loads prompt configuration from a YAML file.
// An empty path returns the built-in prompts.
func LoadPrompts(promptsPath string) (*PromptConfig, error) {
	data := defaultPrompts
	if promptsPath != "" {
		var err error
		data, err = os.ReadFile(promptsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompts file: %w", err)
		}
	}

	var prompts PromptConfig
	if err := yaml.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}
	if prompts.QuoteDraft.UserTemplate == "" {
		return nil, fmt.Errorf("prompts file has no quote_draft.user_template")
	}

	// Fail at startup rather than on the first request
	if _, err := template.New("prompt").Parse(prompts.QuoteDraft.UserTemplate); err != nil {
		return nil, fmt.Errorf("invalid quote_draft.user_template: %w", err)
	}

	return &prompts, nil
}

// renderTemplate renders a template with provided data
func renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("prompt").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}
