package generator

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Message is one chat message sent to a model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Example is a user/assistant exchange used as a few-shot demonstration.
type Example struct {
	User      string `yaml:"user"`
	Assistant string `yaml:"assistant"`
}

// Prompt is the conversation template for one generation mode.
type Prompt struct {
	System       string    `yaml:"system"`
	Examples     []Example `yaml:"examples"`
	UserTemplate string    `yaml:"user_template"`

	tmpl *template.Template
}

// Prompts holds the templates for both generation modes.
type Prompts struct {
	TopLevel Prompt `yaml:"top_level"`
	Children Prompt `yaml:"children"`
}

// PromptInput carries the values available to user_template.
type PromptInput struct {
	Topic       string
	Title       string
	Description string
}

// DefaultPrompts returns the embedded prompt set.
func DefaultPrompts() (*Prompts, error) {
	return ParsePrompts(defaultPrompts)
}

// ParsePrompts decodes a YAML prompt set and compiles its user templates.
func ParsePrompts(data []byte) (*Prompts, error) {
	var p Prompts
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode prompts: %w", err)
	}
	for name, pr := range map[string]*Prompt{"top_level": &p.TopLevel, "children": &p.Children} {
		if strings.TrimSpace(pr.System) == "" || strings.TrimSpace(pr.UserTemplate) == "" {
			return nil, fmt.Errorf("prompt %s: system and user_template are required", name)
		}
		t, err := template.New(name).Option("missingkey=error").Parse(pr.UserTemplate)
		if err != nil {
			return nil, fmt.Errorf("parse %s user_template: %w", name, err)
		}
		pr.tmpl = t
	}
	return &p, nil
}

// For returns the prompt for mode.
func (p *Prompts) For(mode Mode) *Prompt {
	if mode == ModeChildren {
		return &p.Children
	}
	return &p.TopLevel
}

// Messages renders the full conversation: system, few-shot examples, then the
// rendered user request.
func (p *Prompt) Messages(in PromptInput) ([]Message, error) {
	var sb strings.Builder
	if err := p.tmpl.Execute(&sb, in); err != nil {
		return nil, fmt.Errorf("render user prompt: %w", err)
	}

	msgs := make([]Message, 0, 2+2*len(p.Examples))
	msgs = append(msgs, Message{Role: "system", Content: p.System})
	for _, ex := range p.Examples {
		msgs = append(msgs,
			Message{Role: "user", Content: ex.User},
			Message{Role: "assistant", Content: ex.Assistant},
		)
	}
	msgs = append(msgs, Message{Role: "user", Content: sb.String()})
	return msgs, nil
}
