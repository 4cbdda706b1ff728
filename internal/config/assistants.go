package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/docpal/docpal/internal/assistant"
)

// AssistantConfig is one assistant profile as declared in TOML.
type AssistantConfig struct {
	// ID is the app identifier chats are keyed by.
	ID string `toml:"id"`
	// Name is the human-readable assistant name.
	Name string `toml:"name"`
	// Model is the default completion model.
	Model string `toml:"model"`
	// Prompt is the assistant-specific instruction text.
	Prompt string `toml:"prompt"`
	// DocURLs lists the documentation pages the assistant answers from.
	DocURLs []string `toml:"doc_urls"`
	// EnableCodeTool adds the permission-gated code runner.
	EnableCodeTool bool `toml:"enable_code_tool"`
}

// assistantsFile is the top-level TOML document shape.
type assistantsFile struct {
	Assistants []AssistantConfig `toml:"assistant"`
}

// LoadAssistants reads and validates assistant profiles from path.
func LoadAssistants(path string) ([]AssistantConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read assistants file: %w", err)
	}
	var file assistantsFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse assistants file: %w", err)
	}
	if len(file.Assistants) == 0 {
		return nil, fmt.Errorf("assistants file %s defines no assistants", path)
	}
	seen := map[string]bool{}
	for i, entry := range file.Assistants {
		if entry.ID == "" || entry.Model == "" || entry.Prompt == "" {
			return nil, fmt.Errorf("assistant %d: id, model and prompt are required", i)
		}
		if seen[entry.ID] {
			return nil, fmt.Errorf("duplicate assistant id %q", entry.ID)
		}
		seen[entry.ID] = true
	}
	return file.Assistants, nil
}

// Build constructs the runtime assistant with its tool registry.
func (c AssistantConfig) Build() *assistant.Assistant {
	tools := []assistant.Tool{
		&assistant.DocsTool{URLs: c.DocURLs},
		&assistant.NoReplyTool{},
	}
	if c.EnableCodeTool {
		tools = append(tools, &assistant.CodeTool{})
	}
	return &assistant.Assistant{
		ID:      c.ID,
		Name:    c.Name,
		Model:   c.Model,
		Prompt:  c.Prompt,
		DocURLs: c.DocURLs,
		Tools:   assistant.NewRegistry(tools),
	}
}

// BuildAll constructs all assistants keyed by id.
func BuildAll(configs []AssistantConfig) map[string]*assistant.Assistant {
	out := make(map[string]*assistant.Assistant, len(configs))
	for _, entry := range configs {
		out[entry.ID] = entry.Build()
	}
	return out
}
