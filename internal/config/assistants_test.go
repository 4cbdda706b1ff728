package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAssistantsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "assistants.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sampleAssistants = `
[[assistant]]
id = "support-bot"
name = "Support Bot"
model = "openai/gpt-4o-mini"
prompt = "You answer questions about the Example product."
doc_urls = [
  "https://docs.example.com/setup",
  "https://docs.example.com/faq",
]

[[assistant]]
id = "dev-bot"
name = "Developer Bot"
model = "anthropic/claude-3.5-sonnet"
prompt = "You answer API questions."
enable_code_tool = true
`

func TestLoadAssistants(t *testing.T) {
	path := writeAssistantsFile(t, sampleAssistants)

	configs, err := LoadAssistants(path)
	require.NoError(t, err)
	require.Len(t, configs, 2)

	assert.Equal(t, "support-bot", configs[0].ID)
	assert.Equal(t, []string{
		"https://docs.example.com/setup",
		"https://docs.example.com/faq",
	}, configs[0].DocURLs)
	assert.False(t, configs[0].EnableCodeTool)
	assert.True(t, configs[1].EnableCodeTool)
}

func TestLoadAssistantsMissingFields(t *testing.T) {
	path := writeAssistantsFile(t, `
[[assistant]]
id = "broken"
name = "No model or prompt"
`)
	_, err := LoadAssistants(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required")
}

func TestLoadAssistantsDuplicateID(t *testing.T) {
	path := writeAssistantsFile(t, `
[[assistant]]
id = "twin"
model = "openai/gpt-4o-mini"
prompt = "one"

[[assistant]]
id = "twin"
model = "openai/gpt-4o-mini"
prompt = "two"
`)
	_, err := LoadAssistants(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestLoadAssistantsEmptyFile(t *testing.T) {
	path := writeAssistantsFile(t, "# nothing here\n")
	_, err := LoadAssistants(path)
	require.Error(t, err)
}

func TestBuild(t *testing.T) {
	configs, err := LoadAssistants(writeAssistantsFile(t, sampleAssistants))
	require.NoError(t, err)

	assistants := BuildAll(configs)
	require.Len(t, assistants, 2)

	support := assistants["support-bot"]
	require.NotNil(t, support)
	assert.Equal(t, []string{"fetch_documentation", "no_reply_needed"}, support.Tools.Names())

	dev := assistants["dev-bot"]
	require.NotNil(t, dev)
	assert.Equal(t, []string{"fetch_documentation", "no_reply_needed", "run_code"}, dev.Tools.Names())
	assert.True(t, dev.Tools.RequiresPermission("run_code"))
}
