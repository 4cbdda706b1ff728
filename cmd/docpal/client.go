package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/docpal/docpal/internal/agent"
	"github.com/docpal/docpal/internal/assistant"
	"github.com/docpal/docpal/internal/chat"
	"github.com/docpal/docpal/internal/config"
	"github.com/docpal/docpal/internal/llm/openrouter"
	"github.com/docpal/docpal/internal/logging"
	"github.com/docpal/docpal/internal/pricing"
)

// Styles for the line-oriented client.
var (
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	toolStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	usageStyle  = lipgloss.NewStyle().Faint(true)
)

// clientOptions holds the flags shared by ask and chat.
type clientOptions struct {
	// App selects the assistant profile by id.
	App string
	// Model overrides the assistant's default model.
	Model string
	// AssistantsPath overrides the assistants TOML location.
	AssistantsPath string
	// Yes auto-approves permission-gated tool calls.
	Yes bool
}

// register binds the shared flags onto a flag set.
func (o *clientOptions) register(flags *pflag.FlagSet) {
	flags.StringVar(&o.App, "app", "", "assistant id to talk to (required)")
	flags.StringVar(&o.Model, "model", "", "override the assistant's model")
	flags.StringVar(&o.AssistantsPath, "assistants", "", "path to assistants.toml")
	flags.BoolVar(&o.Yes, "yes", false, "approve permission-gated tools without prompting")
}

// clientSession bundles everything a CLI conversation needs.
type clientSession struct {
	Profile *assistant.Assistant
	Runner  *agent.Runner
	Model   string
}

// newClientSession loads configuration, resolves the assistant, and
// builds a runner talking directly to OpenRouter.
func newClientSession(opts *clientOptions) (*clientSession, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.AssistantsPath != "" {
		cfg.AssistantsPath = opts.AssistantsPath
	}
	if opts.App == "" {
		return nil, errors.New("--app is required")
	}

	profiles, err := config.LoadAssistants(cfg.AssistantsPath)
	if err != nil {
		return nil, err
	}
	assistants := config.BuildAll(profiles)
	profile, ok := assistants[opts.App]
	if !ok {
		return nil, fmt.Errorf("unknown assistant %q (known: %s)", opts.App, strings.Join(assistantIDs(profiles), ", "))
	}

	apiKey := cfg.OpenRouterAPIKey
	if apiKey == "" {
		apiKey, err = promptAPIKey()
		if err != nil {
			return nil, err
		}
	}

	logger := logging.New(logging.ParseEnvironment(cfg.Env))
	client := openrouter.NewClient(cfg.OpenRouterBaseURL, apiKey, time.Duration(cfg.RequestTimeoutMS)*time.Millisecond, logger)
	client.SetAppInfo(cfg.AppReferer, cfg.AppTitle)

	runner := &agent.Runner{
		Client:        client,
		Prices:        pricing.DefaultTable(),
		AskPermission: permissionPrompt(opts.Yes),
		Exec: assistant.ExecContext{
			Online: true,
			Logger: logger,
		},
		Logger: logger,
	}

	model := opts.Model
	if model == "" {
		model = profile.Model
	}
	return &clientSession{Profile: profile, Runner: runner, Model: model}, nil
}

// assistantIDs lists configured assistant ids for error messages.
func assistantIDs(profiles []config.AssistantConfig) []string {
	ids := make([]string, 0, len(profiles))
	for _, profile := range profiles {
		ids = append(ids, profile.ID)
	}
	return ids
}

// promptAPIKey reads the OpenRouter key without echoing it.
func promptAPIKey() (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("DOCPAL_OPENROUTER_API_KEY is not set")
	}
	fmt.Fprint(os.Stderr, "OpenRouter API key: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read api key: %w", err)
	}
	key := strings.TrimSpace(string(raw))
	if key == "" {
		return "", errors.New("api key is required")
	}
	return key, nil
}

// permissionPrompt builds the interactive permission gate. The tool loop
// suspends on stdin until the user answers.
func permissionPrompt(autoApprove bool) agent.PermissionFunc {
	reader := bufio.NewReader(os.Stdin)
	return func(ctx context.Context, call openrouter.ToolCall) (bool, error) {
		if autoApprove {
			return true, nil
		}
		fmt.Println(toolStyle.Render(fmt.Sprintf("Tool %s wants to run with arguments: %s", call.Function.Name, call.Function.Arguments)))
		fmt.Print(promptStyle.Render("Allow? [y/N] "))
		line, err := reader.ReadString('\n')
		if err != nil {
			return false, fmt.Errorf("read approval: %w", err)
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	}
}

// renderMarkdown renders assistant markdown for the terminal, falling
// back to plain text when rendering fails.
func renderMarkdown(text string) string {
	width := 100
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 20 {
		width = w - 2
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return text
	}
	rendered, err := renderer.Render(text)
	if err != nil {
		return text
	}
	return rendered
}

// printUsage shows the turn's token and cost summary.
func printUsage(usage pricing.Usage) {
	fmt.Println(usageStyle.Render(fmt.Sprintf(
		"tokens: %d prompt / %d completion, cost: $%.4f",
		usage.PromptTokens, usage.CompletionTokens, usage.EstimatedCost,
	)))
}

// clientCallbacks renders live progress for the line-oriented client.
// Partial content is shown as it streams; the cumulative text arrives on
// every delta, so only the unseen suffix is printed.
func clientCallbacks() *agent.Callbacks {
	printed := 0
	return &agent.Callbacks{
		OnPartialContent: func(cumulative string) {
			if len(cumulative) > printed {
				fmt.Print(cumulative[printed:])
				printed = len(cumulative)
			}
		},
		OnAssistantMessage: func(message chat.Message) {
			if len(message.ToolCalls) > 0 {
				fmt.Println()
				for _, call := range message.ToolCalls {
					fmt.Println(toolStyle.Render("→ calling " + call.Function.Name))
				}
			}
			printed = 0
		},
		OnToolResult: func(call openrouter.ToolCall, message chat.Message, result assistant.ToolResult) {
			status := "done"
			if result.IsError {
				status = errorStyle.Render("error")
			}
			fmt.Println(toolStyle.Render(fmt.Sprintf("← %s %s", call.Function.Name, status)))
		},
	}
}
