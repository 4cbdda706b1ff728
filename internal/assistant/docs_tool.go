package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// docsFetchTimeout bounds outbound documentation requests.
const docsFetchTimeout = 10 * time.Second

// docsMaxBytes limits fetched page bodies so tool output stays bounded.
const docsMaxBytes = 1 << 20

// docsMaxChars caps the extracted text returned to the model.
const docsMaxChars = 20000

// DocsTool fetches one of the assistant's documentation pages and returns
// its extracted text content.
type DocsTool struct {
	// URLs is the allowlist of fetchable documentation pages.
	URLs []string
}

// Name returns the tool identifier used in tool calls.
func (t *DocsTool) Name() string {
	return "fetch_documentation"
}

// Description summarizes the fetch behavior for the model.
func (t *DocsTool) Description() string {
	return "Fetch one of the listed documentation pages and return its text content."
}

// Schema describes the supported payload fields.
func (t *DocsTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "URL of the documentation page to fetch. Must be one of the listed documentation URLs.",
			},
			"max_chars": map[string]any{
				"type":        "integer",
				"description": "Maximum number of characters of extracted text to return (default 20000).",
			},
		},
		"required": []string{"url"},
	}
}

// DetailedDescription builds a rich description by preloading every
// documentation page title. Fetch failures degrade to inline error
// strings so conversation setup never aborts on a dead link.
func (t *DocsTool) DetailedDescription(ctx context.Context) string {
	var builder strings.Builder
	builder.WriteString("Fetches the text of a documentation page so you can quote it accurately. Available pages:\n")
	client := &http.Client{Timeout: docsFetchTimeout}
	for _, url := range t.URLs {
		title, err := fetchPageTitle(ctx, client, url)
		if err != nil {
			builder.WriteString(fmt.Sprintf("- %s (unavailable: %v)\n", url, err))
			continue
		}
		builder.WriteString(fmt.Sprintf("- %s — %s\n", url, title))
	}
	builder.WriteString("Call this tool before answering questions about details you are not certain of.")
	return builder.String()
}

// RequiresPermission reports that documentation reads are pre-approved.
func (t *DocsTool) RequiresPermission() bool {
	return false
}

// Cancelable reports that fetches ride on context cancellation only.
func (t *DocsTool) Cancelable() bool {
	return false
}

// Run fetches an allowlisted page and returns its extracted text.
func (t *DocsTool) Run(ctx context.Context, args json.RawMessage, execCtx ExecContext) (ToolResult, error) {
	var payload struct {
		URL      string `json:"url"`
		MaxChars int    `json:"max_chars"`
	}
	if err := json.Unmarshal(args, &payload); err != nil {
		return ToolResult{IsError: true, Content: fmt.Sprintf("invalid input: %v", err)}, nil
	}
	if !t.allowed(payload.URL) {
		return ToolResult{IsError: true, Content: fmt.Sprintf("url %q is not in the documentation list", payload.URL)}, nil
	}
	if !execCtx.Online {
		return ToolResult{IsError: true, Content: "network access is unavailable"}, nil
	}
	maxChars := payload.MaxChars
	if maxChars <= 0 || maxChars > docsMaxChars {
		maxChars = docsMaxChars
	}

	text, err := fetchPageText(ctx, execCtx.Client(), payload.URL)
	if err != nil {
		return ToolResult{IsError: true, Content: fmt.Sprintf("fetch failed: %v", err)}, nil
	}
	if len(text) > maxChars {
		text = text[:maxChars] + "\n[truncated]"
	}
	return ToolResult{Content: text}, nil
}

// allowed reports whether url is one of the configured documentation pages.
func (t *DocsTool) allowed(url string) bool {
	for _, candidate := range t.URLs {
		if candidate == url {
			return true
		}
	}
	return false
}

// fetchPageText retrieves a page and extracts readable text.
func fetchPageText(ctx context.Context, client *http.Client, url string) (string, error) {
	document, err := fetchDocument(ctx, client, url)
	if err != nil {
		return "", err
	}
	// Scripts and styles contribute no readable content.
	document.Find("script, style, nav, footer").Remove()
	text := document.Find("body").Text()
	return collapseWhitespace(text), nil
}

// fetchPageTitle retrieves only the page title.
func fetchPageTitle(ctx context.Context, client *http.Client, url string) (string, error) {
	document, err := fetchDocument(ctx, client, url)
	if err != nil {
		return "", err
	}
	title := strings.TrimSpace(document.Find("title").First().Text())
	if title == "" {
		title = "untitled"
	}
	return title, nil
}

// fetchDocument performs a bounded GET and parses the body as HTML.
func fetchDocument(ctx context.Context, client *http.Client, url string) (*goquery.Document, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	request.Header.Set("User-Agent", "docpal/1.0")
	response, err := client.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", response.StatusCode)
	}
	limited := io.LimitReader(response.Body, docsMaxBytes)
	return goquery.NewDocumentFromReader(limited)
}

// collapseWhitespace normalizes runs of whitespace into single separators.
func collapseWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.Join(strings.Fields(line), " ")
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n")
}
