// Package webpage fetches pages and reduces them to readable text for
// injection into the model context.
package webpage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"wisebot/internal/logging"
)

// Pre-compile regex patterns to avoid recompilation overhead
var (
	multiNewlinePattern = regexp.MustCompile(`\n{3,}`)
	multiSpacePattern   = regexp.MustCompile(`[ \t]{2,}`)
)

// Fetcher retrieves a URL and extracts its text content. It implements
// wisdom.PageFetcher.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
}

// NewFetcher creates a page fetcher. Per-fetch deadlines come from the
// caller's context, not from the HTTP client.
func NewFetcher() *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{},
		userAgent:  "Mozilla/5.0 (compatible; WiseBot/1.0)",
		maxBytes:   2 << 20, // 2MB limit
	}
}

// FetchText retrieves the URL and returns its readable text. HTML is reduced
// to plain text; plain-text responses are returned as-is.
func (f *Fetcher) FetchText(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("url is required")
	}

	logging.FetcherDebug("Web fetch: url=%s", url)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/plain") ||
		strings.Contains(contentType, "text/markdown") {
		return strings.TrimSpace(string(body)), nil
	}

	text, err := ExtractText(string(body))
	if err != nil {
		return "", fmt.Errorf("failed to extract text: %w", err)
	}

	logging.Fetcher("Web fetch completed: %s (%d chars)", url, len(text))
	return text, nil
}

// ExtractText reduces an HTML document to its readable text content.
// Boilerplate containers (scripts, styles, navigation, footers) are skipped.
func ExtractText(htmlContent string) (string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	extractText(doc, &sb, 0)

	return cleanText(sb.String()), nil
}

func extractText(n *html.Node, sb *strings.Builder, depth int) {
	if depth > 50 {
		return // Prevent excessive recursion
	}

	switch n.Type {
	case html.TextNode:
		text := strings.TrimSpace(n.Data)
		if text != "" {
			sb.WriteString(text)
			sb.WriteString(" ")
		}
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "iframe", "svg", "nav", "footer", "header":
			return // Skip these elements
		case "p", "div", "section", "article":
			sb.WriteString("\n\n")
		case "br", "li", "tr":
			sb.WriteString("\n")
		case "h1", "h2", "h3", "h4", "h5", "h6", "title":
			sb.WriteString("\n\n")
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, sb, depth+1)
	}

	if n.Type == html.ElementNode {
		switch n.Data {
		case "h1", "h2", "h3", "h4", "h5", "h6", "title":
			sb.WriteString("\n\n")
		}
	}
}

// cleanText removes excessive whitespace from extracted text.
func cleanText(s string) string {
	s = multiNewlinePattern.ReplaceAllString(s, "\n\n")
	s = multiSpacePattern.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")

	return strings.TrimSpace(s)
}
