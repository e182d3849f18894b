// Package research fetches short encyclopedia summaries for a topic.
package research

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/kaiassist/kai/internal/core"
	"github.com/kaiassist/kai/internal/logging"
)

// maxBody bounds how much of a page is read
const maxBody = 2 << 20

// Config configures the client
type Config struct {
	BaseURL       string        // e.g. https://en.wikipedia.org
	Timeout       time.Duration // Per-request timeout
	MaxParagraphs int           // Paragraphs kept in a summary
	UserAgent     string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		BaseURL:       "https://en.wikipedia.org",
		Timeout:       10 * time.Second,
		MaxParagraphs: 3,
		UserAgent:     "kai-assistant/0.1",
	}
}

// Client summarizes topics from a MediaWiki site
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a research client
func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxParagraphs <= 0 {
		cfg.MaxParagraphs = def.MaxParagraphs
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// ArticleURL returns the page fetched for topic
func (c *Client) ArticleURL(topic string) string {
	title := strings.ReplaceAll(strings.TrimSpace(topic), " ", "_")
	return c.config.BaseURL + "/wiki/" + url.PathEscape(title)
}

// Summarize returns the first paragraphs of the article for topic, one per line
func (c *Client) Summarize(ctx context.Context, topic string) (string, error) {
	if strings.TrimSpace(topic) == "" {
		return "", fmt.Errorf("%w: research topic", core.ErrMissingRequired)
	}

	target := c.ArticleURL(topic)
	log := logging.WithField("url", target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrResearchFailed, err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrResearchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: HTTP %d", core.ErrResearchFailed, resp.StatusCode)
	}

	paragraphs, err := Paragraphs(io.LimitReader(resp.Body, maxBody), c.config.MaxParagraphs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrResearchFailed, err)
	}

	log.Debug("fetched %d paragraphs", len(paragraphs))
	return strings.Join(paragraphs, "\n"), nil
}

// Paragraphs returns the text of up to max non-empty <p> elements in document order
func Paragraphs(r io.Reader, max int) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var out []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(out) >= max {
			return
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "p":
				if text := nodeText(n); text != "" {
					out = append(out, text)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return out, nil
}

// nodeText flattens the text under n, skipping citation markers
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "sup":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	return strings.Join(strings.Fields(sb.String()), " ")
}

// Format renders a summary for the user. An empty summary still
// produces the header and next-steps line.
func Format(topic, summary string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Here's a quick summary of '%s':\n", strings.TrimSpace(topic))
	if summary != "" {
		sb.WriteString(summary)
		sb.WriteString("\n")
	}
	sb.WriteString("💡 Suggested next steps: check latest news or reports.")
	return sb.String()
}
