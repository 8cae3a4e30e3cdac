package utils

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

var (
	// StrictPolicy removes all markup
	StrictPolicy *bluemonday.Policy
	// BodyPolicy for rich message bodies
	BodyPolicy *bluemonday.Policy
)

func init() {
	StrictPolicy = bluemonday.StrictPolicy()

	BodyPolicy = bluemonday.UGCPolicy()

	// Allow additional safe elements for message bodies, including the
	// signature and quoted-reply markup the composer produces
	BodyPolicy.AllowElements("p", "br", "div", "span", "h1", "h2", "h3", "h4", "h5", "h6")
	BodyPolicy.AllowElements("strong", "em", "u", "s", "code", "pre")
	BodyPolicy.AllowElements("ul", "ol", "li")
	BodyPolicy.AllowElements("blockquote")
	BodyPolicy.AllowElements("a", "img")
	BodyPolicy.AllowElements("table", "thead", "tbody", "tr", "th", "td")

	BodyPolicy.AllowAttrs("href").OnElements("a")
	BodyPolicy.AllowAttrs("src", "alt", "title", "width", "height").OnElements("img")
	BodyPolicy.AllowAttrs("class", "id").Globally()
	BodyPolicy.AllowAttrs("style").OnElements("span", "div", "p")

	BodyPolicy.RequireParseableURLs(true)
	BodyPolicy.AllowURLSchemes("http", "https", "mailto")
}

// SanitizeBody sanitizes an HTML message body
func SanitizeBody(body string) string {
	return BodyPolicy.Sanitize(body)
}

// StripHTML removes all HTML tags from content
func StripHTML(body string) string {
	return StrictPolicy.Sanitize(body)
}

// PreviewText extracts the visible text from an HTML body for list previews,
// truncated to maxLen runes. Parsing failures fall back to the strict policy.
func PreviewText(body string, maxLen int) string {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return truncate(strings.TrimSpace(StripHTML(body)), maxLen)
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		if n.Type == html.ElementNode && (n.Data == "style" || n.Data == "script") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return truncate(sb.String(), maxLen)
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-1]) + "…"
}
