package markdown

import (
	"regexp"
	"strings"

	"github.com/russross/blackfriday/v2"
)

var (
	headingRe   = regexp.MustCompile(`(?s)<h[1-6]>(.*?)</h[1-6]>`)
	paragraphRe = regexp.MustCompile(`(?s)<p>(.*?)</p>`)
	codeBlockRe = regexp.MustCompile(`(?s)<pre><code(?: class="[^"]*")?>(.*?)</code></pre>`)
	tagRe       = regexp.MustCompile(`</?([a-zA-Z]+)(?:\s[^>]*)?/?>`)
	tagNameRe   = regexp.MustCompile(`</?([a-zA-Z]+)`)
	newlinesRe  = regexp.MustCompile(`\n{3,}`)
)

// Tags Telegram's HTML parse mode accepts. Everything else is
// stripped, keeping the inner text.
var supportedTags = map[string]bool{
	"b":    true,
	"i":    true,
	"u":    true,
	"s":    true,
	"code": true,
	"pre":  true,
	"a":    true,
}

// ToTelegramHTML converts markdown to the HTML subset Telegram accepts
func ToTelegramHTML(markdown string) string {
	if markdown == "" {
		return ""
	}

	html := string(blackfriday.Run([]byte(markdown), blackfriday.WithExtensions(blackfriday.CommonExtensions)))

	return cleanHTMLForTelegram(html)
}

// cleanHTMLForTelegram rewrites blackfriday output into Telegram HTML
func cleanHTMLForTelegram(html string) string {
	// Telegram has no heading tags; render headings bold
	html = headingRe.ReplaceAllString(html, "<b>$1</b>\n")

	// Unwrap paragraphs
	html = paragraphRe.ReplaceAllString(html, "$1\n")

	// Convert <strong>/<em>/<del> to Telegram's short forms
	html = strings.ReplaceAll(html, "<strong>", "<b>")
	html = strings.ReplaceAll(html, "</strong>", "</b>")
	html = strings.ReplaceAll(html, "<em>", "<i>")
	html = strings.ReplaceAll(html, "</em>", "</i>")
	html = strings.ReplaceAll(html, "<del>", "<s>")
	html = strings.ReplaceAll(html, "</del>", "</s>")

	// Telegram renders newlines literally; <br> variants become one
	html = strings.ReplaceAll(html, "<br>", "\n")
	html = strings.ReplaceAll(html, "<br/>", "\n")
	html = strings.ReplaceAll(html, "<br />", "\n")

	// Code fences keep only the outer <pre>
	html = codeBlockRe.ReplaceAllString(html, "<pre>$1</pre>")

	// Lists become bullet lines
	for _, tag := range []string{"<ul>", "</ul>", "<ol>", "</ol>"} {
		html = strings.ReplaceAll(html, tag, "")
	}
	html = strings.ReplaceAll(html, "<li>", "• ")
	html = strings.ReplaceAll(html, "</li>", "\n")

	// Remove any other HTML tags that Telegram doesn't support
	html = tagRe.ReplaceAllStringFunc(html, func(match string) string {
		m := tagNameRe.FindStringSubmatch(match)
		if len(m) > 1 && supportedTags[m[1]] {
			return match
		}
		return ""
	})

	// Clean up extra newlines
	html = newlinesRe.ReplaceAllString(html, "\n\n")

	return strings.TrimSpace(html)
}
