package sources

import (
	"strings"

	"golang.org/x/net/html"
)

// stripHTML reduces feed markup to plain text with collapsed whitespace
func stripHTML(content string) string {
	if !strings.Contains(content, "<") {
		return strings.Join(strings.Fields(html.UnescapeString(content)), " ")
	}

	tokenizer := html.NewTokenizer(strings.NewReader(content))
	var text strings.Builder
	skip := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(text.String()), " ")
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "script", "style":
				skip++
			case "br", "p", "div", "li":
				text.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "script", "style":
				if skip > 0 {
					skip--
				}
			case "p", "div", "li":
				text.WriteByte(' ')
			}
		case html.SelfClosingTagToken:
			text.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				text.Write(tokenizer.Text())
			}
		}
	}
}
