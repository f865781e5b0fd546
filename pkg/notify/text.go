package notify

import (
	"strings"

	"golang.org/x/net/html"
)

// PlainText renders an HTML fragment as whitespace-normalised text for the
// text/plain alternative part.
func PlainText(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	var lines []string
	var line strings.Builder
	flush := func() {
		if text := strings.Join(strings.Fields(line.String()), " "); text != "" {
			lines = append(lines, text)
		}
		line.Reset()
	}
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		switch node.Type {
		case html.TextNode:
			line.WriteString(node.Data)
			line.WriteString(" ")
		case html.ElementNode:
			switch node.Data {
			case "script", "style", "head":
				return
			case "li":
				flush()
				line.WriteString("- ")
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
		if node.Type == html.ElementNode && isBlock(node.Data) {
			flush()
		}
	}
	walk(doc)
	flush()
	return strings.Join(lines, "\n")
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "br", "div", "li", "h1", "h2", "h3", "tr", "table", "ul", "hr":
		return true
	}
	return false
}
