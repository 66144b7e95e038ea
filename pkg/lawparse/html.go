package lawparse

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ExtractText pulls the visible law text out of the statute page. The
// content lives in a single div.entry-content container; every text node
// becomes one line.
func ExtractText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse law page: %w", err)
	}

	content := doc.Find("div.entry-content").First()
	if content.Length() == 0 {
		return "", fmt.Errorf("law content container not found")
	}

	var lines []string
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				lines = append(lines, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	for _, node := range content.Nodes {
		collect(node)
	}

	return strings.Join(lines, "\n"), nil
}
