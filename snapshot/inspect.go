package snapshot

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// ErrorMessageSelector matches the banners the portal uses for login errors.
const ErrorMessageSelector = `[class*="error"], [class*="alert"], .dl-alert`

var errorMessageMatcher = cascadia.MustCompile(ErrorMessageSelector)

// ErrorMessages returns the trimmed, non-empty text of every element matching
// ErrorMessageSelector, in document order.
func ErrorMessages(rawHTML string) ([]string, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}

	var out []string
	for _, node := range cascadia.QueryAll(doc, errorMessageMatcher) {
		if text := collapseSpace(nodeText(node)); text != "" {
			out = append(out, text)
		}
	}
	return out, nil
}

// InputInfo describes one <input> element for the login debug dump.
type InputInfo struct {
	Type        string
	ID          string
	Name        string
	Placeholder string
	Class       string
}

// DescribeInputs lists every input on the page with placeholder values for
// missing attributes, so a log line always shows all five fields.
func DescribeInputs(rawHTML string) ([]InputInfo, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}

	attr := func(s *goquery.Selection, name, fallback string) string {
		if v, ok := s.Attr(name); ok && v != "" {
			return v
		}
		return fallback
	}

	var out []InputInfo
	doc.Find("input").Each(func(_ int, s *goquery.Selection) {
		out = append(out, InputInfo{
			Type:        attr(s, "type", "text"),
			ID:          attr(s, "id", "no-id"),
			Name:        attr(s, "name", "no-name"),
			Placeholder: attr(s, "placeholder", "no-placeholder"),
			Class:       attr(s, "class", "no-class"),
		})
	})
	return out, nil
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
