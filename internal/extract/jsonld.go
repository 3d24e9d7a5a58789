package extract

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jamilsultanli/webscraper/internal/urlscope"
)

const jsonLDPriority = urlscope.PriorityInternal

// JSONLD scans <script type="application/ld+json"> blocks, parses each as
// JSON, and recursively walks every string value looking for in-scope
// http(s) URLs (§4.5, design note: "recursive walk over a tagged-value
// tree"). Malformed blocks are skipped, not fatal — one bad script tag
// never aborts the page.
func JSONLD(body []byte, finalURL string, scope ScopeParams) ([]FrontierCandidate, error) {
	base, err := url.Parse(finalURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}

	var candidates []FrontierCandidate

	seen := make(map[string]struct{})

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		var tree any
		if err := json.Unmarshal([]byte(sel.Text()), &tree); err != nil {
			return
		}

		walkJSON(tree, func(s string) {
			if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
				return
			}

			parsed, err := url.Parse(s)
			if err != nil {
				return
			}

			if !urlscope.InScope(parsed.Hostname(), scope.BaseDomain, scope.IncludeSubdomains) {
				return
			}

			resolved := base.ResolveReference(parsed).String()
			if _, dup := seen[resolved]; dup {
				return
			}

			seen[resolved] = struct{}{}

			candidates = append(candidates, FrontierCandidate{
				URL:      resolved,
				Priority: jsonLDPriority,
				Type:     "page",
			})
		})
	})

	return candidates, nil
}

// walkJSON recursively visits every string leaf in a decoded JSON tree
// (object | array | string | number | bool | null), calling visit for each.
func walkJSON(node any, visit func(string)) {
	switch v := node.(type) {
	case string:
		visit(v)
	case []any:
		for _, item := range v {
			walkJSON(item, visit)
		}
	case map[string]any:
		for _, val := range v {
			walkJSON(val, visit)
		}
	}
}
