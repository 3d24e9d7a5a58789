// Package extract implements the anchor and JSON-LD link extractors
// (§4.5): turning a fetched page's body into frontier admission candidates
// (in-scope links) and external-link records (out-of-scope links). There
// is no separate feed extractor; anchors whose href carries a feed token
// are classified by urlscope.ClassifyPriority on the anchor path.
package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/jamilsultanli/webscraper/internal/urlscope"
)

const maxAnchorTextLen = 500

// FrontierCandidate is an in-scope link discovered during extraction,
// ready for frontier admission at depth+1.
type FrontierCandidate struct {
	URL      string
	Priority int
	Type     string
}

// ExternalLinkCandidate is an out-of-scope anchor, ready to become an
// external link record once the worker attaches crawl_id/observed_at.
type ExternalLinkCandidate struct {
	TargetURL    string
	TargetDomain string
	AnchorText   string
	Rel          string
	IsNofollow   bool
}

// AnchorResult holds everything the anchor extractor found on one page.
type AnchorResult struct {
	Frontier []FrontierCandidate
	External []ExternalLinkCandidate
}

// ScopeParams carries the scope/priority decisions needed to classify an
// anchor, mirroring the per-crawl options in the configuration table.
type ScopeParams struct {
	BaseDomain              string
	IncludeSubdomains       bool
	FollowPagination        bool
	IncludeLanguageVariants bool
}

// Anchors extracts every <a href="..."> from body, classifying each as an
// internal frontier candidate or an external link candidate. Tolerant of
// malformed markup: goquery's underlying tokenizer recovers from unclosed
// tags the way a hand-rolled tag scanner would have to special-case.
func Anchors(body []byte, finalURL string, scope ScopeParams) (AnchorResult, error) {
	base, err := url.Parse(finalURL)
	if err != nil {
		return AnchorResult{}, err
	}

	anchors, err := collectAnchors(body)
	if err != nil {
		return AnchorResult{}, err
	}

	var result AnchorResult

	seenExternal := make(map[string]struct{})

	for _, a := range anchors {
		resolved := urlscope.Resolve(a.href, base)
		if resolved == "" {
			continue
		}

		target, err := url.Parse(resolved)
		if err != nil {
			continue
		}

		anchorText := normalizeAnchorText(a.text)

		if urlscope.InScope(target.Hostname(), scope.BaseDomain, scope.IncludeSubdomains) {
			if urlscope.Skip(resolved) {
				continue
			}

			priority, entryType := urlscope.ClassifyPriority(resolved, scope.FollowPagination, scope.IncludeLanguageVariants)
			result.Frontier = append(result.Frontier, FrontierCandidate{
				URL:      resolved,
				Priority: priority,
				Type:     entryType,
			})

			continue
		}

		if _, dup := seenExternal[resolved]; dup {
			continue
		}

		seenExternal[resolved] = struct{}{}

		result.External = append(result.External, ExternalLinkCandidate{
			TargetURL:    resolved,
			TargetDomain: urlscope.RegistrableDomain(target.Hostname()),
			AnchorText:   anchorText,
			Rel:          a.rel,
			IsNofollow:   isNofollow(a.rel),
		})
	}

	return result, nil
}

type rawAnchor struct {
	href string
	rel  string
	text string
}

// collectAnchors finds every <a href> via goquery, falling back to a raw
// token-stream scan on the rare document goquery's tree builder rejects
// outright (e.g. non-UTF8 byte sequences breaking the parser's charset
// assumptions). The fallback never builds a DOM, so it survives documents
// malformed enough to defeat even html5 tree-construction tolerance.
func collectAnchors(body []byte) ([]rawAnchor, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return scanAnchorsRaw(body), nil
	}

	var anchors []rawAnchor

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		rel, _ := sel.Attr("rel")
		anchors = append(anchors, rawAnchor{href: href, rel: rel, text: sel.Text()})
	})

	return anchors, nil
}

// scanAnchorsRaw walks the token stream directly, pairing each <a> start
// tag's href/rel attributes with the text up to its matching </a>.
func scanAnchorsRaw(body []byte) []rawAnchor {
	var anchors []rawAnchor

	z := html.NewTokenizer(strings.NewReader(string(body)))

	var current *rawAnchor

	for {
		switch z.Next() {
		case html.ErrorToken:
			return anchors
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "a" {
				continue
			}

			a := rawAnchor{}

			for hasAttr {
				var key, val []byte

				key, val, hasAttr = z.TagAttr()

				switch string(key) {
				case "href":
					a.href = string(val)
				case "rel":
					a.rel = string(val)
				}
			}

			current = &a
		case html.TextToken:
			if current != nil {
				current.text += string(z.Text())
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "a" && current != nil {
				anchors = append(anchors, *current)
				current = nil
			}
		}
	}
}

// isNofollow reports whether the tokenized, lowercased rel attribute
// contains the nofollow token.
func isNofollow(rel string) bool {
	for _, tok := range strings.Fields(strings.ToLower(rel)) {
		if tok == "nofollow" {
			return true
		}
	}

	return false
}

// normalizeAnchorText strips tags (goquery's .Text() already does this),
// collapses whitespace to single spaces, trims, and truncates to 500
// characters per the external-link record contract.
func normalizeAnchorText(text string) string {
	collapsed := collapseWhitespace(text)
	if runes := []rune(collapsed); len(runes) > maxAnchorTextLen {
		return string(runes[:maxAnchorTextLen])
	}

	return collapsed
}

func collapseWhitespace(s string) string {
	var b strings.Builder

	prevSpace := true // trims leading whitespace

	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if !prevSpace {
				b.WriteRune(' ')
			}

			prevSpace = true

			continue
		}

		b.WriteRune(r)

		prevSpace = false
	}

	return strings.TrimSpace(b.String())
}
