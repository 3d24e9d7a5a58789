// Package urlscope canonicalizes URLs, decides same-site vs external
// scope, and classifies URLs for frontier priority assignment.
package urlscope

import (
	"net/url"
	"regexp"
	"strings"
)

const (
	portHTTP  = ":80"
	portHTTPS = ":443"
)

// Canonicalize normalizes rawURL for dedup: lowercases scheme and host,
// strips default ports and the fragment, sorts the query string. Path and
// query values themselves are preserved as-is per the scope predicate.
func Canonicalize(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Host = removeDefaultPort(parsed.Host, parsed.Scheme)
	parsed.Fragment = ""

	if parsed.RawQuery != "" {
		parsed.RawQuery = parsed.Query().Encode()
	}

	return parsed.String(), nil
}

func removeDefaultPort(host, scheme string) string {
	switch {
	case scheme == "http" && strings.HasSuffix(host, portHTTP):
		return strings.TrimSuffix(host, portHTTP)
	case scheme == "https" && strings.HasSuffix(host, portHTTPS):
		return strings.TrimSuffix(host, portHTTPS)
	default:
		return host
	}
}

// Resolve resolves href against base and rejects non-HTTP(S) schemes and
// the javascript:/mailto:/tel:/fragment-only hrefs the spec excludes.
// Returns "" if href should be discarded.
func Resolve(href string, base *url.URL) string {
	trimmed := strings.TrimSpace(href)

	if trimmed == "" || strings.HasPrefix(trimmed, "#") ||
		strings.HasPrefix(trimmed, "javascript:") ||
		strings.HasPrefix(trimmed, "mailto:") ||
		strings.HasPrefix(trimmed, "tel:") {
		return ""
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return ""
	}

	resolved := base.ResolveReference(parsed)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}

	return resolved.String()
}

// BaseDomain returns the lowercased hostname used as the scope anchor.
func BaseDomain(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	return strings.ToLower(parsed.Hostname()), nil
}

// InScope reports whether host is the base domain, or (when subdomains
// are allowed) a subdomain of it.
func InScope(host, baseDomain string, includeSubdomains bool) bool {
	host = strings.ToLower(host)
	if host == baseDomain {
		return true
	}

	if !includeSubdomains {
		return false
	}

	return strings.HasSuffix(host, "."+baseDomain)
}

// The classifier regex sets are part of the public contract: they
// determine frontier admission priority (§4.1/§6) and must not drift
// silently, since a change here reorders a live crawl's fetch order.
var (
	highValueSubstrings = []string{
		"/blog/", "/article/", "/post/", "/news/", "/wiki/", "/page/",
		"/category/", "/tag/", "/archive/", "/search/", "/index",
		"/sitemap", "/directory/", "/list/", "/browse/",
	}

	languageVariantPatterns = []*regexp.Regexp{
		regexp.MustCompile(`/[a-z]{2}/`),
		regexp.MustCompile(`/[a-z]{2}-[a-z]{2}/`),
		regexp.MustCompile(`\.[a-z]{2}\.`),
		regexp.MustCompile(`lang=`),
		regexp.MustCompile(`language=`),
		regexp.MustCompile(`locale=`),
	}

	paginationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`page=\d+`),
		regexp.MustCompile(`p=\d+`),
		regexp.MustCompile(`offset=\d+`),
		regexp.MustCompile(`start=\d+`),
		regexp.MustCompile(`/page/\d+`),
		regexp.MustCompile(`/p\d+`),
		regexp.MustCompile(`/\d+/$`),
		regexp.MustCompile(`next`),
		regexp.MustCompile(`more`),
		regexp.MustCompile(`continue`),
	}

	feedTokens = []string{"rss", "atom", "feed"}
)

// IsHighValue reports whether rawURL matches a high-value path pattern.
func IsHighValue(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, substr := range highValueSubstrings {
		if strings.Contains(lower, substr) {
			return true
		}
	}

	return false
}

// IsLanguageVariant reports whether rawURL looks like a localized variant.
func IsLanguageVariant(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, re := range languageVariantPatterns {
		if re.MatchString(lower) {
			return true
		}
	}

	return false
}

// IsPagination reports whether rawURL looks like a pagination link.
func IsPagination(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, re := range paginationPatterns {
		if re.MatchString(lower) {
			return true
		}
	}

	return false
}

// IsFeed reports whether rawURL's href contains an RSS/Atom/feed token.
func IsFeed(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, tok := range feedTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}

	return false
}

// Fixed admission priorities (§4.1 / §6).
const (
	PriorityStart           = 10
	PrioritySitemapOrRobots = 8
	PriorityHighValue       = 7
	PriorityVariantOrFeed   = 6
	PriorityInternal        = 5
)

// ClassifyPriority picks the admission priority and frontier entry type
// for an in-scope URL discovered via anchor extraction.
func ClassifyPriority(rawURL string, followPagination, includeLanguageVariants bool) (priority int, entryType string) {
	switch {
	case IsHighValue(rawURL):
		return PriorityHighValue, "internal"
	case followPagination && IsPagination(rawURL):
		return PriorityVariantOrFeed, "pagination"
	case includeLanguageVariants && IsLanguageVariant(rawURL):
		return PriorityVariantOrFeed, "internal"
	case IsFeed(rawURL):
		return PriorityVariantOrFeed, "page"
	default:
		return PriorityInternal, "internal"
	}
}

// RegistrableDomain normalizes a host for external-link target_domain
// comparison, stripping a leading www. the way the reference crawler's
// domain-normalization helper does.
func RegistrableDomain(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	return strings.TrimPrefix(host, "www.")
}
