package urlscope

import "strings"

// skipSubstrings are non-content URL fragments: social-share intents,
// auth/login pages, API/ajax endpoints, tracking pixels, and the like.
// None of these carry link-graph value, so they never reach frontier
// admission even when they resolve in-scope.
var skipSubstrings = []string{
	"twitter.com/share", "twitter.com/intent/", "x.com/share", "x.com/intent/",
	"facebook.com/sharer", "facebook.com/share.php",
	"pinterest.com/pin/create", "reddit.com/submit",
	"linkedin.com/shareArticle", "linkedin.com/cws/share",
	"telegram.me/share", "t.me/share", "bsky.app/intent/",
	"api.whatsapp.com/send", "wa.me/",
	"vk.com/share.php", "tumblr.com/share", "getpocket.com/save", "share.flipboard.com",
	"/login", "/signin", "/signup", "/register", "/auth/", "/oauth/", "/cas/login",
	"/wp-json/", "/graphql", "/.well-known/",
	"/track/", "/pixel/", "/beacon/",
	"doubleclick.net", "googlesyndication.com", "googleadservices.com",
	"/print/", "?print=", "&print=", "/email/", "?email=",
	"/ajax/", "/api/", "/_next/static/", "/static/css/", "/static/js/",
	"/wp-content/uploads/", "/wp-includes/",
	"xmlrpc.php",
	"?replytocom=", "?share=", "?action=", "?utm_", "&utm_",
}

// skipSuffixes are path extensions that never yield a crawlable HTML
// page: media, archives, and other non-content asset types.
var skipSuffixes = []string{
	".pdf", ".zip", ".exe", ".dmg", ".mp3", ".mp4", ".avi", ".mov", ".webm", ".flv",
	".rar", ".tar", ".gz", ".7z", ".iso", ".bin", ".apk", ".deb", ".rpm",
	".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".ico", ".bmp", ".tiff",
	".css", ".js", ".woff", ".woff2", ".ttf", ".eot", ".map", ".webmanifest",
	".csv", ".tsv", ".xls", ".xlsx",
	".doc", ".docx", ".ppt", ".pptx", ".odt", ".ods", ".odp",
}

// Skip reports whether rawURL should be discarded before frontier
// admission: a social-share intent, an auth/API endpoint, a tracking
// pixel, or a non-HTML asset, none of which add link-graph value.
func Skip(rawURL string) bool {
	lower := strings.ToLower(rawURL)

	for _, substr := range skipSubstrings {
		if strings.Contains(lower, substr) {
			return true
		}
	}

	return hasSkipSuffix(lower)
}

func hasSkipSuffix(rawURL string) bool {
	path := rawURL
	if idx := strings.Index(path, "?"); idx != -1 {
		path = path[:idx]
	}

	if idx := strings.Index(path, "#"); idx != -1 {
		path = path[:idx]
	}

	for _, suffix := range skipSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}

	return false
}
