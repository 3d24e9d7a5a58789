package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnchorsClassifiesInternalAndExternalLinks(t *testing.T) {
	body := []byte(`<html><body>
		<a href="/about">About</a>
		<a href="https://external.test/page" rel="nofollow">Ext</a>
		<a href="https://external.test/page">Ext dup</a>
	</body></html>`)

	scope := ScopeParams{BaseDomain: "example.test", IncludeSubdomains: true, FollowPagination: true, IncludeLanguageVariants: true}

	result, err := Anchors(body, "https://example.test/", scope)
	require.NoError(t, err)

	require.Len(t, result.Frontier, 1)
	require.Equal(t, "https://example.test/about", result.Frontier[0].URL)

	require.Len(t, result.External, 1, "duplicate external target should be deduped")
	require.True(t, result.External[0].IsNofollow)
	require.Equal(t, "external.test", result.External[0].TargetDomain)
}

func TestAnchorTextIsCollapsedAndTruncated(t *testing.T) {
	long := strings.Repeat("a ", 400)
	body := []byte(`<html><body><a href="https://external.test/x">` + long + `</a></body></html>`)

	scope := ScopeParams{BaseDomain: "example.test"}

	result, err := Anchors(body, "https://example.test/", scope)
	require.NoError(t, err)
	require.Len(t, result.External, 1)
	require.LessOrEqual(t, len(result.External[0].AnchorText), maxAnchorTextLen)
}

func TestScanAnchorsRawFindsHrefAndText(t *testing.T) {
	body := []byte(`<a href="/about" rel="nofollow">About us</a><a href="https://x.test/">x</a>`)

	anchors := scanAnchorsRaw(body)

	require.Len(t, anchors, 2)
	require.Equal(t, "/about", anchors[0].href)
	require.Equal(t, "nofollow", anchors[0].rel)
	require.Equal(t, "About us", anchors[0].text)
}

func TestIsNofollowIsCaseInsensitiveAndTokenized(t *testing.T) {
	require.True(t, isNofollow("NoFollow"))
	require.True(t, isNofollow("noopener nofollow"))
	require.False(t, isNofollow("noopener"))
}
