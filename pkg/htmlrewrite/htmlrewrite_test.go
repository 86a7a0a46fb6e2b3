package htmlrewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const proxy = "http://px:8080"
const base = "https://example.com/page"

func TestRewritesAnchorHref(t *testing.T) {
	html := `<html><head></head><body><a href="https://example.com/other">link</a></body></html>`
	result := RewriteHTML(proxy, base, html)
	assert.Contains(t, result, "/proxy?url=")
}

func TestRewritesImgSrc(t *testing.T) {
	html := `<html><head></head><body><img src="https://example.com/img.png"></body></html>`
	result := RewriteHTML(proxy, base, html)
	assert.Contains(t, result, "/proxy?url=")
}

func TestRewritesMetaRefresh(t *testing.T) {
	html := `<html><head><meta http-equiv="refresh" content="5;url=https://example.com/new"></head><body></body></html>`
	result := RewriteHTML(proxy, base, html)
	assert.Contains(t, result, "/proxy?url=")
}

func TestInjectsRuntimeScript(t *testing.T) {
	html := "<html><head></head><body></body></html>"
	result := RewriteHTML(proxy, base, html)
	assert.Contains(t, result, "internex.runtime.js")
	assert.Contains(t, result, "__internex_base")
}

func TestRewriteHTMLIsDeterministic(t *testing.T) {
	html := `<html><head></head><body><a href="https://example.com/other">link</a></body></html>`
	first := RewriteHTML(proxy, base, html)
	second := RewriteHTML(proxy, base, html)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, countOccurrences(first, "/proxy?url="))
}

func TestRewritesSrcset(t *testing.T) {
	html := `<html><head></head><body><img srcset="https://example.com/a.png 1x, https://example.com/b.png 2x"></body></html>`
	result := RewriteHTML(proxy, base, html)
	assert.Contains(t, result, "1x")
	assert.Contains(t, result, "2x")
	assert.Equal(t, 2, countOccurrences(result, "/proxy?url="))
}

func TestRewritesInlineStyleAttribute(t *testing.T) {
	html := `<html><head></head><body><div style="background: url(https://example.com/bg.png)"></div></body></html>`
	result := RewriteHTML(proxy, base, html)
	assert.Contains(t, result, "/proxy?url=")
}

func TestWrapsEventHandler(t *testing.T) {
	html := `<html><head></head><body><button onclick="doThing()">go</button></body></html>`
	result := RewriteHTML(proxy, base, html)
	assert.Contains(t, result, "__internex.scope(this,function(){ doThing() }).call(this,event)")
}

func TestRewritesStyleElementBody(t *testing.T) {
	html := `<html><head><style>body { background: url(https://example.com/bg.png); }</style></head><body></body></html>`
	result := RewriteHTML(proxy, base, html)
	assert.Contains(t, result, "/proxy?url=")
}

func TestWrapsInlineScriptBody(t *testing.T) {
	html := `<html><head></head><body><script>console.log(1)</script></body></html>`
	result := RewriteHTML(proxy, base, html)
	assert.Contains(t, result, "(function(__internex_proxy){")
	assert.Contains(t, result, "window.__internex")
}

func TestSkipsExternalScript(t *testing.T) {
	html := `<html><head></head><body><script src="https://example.com/a.js"></script></body></html>`
	result := RewriteHTML(proxy, base, html)
	assert.NotContains(t, result, "function(__internex_proxy)")
}

func TestHonorsBaseHref(t *testing.T) {
	html := `<html><head><base href="https://other.example.com/dir/"></head><body><a href="thing.html">x</a></body></html>`
	result := RewriteHTML(proxy, base, html)
	assert.Contains(t, result, "other.example.com")
}

func TestSVGFragmentReferencesUntouched(t *testing.T) {
	html := `<html><head></head><body><svg><use href="#icon-foo"></use></svg></body></html>`
	result := RewriteHTML(proxy, base, html)
	assert.Contains(t, result, `href="#icon-foo"`)
}

func TestSVGAbsoluteHrefRewritten(t *testing.T) {
	html := `<html><head></head><body><svg><use href="https://example.com/icons.svg#foo"></use></svg></body></html>`
	result := RewriteHTML(proxy, base, html)
	assert.Contains(t, result, "/proxy?url=")
}

func countOccurrences(haystack, needle string) int {
	count := 0
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			count++
			i += len(needle) - 1
		}
	}
	return count
}
