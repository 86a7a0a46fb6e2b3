package jsrewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const proxy = "http://px:8080"

func TestRewritesFetchCall(t *testing.T) {
	result := RewriteJS(proxy, `fetch("https://example.com/api")`)
	assert.Contains(t, result, "__internex.rewriteUrl(")
	assert.Contains(t, result, `"https://example.com/api"`)
}

func TestRewritesFetchWithOptionsArgUntouched(t *testing.T) {
	result := RewriteJS(proxy, `fetch(url, {method: "POST"})`)
	assert.Contains(t, result, "__internex.rewriteUrl(url)")
	assert.Contains(t, result, `{method: "POST"}`)
}

func TestRewritesNewWorkerConstructor(t *testing.T) {
	result := RewriteJS(proxy, `new Worker("/worker.js")`)
	assert.Contains(t, result, "new Worker(__internex.rewriteUrl(")
}

func TestRewritesNewWebSocketConstructor(t *testing.T) {
	result := RewriteJS(proxy, `const ws = new WebSocket(wsUrl);`)
	assert.Contains(t, result, "new WebSocket(__internex.rewriteUrl(wsUrl))")
}

func TestRewritesNewResponseConstructor(t *testing.T) {
	result := RewriteJS(proxy, `new Response(body, {status: 200})`)
	assert.Contains(t, result, "new Response(__internex.rewriteUrl(body)")
}

func TestRewritesNewURLConstructor(t *testing.T) {
	result := RewriteJS(proxy, `new URL("/path", base)`)
	assert.Contains(t, result, `new URL(__internex.rewriteUrl("/path")`)
}

func TestRewritesNewRequestConstructor(t *testing.T) {
	result := RewriteJS(proxy, `new Request("https://example.com/api")`)
	assert.Contains(t, result, "new Request(__internex.rewriteUrl(")
}

func TestRewritesNewSharedWorkerConstructor(t *testing.T) {
	result := RewriteJS(proxy, `new SharedWorker("/worker.js")`)
	assert.Contains(t, result, "new SharedWorker(__internex.rewriteUrl(")
}

func TestRewritesNewEventSourceConstructor(t *testing.T) {
	result := RewriteJS(proxy, `new EventSource("/events")`)
	assert.Contains(t, result, "new EventSource(__internex.rewriteUrl(")
}

func TestIgnoresUnknownConstructor(t *testing.T) {
	result := RewriteJS(proxy, `new Image("foo.png")`)
	assert.Equal(t, `new Image("foo.png")`, result)
}

func TestRewritesImportScriptsAllArgs(t *testing.T) {
	result := RewriteJS(proxy, `importScripts("a.js", "b.js")`)
	assert.Equal(t, 2, countOccurrences(result, "__internex.rewriteUrl("))
}

func TestWrapsEvalStringLiteral(t *testing.T) {
	result := RewriteJS(proxy, `eval("doStuff()")`)
	assert.Contains(t, result, `__internex.rewriteEval("doStuff()")`)
}

func TestDoesNotWrapEvalWithDynamicArg(t *testing.T) {
	result := RewriteJS(proxy, `eval(userInput)`)
	assert.Equal(t, `eval(userInput)`, result)
}

func TestWrapsSetTimeoutStringBody(t *testing.T) {
	result := RewriteJS(proxy, `setTimeout("tick()", 1000)`)
	assert.Contains(t, result, `__internex.rewriteEval("tick()")`)
	assert.Contains(t, result, ", 1000)")
}

func TestWrapsInnerHTMLAssignment(t *testing.T) {
	result := RewriteJS(proxy, `el.innerHTML = "<b>hi</b>";`)
	assert.Contains(t, result, `el.innerHTML = __internex.rewriteHtml("<b>hi</b>");`)
}

func TestWrapsSrcAssignment(t *testing.T) {
	result := RewriteJS(proxy, `img.src = nextUrl;`)
	assert.Contains(t, result, `img.src = __internex.rewriteUrl(nextUrl);`)
}

func TestDoesNotTreatEqualityAsAssignment(t *testing.T) {
	result := RewriteJS(proxy, `if (img.src === other) { x(); }`)
	assert.NotContains(t, result, "rewriteUrl")
}

func TestWrapsInsertAdjacentHTML(t *testing.T) {
	result := RewriteJS(proxy, `el.insertAdjacentHTML("beforeend", html)`)
	assert.Contains(t, result, `__internex.rewriteHtml(html)`)
	assert.Contains(t, result, `"beforeend"`)
}

func TestWrapsParseFromStringFirstArg(t *testing.T) {
	result := RewriteJS(proxy, `parser.parseFromString(html, "text/html")`)
	assert.Contains(t, result, `__internex.rewriteHtml(html)`)
	assert.Contains(t, result, `"text/html"`)
}

func TestWrapsOpenSecondArg(t *testing.T) {
	result := RewriteJS(proxy, `xhr.open("GET", "https://example.com/data")`)
	assert.Contains(t, result, `"GET"`)
	assert.Contains(t, result, "__internex.rewriteUrl(")
}

func TestRewritesSetAttributeKnownURLName(t *testing.T) {
	result := RewriteJS(proxy, `el.setAttribute("href", target)`)
	assert.Contains(t, result, `__internex.rewriteUrl(target)`)
}

func TestDoesNotRewriteSetAttributeUnknownName(t *testing.T) {
	result := RewriteJS(proxy, `el.setAttribute("data-id", value)`)
	assert.Equal(t, `el.setAttribute("data-id", value)`, result)
}

func TestWrapsBareGlobalIdentifier(t *testing.T) {
	result := RewriteJS(proxy, `console.log(window.location.href)`)
	assert.Contains(t, result, "__internex.wrap(window)")
}

func TestDoesNotWrapPropertyNamedLikeGlobal(t *testing.T) {
	result := RewriteJS(proxy, `obj.window = 1;`)
	assert.NotContains(t, result, "__internex.wrap(")
}

func TestRewritesInsertRuleLiteral(t *testing.T) {
	result := RewriteJS(proxy, `sheet.insertRule(".x { background: url(https://example.com/a.png); }")`)
	assert.Contains(t, result, "/proxy?url=")
}

func TestDeterministicOnSameInput(t *testing.T) {
	src := `fetch("https://example.com/api"); el.innerHTML = payload;`
	first := RewriteJS(proxy, src)
	second := RewriteJS(proxy, src)
	assert.Equal(t, first, second)
}

func TestMalformedInputPassesThroughUnchanged(t *testing.T) {
	src := `function broken( { [[[`
	assert.Equal(t, src, RewriteJS(proxy, src))
}

func TestUnterminatedStringPassesThroughUnchanged(t *testing.T) {
	src := `var x = "never closed`
	assert.Equal(t, src, RewriteJS(proxy, src))
}

func TestLeavesPlainCodeAlone(t *testing.T) {
	src := `function add(a, b) { return a + b; }`
	assert.Equal(t, src, RewriteJS(proxy, src))
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
