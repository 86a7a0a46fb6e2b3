// Package htmlrewrite walks an HTML document and rewrites every
// URL-bearing attribute, inline style, inline event handler, SVG link
// attribute, <style> body, and <script> body so the page resolves
// entirely through the proxy, then injects the client runtime script.
package htmlrewrite

import (
	"encoding/json"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"internex/pkg/css"
	"internex/pkg/urlcodec"
)

// urlAttrs are element attributes whose value is a single URL reference.
var urlAttrs = []string{
	"href", "src", "action", "formaction", "poster", "data", "manifest",
	"background", "ping", "cite", "longdesc", "usemap", "archive",
	"codebase", "classid",
}

// eventAttrs are the HTML5 inline event handler attributes.
var eventAttrs = map[string]bool{
	"onabort": true, "onblur": true, "oncanplay": true, "oncanplaythrough": true,
	"onchange": true, "onclick": true, "oncontextmenu": true, "ondblclick": true,
	"ondrag": true, "ondragend": true, "ondragenter": true, "ondragleave": true,
	"ondragover": true, "ondragstart": true, "ondrop": true, "ondurationchange": true,
	"onemptied": true, "onended": true, "onerror": true, "onfocus": true,
	"oninput": true, "oninvalid": true, "onkeydown": true, "onkeypress": true,
	"onkeyup": true, "onload": true, "onloadeddata": true, "onloadedmetadata": true,
	"onloadstart": true, "onmousedown": true, "onmouseenter": true, "onmouseleave": true,
	"onmousemove": true, "onmouseout": true, "onmouseover": true, "onmouseup": true,
	"onpause": true, "onplay": true, "onplaying": true, "onprogress": true,
	"onratechange": true, "onreset": true, "onresize": true, "onscroll": true,
	"onseeked": true, "onseeking": true, "onselect": true, "onshow": true,
	"onstalled": true, "onsubmit": true, "onsuspend": true, "ontimeupdate": true,
	"ontoggle": true, "onvolumechange": true, "onwaiting": true, "onmessage": true,
	"onmessageerror": true, "onbeforeunload": true, "onhashchange": true, "onpopstate": true,
}

var svgTags = map[string]bool{
	"svg": true, "use": true, "image": true, "a": true, "pattern": true,
	"mask": true, "clippath": true, "filter": true, "fegaussianblur": true,
	"feimage": true, "lineargradient": true, "radialgradient": true,
	"marker": true, "symbol": true, "defs": true,
}

var svgURLAttrs = []string{
	"xlink:href", "href", "clip-path", "mask", "filter",
	"fill", "stroke", "marker-start", "marker-mid", "marker-end",
}

// RewriteHTML parses html using an HTML5-conformant parser, rewrites every
// recognized URL-bearing sink, injects the client runtime, and
// re-serializes the document.
func RewriteHTML(proxyOrigin, baseURL, htmlSrc string) string {
	doc, err := html.Parse(strings.NewReader(htmlSrc))
	if err != nil {
		return htmlSrc
	}

	effectiveBase := findBaseHref(doc)
	if effectiveBase == "" {
		effectiveBase = baseURL
	}

	walk(doc, proxyOrigin, effectiveBase)
	injectRuntime(doc, proxyOrigin, effectiveBase)

	var buf strings.Builder
	if err := html.Render(&buf, doc); err != nil {
		return htmlSrc
	}
	return buf.String()
}

func findBaseHref(doc *html.Node) string {
	var found string
	var walkFind func(*html.Node)
	walkFind = func(n *html.Node) {
		if found != "" {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Base {
			for _, a := range n.Attr {
				if strings.EqualFold(a.Key, "href") {
					found = a.Val
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walkFind(c)
			if found != "" {
				return
			}
		}
	}
	walkFind(doc)
	return found
}

func walk(n *html.Node, proxy, base string) {
	if n.Type == html.ElementNode {
		tag := strings.ToLower(n.Data)

		rewriteURLAttrs(n, proxy, base)
		rewriteSrcsetAttr(n, "srcset", proxy, base)
		rewriteSrcsetAttr(n, "imagesrcset", proxy, base)

		if tag == "meta" {
			rewriteMetaRefresh(n, proxy, base)
		}

		if idx := attrIndex(n, "style"); idx >= 0 {
			n.Attr[idx].Val = css.RewriteCSS(proxy, base, n.Attr[idx].Val)
		}

		rewriteEventHandlers(n)
		rewriteSVGAttrs(n, tag, proxy, base)

		if tag == "style" {
			rewriteStyleElement(n, proxy, base)
		}

		if tag == "script" {
			rewriteScriptElement(n)
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, proxy, base)
	}
}

func attrIndex(n *html.Node, key string) int {
	for i, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return i
		}
	}
	return -1
}

func rewriteURLAttrs(n *html.Node, proxy, base string) {
	for i, a := range n.Attr {
		key := strings.ToLower(a.Key)
		for _, want := range urlAttrs {
			if key != want {
				continue
			}
			if encoded, ok := urlcodec.EncodeWithBase(proxy, base, a.Val); ok {
				n.Attr[i].Val = encoded
			}
			break
		}
	}
}

func rewriteSrcsetAttr(n *html.Node, attr, proxy, base string) {
	idx := attrIndex(n, attr)
	if idx < 0 {
		return
	}
	n.Attr[idx].Val = rewriteSrcset(proxy, base, n.Attr[idx].Val)
}

func rewriteSrcset(proxy, base, srcset string) string {
	entries := strings.Split(srcset, ",")
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, " ", 2)
		// SplitN only splits on a space character; when the entry holds
		// no space (e.g. a tab-separated descriptor), fall back to
		// Fields-based splitting.
		urlPart := parts[0]
		var descriptor string
		if len(parts) == 2 {
			descriptor = strings.TrimSpace(parts[1])
		} else {
			fields := strings.Fields(entry)
			urlPart = fields[0]
			if len(fields) > 1 {
				descriptor = strings.Join(fields[1:], " ")
			}
		}
		encoded, ok := urlcodec.EncodeWithBase(proxy, base, urlPart)
		if !ok {
			encoded = urlPart
		}
		if descriptor != "" {
			out = append(out, encoded+" "+descriptor)
		} else {
			out = append(out, encoded)
		}
	}
	return strings.Join(out, ", ")
}

func rewriteMetaRefresh(n *html.Node, proxy, base string) {
	httpEquivIdx := attrIndex(n, "http-equiv")
	if httpEquivIdx < 0 || !strings.EqualFold(n.Attr[httpEquivIdx].Val, "refresh") {
		return
	}
	contentIdx := attrIndex(n, "content")
	if contentIdx < 0 {
		return
	}
	content := n.Attr[contentIdx].Val
	lower := strings.ToLower(content)
	idx := strings.Index(lower, "url=")
	if idx < 0 {
		return
	}
	prefix := content[:idx+4]
	urlPart := strings.TrimSpace(content[idx+4:])
	if encoded, ok := urlcodec.EncodeWithBase(proxy, base, urlPart); ok {
		n.Attr[contentIdx].Val = prefix + encoded
	}
}

func rewriteEventHandlers(n *html.Node) {
	for i, a := range n.Attr {
		if !eventAttrs[strings.ToLower(a.Key)] {
			continue
		}
		n.Attr[i].Val = "__internex.scope(this,function(){ " + a.Val + " }).call(this,event)"
	}
}

func rewriteSVGAttrs(n *html.Node, tag, proxy, base string) {
	if !svgTags[tag] {
		return
	}
	for i, a := range n.Attr {
		key := strings.ToLower(a.Key)
		match := false
		for _, want := range svgURLAttrs {
			if key == want {
				match = true
				break
			}
		}
		if !match {
			continue
		}
		val := a.Val
		if strings.HasPrefix(val, "url(#") || strings.HasPrefix(val, "#") {
			continue
		}
		wrapped := false
		inner := val
		if strings.HasPrefix(val, "url(") && strings.HasSuffix(val, ")") {
			wrapped = true
			inner = strings.Trim(val[4:len(val)-1], " \t\n'\"")
		}
		if strings.HasPrefix(inner, "#") {
			continue
		}
		encoded, ok := urlcodec.EncodeWithBase(proxy, base, inner)
		if !ok {
			continue
		}
		if wrapped {
			n.Attr[i].Val = "url(" + encoded + ")"
		} else {
			n.Attr[i].Val = encoded
		}
	}
}

func rewriteStyleElement(n *html.Node, proxy, base string) {
	var text strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			text.WriteString(c.Data)
		}
	}
	if text.Len() == 0 {
		return
	}
	rewritten := css.RewriteCSS(proxy, base, text.String())
	replaceChildrenWithText(n, rewritten)
}

func rewriteScriptElement(n *html.Node) {
	if attrIndex(n, "src") >= 0 {
		return
	}
	var text strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			text.WriteString(c.Data)
		}
	}
	if text.Len() == 0 {
		return
	}
	wrapped := "(function(__internex_proxy){\n" + text.String() + "\n})(window.__internex);"
	replaceChildrenWithText(n, wrapped)
}

func replaceChildrenWithText(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

func injectRuntime(doc *html.Node, proxyOrigin, baseURL string) {
	var head *html.Node
	var find func(*html.Node)
	find = func(n *html.Node) {
		if head != nil {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Head {
			head = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
			if head != nil {
				return
			}
		}
	}
	find(doc)
	if head == nil {
		return
	}

	baseJSON, err := json.Marshal(baseURL)
	if err != nil {
		baseJSON = []byte(`""`)
	}

	baseScript := &html.Node{
		Type: html.ElementNode, Data: "script", DataAtom: atom.Script,
	}
	baseScript.AppendChild(&html.Node{Type: html.TextNode, Data: "window.__internex_base = " + string(baseJSON) + ";"})

	runtimeScript := &html.Node{
		Type: html.ElementNode, Data: "script", DataAtom: atom.Script,
		Attr: []html.Attribute{{Key: "src", Val: proxyOrigin + "/internex.runtime.js"}},
	}

	first := head.FirstChild
	if first != nil {
		head.InsertBefore(runtimeScript, first)
		head.InsertBefore(baseScript, runtimeScript)
	} else {
		head.AppendChild(baseScript)
		head.AppendChild(runtimeScript)
	}
}
