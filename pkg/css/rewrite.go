// Package css rewrites CSS token streams — stylesheets, style-attribute
// fragments, and CSSOM rule strings — so every URL reference routes
// through the proxy. It is a hand-rolled token-stream tokenizer plus
// recursive re-emitter built on the same token model as CSS Syntax Level
// 3 (see DESIGN.md for the library survey behind that choice).
package css

import (
	"strconv"
	"strings"

	"internex/pkg/urlcodec"
)

// RewriteCSS rewrites a complete CSS fragment: a stylesheet, a
// style="..." attribute value, a <style> element body, or a CSSOM rule
// string. Malformed input is consumed best-effort; whatever has already
// been emitted is kept, and nothing ever panics.
func RewriteCSS(proxyOrigin, baseURL, input string) string {
	tz := newTokenizer(input)
	var out strings.Builder
	out.Grow(len(input))
	inImport := false
	rewriteUntil(tz, proxyOrigin, baseURL, &out, tokEOF, &inImport)
	return out.String()
}

// RewriteInsertRule rewrites a CSS rule string as it would be passed to
// CSSStyleSheet.insertRule().
func RewriteInsertRule(proxyOrigin, baseURL, rule string) string {
	return RewriteCSS(proxyOrigin, baseURL, rule)
}

// RewriteReplaceSync rewrites a full stylesheet string as it would be
// passed to CSSStyleSheet.replace() / replaceSync().
func RewriteReplaceSync(proxyOrigin, baseURL, css string) string {
	return RewriteCSS(proxyOrigin, baseURL, css)
}

// rewriteUntil consumes tokens from tz, writing the rewritten
// serialization to out, until it reads a token of kind closeKind (which
// it also serializes, to close whatever bracket the caller opened) or
// runs out of input. Passing tokEOF as closeKind drives the top-level
// pass over an entire fragment.
func rewriteUntil(tz *tokenizer, proxy, base string, out *strings.Builder, closeKind tokenKind, inImport *bool) {
	for {
		tok := tz.next()

		if tok.kind == tokEOF {
			return
		}
		if tok.kind == closeKind {
			writeCloser(out, tok.kind)
			return
		}

		switch tok.kind {
		case tokUnquotedURL:
			rewritten, ok := urlcodec.EncodeWithBase(proxy, base, tok.text)
			if !ok {
				rewritten = tok.text
			}
			out.WriteString("url(")
			out.WriteString(quoteCSSURL(rewritten))
			out.WriteByte(')')

		case tokFunction:
			switch {
			case strings.EqualFold(tok.text, "url"):
				out.WriteString("url(")
				rewriteURLContextArgs(tz, proxy, base, out)
				out.WriteByte(')')
			case strings.EqualFold(tok.text, "image-set"):
				out.WriteString("image-set(")
				rewriteURLContextArgs(tz, proxy, base, out)
				out.WriteByte(')')
			default:
				out.WriteString(tok.text)
				out.WriteByte('(')
				nested := false
				rewriteUntil(tz, proxy, base, out, tokParenClose, &nested)
			}

		case tokAtKeyword:
			out.WriteByte('@')
			out.WriteString(tok.text)
			switch {
			case strings.EqualFold(tok.text, "import"):
				out.WriteByte(' ')
				*inImport = true
			case strings.EqualFold(tok.text, "namespace"):
				out.WriteByte(' ')
			}

		case tokString:
			if *inImport {
				rewritten, ok := urlcodec.EncodeWithBase(proxy, base, tok.text)
				if !ok {
					rewritten = tok.text
				}
				out.WriteByte('"')
				out.WriteString(escapeCSSString(rewritten))
				out.WriteByte('"')
				*inImport = false
			} else {
				out.WriteByte('"')
				out.WriteString(escapeCSSString(tok.text))
				out.WriteByte('"')
			}

		case tokBadString:
			out.WriteString(tok.text)

		case tokBadURL:
			out.WriteString("url(")
			out.WriteString(tok.text)
			out.WriteByte(')')

		case tokCurlyOpen:
			out.WriteByte('{')
			nestedCurly := false
			rewriteUntil(tz, proxy, base, out, tokCurlyClose, &nestedCurly)

		case tokParenOpen:
			out.WriteByte('(')
			nestedParen := false
			rewriteUntil(tz, proxy, base, out, tokParenClose, &nestedParen)

		case tokSquareOpen:
			out.WriteByte('[')
			nestedSquare := false
			rewriteUntil(tz, proxy, base, out, tokSquareClose, &nestedSquare)

		case tokParenClose:
			out.WriteByte(')')
		case tokCurlyClose:
			out.WriteByte('}')
		case tokSquareClose:
			out.WriteByte(']')

		case tokIdent:
			out.WriteString(tok.text)
		case tokHash:
			out.WriteByte('#')
			out.WriteString(tok.text)
		case tokNumber:
			out.WriteString(formatNumber(tok.value))
		case tokPercentage:
			out.WriteString(formatNumber(tok.value * 100.0))
			out.WriteByte('%')
		case tokDimension:
			out.WriteString(formatNumber(tok.value))
			out.WriteString(tok.unit)
		case tokWhitespace:
			out.WriteByte(' ')
		case tokColon:
			out.WriteByte(':')
		case tokSemicolon:
			*inImport = false
			out.WriteByte(';')
		case tokComma:
			out.WriteByte(',')
		case tokDelim:
			out.WriteRune(tok.delim)
		case tokIncludeMatch:
			out.WriteString("~=")
		case tokDashMatch:
			out.WriteString("|=")
		case tokPrefixMatch:
			out.WriteString("^=")
		case tokSuffixMatch:
			out.WriteString("$=")
		case tokSubstringMatch:
			out.WriteString("*=")
		case tokCDO:
			out.WriteString("<!--")
		case tokCDC:
			out.WriteString("-->")
		case tokComment:
			out.WriteString("/*")
			out.WriteString(tok.text)
			out.WriteString("*/")
		}
	}
}

func writeCloser(out *strings.Builder, kind tokenKind) {
	switch kind {
	case tokParenClose:
		out.WriteByte(')')
	case tokCurlyClose:
		out.WriteByte('}')
	case tokSquareClose:
		out.WriteByte(']')
	}
}

// rewriteURLContextArgs rewrites the argument list of a url(...) or
// image-set(...) function call: quoted strings and nested url() tokens
// are treated as URLs, everything else is serialized faithfully or
// dropped (matching the original's narrow handling of function args).
// It consumes and discards the matching tokParenClose itself; the caller
// writes the closing ')'.
func rewriteURLContextArgs(tz *tokenizer, proxy, base string, out *strings.Builder) {
	for {
		tok := tz.next()
		if tok.kind == tokEOF || tok.kind == tokParenClose {
			return
		}
		switch tok.kind {
		case tokString:
			rewritten, ok := urlcodec.EncodeWithBase(proxy, base, tok.text)
			if !ok {
				rewritten = tok.text
			}
			out.WriteByte('"')
			out.WriteString(escapeCSSString(rewritten))
			out.WriteByte('"')
		case tokUnquotedURL:
			rewritten, ok := urlcodec.EncodeWithBase(proxy, base, tok.text)
			if !ok {
				rewritten = tok.text
			}
			out.WriteString(quoteCSSURL(rewritten))
		case tokFunction:
			if strings.EqualFold(tok.text, "url") {
				out.WriteString("url(")
				rewriteURLContextArgs(tz, proxy, base, out)
				out.WriteByte(')')
			}
		case tokWhitespace:
			out.WriteByte(' ')
		case tokComma:
			out.WriteByte(',')
		case tokNumber:
			out.WriteString(formatNumber(tok.value))
		case tokDimension:
			out.WriteString(formatNumber(tok.value))
			out.WriteString(tok.unit)
		case tokIdent:
			out.WriteString(tok.text)
		case tokDelim:
			out.WriteRune(tok.delim)
		}
	}
}

func quoteCSSURL(url string) string {
	return "\"" + escapeCSSString(url) + "\""
}

func escapeCSSString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\a ")
	return s
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
