// Package urlcodec canonicalizes URL references so they route through a
// proxy's own origin, and decodes them back to the original upstream URL.
//
// Every other rewriter in this module depends on urlcodec; urlcodec itself
// depends on nothing else here, keeping the package graph a DAG with
// urlcodec at the bottom.
package urlcodec

import (
	"net/url"
	"strings"
)

// queryEncodeSet are the bytes that must be percent-encoded inside the
// url= query value so the result round-trips through ordinary query
// parsers. Controls and space are always encoded; the rest are reserved
// because they have special meaning inside a query string.
const queryEncodeSet = " \"#<>&=+%"

const hexDigits = "0123456789ABCDEF"

func mustEncode(b byte) bool {
	if b < 0x20 || b == 0x7f {
		return true
	}
	return strings.IndexByte(queryEncodeSet, b) >= 0
}

func percentEncode(s string) string {
	var needsEscape bool
	for i := 0; i < len(s); i++ {
		if mustEncode(s[i]) {
			needsEscape = true
			break
		}
	}
	if !needsEscape {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if mustEncode(c) {
			b.WriteByte('%')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0xf])
		} else {
			b.WriteByte(c)
		}
	}
	return b.String()
}

func percentDecode(s string) (string, bool) {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '%' {
			if i+2 >= len(s) {
				return "", false
			}
			hi, ok1 := hexVal(s[i+1])
			lo, ok2 := hexVal(s[i+2])
			if !ok1 || !ok2 {
				return "", false
			}
			b.WriteByte(byte(hi<<4 | lo))
			i += 2
			continue
		}
		b.WriteByte(c)
	}
	return b.String(), true
}

func hexVal(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	default:
		return 0, false
	}
}

func hasScheme(s, scheme string) bool {
	return len(s) >= len(scheme) && strings.EqualFold(s[:len(scheme)], scheme)
}

// Encode canonicalizes raw into a proxy-routed URL. It returns ok=false
// only for unproxiable input (empty, fragment-only, file:). Relative
// references that need a base to resolve are returned unchanged with
// ok=true; use EncodeWithBase when a base URL is available.
func Encode(proxyOrigin, raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", false
	}

	if hasScheme(trimmed, "file:") {
		return "", false
	}

	if hasScheme(trimmed, "javascript:") {
		return trimmed, true
	}

	if hasScheme(trimmed, "data:") {
		return trimmed, true
	}

	if hasScheme(trimmed, "blob:") {
		inner := trimmed[len("blob:"):]
		if encodedInner, ok := Encode(proxyOrigin, inner); ok {
			return "blob:" + encodedInner, true
		}
		return trimmed, true
	}

	if strings.HasPrefix(trimmed, "//") {
		return encodeAbsolute(proxyOrigin, "https:"+trimmed, trimmed)
	}

	if strings.Contains(trimmed, "://") {
		return encodeAbsolute(proxyOrigin, trimmed, trimmed)
	}

	// Bare relative or root-relative: cannot resolve without a base.
	return trimmed, true
}

// EncodeWithBase resolves raw against base before encoding. If base fails
// to parse, it falls back to Encode's base-less behavior.
func EncodeWithBase(proxyOrigin, base, raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", false
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return Encode(proxyOrigin, trimmed)
	}

	refURL, err := url.Parse(trimmed)
	if err != nil {
		return trimmed, true
	}

	resolved := baseURL.ResolveReference(refURL).String()
	return Encode(proxyOrigin, resolved)
}

func encodeAbsolute(proxyOrigin, absolute, fallback string) (string, bool) {
	if _, err := url.Parse(absolute); err != nil {
		return fallback, true
	}
	encoded := percentEncode(absolute)
	origin := strings.TrimSuffix(proxyOrigin, "/")
	return origin + "/proxy?url=" + encoded, true
}

// Decode percent-decodes a url= query value and verifies it parses as an
// absolute URL, returning ok=false on any failure.
func Decode(queryValue string) (string, bool) {
	decoded, ok := percentDecode(queryValue)
	if !ok {
		return "", false
	}
	parsed, err := url.Parse(decoded)
	if err != nil || !parsed.IsAbs() {
		return "", false
	}
	return decoded, true
}
