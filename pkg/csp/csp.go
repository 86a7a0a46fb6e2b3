// Package csp rewrites Content-Security-Policy header values so that
// proxied resources are allowed through the policy the origin server set.
package csp

import (
	"strings"

	"internex/pkg/urlcodec"
)

// sourceListDirectives are the directives whose value is a source list we
// extend with the proxy and upstream origins.
var sourceListDirectives = map[string]bool{
	"default-src":  true,
	"script-src":   true,
	"style-src":    true,
	"img-src":      true,
	"connect-src":  true,
	"frame-src":    true,
	"worker-src":   true,
	"child-src":    true,
	"manifest-src": true,
	"media-src":    true,
	"font-src":     true,
	"object-src":   true,
	"base-uri":     true,
	"form-action":  true,
}

// stripDirectives are removed outright because they interfere with
// proxying a mixed-scheme page.
var stripDirectives = map[string]bool{
	"upgrade-insecure-requests": true,
	"block-all-mixed-content":   true,
}

// RewriteCSP rewrites a full Content-Security-Policy header value.
func RewriteCSP(proxyOrigin, upstreamOrigin, csp string) string {
	var outDirectives []string

	for _, directive := range strings.Split(csp, ";") {
		directive = strings.TrimSpace(directive)
		if directive == "" {
			continue
		}

		parts := strings.Fields(directive)
		if len(parts) == 0 {
			continue
		}

		name := strings.ToLower(parts[0])

		if stripDirectives[name] {
			continue
		}

		if sourceListDirectives[name] {
			rewritten := rewriteSourceList(proxyOrigin, upstreamOrigin, parts[1:])
			outDirectives = append(outDirectives, name+" "+rewritten)
		} else {
			outDirectives = append(outDirectives, strings.Join(parts, " "))
		}
	}

	return strings.Join(outDirectives, "; ")
}

// rewriteSourceList rewrites the value tokens of a single source-list
// directive. See DESIGN.md for the two deliberately
// preserved quirks: has_proxy_origin never actually suppresses the
// append below it, and rewritten URL sources are emitted alongside
// (not instead of) the original token.
func rewriteSourceList(proxyOrigin, upstreamOrigin string, values []string) string {
	var out []string
	hasProxyOrigin := false

	for _, val := range values {
		if val == "*" || val == "'none'" {
			out = append(out, val)
			continue
		}

		if strings.HasPrefix(val, "'") && strings.HasSuffix(val, "'") {
			out = append(out, val)
			continue
		}

		if strings.HasSuffix(val, ":") && !strings.Contains(val, "/") {
			out = append(out, val)
			continue
		}

		if encoded, ok := urlcodec.Encode(proxyOrigin, val); ok {
			out = append(out, encoded)
		} else {
			out = append(out, val)
		}
		out = append(out, val)
	}

	if !hasProxyOrigin {
		out = append(out, proxyOrigin)
	}

	found := false
	for _, v := range out {
		if v == upstreamOrigin {
			found = true
			break
		}
	}
	if !found {
		out = append(out, upstreamOrigin)
	}

	return strings.Join(out, " ")
}

// ExtractNonce returns the first 'nonce-X' token value found anywhere in
// csp, unquoted.
func ExtractNonce(csp string) (string, bool) {
	for _, directive := range strings.Split(csp, ";") {
		directive = strings.TrimSpace(directive)
		for _, part := range strings.Fields(directive) {
			if strings.HasPrefix(part, "'nonce-") && strings.HasSuffix(part, "'") {
				return part[len("'nonce-") : len(part)-1], true
			}
		}
	}
	return "", false
}
