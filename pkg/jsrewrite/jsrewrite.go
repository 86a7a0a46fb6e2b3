// Package jsrewrite performs a shallow, scan-based rewrite of JavaScript
// source so that network- and DOM-facing sinks route through the proxy at
// runtime instead of being rewritten statically at every call site (the
// exception is literal CSSOM rule strings, which are rewritten statically
// through pkg/css). No
// JavaScript AST or parser library is available anywhere in the example
// pack this module was built from (see DESIGN.md), so rewriting proceeds
// by scanning the token stream for known sink shapes — constructor calls,
// fetch-like calls, property assignments — and wrapping their URL- or
// HTML-bearing arguments in calls to the runtime helpers of the client
// runtime script that htmlrewrite injects, rather than attempting full syntactic
// transformation.
package jsrewrite

import (
	"strings"

	"internex/pkg/css"
)

var ctorNames = map[string]bool{
	"Worker": true, "SharedWorker": true, "WebSocket": true,
	"EventSource": true, "URL": true, "Request": true, "Response": true,
	"RTCPeerConnection": true,
}

var fetchLikeNames = map[string]bool{
	"fetch": true, "sendBeacon": true, "importScripts": true,
}

var evalLikeNames = map[string]bool{
	"eval": true, "Function": true, "setTimeout": true, "setInterval": true,
}

var htmlSinkNames = map[string]bool{
	"insertAdjacentHTML": true, "write": true, "writeln": true,
	"parseFromString": true, "createContextualFragment": true,
}

var cssomSinkNames = map[string]bool{
	"insertRule": true, "replaceSync": true, "replace": true,
}

var urlPropNames = map[string]bool{
	"src": true, "href": true, "action": true, "poster": true,
	"formAction": true, "data": true, "codeBase": true, "background": true,
}

var htmlPropNames = map[string]bool{
	"innerHTML": true, "outerHTML": true,
}

var bareGlobals = map[string]bool{
	"window": true, "self": true, "globalThis": true, "document": true,
	"location": true, "navigator": true, "history": true, "origin": true,
}

var setAttributeURLNames = map[string]bool{
	"href": true, "src": true, "action": true, "formaction": true,
	"poster": true, "data": true, "background": true, "cite": true,
	"longdesc": true, "usemap": true, "archive": true, "codebase": true,
	"classid": true, "xlink:href": true,
}

// RewriteJS rewrites source in place, wrapping recognized sink arguments
// with runtime helper calls. If source does not look like syntactically
// balanced JavaScript (unterminated string, unbalanced brackets), it is
// returned unchanged rather than risk emitting broken output.
func RewriteJS(proxyOrigin, source string) string {
	src := []byte(source)
	mask, ok := literalMask(src)
	if !ok || !bracketsBalanced(src, mask) {
		return source
	}

	r := &rewriter{src: src, mask: mask, proxy: proxyOrigin}
	r.run()
	return r.out.String()
}

type rewriter struct {
	src   []byte
	mask  []bool
	proxy string
	out   strings.Builder
	pos   int
}

func (r *rewriter) run() {
	for r.pos < len(r.src) {
		if r.mask[r.pos] {
			r.out.WriteByte(r.src[r.pos])
			r.pos++
			continue
		}
		if r.tryRewriteAt(r.pos) {
			continue
		}
		r.out.WriteByte(r.src[r.pos])
		r.pos++
	}
}

// tryRewriteAt attempts to recognize and rewrite a sink starting exactly
// at pos. On success it advances r.pos past the consumed text and writes
// the rewritten form to r.out, returning true. On failure it leaves
// r.pos and r.out untouched and returns false.
func (r *rewriter) tryRewriteAt(pos int) bool {
	if ident := matchIdentAt(r.src, pos); ident != "" {
		afterIdent := pos + len(ident)

		if ident == "new" {
			afterSpace := skipSpace(r.src, afterIdent)
			ctor := matchIdentAt(r.src, afterSpace)
			if ctor != "" && ctorNames[ctor] {
				afterCtor := afterSpace + len(ctor)
				if r.rewriteCallFirstArg(pos, afterCtor, "rewriteUrl") {
					return true
				}
			}
			return false
		}

		// Preceded by '.': member access, not a bare global or a
		// standalone call name that should itself be wrapped.
		precededByDot := pos > 0 && !r.mask[pos-1] && r.src[pos-1] == '.'

		if !precededByDot {
			if fetchLikeNames[ident] || evalLikeNames[ident] {
				wrapAll := ident == "importScripts"
				helper := "rewriteUrl"
				if evalLikeNames[ident] {
					helper = "rewriteEval"
				}
				if r.rewriteCallArgs(pos, afterIdent, helper, wrapAll) {
					return true
				}
				return false
			}
			if bareGlobals[ident] {
				if r.alreadyWrappedBefore(pos) {
					return false
				}
				r.out.WriteString("__internex.wrap(" + ident + ")")
				r.pos = afterIdent
				return true
			}
		}

		// Method-style sinks: IDENT immediately followed by '(' used as
		// `.method(...)` regardless of receiver (the receiver text was
		// already copied through before we reached here).
		if htmlSinkNames[ident] && precededByDot {
			argIdx := 0
			if ident == "insertAdjacentHTML" {
				argIdx = 1
			}
			if r.rewriteCallNthArg(pos, afterIdent, argIdx, "rewriteHtml") {
				return true
			}
			return false
		}

		if ident == "setAttribute" && precededByDot {
			if r.rewriteSetAttribute(pos, afterIdent) {
				return true
			}
			return false
		}

		if ident == "open" && precededByDot {
			if r.rewriteCallNthArg(pos, afterIdent, 1, "rewriteUrl") {
				return true
			}
			return false
		}

		if cssomSinkNames[ident] && precededByDot {
			if r.rewriteCSSOMArg(pos, afterIdent, ident) {
				return true
			}
			return false
		}

		// Property assignment sinks: `.prop = value`.
		if precededByDot && (urlPropNames[ident] || htmlPropNames[ident]) {
			if r.rewritePropertyAssignment(pos, afterIdent, ident) {
				return true
			}
			return false
		}
	}
	return false
}

func (r *rewriter) alreadyWrappedBefore(pos int) bool {
	const prefix = "__internex.wrap("
	if pos < len(prefix) {
		return false
	}
	return string(r.src[pos-len(prefix):pos]) == prefix
}

func (r *rewriter) alreadyWrapped(argText string) bool {
	return strings.HasPrefix(trimJSSpace(argText), "__internex.")
}

// rewriteCallFirstArg handles `new Ctor(arg0, ...)`: wrap only arg0.
func (r *rewriter) rewriteCallFirstArg(callStart, afterCallee int, helper string) bool {
	return r.rewriteCallNthArg(callStart, afterCallee, 0, helper)
}

// rewriteCallNthArg parses a call's argument list starting just after the
// callee name, wraps argument n in helper(...), and leaves every other
// argument untouched.
func (r *rewriter) rewriteCallNthArg(callStart, afterCallee, n int, helper string) bool {
	open := skipSpace(r.src, afterCallee)
	if open >= len(r.src) || r.src[open] != '(' || r.mask[open] {
		return false
	}
	closeIdx := matchingClose(r.src, r.mask, open)
	if closeIdx < 0 {
		return false
	}
	args := splitTopLevelArgs(r.src, r.mask, open+1, closeIdx-1)
	if n >= len(args) {
		return false
	}
	r.out.Write(r.src[callStart:open])
	r.out.WriteByte('(')
	for i, arg := range args {
		if i > 0 {
			r.out.WriteByte(',')
		}
		if i == n && !r.alreadyWrapped(arg) {
			r.out.WriteString("__internex." + helper + "(" + trimJSSpace(arg) + ")")
		} else {
			r.out.WriteString(arg)
		}
	}
	r.out.WriteByte(')')
	r.pos = closeIdx
	return true
}

// rewriteCallArgs wraps every argument (wrapAll=true, for importScripts)
// or only the first argument (wrapAll=false, for fetch/sendBeacon/eval-
// likes) of the call starting at callStart.
func (r *rewriter) rewriteCallArgs(callStart, afterCallee int, helper string, wrapAll bool) bool {
	open := skipSpace(r.src, afterCallee)
	if open >= len(r.src) || r.src[open] != '(' || r.mask[open] {
		return false
	}
	closeIdx := matchingClose(r.src, r.mask, open)
	if closeIdx < 0 {
		return false
	}
	args := splitTopLevelArgs(r.src, r.mask, open+1, closeIdx-1)
	if len(args) == 1 && trimJSSpace(args[0]) == "" {
		return false
	}

	r.out.Write(r.src[callStart:open])
	r.out.WriteByte('(')
	for i, arg := range args {
		if i > 0 {
			r.out.WriteByte(',')
		}
		shouldWrap := wrapAll || i == 0
		if shouldWrap && !r.alreadyWrapped(arg) {
			if helper == "rewriteEval" {
				if _, _, ok := isStringLiteral(arg); ok {
					r.out.WriteString("__internex.rewriteEval(" + trimJSSpace(arg) + ")")
				} else {
					r.out.WriteString(arg)
				}
			} else {
				r.out.WriteString("__internex." + helper + "(" + trimJSSpace(arg) + ")")
			}
		} else {
			r.out.WriteString(arg)
		}
	}
	r.out.WriteByte(')')
	r.pos = closeIdx
	return true
}

// rewriteSetAttribute wraps the value argument of el.setAttribute(name,
// value) only when name is a string literal naming a known URL attribute.
func (r *rewriter) rewriteSetAttribute(callStart, afterCallee int) bool {
	open := skipSpace(r.src, afterCallee)
	if open >= len(r.src) || r.src[open] != '(' || r.mask[open] {
		return false
	}
	closeIdx := matchingClose(r.src, r.mask, open)
	if closeIdx < 0 {
		return false
	}
	args := splitTopLevelArgs(r.src, r.mask, open+1, closeIdx-1)
	if len(args) != 2 {
		return false
	}
	_, name, ok := isStringLiteral(args[0])
	if !ok || !setAttributeURLNames[strings.ToLower(name)] {
		return false
	}

	r.out.Write(r.src[callStart:open])
	r.out.WriteByte('(')
	r.out.WriteString(args[0])
	r.out.WriteByte(',')
	if r.alreadyWrapped(args[1]) {
		r.out.WriteString(args[1])
	} else {
		r.out.WriteString("__internex.rewriteUrl(" + trimJSSpace(args[1]) + ")")
	}
	r.out.WriteByte(')')
	r.pos = closeIdx
	return true
}

// rewriteCSSOMArg rewrites insertRule/replaceSync/replace calls whose
// argument is a literal CSS string, using pkg/css directly rather than a
// runtime wrapper, since the rule text is already known statically.
func (r *rewriter) rewriteCSSOMArg(callStart, afterCallee int, method string) bool {
	open := skipSpace(r.src, afterCallee)
	if open >= len(r.src) || r.src[open] != '(' || r.mask[open] {
		return false
	}
	closeIdx := matchingClose(r.src, r.mask, open)
	if closeIdx < 0 {
		return false
	}
	args := splitTopLevelArgs(r.src, r.mask, open+1, closeIdx-1)
	if len(args) == 0 {
		return false
	}
	quote, inner, ok := isStringLiteral(args[0])
	if !ok {
		return false
	}

	var rewritten string
	if method == "insertRule" {
		rewritten = css.RewriteInsertRule(r.proxy, "", inner)
	} else {
		rewritten = css.RewriteReplaceSync(r.proxy, "", inner)
	}

	r.out.Write(r.src[callStart:open])
	r.out.WriteByte('(')
	r.out.WriteByte(quote)
	r.out.WriteString(strings.ReplaceAll(rewritten, string(quote), "\\"+string(quote)))
	r.out.WriteByte(quote)
	for _, rest := range args[1:] {
		r.out.WriteByte(',')
		r.out.WriteString(rest)
	}
	r.out.WriteByte(')')
	r.pos = closeIdx
	return true
}

// rewritePropertyAssignment handles `...prop = expr` where prop is a
// known URL or HTML sink property. It consumes the assigned value up to,
// but not including, its terminator (a top-level ';', ',', ')', ']' or
// '}', or end of input).
func (r *rewriter) rewritePropertyAssignment(propStart, afterProp int, prop string) bool {
	eq := skipSpace(r.src, afterProp)
	if eq >= len(r.src) || r.src[eq] != '=' || r.mask[eq] {
		return false
	}
	// Reject `==`, `===`, `!=` compound operators: only a bare assignment
	// qualifies.
	if eq+1 < len(r.src) && r.src[eq+1] == '=' {
		return false
	}
	if propStart > 0 && !r.mask[propStart-1] {
		switch r.src[propStart-1] {
		case '!', '<', '>', '+', '-', '*', '/', '%', '&', '|', '^':
			return false
		}
	}

	valStart := skipSpace(r.src, eq+1)
	depth := 0
	i := valStart
	for i < len(r.src) {
		if r.mask[i] {
			i++
			continue
		}
		switch r.src[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth == 0 {
				goto done
			}
			depth--
		case ';', ',':
			if depth == 0 {
				goto done
			}
		}
		i++
	}
done:
	valEnd := i
	value := string(r.src[valStart:valEnd])
	if trimJSSpace(value) == "" {
		return false
	}

	helper := "rewriteUrl"
	if htmlPropNames[prop] {
		helper = "rewriteHtml"
	}

	r.out.Write(r.src[propStart:eq])
	r.out.WriteString("= ")
	if r.alreadyWrapped(value) {
		r.out.WriteString(value)
	} else {
		r.out.WriteString("__internex." + helper + "(" + trimJSSpace(value) + ")")
	}
	r.pos = valEnd
	return true
}
