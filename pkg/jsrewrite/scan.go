package jsrewrite

// literalMask marks, for every byte offset in src, whether that byte lies
// inside a string/template literal or a comment. It is a single forward
// pass and does not disambiguate `/` division from a regex literal, so a
// regex literal's body is treated as code: a quote or bracket inside one
// can shift the masking or fail the bracket check (leaving the source
// unchanged or rewrites missed), and a sink name inside one is rewritten
// like any other code.
func literalMask(src []byte) ([]bool, bool) {
	mask := make([]bool, len(src))
	i := 0
	for i < len(src) {
		c := src[i]
		switch c {
		case '\'', '"', '`':
			quote := c
			start := i
			i++
			closed := false
			for i < len(src) {
				if src[i] == '\\' && i+1 < len(src) {
					i += 2
					continue
				}
				if src[i] == quote {
					i++
					closed = true
					break
				}
				i++
			}
			if !closed {
				return mask, false
			}
			for j := start; j < i && j < len(mask); j++ {
				mask[j] = true
			}
		case '/':
			if i+1 < len(src) && src[i+1] == '/' {
				start := i
				for i < len(src) && src[i] != '\n' {
					i++
				}
				for j := start; j < i; j++ {
					mask[j] = true
				}
			} else if i+1 < len(src) && src[i+1] == '*' {
				start := i
				i += 2
				closed := false
				for i+1 < len(src) {
					if src[i] == '*' && src[i+1] == '/' {
						i += 2
						closed = true
						break
					}
					i++
				}
				if !closed {
					return mask, false
				}
				for j := start; j < i && j < len(mask); j++ {
					mask[j] = true
				}
			} else {
				i++
			}
		default:
			i++
		}
	}
	return mask, true
}

// bracketsBalanced reports whether every (), {}, [] pair outside literal
// regions is balanced and properly nested. This is a coarse syntax check,
// not a real parser, sufficient to decide whether this shallow rewriter
// should attempt a rewrite at all.
func bracketsBalanced(src []byte, mask []bool) bool {
	var stack []byte
	for i, c := range src {
		if mask[i] {
			continue
		}
		switch c {
		case '(', '{', '[':
			stack = append(stack, c)
		case ')', '}', ']':
			if len(stack) == 0 {
				return false
			}
			top := stack[len(stack)-1]
			if (c == ')' && top != '(') || (c == '}' && top != '{') || (c == ']' && top != '[') {
				return false
			}
			stack = stack[:len(stack)-1]
		}
	}
	return len(stack) == 0
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// matchIdentAt returns the identifier starting exactly at pos, or "" if
// none starts there.
func matchIdentAt(src []byte, pos int) string {
	if pos >= len(src) || !isIdentStart(src[pos]) {
		return ""
	}
	if pos > 0 && isIdentByte(src[pos-1]) {
		return ""
	}
	end := pos + 1
	for end < len(src) && isIdentByte(src[end]) {
		end++
	}
	return string(src[pos:end])
}

func skipSpace(src []byte, pos int) int {
	for pos < len(src) && (src[pos] == ' ' || src[pos] == '\t' || src[pos] == '\n' || src[pos] == '\r') {
		pos++
	}
	return pos
}

// matchingClose returns the index just past the close bracket matching
// the open bracket at src[openPos], or -1 if unmatched.
func matchingClose(src []byte, mask []bool, openPos int) int {
	open := src[openPos]
	var close byte
	switch open {
	case '(':
		close = ')'
	case '{':
		close = '}'
	case '[':
		close = ']'
	default:
		return -1
	}
	depth := 1
	for i := openPos + 1; i < len(src); i++ {
		if mask[i] {
			continue
		}
		switch src[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// splitTopLevelArgs splits the content between a matched pair of parens
// (not including the parens themselves) on top-level commas.
func splitTopLevelArgs(src []byte, mask []bool, innerStart, innerEnd int) []string {
	var args []string
	depth := 0
	last := innerStart
	for i := innerStart; i < innerEnd; i++ {
		if mask[i] {
			continue
		}
		switch src[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, string(src[last:i]))
				last = i + 1
			}
		}
	}
	if last <= innerEnd {
		args = append(args, string(src[last:innerEnd]))
	}
	return args
}

// isStringLiteral reports whether trimmed text is a single quoted string
// literal with no embedded (unescaped) expression interpolation.
func isStringLiteral(s string) (quote byte, inner string, ok bool) {
	t := trimJSSpace(s)
	if len(t) < 2 {
		return 0, "", false
	}
	q := t[0]
	if (q != '\'' && q != '"') || t[len(t)-1] != q {
		return 0, "", false
	}
	inner = t[1 : len(t)-1]
	for i := 0; i < len(inner); i++ {
		if inner[i] == '\\' {
			i++
			continue
		}
		if inner[i] == q {
			return 0, "", false
		}
	}
	return q, inner, true
}

func trimJSSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isJSSpace(s[start]) {
		start++
	}
	for end > start && isJSSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isJSSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
