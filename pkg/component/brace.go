// Copyright (c) Bartłomiej Płotka @bwplotka
// Licensed under the Apache License 2.0.

package component

// MatchBrace returns the offset just after the brace closing the one at src[open].
// String and template literals and comments are skipped, including ${...} substitutions nested in templates.
// It returns false if src[open] is not '{' or the span is not balanced before the end of src.
func MatchBrace(src string, open int) (int, bool) {
	if open < 0 || open >= len(src) || src[open] != '{' {
		return -1, false
	}

	var (
		// For every open brace we remember if closing it returns us into a template literal.
		stack      []bool
		inTemplate bool
	)
	for i := open; i < len(src); i++ {
		c := src[i]
		if inTemplate {
			switch c {
			case '\\':
				i++
			case '`':
				inTemplate = false
			case '$':
				if i+1 < len(src) && src[i+1] == '{' {
					stack = append(stack, true)
					inTemplate = false
					i++
				}
			}
			continue
		}

		switch c {
		case '"', '\'':
			end, ok := skipString(src, i)
			if !ok {
				return -1, false
			}
			i = end
		case '`':
			inTemplate = true
		case '/':
			end, ok := skipComment(src, i)
			if !ok {
				return -1, false
			}
			i = end
		case '{':
			stack = append(stack, false)
		case '}':
			if len(stack) == 0 {
				return -1, false
			}
			inTemplate = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i + 1, true
			}
		}
	}
	return -1, false
}

// skipString returns the offset of the quote closing the string started at src[start].
func skipString(src string, start int) (int, bool) {
	q := src[start]
	for i := start + 1; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case q:
			return i, true
		}
	}
	return -1, false
}

// skipComment returns the offset of the last character of the comment started at src[start].
// For a slash not starting a comment, start is returned.
func skipComment(src string, start int) (int, bool) {
	if start+1 >= len(src) {
		return start, true
	}
	switch src[start+1] {
	case '/':
		for i := start + 2; i < len(src); i++ {
			if src[i] == '\n' {
				return i, true
			}
		}
		// Line comment until the end leaves the brace unclosed.
		return -1, false
	case '*':
		for i := start + 2; i+1 < len(src); i++ {
			if src[i] == '*' && src[i+1] == '/' {
				return i + 1, true
			}
		}
		return -1, false
	}
	return start, true
}
