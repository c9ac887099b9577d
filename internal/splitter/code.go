package splitter

import (
	"strings"
)

// splitCode breaks an oversized fenced code block at line boundaries. Every
// produced part is re-wrapped in fences with the original language so chunks
// stay renderable on their own. JSON gets structure-aware treatment first.
func (s *Splitter) splitCode(content string) []string {
	lang, body := unwrapFence(content)

	if lang == "json" || lang == "jsonc" {
		if parts := s.splitJSON(body); parts != nil {
			return wrapAll(lang, parts)
		}
	}

	// Fence overhead counts against the budget
	overhead := len("```"+lang+"\n") + len("\n```")
	limit := s.config.PreferredSize - overhead
	if limit < 1 {
		limit = s.config.PreferredSize
	}

	var parts []string
	var buf strings.Builder
	flush := func() {
		if buf.Len() > 0 {
			parts = append(parts, strings.TrimRight(buf.String(), "\n"))
			buf.Reset()
		}
	}

	for _, line := range strings.SplitAfter(body, "\n") {
		if len(line) > limit {
			flush()
			parts = append(parts, hardSplit(strings.TrimRight(line, "\n"), limit)...)
			continue
		}
		if buf.Len()+len(line) > limit {
			flush()
		}
		buf.WriteString(line)
	}
	flush()

	return wrapAll(lang, parts)
}

// splitJSON splits a JSON document at top-level element boundaries by
// tracking brace and bracket depth. Returns nil when the body is not
// balanced JSON, letting the caller fall back to line splitting.
func (s *Splitter) splitJSON(body string) []string {
	trimmed := strings.TrimSpace(body)
	if len(trimmed) < 2 {
		return nil
	}
	open := trimmed[0]
	if open != '{' && open != '[' {
		return nil
	}

	elements, ok := topLevelElements(trimmed)
	if !ok || len(elements) < 2 {
		return nil
	}

	limit := s.config.PreferredSize
	var parts []string
	var buf strings.Builder
	flush := func() {
		if buf.Len() > 0 {
			parts = append(parts, buf.String())
			buf.Reset()
		}
	}

	for _, el := range elements {
		if len(el) > limit {
			flush()
			parts = append(parts, s.splitText(el, limit)...)
			continue
		}
		if buf.Len() > 0 && buf.Len()+len(el)+1 > limit {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(el)
	}
	flush()

	return parts
}

// topLevelElements walks a JSON container and returns its depth-1 elements
// as source text, split at top-level commas. Strings and escapes are
// honored; unbalanced input reports ok=false.
func topLevelElements(src string) ([]string, bool) {
	var elements []string
	depth := 0
	inString := false
	escaped := false
	start := -1

	emit := func(end int) {
		el := strings.TrimSpace(src[start:end])
		if el != "" {
			elements = append(elements, el)
		}
		start = -1
	}

	for i := 0; i < len(src); i++ {
		c := src[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}

		if depth == 1 && start < 0 && c != ',' && c != '}' && c != ']' && !isJSONSpace(c) {
			start = i
		}

		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth < 0 {
				return nil, false
			}
			if depth == 0 && start >= 0 {
				emit(i)
			}
		case ',':
			if depth == 1 && start >= 0 {
				emit(i)
			}
		}
	}

	if depth != 0 || inString {
		return nil, false
	}
	return elements, true
}

func isJSONSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func unwrapFence(content string) (lang, body string) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return "", content
	}
	rest := content[3:]
	nl := strings.IndexByte(rest, '\n')
	if nl < 0 {
		return strings.TrimSpace(rest), ""
	}
	lang = strings.TrimSpace(rest[:nl])
	body = rest[nl+1:]
	body = strings.TrimSuffix(strings.TrimRight(body, "\n"), "```")
	return lang, strings.TrimRight(body, "\n")
}

func wrapAll(lang string, parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, fencedBlock(lang, p))
	}
	return out
}
