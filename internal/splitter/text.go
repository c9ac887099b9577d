package splitter

import "strings"

// Separator preference for text splitting, coarsest first. The final empty
// separator means "split anywhere" and guarantees termination.
var textSeparators = []string{
	"\n\n", "\n", " ", "\t",
	".", ",", ";", ":", "-",
	"(", ")", "[", "]", "{", "}",
	"",
}

// splitText recursively splits text at the coarsest boundary that produces
// parts within limit. Adjacent small fragments are re-merged so the output
// stays close to the limit instead of degrading into shards.
func (s *Splitter) splitText(content string, limit int) []string {
	return splitRecursive(content, limit, 0)
}

func splitRecursive(content string, limit int, sepIndex int) []string {
	if len(content) <= limit {
		if strings.TrimSpace(content) == "" {
			return nil
		}
		return []string{content}
	}
	if sepIndex >= len(textSeparators) {
		return hardSplit(content, limit)
	}

	sep := textSeparators[sepIndex]
	if sep == "" {
		return hardSplit(content, limit)
	}

	fragments := strings.Split(content, sep)
	if len(fragments) == 1 {
		return splitRecursive(content, limit, sepIndex+1)
	}

	// Keep the separator attached to the preceding fragment so no
	// characters are lost in the round trip
	for i := 0; i < len(fragments)-1; i++ {
		fragments[i] += sep
	}

	var out []string
	var buf strings.Builder
	flush := func() {
		if buf.Len() == 0 {
			return
		}
		part := buf.String()
		buf.Reset()
		if strings.TrimSpace(part) == "" {
			return
		}
		out = append(out, part)
	}

	for _, frag := range fragments {
		if len(frag) > limit {
			flush()
			out = append(out, splitRecursive(frag, limit, sepIndex+1)...)
			continue
		}
		if buf.Len()+len(frag) > limit {
			flush()
		}
		buf.WriteString(frag)
	}
	flush()

	return out
}

// hardSplit cuts at exact character offsets, the last resort for content
// with no usable boundaries.
func hardSplit(content string, limit int) []string {
	var out []string
	for len(content) > limit {
		out = append(out, content[:limit])
		content = content[limit:]
	}
	if content != "" {
		out = append(out, content)
	}
	return out
}
