package splitter

import "strings"

// assemble packs a section's pieces into chunks. Pieces are merged greedily
// up to the preferred size; a piece that alone exceeds the preferred size is
// first split by its type-specific splitter.
func (s *Splitter) assemble(sec section) []Chunk {
	var expanded []piece
	for _, p := range sec.pieces {
		if len(p.content) <= s.config.PreferredSize {
			expanded = append(expanded, p)
			continue
		}
		for _, part := range s.splitOversized(p) {
			expanded = append(expanded, piece{content: part, typ: p.typ})
		}
	}

	var chunks []Chunk
	var buf []piece
	bufLen := 0

	flush := func() {
		if len(buf) == 0 {
			return
		}
		chunks = append(chunks, s.finalize(buf, sec))
		buf = nil
		bufLen = 0
	}

	for _, p := range expanded {
		// +2 for the joining blank line
		if bufLen > 0 && bufLen+2+len(p.content) > s.config.PreferredSize {
			flush()
		}
		buf = append(buf, p)
		bufLen += len(p.content)
		if len(buf) > 1 {
			bufLen += 2
		}
	}
	flush()

	return chunks
}

// splitOversized dispatches to the splitter matching the piece type
func (s *Splitter) splitOversized(p piece) []string {
	var parts []string
	switch p.typ {
	case TypeCode:
		parts = s.splitCode(p.content)
	case TypeTable:
		parts = s.splitTable(p.content)
	default:
		parts = s.splitText(p.content, s.config.PreferredSize)
	}

	// Whatever the type splitter produced, nothing may pass the hard cap
	var out []string
	for _, part := range parts {
		if len(part) <= s.config.MaxSize {
			out = append(out, part)
			continue
		}
		for _, sub := range s.splitText(part, s.config.MaxSize) {
			if len(sub) > s.config.MaxSize {
				s.logger.Warn().
					Int("size", len(sub)).
					Int("max", s.config.MaxSize).
					Msg("Truncating unsplittable chunk")
				sub = sub[:s.config.MaxSize]
			}
			out = append(out, sub)
		}
	}
	return out
}

func (s *Splitter) finalize(pieces []piece, sec section) Chunk {
	var parts []string
	seen := make(map[string]bool)
	var types []string
	for _, p := range pieces {
		parts = append(parts, p.content)
		if !seen[p.typ] {
			seen[p.typ] = true
			types = append(types, p.typ)
		}
	}

	path := make([]string, len(sec.path))
	copy(path, sec.path)

	return Chunk{
		Content:      strings.Join(parts, "\n\n"),
		Types:        types,
		SectionLevel: sec.level,
		SectionPath:  path,
	}
}
