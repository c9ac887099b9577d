package splitter

import "strings"

// splitTable breaks an oversized markdown table at row boundaries. The
// header and delimiter rows are repeated on every part so each chunk remains
// a complete table.
func (s *Splitter) splitTable(content string) []string {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) < 3 {
		// Too small to be a splittable table; treat as text
		return s.splitText(content, s.config.PreferredSize)
	}

	header := lines[0] + "\n" + lines[1]
	rows := lines[2:]
	limit := s.config.PreferredSize

	var parts []string
	current := header
	currentRows := 0

	flush := func() {
		if currentRows > 0 {
			parts = append(parts, current)
		}
		current = header
		currentRows = 0
	}

	for _, row := range rows {
		if len(row) > limit {
			// A single row wider than the budget cannot keep table shape
			flush()
			parts = append(parts, s.splitText(row, limit)...)
			continue
		}
		if len(current)+1+len(row) > limit && currentRows > 0 {
			flush()
		}
		current += "\n" + row
		currentRows++
	}
	flush()

	return parts
}
