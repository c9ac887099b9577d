package splitter

import (
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	gmtext "github.com/yuin/goldmark/text"
)

// piece is one block-level unit before chunk assembly
type piece struct {
	content string
	typ     string
}

// section groups the pieces under one heading
type section struct {
	level  int
	path   []string
	pieces []piece
}

// Splitter breaks markdown documents into chunks along their structure:
// heading sections first, then block boundaries, then progressively finer
// text boundaries for oversized blocks.
type Splitter struct {
	config Config
	parser goldmark.Markdown
	logger arbor.ILogger
}

func New(config Config, logger arbor.ILogger) *Splitter {
	return &Splitter{
		config: config.normalized(),
		parser: goldmark.New(goldmark.WithExtensions(extension.GFM)),
		logger: logger,
	}
}

// Split chunks a markdown document. Every returned chunk is at most
// Config.MaxSize characters; empty input yields no chunks.
func (s *Splitter) Split(markdown string) []Chunk {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return nil
	}

	sections := s.sectionize([]byte(markdown))

	var chunks []Chunk
	for _, sec := range sections {
		chunks = append(chunks, s.assemble(sec)...)
	}
	return chunks
}

// sectionize walks the document AST and groups top-level blocks under their
// governing headings. The heading path behaves like a stack: an H2 closes
// every open section at level 2 or deeper.
func (s *Splitter) sectionize(source []byte) []section {
	doc := s.parser.Parser().Parse(gmtext.NewReader(source))

	var sections []section
	current := section{level: 0}
	var stack []headingFrame

	flush := func() {
		if len(current.pieces) > 0 {
			sections = append(sections, current)
		}
	}

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		if heading, ok := node.(*ast.Heading); ok {
			flush()
			title := nodeText(heading, source)

			for len(stack) > 0 && stack[len(stack)-1].level >= heading.Level {
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, headingFrame{level: heading.Level, title: title})

			path := make([]string, len(stack))
			for i, f := range stack {
				path[i] = f.title
			}

			// Level counts ancestors actually present, so it always equals
			// the path depth even when a document skips heading levels
			current = section{level: len(stack), path: path}
			current.pieces = append(current.pieces, piece{
				content: strings.Repeat("#", heading.Level) + " " + title,
				typ:     TypeHeading,
			})
			continue
		}

		content, typ := s.renderBlock(node, source)
		if strings.TrimSpace(content) == "" {
			continue
		}
		current.pieces = append(current.pieces, piece{content: content, typ: typ})
	}
	flush()

	return sections
}

type headingFrame struct {
	level int
	title string
}

// renderBlock reconstructs a block's markdown source and classifies it
func (s *Splitter) renderBlock(node ast.Node, source []byte) (string, string) {
	switch n := node.(type) {
	case *ast.FencedCodeBlock:
		lang := string(n.Language(source))
		return fencedBlock(lang, segmentText(n.Lines(), source)), TypeCode
	case *ast.CodeBlock:
		return fencedBlock("", segmentText(n.Lines(), source)), TypeCode
	case *extast.Table:
		return rawSpan(n, source), TypeTable
	default:
		return rawSpan(node, source), TypeText
	}
}

// rawSpan returns the original source text covering a node, including any
// nested children that own their own line segments (lists, quotes). Only
// block nodes carry line segments; goldmark panics when Lines is called on
// an inline node.
func rawSpan(node ast.Node, source []byte) string {
	start, stop := -1, -1
	var visit func(n ast.Node)
	visit = func(n ast.Node) {
		if n.Type() != ast.TypeBlock {
			return
		}
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			if start < 0 || seg.Start < start {
				start = seg.Start
			}
			if seg.Stop > stop {
				stop = seg.Stop
			}
		}
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			visit(c)
		}
	}
	visit(node)
	if start < 0 || stop <= start {
		return ""
	}
	// Segments can begin mid-line (table cells start after the leading pipe,
	// list items after their marker); widen to the start of the line so the
	// reconstructed block is valid markdown on its own.
	for start > 0 && source[start-1] != '\n' {
		start--
	}
	return strings.TrimRight(string(source[start:stop]), "\n")
}

func segmentText(lines *gmtext.Segments, source []byte) string {
	var sb strings.Builder
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(source))
	}
	return sb.String()
}

func fencedBlock(lang, body string) string {
	body = strings.TrimRight(body, "\n")
	return "```" + lang + "\n" + body + "\n```"
}

// nodeText collects the plain text of an inline container
func nodeText(node ast.Node, source []byte) string {
	var sb strings.Builder
	var visit func(n ast.Node)
	visit = func(n ast.Node) {
		switch t := n.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
		case *ast.String:
			sb.Write(t.Value)
		}
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			visit(c)
		}
	}
	visit(node)
	return strings.TrimSpace(sb.String())
}
