package models

import (
	"fmt"
	"strings"
	"time"
)

// ChunkType classifies the structural content of a chunk
type ChunkType string

const (
	ChunkTypeHeading ChunkType = "heading"
	ChunkTypeText    ChunkType = "text"
	ChunkTypeCode    ChunkType = "code"
	ChunkTypeTable   ChunkType = "table"
)

// Chunk is the unit of storage: a bounded piece of markdown with structural
// metadata and its embedding. A chunk is uniquely identified by
// (library, version, source_url, chunk_index); indices are contiguous from 0
// within a source URL.
type Chunk struct {
	Key          string `badgerhold:"key"`
	Library      string `badgerholdIndex:"IdxLibrary"` // Normalized (lower-case, trimmed)
	Version      string // Normalized; empty string is the unversioned bucket
	SourceURL    string `badgerholdIndex:"IdxSourceURL"`
	ChunkIndex   int
	Title        string
	Content      string
	Types        []ChunkType
	SectionLevel int      // 0..6; 0 for content preceding any heading
	SectionPath  []string // Heading titles from the document root
	Embedding    []float32
	CreatedAt    time.Time
}

// ChunkKey builds the canonical storage key for a chunk
func ChunkKey(library, version, sourceURL string, index int) string {
	return fmt.Sprintf("%s|%s|%s|%06d", library, version, sourceURL, index)
}

// NormalizeLibrary case-normalizes a library name
func NormalizeLibrary(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NormalizeVersion normalizes a version string; the empty string addresses the
// unversioned bucket.
func NormalizeVersion(version string) string {
	return strings.ToLower(strings.TrimSpace(version))
}

// ScopeKey addresses the set of chunks for one (library, version) pair
func ScopeKey(library, version string) string {
	return NormalizeLibrary(library) + "@" + NormalizeVersion(version)
}

// LibraryInfo summarizes one indexed library for listings
type LibraryInfo struct {
	Name       string   `json:"name"`
	Versions   []string `json:"versions"` // May contain "" for the unversioned bucket
	ChunkCount int      `json:"chunks"`
}

// ScoredChunk pairs a stored chunk with its vector similarity score
type ScoredChunk struct {
	Chunk Chunk
	Score float32
}
