package models

// SearchResultMetadata carries the structural context of a matched chunk
type SearchResultMetadata struct {
	Title        string   `json:"title"`
	Library      string   `json:"library"`
	Version      string   `json:"version"`
	SectionPath  []string `json:"section_path,omitempty"`
	SectionLevel int      `json:"section_level"`
}

// SearchResult is one hybrid-search hit
type SearchResult struct {
	URL      string               `json:"url"`
	Content  string               `json:"content"`
	Score    float64              `json:"score"`
	Metadata SearchResultMetadata `json:"metadata"`
}

// VersionResolution is the outcome of semver-aware version selection
type VersionResolution struct {
	BestMatch      string `json:"best_match"` // Empty when no semver version matched
	HasUnversioned bool   `json:"has_unversioned"`
}
