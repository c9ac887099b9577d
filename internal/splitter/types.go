package splitter

// Chunk is one indexable piece of a document
type Chunk struct {
	Content      string
	Types        []string // Content kinds present: heading, text, code, table
	SectionLevel int      // Depth of the enclosing heading, 0 for preamble
	SectionPath  []string // Heading trail from the document root
}

const (
	TypeHeading = "heading"
	TypeText    = "text"
	TypeCode    = "code"
	TypeTable   = "table"
)

// Config bounds chunk sizes in characters. PreferredSize is the greedy
// packing target; MaxSize is the hard ceiling a chunk may never exceed.
type Config struct {
	PreferredSize int
	MaxSize       int
}

// DefaultConfig returns the standard sizing
func DefaultConfig() Config {
	return Config{PreferredSize: 1500, MaxSize: 2000}
}

func (c Config) normalized() Config {
	if c.PreferredSize <= 0 {
		c.PreferredSize = 1500
	}
	if c.MaxSize < c.PreferredSize {
		c.MaxSize = c.PreferredSize
	}
	return c
}
