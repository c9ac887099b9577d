package interfaces

import "context"

// Embedder converts batches of texts into fixed-dimensionality vectors.
// Implementations must be deterministic for identical inputs.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}
