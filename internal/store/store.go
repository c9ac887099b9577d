package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	chromem "github.com/philippgille/chromem-go"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/quill/internal/common"
	"github.com/ternarybob/quill/internal/interfaces"
	"github.com/ternarybob/quill/internal/models"
	"github.com/ternarybob/quill/internal/splitter"
)

// scopeRecord summarizes one (library, version) scope so listing operations
// never have to scan chunk rows.
type scopeRecord struct {
	Key        string `badgerhold:"key"` // library@version
	Library    string `badgerholdIndex:"IdxScopeLibrary"`
	Version    string
	ChunkCount int
	UpdatedAt  time.Time
}

// Store is the versioned chunk store: badgerhold rows for exact lookups and
// a chromem collection per scope for vector recall. Writes to one scope are
// serialized; different scopes proceed in parallel.
type Store struct {
	db       *badgerhold.Store
	vectors  *chromem.DB
	embedder interfaces.Embedder
	logger   arbor.ILogger

	mu         sync.Mutex
	scopeLocks map[string]*sync.Mutex

	colMu       sync.Mutex
	collections map[string]*chromem.Collection
}

// New opens both storage backends. ResetOnStartup wipes the badger directory
// first, matching the vectors which are rebuilt per scope on re-index.
func New(cfg *common.Config, embedder interfaces.Embedder, logger arbor.ILogger) (*Store, error) {
	badgerPath := cfg.Storage.Badger.Path
	if cfg.Storage.Badger.ResetOnStartup {
		if _, err := os.Stat(badgerPath); err == nil {
			logger.Debug().Str("path", badgerPath).Msg("Deleting existing database (reset_on_startup=true)")
			if err := os.RemoveAll(badgerPath); err != nil {
				logger.Warn().Err(err).Str("path", badgerPath).Msg("Failed to delete database directory")
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(badgerPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = badgerPath
	options.ValueDir = badgerPath
	options.Logger = nil

	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	vectors, err := chromem.NewPersistentDB(cfg.Storage.Vectors.Path, true)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open vector database: %w", err)
	}

	logger.Info().
		Str("badger_path", badgerPath).
		Str("vectors_path", cfg.Storage.Vectors.Path).
		Msg("Chunk store opened")

	return &Store{
		db:          db,
		vectors:     vectors,
		embedder:    embedder,
		logger:      logger,
		scopeLocks:  make(map[string]*sync.Mutex),
		collections: make(map[string]*chromem.Collection),
	}, nil
}

func (s *Store) Initialize(ctx context.Context) error {
	// Both backends open eagerly in New; nothing to defer
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// scopeLock returns the write mutex for one scope, creating it on first use
func (s *Store) scopeLock(scope string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.scopeLocks[scope]
	if !ok {
		lock = &sync.Mutex{}
		s.scopeLocks[scope] = lock
	}
	return lock
}

// identityEmbed exists because chromem requires an embedding function even
// though all vectors here are pre-computed.
func identityEmbed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("embedding function called but vectors should be pre-computed")
}

func (s *Store) collection(scope string) (*chromem.Collection, error) {
	s.colMu.Lock()
	defer s.colMu.Unlock()
	if col, ok := s.collections[scope]; ok {
		return col, nil
	}
	col, err := s.vectors.GetOrCreateCollection(scope, nil, identityEmbed)
	if err != nil {
		return nil, fmt.Errorf("get collection %q: %w", scope, err)
	}
	s.collections[scope] = col
	return col, nil
}

func (s *Store) Exists(ctx context.Context, library, version string) (bool, error) {
	library = models.NormalizeLibrary(library)
	version = models.NormalizeVersion(version)

	var rec scopeRecord
	err := s.db.Get(models.ScopeKey(library, version), &rec)
	if err == badgerhold.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup scope: %w", err)
	}
	return rec.ChunkCount > 0, nil
}

// AddChunks persists one processed document. Chunk indices continue from
// whatever is already stored for the same source URL, so multi-call writes
// stay contiguous.
func (s *Store) AddChunks(ctx context.Context, library, version string, doc *models.Document, chunks []splitter.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	library = models.NormalizeLibrary(library)
	version = models.NormalizeVersion(version)
	scope := models.ScopeKey(library, version)

	lock := s.scopeLock(scope)
	lock.Lock()
	defer lock.Unlock()

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	embeddings, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed %d chunks: %w", len(chunks), err)
	}
	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(chunks))
	}

	// Indices are contiguous per URL, so the count doubles as the next index
	existing, err := s.db.Count(&models.Chunk{},
		badgerhold.Where("Library").Eq(library).And("Version").Eq(version).And("SourceURL").Eq(doc.SourceURL))
	if err != nil {
		return 0, fmt.Errorf("count existing chunks: %w", err)
	}
	nextIndex := int(existing)

	col, err := s.collection(scope)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	records := make([]models.Chunk, len(chunks))
	docs := make([]chromem.Document, 0, len(chunks))
	for i, c := range chunks {
		types := make([]models.ChunkType, len(c.Types))
		for j, t := range c.Types {
			types[j] = models.ChunkType(t)
		}
		records[i] = models.Chunk{
			Key:          models.ChunkKey(library, version, doc.SourceURL, nextIndex+i),
			Library:      library,
			Version:      version,
			SourceURL:    doc.SourceURL,
			ChunkIndex:   nextIndex + i,
			Title:        doc.Title,
			Content:      c.Content,
			Types:        types,
			SectionLevel: c.SectionLevel,
			SectionPath:  c.SectionPath,
			Embedding:    embeddings[i],
			CreatedAt:    now,
		}
		docs = append(docs, chromem.Document{
			ID:        records[i].Key,
			Content:   c.Content,
			Metadata:  map[string]string{"url": doc.SourceURL},
			Embedding: embeddings[i],
		})
	}

	// Chunk rows and the scope summary commit together; a failure rolls the
	// whole document back instead of leaving a partial write
	err = s.db.Badger().Update(func(tx *badger.Txn) error {
		for i := range records {
			if err := s.db.TxUpsert(tx, records[i].Key, &records[i]); err != nil {
				return fmt.Errorf("store chunk %s: %w", records[i].Key, err)
			}
		}

		var rec scopeRecord
		err := s.db.TxGet(tx, scope, &rec)
		if err == badgerhold.ErrNotFound {
			rec = scopeRecord{Key: scope, Library: library, Version: version}
		} else if err != nil {
			return fmt.Errorf("load scope record: %w", err)
		}
		rec.ChunkCount += len(records)
		rec.UpdatedAt = now
		if err := s.db.TxUpsert(tx, scope, &rec); err != nil {
			return fmt.Errorf("update scope record: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	// Vectors only after the rows committed
	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return 0, fmt.Errorf("index vectors: %w", err)
	}

	s.logger.Debug().
		Str("scope", scope).
		Str("url", doc.SourceURL).
		Int("chunks", len(chunks)).
		Int("start_index", nextIndex).
		Msg("Chunks stored")

	return len(chunks), nil
}

// DeleteScope removes exactly one (library, version) scope: its chunk rows,
// its vector collection, and its summary record. Other versions of the same
// library are untouched.
func (s *Store) DeleteScope(ctx context.Context, library, version string) error {
	library = models.NormalizeLibrary(library)
	version = models.NormalizeVersion(version)
	scope := models.ScopeKey(library, version)

	lock := s.scopeLock(scope)
	lock.Lock()
	defer lock.Unlock()

	if err := s.db.DeleteMatching(&models.Chunk{},
		badgerhold.Where("Library").Eq(library).And("Version").Eq(version)); err != nil {
		return fmt.Errorf("delete chunks for %s: %w", scope, err)
	}
	if err := s.db.Delete(scope, &scopeRecord{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("delete scope record: %w", err)
	}

	s.colMu.Lock()
	delete(s.collections, scope)
	err := s.vectors.DeleteCollection(scope)
	s.colMu.Unlock()
	if err != nil {
		return fmt.Errorf("delete vector collection %s: %w", scope, err)
	}

	s.logger.Info().Str("scope", scope).Msg("Scope deleted")
	return nil
}

func (s *Store) QueryUniqueVersions(ctx context.Context, library string) ([]string, error) {
	library = models.NormalizeLibrary(library)

	var records []scopeRecord
	if err := s.db.Find(&records, badgerhold.Where("Library").Eq(library).Index("IdxScopeLibrary")); err != nil {
		return nil, fmt.Errorf("find versions for %s: %w", library, err)
	}

	versions := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.ChunkCount > 0 {
			versions = append(versions, rec.Version)
		}
	}
	return versions, nil
}

func (s *Store) QueryLibraryVersions(ctx context.Context) (map[string][]string, error) {
	var records []scopeRecord
	if err := s.db.Find(&records, nil); err != nil {
		return nil, fmt.Errorf("list scopes: %w", err)
	}

	out := make(map[string][]string)
	for _, rec := range records {
		if rec.ChunkCount > 0 {
			out[rec.Library] = append(out[rec.Library], rec.Version)
		}
	}
	return out, nil
}

func (s *Store) ListLibraries(ctx context.Context) ([]models.LibraryInfo, error) {
	var records []scopeRecord
	if err := s.db.Find(&records, nil); err != nil {
		return nil, fmt.Errorf("list scopes: %w", err)
	}

	byLibrary := make(map[string]*models.LibraryInfo)
	var order []string
	for _, rec := range records {
		if rec.ChunkCount == 0 {
			continue
		}
		info, ok := byLibrary[rec.Library]
		if !ok {
			info = &models.LibraryInfo{Name: rec.Library}
			byLibrary[rec.Library] = info
			order = append(order, rec.Library)
		}
		info.Versions = append(info.Versions, rec.Version)
		info.ChunkCount += rec.ChunkCount
	}

	out := make([]models.LibraryInfo, 0, len(order))
	for _, name := range order {
		out = append(out, *byLibrary[name])
	}
	return out, nil
}

// VectorSearch returns up to k chunks by cosine similarity to queryVector.
// The scope must exist; an empty scope returns no results rather than an
// error so callers can distinguish "nothing similar" from "not indexed".
func (s *Store) VectorSearch(ctx context.Context, library, version string, queryVector []float32, k int) ([]models.ScoredChunk, error) {
	library = models.NormalizeLibrary(library)
	version = models.NormalizeVersion(version)
	scope := models.ScopeKey(library, version)

	col, err := s.collection(scope)
	if err != nil {
		return nil, err
	}

	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := col.QueryEmbedding(ctx, queryVector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query %s: %w", scope, err)
	}

	scored := make([]models.ScoredChunk, 0, len(results))
	for _, r := range results {
		var chunk models.Chunk
		if err := s.db.Get(r.ID, &chunk); err != nil {
			s.logger.Warn().Str("key", r.ID).Err(err).Msg("Vector hit without chunk row")
			continue
		}
		scored = append(scored, models.ScoredChunk{Chunk: chunk, Score: r.Similarity})
	}
	return scored, nil
}
