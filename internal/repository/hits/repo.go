// Package hits stores chunk vectors as Redis hashes and retrieves ranked
// passages via FT.SEARCH KNN.
package hits

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kareline/raggate/internal/db"
	"github.com/kareline/raggate/internal/domain"
)

// Hash field names for stored chunk points.
const (
	fieldDocID  = "doc_id"
	fieldChunk  = "chunk"
	fieldText   = "text"
	fieldTitle  = "title"
	fieldURL    = "url"
	fieldVector = "vector"
)

// store is the consumer interface for point storage and search (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// HNSWConfig tunes the vector index build.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo implements vector point upsert and KNN retrieval for one collection.
type Repo struct {
	store      store
	prefix     string
	collection string
	hnsw       HNSWConfig
}

// New creates a hits repository. prefix is the shared key namespace ("rag:").
func New(s store, prefix, collection string) *Repo {
	return &Repo{store: s, prefix: prefix, collection: collection}
}

// WithHNSW configures index build parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	r.hnsw = cfg
	return r
}

// EnsureIndex creates the collection's FT index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context, dimensions int) error {
	exists, err := r.store.IndexExists(ctx, r.indexName())
	if err != nil {
		return fmt.Errorf("probe index: %w", err)
	}
	if exists {
		return nil
	}

	def := &db.IndexDefinition{
		Name:     r.indexName(),
		Prefixes: []string{r.pointPrefix()},
		Fields: []db.IndexField{
			{Name: fieldDocID, Type: db.IndexFieldNumeric},
			{Name: fieldChunk, Type: db.IndexFieldNumeric},
			{Name: fieldText, Type: db.IndexFieldText},
			{
				Name:              fieldVector,
				Type:              db.IndexFieldVector,
				VectorDim:         dimensions,
				VectorDistance:    db.DistanceCosine,
				VectorM:           r.hnsw.M,
				VectorEFConstruct: r.hnsw.EFConstruct,
			},
		},
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// Upsert stores one point per chunk, keyed "{doc_id}:{chunk_index}" under the
// collection prefix, in a single pipelined round-trip. chunks and vectors
// must be parallel slices.
func (r *Repo) Upsert(ctx context.Context, doc domain.Document, chunks []string, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}

	items := make([]db.HashSetItem, len(chunks))
	for i, text := range chunks {
		fields := map[string]string{
			fieldDocID:  strconv.FormatInt(doc.ID, 10),
			fieldChunk:  strconv.Itoa(i),
			fieldText:   text,
			fieldVector: vectorToBytes(vectors[i]),
		}
		if doc.Title != "" {
			fields[fieldTitle] = doc.Title
		}
		if doc.URL != "" {
			fields[fieldURL] = doc.URL
		}
		items[i] = db.HashSetItem{
			Key:    fmt.Sprintf("%s%d:%d", r.pointPrefix(), doc.ID, i),
			Fields: fields,
		}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert %d points for doc %d: %w", len(items), doc.ID, err)
	}
	return nil
}

// SearchKNN returns the k nearest passages for the query vector, ordered by
// similarity with 1-based ranks assigned.
func (r *Repo) SearchKNN(ctx context.Context, vector []float32, k int) ([]domain.Hit, error) {
	q := &db.KNNQuery{
		IndexName:    r.indexName(),
		Vector:       vector,
		K:            k,
		ReturnFields: []string{fieldDocID, fieldChunk, fieldText, fieldTitle, fieldURL},
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search knn %s: %w", r.collection, err)
	}
	if sr == nil || len(sr.Entries) == 0 {
		return nil, nil
	}

	hits := make([]domain.Hit, 0, len(sr.Entries))
	for i, entry := range sr.Entries {
		hit := domain.Hit{
			Rank:  i + 1,
			ID:    strings.TrimPrefix(entry.Key, r.pointPrefix()),
			Score: entry.Score,
			Text:  entry.Fields[fieldText],
			Title: entry.Fields[fieldTitle],
			URL:   entry.Fields[fieldURL],
		}
		if v, err := strconv.ParseInt(entry.Fields[fieldDocID], 10, 64); err == nil {
			hit.DocID = v
		}
		if v, err := strconv.Atoi(entry.Fields[fieldChunk]); err == nil {
			hit.Chunk = v
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (r *Repo) indexName() string {
	return r.prefix + r.collection + ":idx"
}

func (r *Repo) pointPrefix() string {
	return r.prefix + r.collection + ":"
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
