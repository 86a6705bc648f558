// Package guideline implements the guideline store over Redis via rueidis:
// vector-similarity, full-text, substring, keyword and category queries used
// by the search tier cascade. Optional capabilities (RediSearch commands)
// are probed at call time; their absence is reported as a distinguishable
// capability-not-found condition so the engine can route around them.
package guideline

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/rueidis"

	"github.com/uxlens/uxlens/internal/domain/guideline"
)

// Compile-time check against the search engine contract happens in the
// usecase package tests; the repository itself stays dependency-light.

// Config holds connection and index parameters.
type Config struct {
	Addrs     []string
	Password  string
	KeyPrefix string
	VectorDim int
}

// Store is the rueidis-backed guideline repository.
type Store struct {
	client    rueidis.Client
	prefix    string
	vectorDim int
}

// NewStore creates a guideline store.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "uxlens:"
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Password:     cfg.Password,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Store{client: client, prefix: cfg.KeyPrefix, vectorDim: cfg.VectorDim}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

func (s *Store) docKey(id int64) string {
	return fmt.Sprintf("%sguideline:%d", s.prefix, id)
}

func (s *Store) indexName() string {
	return s.prefix + "guidelines:idx"
}

// EnsureIndex creates the RediSearch index if it does not exist yet.
func (s *Store) EnsureIndex(ctx context.Context) error {
	cmd := s.client.B().Arbitrary("FT.CREATE").
		Args(s.indexName(), "ON", "HASH",
			"PREFIX", "1", s.prefix+"guideline:",
			"SCHEMA",
			"content", "TEXT",
			"category", "TAG",
			"source", "TAG",
			"embedding", "VECTOR", "HNSW", "6",
			"TYPE", "FLOAT32",
			"DIM", strconv.Itoa(s.vectorDim),
			"DISTANCE_METRIC", "COSINE",
		).Build()

	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		if isIndexExists(err) {
			return nil
		}
		return classify(fmt.Errorf("create index: %w", err))
	}
	return nil
}

// Upsert writes a guideline document. Used by ingestion tooling; the query
// path treats the store as read-only.
func (s *Store) Upsert(ctx context.Context, doc guideline.Document) error {
	if s.vectorDim > 0 && len(doc.Embedding) > 0 && len(doc.Embedding) != s.vectorDim {
		return fmt.Errorf("document %d: embedding has %d dims, index expects %d",
			doc.ID, len(doc.Embedding), s.vectorDim)
	}

	keywords, err := json.Marshal(doc.Keywords)
	if err != nil {
		return fmt.Errorf("marshal keywords: %w", err)
	}
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	fields := []string{
		"id", strconv.FormatInt(doc.ID, 10),
		"content", doc.Content,
		"source", doc.Source,
		"category", string(doc.Category),
		"subcategory", doc.Subcategory,
		"keywords", string(keywords),
		"metadata", string(metadata),
	}
	if len(doc.Embedding) > 0 {
		fields = append(fields, "embedding", vectorToBytes(doc.Embedding))
	}

	cmd := s.client.B().Arbitrary("HSET").Keys(s.docKey(doc.ID)).Args(fields...).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("upsert guideline %d: %w", doc.ID, err)
	}
	return nil
}

// vectorToBytes encodes a float32 vector as little-endian bytes for FT.SEARCH.
func vectorToBytes(vec []float32) string {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return rueidis.BinaryString(buf)
}
