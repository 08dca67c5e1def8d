// Package vectorstoretest 提供一个内存实现的 vectorstore.Store，仅用于测试。
package vectorstoretest

import (
	"context"
	"math"
	"sort"
	"sync"

	"docqa-go/pkg/vectorstore"
)

type collection struct {
	dim    int
	points map[uint64]vectorstore.Point
}

// Store 以暴力余弦相似度实现检索，并记录调用便于断言。
type Store struct {
	mu          sync.Mutex
	collections map[string]*collection

	RecreateCalls []string
	UpsertCalls   int
	SearchCalls   int

	// 非 nil 时对应方法直接返回该错误。
	RecreateErr error
	UpsertErr   error
	SearchErr   error
}

// New 创建一个空的内存 Store。
func New() *Store {
	return &Store{collections: map[string]*collection{}}
}

var _ vectorstore.Store = (*Store)(nil)

func (s *Store) CollectionExists(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.collections[name]
	return ok, nil
}

func (s *Store) Recreate(_ context.Context, name string, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RecreateCalls = append(s.RecreateCalls, name)
	if s.RecreateErr != nil {
		return s.RecreateErr
	}
	s.collections[name] = &collection{dim: dim, points: map[uint64]vectorstore.Point{}}
	return nil
}

func (s *Store) Upsert(_ context.Context, name string, points []vectorstore.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UpsertCalls++
	if s.UpsertErr != nil {
		return s.UpsertErr
	}
	c, ok := s.collections[name]
	if !ok {
		return vectorstore.ErrCollectionNotFound
	}
	for _, p := range points {
		c.points[p.ID] = p
	}
	return nil
}

func (s *Store) Search(_ context.Context, name string, vector []float32, limit int) ([]vectorstore.Hit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SearchCalls++
	if s.SearchErr != nil {
		return nil, s.SearchErr
	}
	c, ok := s.collections[name]
	if !ok {
		return nil, vectorstore.ErrCollectionNotFound
	}

	hits := make([]vectorstore.Hit, 0, len(c.points))
	for _, p := range c.points {
		hits = append(hits, vectorstore.Hit{ID: p.ID, Score: cosine(vector, p.Vector), Text: p.Text})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score == hits[j].Score {
			return hits[i].ID < hits[j].ID
		}
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *Store) Close() error { return nil }

// Dimension 返回集合的维度，集合不存在时返回 -1。
func (s *Store) Dimension(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[name]; ok {
		return c.dim
	}
	return -1
}

// Points 返回集合中的全部点，按 ID 排序。
func (s *Store) Points(name string) []vectorstore.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return nil
	}
	out := make([]vectorstore.Point, 0, len(c.points))
	for _, p := range c.points {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
