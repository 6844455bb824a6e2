package retrieval

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/clause-rag/internal/document"
	"github.com/fyerfyer/clause-rag/internal/embedding"
	"github.com/fyerfyer/clause-rag/internal/vectordb"
)

// DenseOption 稠密策略选项
type DenseOption func(*DenseStrategy)

// WithDenseMinLength 设置最小条款长度
func WithDenseMinLength(n int) DenseOption {
	return func(s *DenseStrategy) {
		if n > 0 {
			s.splitter = document.NewClauseSplitter(n)
		}
	}
}

// WithDenseTopK 设置默认检索条数
func WithDenseTopK(k int) DenseOption {
	return func(s *DenseStrategy) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithIndexType 设置向量索引类型
func WithIndexType(indexType string) DenseOption {
	return func(s *DenseStrategy) {
		s.indexType = indexType
	}
}

// WithDenseLogger 设置日志记录器
func WithDenseLogger(logger *logrus.Logger) DenseOption {
	return func(s *DenseStrategy) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// DenseStrategy 句向量 + 扁平L2索引检索
type DenseStrategy struct {
	processor *embedding.BatchProcessor
	splitter  *document.ClauseSplitter
	topK      int
	indexType string
	logger    *logrus.Logger
}

// NewDenseStrategy 创建稠密检索策略
func NewDenseStrategy(processor *embedding.BatchProcessor, opts ...DenseOption) *DenseStrategy {
	s := &DenseStrategy{
		processor: processor,
		splitter:  document.NewClauseSplitter(document.DefaultDenseMinLength),
		topK:      3,
		indexType: "memory",
		logger:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name 返回策略名称
func (s *DenseStrategy) Name() string { return StrategyDense }

// Splitter 返回条款分段器
func (s *DenseStrategy) Splitter() *document.ClauseSplitter { return s.splitter }

// DefaultTopK 返回默认检索条数
func (s *DenseStrategy) DefaultTopK() int { return s.topK }

// Build 嵌入全部条款并写入扁平L2索引
func (s *DenseStrategy) Build(ctx context.Context, clauses []document.Clause) (Index, error) {
	if len(clauses) == 0 {
		return nil, ErrEmptyCorpus
	}

	vectors, err := s.processor.Process(ctx, document.Texts(clauses))
	if err != nil {
		return nil, fmt.Errorf("failed to embed clauses: %w", err)
	}
	if len(vectors) != len(clauses) || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("embedding returned %d vectors for %d clauses", len(vectors), len(clauses))
	}

	index, err := s.newIndex(len(vectors[0]))
	if err != nil {
		return nil, err
	}
	if err := index.Add(vectors); err != nil {
		index.Close()
		return nil, fmt.Errorf("failed to add clause vectors: %w", err)
	}

	return &DenseIndex{
		clauses:  clauses,
		index:    index,
		embedder: s.processor.Client(),
	}, nil
}

// newIndex 创建向量索引，Faiss不可用时退回内存实现
func (s *DenseStrategy) newIndex(dimension int) (vectordb.Index, error) {
	cfg := vectordb.Config{
		Type:         s.indexType,
		Dimension:    dimension,
		DistanceType: vectordb.Euclidean,
	}
	index, err := vectordb.NewIndex(cfg)
	if err == nil {
		return index, nil
	}
	if s.indexType == "memory" {
		return nil, fmt.Errorf("failed to create vector index: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"index_type": s.indexType,
		"error":      err.Error(),
	}).Warn("Vector index unavailable, falling back to memory index")

	cfg.Type = "memory"
	index, err = vectordb.NewIndex(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector index: %w", err)
	}
	return index, nil
}

// DenseIndex 单个文档的向量索引
type DenseIndex struct {
	clauses  []document.Clause
	index    vectordb.Index
	embedder embedding.Client
}

// Clauses 返回条款
func (idx *DenseIndex) Clauses() []document.Clause { return idx.clauses }

// Len 返回条款数量
func (idx *DenseIndex) Len() int { return len(idx.clauses) }

// Close 释放向量索引
func (idx *DenseIndex) Close() error { return idx.index.Close() }

// Search 嵌入查询并返回平方L2距离最近的条款，无效的近邻位置被跳过
func (idx *DenseIndex) Search(ctx context.Context, query string, topK int) ([]Match, error) {
	if err := validateSearch(query, topK, idx.index.Len()); err != nil {
		return nil, err
	}

	vec, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	neighbors, err := idx.index.Search(vec, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	matches := make([]Match, 0, len(neighbors))
	for _, n := range neighbors {
		if n.Position < 0 || n.Position >= len(idx.clauses) {
			continue
		}
		distance := n.Distance
		if distance < 0 {
			distance = 0
		}
		matches = append(matches, Match{Clause: idx.clauses[n.Position], Distance: distance})
	}
	return matches, nil
}
