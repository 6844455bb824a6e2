package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/clause-rag/internal/document"
	"github.com/fyerfyer/clause-rag/internal/embedding"
)

// 检索错误定义
var (
	ErrEmptyCorpus   = errors.New("document produced no clauses long enough to index")
	ErrIndexNotBuilt = errors.New("index is empty or has not been built")
	ErrEmptyQuery    = errors.New("query cannot be empty")
	ErrInvalidTopK   = errors.New("top_k must be positive")
)

// 策略名称
const (
	StrategySparse = "sparse"
	StrategyDense  = "dense"
)

// Match 单条检索结果
// Distance 越小越相关：稀疏检索为 1-余弦相似度，稠密检索为平方L2距离
type Match struct {
	Clause   document.Clause
	Distance float32
}

// Index 单个文档的检索索引，构建后只读，随请求结束释放
type Index interface {
	// Search 返回最多topK条结果，按相关度降序
	Search(ctx context.Context, query string, topK int) ([]Match, error)

	// Clauses 返回建立索引的条款
	Clauses() []document.Clause

	// Len 返回条款数量
	Len() int

	// Close 释放索引资源
	Close() error
}

// Strategy 检索策略，负责把条款构建成索引
type Strategy interface {
	// Name 返回策略名称
	Name() string

	// Splitter 返回该策略使用的条款分段器
	Splitter() *document.ClauseSplitter

	// DefaultTopK 返回默认检索条数
	DefaultTopK() int

	// Build 基于条款构建索引，条款为空时返回ErrEmptyCorpus
	Build(ctx context.Context, clauses []document.Clause) (Index, error)
}

// Config 检索策略配置
type Config struct {
	Strategy        string // sparse 或 dense
	SparseMinLength int    // 稀疏检索最小条款长度
	SparseTopK      int    // 稀疏检索默认条数
	MaxFeatures     int    // TF-IDF词表上限
	DenseMinLength  int    // 稠密检索最小条款长度
	DenseTopK       int    // 稠密检索默认条数
	IndexType       string // 向量索引类型：memory，或以faiss标签构建时的faiss
	BatchSize       int    // 嵌入批大小
	Workers         int    // 嵌入并发数
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Strategy:        StrategySparse,
		SparseMinLength: document.DefaultSparseMinLength,
		SparseTopK:      1,
		MaxFeatures:     DefaultMaxFeatures,
		DenseMinLength:  document.DefaultDenseMinLength,
		DenseTopK:       3,
		IndexType:       "memory",
		BatchSize:       16,
		Workers:         4,
	}
}

// NewStrategy 根据配置创建检索策略
// 稠密策略需要嵌入客户端，稀疏策略忽略该参数
func NewStrategy(cfg Config, embedder embedding.Client, logger *logrus.Logger) (Strategy, error) {
	switch cfg.Strategy {
	case "", StrategySparse:
		return NewSparseStrategy(
			WithSparseMinLength(cfg.SparseMinLength),
			WithSparseTopK(cfg.SparseTopK),
			WithMaxFeatures(cfg.MaxFeatures),
		), nil
	case StrategyDense:
		if embedder == nil {
			return nil, fmt.Errorf("dense strategy requires an embedding client")
		}
		return NewDenseStrategy(
			embedding.NewBatchProcessor(embedder, cfg.BatchSize, cfg.Workers),
			WithDenseMinLength(cfg.DenseMinLength),
			WithDenseTopK(cfg.DenseTopK),
			WithIndexType(cfg.IndexType),
			WithDenseLogger(logger),
		), nil
	default:
		return nil, fmt.Errorf("unknown retrieval strategy: %s", cfg.Strategy)
	}
}

// validateSearch 校验检索参数
func validateSearch(query string, topK int, size int) error {
	if size == 0 {
		return ErrIndexNotBuilt
	}
	if query == "" {
		return ErrEmptyQuery
	}
	if topK <= 0 {
		return ErrInvalidTopK
	}
	return nil
}

// Contexts 返回检索结果的条款文本
func Contexts(matches []Match) []string {
	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Clause.Text
	}
	return texts
}
