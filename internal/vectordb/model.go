package vectordb

import (
	"errors"
	"fmt"
)

// 常用错误定义
var (
	ErrEmptyVector      = errors.New("empty vector")
	ErrInvalidDimension = errors.New("vector dimension mismatch")
	ErrIndexClosed      = errors.New("index closed")
)

// DistanceType 向量距离计算方法
type DistanceType string

const (
	// Euclidean 平方欧几里得距离
	Euclidean DistanceType = "l2"
	// Cosine 余弦距离
	Cosine DistanceType = "cosine"
	// DotProduct 负点积
	DotProduct DistanceType = "dot"
)

// Neighbor 最近邻结果
// Position 为向量加入索引的顺序号，Distance 越小越相近
type Neighbor struct {
	Position int
	Distance float32
}

// Index 扁平向量索引接口
// 每次请求新建一个索引，只追加不删除
type Index interface {
	// Add 按顺序追加向量，位置号从当前长度开始
	Add(vectors [][]float32) error

	// Search 返回距离最近的k个向量，按距离升序，距离相同时位置号小者优先
	Search(query []float32, k int) ([]Neighbor, error)

	// Len 返回索引中的向量数量
	Len() int

	// Dimension 返回向量维度
	Dimension() int

	// Close 释放索引占用的资源
	Close() error
}

// Config 向量索引配置
type Config struct {
	Type         string       // 索引类型，如 "memory", "faiss"
	Dimension    int          // 向量维度
	DistanceType DistanceType // 距离计算类型
}

// Factory 向量索引工厂函数类型
type Factory func(config Config) (Index, error)

// IndexRegistry 注册可用的向量索引实现
var IndexRegistry = map[string]Factory{}

// RegisterIndex 注册向量索引工厂函数
func RegisterIndex(name string, factory Factory) {
	IndexRegistry[name] = factory
}

// NewIndex 根据配置创建向量索引
func NewIndex(config Config) (Index, error) {
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", config.Dimension)
	}
	if config.DistanceType == "" {
		config.DistanceType = Euclidean
	}

	factory, ok := IndexRegistry[config.Type]
	if !ok {
		if config.Type != "" {
			return nil, fmt.Errorf("unsupported vector index type: %s", config.Type)
		}
		// 默认使用内存实现
		factory = NewMemoryIndex
	}
	return factory(config)
}
